package registry

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ministore/persist/persist"
	"github.com/ministore/persist/persist/storage"
	"github.com/ministore/persist/persist/storage/postgres"
	"github.com/ministore/persist/persist/storage/sqlite"
)

// Store is an open database with one client per mapped entity
type Store struct {
	adapter storage.Adapter
	db      *sql.DB
	clients persist.Clients
}

// NewAdapter selects the adapter for the configured backend
func NewAdapter(cfg Config) (storage.Adapter, error) {
	switch cfg.Backend {
	case storage.BackendSQLite:
		if cfg.SQLite.Driver != "" {
			return sqlite.NewWithDriver(cfg.SQLite.Path, cfg.SQLite.Driver), nil
		}
		return sqlite.New(cfg.SQLite.Path), nil
	case storage.BackendPostgres:
		return postgres.New(cfg.Postgres.DSN, cfg.Postgres.Schema), nil
	default:
		return nil, persist.ConfigError("unknown backend " + string(cfg.Backend))
	}
}

// Open connects to the configured database
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return OpenAdapter(ctx, adapter, cfg.Entities, logger)
}

// OpenAdapter connects through adapter and builds a client per entity
func OpenAdapter(ctx context.Context, adapter storage.Adapter, entities map[string]storage.EntityMapping, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, persist.Wrap(persist.ErrStorage, "connect to database", err)
	}
	logger.Debug("storage connected", "backend", adapter.Backend(), "database", adapter.DatabaseID())

	clients := make(persist.Clients, len(entities))
	for name, m := range entities {
		clients[name] = storage.NewEntityClient(db, adapter.PlaceholderStyle(), name, m, logger)
	}
	return &Store{adapter: adapter, db: db, clients: clients}, nil
}

// Registry returns the entity to client table
func (s *Store) Registry() persist.Registry {
	return s.clients
}

// DB exposes the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return persist.Wrap(persist.ErrStorage, "close database", err)
		}
	}
	return s.adapter.Close()
}
