package storage

import (
	"context"
	"database/sql"

	"github.com/ministore/persist/persist/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Adapter abstracts database-specific connection handling
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	DatabaseID() string

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error
}
