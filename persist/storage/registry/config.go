// Package registry opens a database from configuration and builds the entity
// to storage client table the dispatcher reads from.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ministore/persist/persist"
	"github.com/ministore/persist/persist/storage"
)

// Config selects a backend and maps entities onto tables
type Config struct {
	Backend  storage.Backend                  `yaml:"backend"`
	SQLite   SQLiteConfig                     `yaml:"sqlite"`
	Postgres PostgresConfig                   `yaml:"postgres"`
	Entities map[string]storage.EntityMapping `yaml:"entities"`
}

type SQLiteConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver,omitempty"` // "sqlite" (default) or "sqlite3"
}

type PostgresConfig struct {
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema,omitempty"`
}

// ParseConfig decodes a YAML config. ${VAR} references in the sqlite path
// and postgres DSN are expanded from the environment.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, persist.Wrap(persist.ErrConfig, "invalid config YAML", err)
	}
	cfg.SQLite.Path = os.ExpandEnv(cfg.SQLite.Path)
	cfg.Postgres.DSN = os.ExpandEnv(cfg.Postgres.DSN)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a config file
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, persist.Wrap(persist.ErrConfig, "read config", err)
	}
	return ParseConfig(b)
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = storage.BackendSQLite
	}
	for name, m := range c.Entities {
		if m.Key == "" {
			m.Key = "id"
		}
		c.Entities[name] = m
	}
}

// Validate checks the backend settings and every entity mapping
func (c Config) Validate() error {
	switch c.Backend {
	case storage.BackendSQLite:
		if c.SQLite.Path == "" {
			return persist.ConfigError("sqlite.path is required")
		}
	case storage.BackendPostgres:
		if c.Postgres.DSN == "" {
			return persist.ConfigError("postgres.dsn is required")
		}
	default:
		return persist.ConfigError(fmt.Sprintf("unknown backend %q", c.Backend))
	}

	if len(c.Entities) == 0 {
		return persist.ConfigError("at least one entity must be mapped")
	}
	for name, m := range c.Entities {
		if m.Table == "" {
			return persist.ConfigError(fmt.Sprintf("entity %s: table is required", name))
		}
		for rel, r := range m.Relations {
			if r.Table == "" || r.Local == "" || r.Remote == "" {
				return persist.ConfigError(fmt.Sprintf("entity %s: relation %s needs table, local and remote", name, rel))
			}
		}
	}
	return nil
}
