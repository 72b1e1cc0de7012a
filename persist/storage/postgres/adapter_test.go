package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/persist/persist/storage"
	"github.com/ministore/persist/persist/storage/sqlbuilder"
)

func TestConnConfigPinsSearchPath(t *testing.T) {
	a := New("postgres://user:pw@localhost:5432/app", "tenant_a")
	cfg, err := a.ConnConfig()
	require.NoError(t, err)
	assert.Equal(t, `"tenant_a",public`, cfg.RuntimeParams["search_path"])
	assert.Equal(t, "app", cfg.Database)

	assert.Equal(t, storage.BackendPostgres, a.Backend())
	assert.Equal(t, sqlbuilder.PlaceholderDollar, a.PlaceholderStyle())
	assert.Equal(t, "postgres:tenant_a", a.DatabaseID())
}

func TestConnConfigWithoutSchema(t *testing.T) {
	cfg, err := New("postgres://localhost/app", "").ConnConfig()
	require.NoError(t, err)
	_, ok := cfg.RuntimeParams["search_path"]
	assert.False(t, ok)
}

func TestConnConfigRejectsBadSchema(t *testing.T) {
	_, err := New("postgres://localhost/app", `x"; drop`).ConnConfig()
	assert.Error(t, err)
}
