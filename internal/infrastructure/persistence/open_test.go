package persistence_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/config"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()

	store, err := persistence.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "open.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	owners, err := store.ListOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	_, listens := store.(persistence.ChangeListener)
	assert.False(t, listens, "sqlite store does not publish changes")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := persistence.Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
