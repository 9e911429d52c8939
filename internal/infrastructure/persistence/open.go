// Package persistence selects the store implementation configured for a binary.
package persistence

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/config"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence/sqlite"
)

// Store is a planner repository that owns its connections.
type Store interface {
	planner.Repository
	io.Closer
}

// ChangeListener is implemented by stores that can report writes made by
// other processes. Only the postgres store does.
type ChangeListener interface {
	Listen(ctx context.Context, fn func(ownerID string)) error
}

// Open connects to the database named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
			AutoMigrate:     cfg.AutoMigrate,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.NewStoreWithConfig(ctx, sqlite.DBConfig{
			DSN:         cfg.DSN,
			AutoMigrate: cfg.AutoMigrate,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
