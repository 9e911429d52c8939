package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// pragmas are applied to every connection opened from the DSN.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// DBConfig holds SQLite database configuration.
type DBConfig struct {
	DSN         string // File path, ":memory:", or a file: URI
	AutoMigrate bool   // Apply embedded migrations after opening
}

// NewStoreWithConfig opens the database file, verifies the connection and
// optionally applies migrations.
//
// The pool holds a single connection, so a ":memory:" database lives as long
// as the store.
func NewStoreWithConfig(ctx context.Context, cfg DBConfig) (*Store, error) {
	db, err := sql.Open("sqlite", buildDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return NewStore(db), nil
}

// buildDSN turns a path into a file: URI carrying the connection pragmas.
func buildDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		if strings.Contains(dsn, "_pragma="+strings.SplitN(p, "(", 2)[0]) {
			continue
		}
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.DebugContext(ctx, "migration applied",
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds())
	}

	return nil
}
