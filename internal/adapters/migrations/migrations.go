// Package migrations applies the embedded schema with goose. Running it on every
// start is safe: applied versions are skipped.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var baseFS embed.FS

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Up applies every pending migration for driver.
func Up(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	var dialect database.Dialect
	switch driver {
	case Postgres:
		dialect = database.DialectPostgres
	case SQLite:
		dialect = database.DialectSQLite3
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	fsys, err := fs.Sub(baseFS, driver)
	if err != nil {
		return fmt.Errorf("failed to open %s migrations: %w", driver, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logger.Info("migrations applied",
		"driver", driver,
		"applied", len(results),
		"version", version,
	)
	return nil
}
