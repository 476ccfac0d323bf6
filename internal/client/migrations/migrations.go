// Package migrations embeds the goose migrations of the local database and
// applies them.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// Up brings db to the latest schema version. Version 2 adds the
// reflections table to databases created before it existed, version 3 the
// outbox replacedBy column.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// UpTo applies migrations up to and including version.
func UpTo(ctx context.Context, db *sql.DB, version int64) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpToContext(ctx, db, ".", version); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
