package storage

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/rl1809/pos-checkout/migrations"
)

// RunMigrations brings the schema up to date.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
