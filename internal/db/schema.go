package db

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the record-store schema for the given driver. The DDL is
// idempotent (CREATE TABLE IF NOT EXISTS), so the worker runs it at every
// startup as well as via the migrate command.
func Migrate(dbx *sqlx.DB, driver string) error {
	path := fmt.Sprintf("migrations/%s/001_init.sql", dialect(driver))
	ddl, err := migrations.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", path, err)
	}
	if _, err := dbx.Exec(string(ddl)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func dialect(driver string) string {
	if driver == "mysql" {
		return "mysql"
	}
	return "sqlite"
}
