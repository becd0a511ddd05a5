// Package migrator applies the embedded migration set (package migrations)
// to a schema-scoped PostgreSQL database, mirroring the original
// implementation's run_migrations: validate the schema identifier, create
// the schema if absent, then apply migrations scoped to it.
package migrator

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/migrations"
	"github.com/jakoblilliemarck/fxmq/schemaname"
)

// Run validates schema, creates it if it does not already exist, and
// applies every embedded migration scoped to it. It is idempotent: running
// it again against an up-to-date schema returns nil.
func Run(dsn, schema string) error {
	quoted, err := schemaname.Quote(schema)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return &fxmq.MigrateError{Err: fmt.Errorf("open database: %w", err)}
	}
	defer db.Close()

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + quoted); err != nil {
		return &fxmq.MigrateError{Err: fmt.Errorf("create schema: %w", err)}
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		SchemaName:      schema,
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return &fxmq.MigrateError{Err: fmt.Errorf("configure driver: %w", err)}
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return &fxmq.MigrateError{Err: fmt.Errorf("load embedded migrations: %w", err)}
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		return &fxmq.MigrateError{Err: fmt.Errorf("build migrator: %w", err)}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &fxmq.MigrateError{Err: err}
	}

	return nil
}
