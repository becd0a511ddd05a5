// Package testutil provisions an isolated, migrated schema against a real
// PostgreSQL instance for package tests, mirroring the original
// implementation's #[sqlx::test(migrations = "./migrations")] harness: each
// test gets its own schema, migrated fresh, and torn down afterward.
//
// Tests using this package require FXMQ_TEST_DATABASE_URL to point at a
// reachable PostgreSQL instance and are skipped otherwise.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakoblilliemarck/fxmq/migrator"
)

// NewSchema connects to FXMQ_TEST_DATABASE_URL, migrates a freshly named
// schema, and returns a pool plus the schema name. The schema is dropped
// when the test completes.
func NewSchema(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	dsn := os.Getenv("FXMQ_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FXMQ_TEST_DATABASE_URL not set, skipping database test")
	}

	schemaID, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("generate schema id: %v", err)
	}
	schema := fmt.Sprintf("fxmq_test_%s", schemaID.String()[:8])

	if err := migrator.Run(dsn, schema); err != nil {
		t.Fatalf("migrate schema %q: %v", schema, err)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema))
		pool.Close()
	})

	return pool, schema
}

// BeginScoped opens a transaction against pool with search_path set to
// schema, matching what the schema-scoped facade does on every operation.
func BeginScoped(ctx context.Context, t *testing.T, pool *pgxpool.Pool, schema string) pgx.Tx {
	t.Helper()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %q`, schema)); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(ctx) })
	return tx
}
