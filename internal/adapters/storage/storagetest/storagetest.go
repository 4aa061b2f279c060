// Package storagetest opens migrated databases for store tests.
package storagetest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"vendordesk/internal/adapters/storage"
)

// OpenSQLite returns a migrated SQLite database in a per-test directory.
// A file is used because every pooled connection to ":memory:" sees its own database.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateSQLite(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// OpenPostgres returns a migrated Postgres database with empty tables, or
// skips the test when TEST_DATABASE_URL is not set.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := storage.MigratePostgres(dsn); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	db, err := storage.OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`TRUNCATE notification, deletion_request, account_status, account`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}
