package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFS embeds the SQL migrations for both dialects.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

const (
	sqliteMigrations   = "migrations/sqlite"
	postgresMigrations = "migrations/postgres"
)

// MigrateSQLite applies all pending SQLite migrations to db.
// PRE: db is an open SQLite connection
// POST: Schema is at LatestSchemaVersion; db stays open
func MigrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrationFS, sqliteMigrations)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// m.Close would close db, which belongs to the caller.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigratePostgres applies all pending Postgres migrations using dsn.
// PRE: dsn is a postgres:// or postgresql:// URL
// POST: Schema is at LatestSchemaVersion
func MigratePostgres(dsn string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	src, err := iofs.New(migrationFS, postgresMigrations)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version recorded by golang-migrate.
// PRE: db is migrated
// POST: Returns the version and whether the last migration left the schema dirty
func SchemaVersion(db *sql.DB) (uint, bool, error) {
	var version int64
	var dirty bool
	err := db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, err
	}
	return uint(version), dirty, nil
}

// LatestSchemaVersion returns the highest embedded SQLite migration version.
func LatestSchemaVersion() uint {
	entries, err := fs.ReadDir(migrationFS, sqliteMigrations)
	if err != nil {
		return 0
	}
	var latest uint
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && uint(v) > latest {
			latest = uint(v)
		}
	}
	return latest
}

// pgx5URL rewrites a postgres URL to the scheme of the golang-migrate pgx/v5 driver.
func pgx5URL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
