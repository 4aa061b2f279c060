package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// openTestDB creates a migrated file-backed SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := MigrateSQLite(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TestMigrateSQLite_CreatesTables verifies the schema after migration.
func TestMigrateSQLite_CreatesTables(t *testing.T) {
	db := openTestDB(t)
	got := getTableNames(t, db)
	want := []string{"account", "account_status", "deletion_request", "notification", "schema_migrations"}
	if len(got) != len(want) {
		t.Fatalf("tables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("table[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestMigrateSQLite_Idempotent verifies a second run is a no-op.
func TestMigrateSQLite_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateSQLite(db); err != nil {
		t.Fatalf("second migration: %v", err)
	}
	version, dirty, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if dirty {
		t.Error("schema should not be dirty")
	}
	if version != LatestSchemaVersion() {
		t.Errorf("version = %d, want %d", version, LatestSchemaVersion())
	}
	if err := db.Ping(); err != nil {
		t.Errorf("db should stay open after migration: %v", err)
	}
}

// TestPendingIndex_RejectsSecondPending verifies the one-pending-per-client index.
func TestPendingIndex_RejectsSecondPending(t *testing.T) {
	db := openTestDB(t)
	insert := `INSERT INTO deletion_request (id, client_id, client_email, reason, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := FormatTime(time.Now())

	if _, err := db.Exec(insert, "r1", "c1", "c1@x.io", "r", "pending", now); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := db.Exec(insert, "r2", "c1", "c1@x.io", "r", "pending", now)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if _, err := db.Exec(insert, "r3", "c1", "c1@x.io", "r", "rejected", now); err != nil {
		t.Errorf("non-pending insert should succeed: %v", err)
	}
	if _, err := db.Exec(insert, "r4", "c2", "c2@x.io", "r", "pending", now); err != nil {
		t.Errorf("other client pending insert should succeed: %v", err)
	}
}

// TestIsUniqueViolation_Postgres verifies the pgconn error code check.
func TestIsUniqueViolation_Postgres(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("expected 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) || IsUniqueViolation(nil) {
		t.Error("plain errors are not unique violations")
	}
}

// TestDialect_Rebind verifies placeholder rewriting.
func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	if got := Postgres.Rebind(q); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
}

// TestTimeRoundTrip verifies stored timestamps keep nanoseconds and order lexically.
func TestTimeRoundTrip(t *testing.T) {
	a := time.Date(2026, 3, 1, 9, 0, 0, 5, time.FixedZone("NZDT", 13*3600))
	b := a.Add(time.Millisecond)
	sa, sb := FormatTime(a), FormatTime(b)
	if sa >= sb {
		t.Errorf("expected %q < %q", sa, sb)
	}
	parsed, err := ParseTime(sa)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(a) {
		t.Errorf("round trip = %v, want %v", parsed, a)
	}

	if NullTime(nil) != nil || NullTime(&time.Time{}) != nil {
		t.Error("nil and zero times should store NULL")
	}
	got, err := ParseNullTime(sql.NullString{})
	if err != nil || got != nil {
		t.Errorf("NULL should parse to nil, got %v, %v", got, err)
	}
}

// TestSQLTxRunner_CommitAndRollback verifies statements run through the context transaction.
func TestSQLTxRunner_CommitAndRollback(t *testing.T) {
	db := openTestDB(t)
	runner := NewSQLTxRunner(db, true)
	ctx := context.Background()
	insert := `INSERT INTO notification (id, scope, kind, title, created_at) VALUES (?, 'admin', 'deletion-requested', 't', ?)`
	now := FormatTime(time.Now())

	err := runner.InTx(ctx, func(ctx context.Context) error {
		_, err := Conn(ctx, db).ExecContext(ctx, insert, "n1", now)
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	boom := errors.New("boom")
	err = runner.InTx(ctx, func(ctx context.Context) error {
		if _, err := Conn(ctx, db).ExecContext(ctx, insert, "n2", now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notification`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (second insert rolled back)", count)
	}
}

// TestSQLTxRunner_Nested verifies nested calls join the outer transaction.
func TestSQLTxRunner_Nested(t *testing.T) {
	db := openTestDB(t)
	runner := NewSQLTxRunner(db, true)
	var outer, inner Executor
	err := runner.InTx(context.Background(), func(ctx context.Context) error {
		outer = Conn(ctx, db)
		return runner.InTx(ctx, func(ctx context.Context) error {
			inner = Conn(ctx, db)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if outer != inner {
		t.Error("nested InTx should reuse the outer transaction")
	}
	if Conn(context.Background(), db) != Executor(db) {
		t.Error("Conn without a transaction should return the db")
	}
}

// TestMemoryTxRunner_Nested verifies the memory runner does not deadlock on nesting.
func TestMemoryTxRunner_Nested(t *testing.T) {
	runner := NewMemoryTxRunner()
	done := make(chan error, 1)
	go func() {
		done <- runner.InTx(context.Background(), func(ctx context.Context) error {
			return runner.InTx(ctx, func(ctx context.Context) error { return nil })
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("InTx: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested InTx deadlocked")
	}
}

// TestPgx5URL verifies the migrate driver scheme rewrite.
func TestPgx5URL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@h/db":  "pgx5://u:p@h/db",
		"postgresql://u@h/db":  "pgx5://u@h/db",
		"pgx5://already/there": "pgx5://already/there",
	}
	for in, want := range tests {
		if got := pgx5URL(in); got != want {
			t.Errorf("pgx5URL(%q) = %q, want %q", in, got, want)
		}
	}
}
