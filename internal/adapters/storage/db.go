package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TimeLayout is the text layout of every stored timestamp. Values are stored
// in UTC so lexical order matches chronological order in both dialects.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens a SQLite database with WAL mode, foreign keys, and busy timeout.
// PRE: path is a file path (":memory:" is not supported by the pooled driver)
// POST: Returns a pinged connection pool or an error
func OpenSQLite(path string) (*sql.DB, error) {
	// BEGIN IMMEDIATE takes the write lock up front, so a transaction that
	// reads before writing never fails its lock upgrade.
	dsn := path + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenPostgres opens a Postgres connection pool through the pgx stdlib driver.
// PRE: dsn is a postgres:// URL
// POST: Returns a pinged connection pool or an error
func OpenPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Dialect captures the SQL differences between the SQLite and Postgres stores.
type Dialect struct {
	Name string
	// InsertionOrder is the column that increases with insertion order.
	InsertionOrder string
	numbered       bool
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite", InsertionOrder: "rowid"}
	Postgres = Dialect{Name: "postgres", InsertionOrder: "seq", numbered: true}
)

// Rebind rewrites '?' placeholders into the dialect's placeholder style.
// PRE: query uses '?' placeholders and no literal '?' characters
// POST: Returns the query unchanged for SQLite, with $1..$n for Postgres
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a unique constraint failure from either driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended codes disabled: fall back to the message.
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// FormatTime renders t in the stored layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp; empty input yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(TimeLayout, s)
}

// NullTime renders an optional timestamp, storing NULL for nil or zero values.
func NullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return FormatTime(*t)
}

// ParseNullTime parses an optional stored timestamp.
func ParseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
