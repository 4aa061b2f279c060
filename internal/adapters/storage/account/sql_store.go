package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vendordesk/internal/adapters/storage"
	domain "vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
)

const accountColumns = "id, email, name, company, role, created_at"

// SQLStore implements Store over database/sql for SQLite and Postgres.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLiteStore creates an account store on a SQLite database.
func NewSQLiteStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.SQLite}
}

// NewPostgresStore creates an account store on a Postgres database.
func NewPostgresStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.Postgres}
}

func (s *SQLStore) conn(ctx context.Context) storage.Executor {
	return storage.Conn(ctx, s.db)
}

// Save inserts or updates a directory account.
// PRE: a has been validated
// POST: a is persisted (insert or update)
func (s *SQLStore) Save(ctx context.Context, a domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	updates := []string{
		"email=excluded.email",
		"name=excluded.name",
		"company=excluded.company",
		"role=excluded.role",
	}
	query := fmt.Sprintf(
		"INSERT INTO account (%s) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET %s",
		accountColumns, strings.Join(updates, ", "),
	)
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(query),
		a.ID, a.Email, a.Name, a.Company, a.Role, storage.FormatTime(a.CreatedAt))
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("save account: email %s already in use", a.Email)
	}
	return err
}

// GetByID retrieves an account.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT "+accountColumns+" FROM account WHERE id = ?"), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, id)
	}
	return a, err
}

// GetByEmail retrieves an account by email.
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT "+accountColumns+" FROM account WHERE LOWER(email) = LOWER(?)"), email)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, email)
	}
	return a, err
}

// List returns accounts ordered by creation time.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM account"
	var args []any
	if filter.Role != "" {
		query += " WHERE role = ?"
		args = append(args, filter.Role)
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetStatus returns the stored status flag of an account.
func (s *SQLStore) GetStatus(ctx context.Context, clientID string) (domain.StatusRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT a.id, COALESCE(st.status, ''), COALESCE(st.changed_at, ''), COALESCE(st.changed_by, '')
		 FROM account a LEFT JOIN account_status st ON st.client_id = a.id
		 WHERE a.id = ?`), clientID)

	var rec domain.StatusRecord
	var changedAt string
	err := row.Scan(&rec.ClientID, &rec.Status, &changedAt, &rec.ChangedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StatusRecord{}, fmt.Errorf("%w: account %s", errs.ErrNotFound, clientID)
	}
	if err != nil {
		return domain.StatusRecord{}, err
	}
	if rec.Status == "" {
		rec.Status = domain.StatusActive
	}
	if rec.ChangedAt, err = storage.ParseTime(changedAt); err != nil {
		return domain.StatusRecord{}, fmt.Errorf("parse changed_at: %w", err)
	}
	return rec, nil
}

// SetStatus writes the status flag of an existing account.
func (s *SQLStore) SetStatus(ctx context.Context, rec domain.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.exists(ctx, rec.ClientID); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO account_status (client_id, status, changed_at, changed_by) VALUES (?, ?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
		   status=excluded.status,
		   changed_at=excluded.changed_at,
		   changed_by=excluded.changed_by`),
		rec.ClientID, rec.Status, storage.FormatTime(rec.ChangedAt), rec.ChangedBy)
	return err
}

// DeleteIdentity removes the account and its status flag.
func (s *SQLStore) DeleteIdentity(ctx context.Context, clientID string) error {
	conn := s.conn(ctx)
	if _, err := conn.ExecContext(ctx, s.dialect.Rebind(
		"DELETE FROM account_status WHERE client_id = ?"), clientID); err != nil {
		return err
	}
	res, err := conn.ExecContext(ctx, s.dialect.Rebind("DELETE FROM account WHERE id = ?"), clientID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: account %s", errs.ErrNotFound, clientID)
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT 1 FROM account WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: account %s", errs.ErrNotFound, id)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account
	var createdAt string
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.Role, &createdAt); err != nil {
		return domain.Account{}, err
	}
	t, err := storage.ParseTime(createdAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parse created_at: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}
