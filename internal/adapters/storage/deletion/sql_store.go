package deletion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vendordesk/internal/adapters/storage"
	domain "vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
)

const requestColumns = `id, client_id, client_name, client_email, reason, status, admin_response, processed_by, processed_at, created_at`

// SQLStore implements the deletion Store over database/sql for SQLite and Postgres.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLiteStore creates a deletion request store on a SQLite database.
func NewSQLiteStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.SQLite}
}

// NewPostgresStore creates a deletion request store on a Postgres database.
func NewPostgresStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.Postgres}
}

func (s *SQLStore) conn(ctx context.Context) storage.Executor {
	return storage.Conn(ctx, s.db)
}

// Insert persists a new pending request.
// PRE: r is valid and pending
// POST: r is stored, or ErrDuplicatePending if the client already has a pending request
func (s *SQLStore) Insert(ctx context.Context, r domain.Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !r.IsPending() {
		return fmt.Errorf("insert: request %s is %s, want pending", r.ID, r.Status)
	}
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO deletion_request (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.ClientID, r.ClientName, r.ClientEmail, r.Reason, r.Status,
		r.AdminResponse, r.ProcessedBy, storage.NullTime(r.ProcessedAt), storage.FormatTime(r.CreatedAt))
	if storage.IsUniqueViolation(err) {
		// The primary key is a UUID, so the pending index is the constraint that fired.
		return ErrDuplicatePending
	}
	return err
}

// GetByID retrieves a deletion request by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Request, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+requestColumns+` FROM deletion_request WHERE id = ?`), id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, fmt.Errorf("%w: deletion request %s", errs.ErrNotFound, id)
	}
	return r, err
}

// Transition atomically moves a request along a legal edge.
// INVARIANT: the UPDATE is conditional on the status read, so a concurrent
// writer that got there first leaves zero rows affected.
func (s *SQLStore) Transition(ctx context.Context, in TransitionInput) (domain.Request, error) {
	r, err := s.GetByID(ctx, in.ID)
	if err != nil {
		return domain.Request{}, err
	}
	from := r.Status
	if err := r.Transition(in.To, in.By, in.Response, in.At); err != nil {
		return domain.Request{}, err
	}

	res, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		`UPDATE deletion_request
		 SET status = ?, admin_response = ?, processed_by = ?, processed_at = ?
		 WHERE id = ? AND status = ?`),
		r.Status, r.AdminResponse, r.ProcessedBy, storage.NullTime(r.ProcessedAt), r.ID, from)
	if err != nil {
		return domain.Request{}, fmt.Errorf("update deletion request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Request{}, err
	}
	if n == 0 {
		return domain.Request{}, fmt.Errorf("%w: request %s is no longer %s", errs.ErrInvalidTransition, r.ID, from)
	}
	return r, nil
}

// List returns requests matching the filter, newest first.
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]domain.Request, error) {
	var where []string
	var args []any
	if filter.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if len(filter.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		where = append(where, "status IN ("+marks+")")
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}

	q := `SELECT ` + requestColumns + ` FROM deletion_request`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, ` + s.dialect.InsertionOrder + ` DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (domain.Request, error) {
	var r domain.Request
	var processedAt sql.NullString
	var createdAt string
	err := row.Scan(&r.ID, &r.ClientID, &r.ClientName, &r.ClientEmail, &r.Reason, &r.Status,
		&r.AdminResponse, &r.ProcessedBy, &processedAt, &createdAt)
	if err != nil {
		return domain.Request{}, err
	}
	if r.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Request{}, fmt.Errorf("parse created_at: %w", err)
	}
	if r.ProcessedAt, err = storage.ParseNullTime(processedAt); err != nil {
		return domain.Request{}, fmt.Errorf("parse processed_at: %w", err)
	}
	return r, nil
}
