package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vendordesk/internal/adapters/storage"
	"vendordesk/internal/domain/errs"
	domain "vendordesk/internal/domain/notification"
)

const notificationColumns = "id, scope, kind, title, body, created_at, is_read"

// SQLStore implements Store over database/sql for SQLite and Postgres.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLiteStore creates a notification store on a SQLite database.
func NewSQLiteStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.SQLite}
}

// NewPostgresStore creates a notification store on a Postgres database.
func NewPostgresStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db, dialect: storage.Postgres}
}

func (s *SQLStore) conn(ctx context.Context) storage.Executor {
	return storage.Conn(ctx, s.db)
}

// Append adds n to the head of its mailbox.
func (s *SQLStore) Append(ctx context.Context, n domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		"INSERT INTO notification ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		n.ID, string(n.Scope), n.Kind, n.Title, n.Body, storage.FormatTime(n.CreatedAt), n.Read)
	return err
}

// Get retrieves one notification.
func (s *SQLStore) Get(ctx context.Context, id string) (domain.Notification, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT "+notificationColumns+" FROM notification WHERE id = ?"), id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, fmt.Errorf("%w: notification %s", errs.ErrNotFound, id)
	}
	return n, err
}

// List returns the mailbox, newest first.
func (s *SQLStore) List(ctx context.Context, scope domain.Scope) ([]domain.Notification, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, s.dialect.Rebind(
		"SELECT "+notificationColumns+" FROM notification WHERE scope = ? ORDER BY created_at DESC, "+
			s.dialect.InsertionOrder+" DESC"), string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts mailbox entries not yet read.
func (s *SQLStore) UnreadCount(ctx context.Context, scope domain.Scope) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT COUNT(*) FROM notification WHERE scope = ? AND is_read = ?"), string(scope), false).Scan(&count)
	return count, err
}

// MarkRead flips one notification to read.
func (s *SQLStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		"UPDATE notification SET is_read = ? WHERE id = ?"), true, id)
	return err
}

// Clear empties the mailbox.
func (s *SQLStore) Clear(ctx context.Context, scope domain.Scope) error {
	_, err := s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(
		"DELETE FROM notification WHERE scope = ?"), string(scope))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (domain.Notification, error) {
	var n domain.Notification
	var scope, createdAt string
	if err := row.Scan(&n.ID, &scope, &n.Kind, &n.Title, &n.Body, &createdAt, &n.Read); err != nil {
		return domain.Notification{}, err
	}
	n.Scope = domain.Scope(scope)
	t, err := storage.ParseTime(createdAt)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("parse created_at: %w", err)
	}
	n.CreatedAt = t
	return n, nil
}
