package notification

import (
	"context"

	domain "vendordesk/internal/domain/notification"
)

// Store is a per-recipient mailbox of notifications.
type Store interface {
	// Append adds n to the head of its mailbox.
	// PRE: n has been validated
	// POST: n is the first entry of List(n.Scope)
	Append(ctx context.Context, n domain.Notification) error

	// Get retrieves one notification. Missing ids wrap errs.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Notification, error)

	// List returns the mailbox, newest first.
	List(ctx context.Context, scope domain.Scope) ([]domain.Notification, error)

	// UnreadCount counts mailbox entries not yet read.
	UnreadCount(ctx context.Context, scope domain.Scope) (int, error)

	// MarkRead flips one notification to read.
	// PRE: none
	// POST: idempotent; an unknown id is a no-op, not an error
	MarkRead(ctx context.Context, id string) error

	// Clear empties the mailbox.
	Clear(ctx context.Context, scope domain.Scope) error
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*RedisStore)(nil)
)
