package projections

import (
	"context"

	deletionstore "vendordesk/internal/adapters/storage/deletion"
	domainDeletion "vendordesk/internal/domain/deletion"
	domainNotification "vendordesk/internal/domain/notification"
)

// RequestStore interface for deletion request queries.
type RequestStore interface {
	List(ctx context.Context, filter deletionstore.Filter) ([]domainDeletion.Request, error)
}

// StatusProjector interface for derived account status.
type StatusProjector interface {
	StatusOf(ctx context.Context, clientID string) (string, error)
}

// MailboxReader interface for notification queries.
type MailboxReader interface {
	List(ctx context.Context, scope domainNotification.Scope) ([]domainNotification.Notification, error)
	UnreadCount(ctx context.Context, scope domainNotification.Scope) (int, error)
}

// DeletionProjectionDeps holds dependencies for deletion projections.
type DeletionProjectionDeps struct {
	Requests  RequestStore
	Projector StatusProjector
}
