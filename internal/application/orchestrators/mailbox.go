package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
	"vendordesk/internal/domain/notification"
)

// MailboxStore defines the notification store operations used by mailbox orchestrators.
type MailboxStore interface {
	Get(ctx context.Context, id string) (notification.Notification, error)
	MarkRead(ctx context.Context, id string) error
	Clear(ctx context.Context, scope notification.Scope) error
}

// MailboxDeps holds dependencies for mailbox orchestrators.
type MailboxDeps struct {
	Notifications MailboxStore
}

// MarkNotificationReadInput carries input for the mark read orchestrator.
type MarkNotificationReadInput struct {
	Caller         account.Identity
	NotificationID string
}

// ExecuteMarkNotificationRead marks one of the caller's notifications read.
// PRE: Caller is authenticated
// POST: The notification is read if it is in the caller's mailbox; an
//
//	unknown id or someone else's notification is left alone without error
func ExecuteMarkNotificationRead(ctx context.Context, input MarkNotificationReadInput, deps MailboxDeps) error {
	n, err := deps.Notifications.Get(ctx, input.NotificationID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if n.Scope != notification.RecipientScope(input.Caller) {
		slog.Warn("notification_event", "event", "mark_read_foreign_mailbox", "notification_id", n.ID, "caller", input.Caller.ID)
		return nil
	}
	return deps.Notifications.MarkRead(ctx, n.ID)
}

// ClearMailboxInput carries input for the clear mailbox orchestrator.
type ClearMailboxInput struct {
	Caller account.Identity
}

// ExecuteClearMailbox empties the caller's mailbox.
// PRE: Caller is authenticated
// POST: The caller's mailbox is empty; other mailboxes are untouched
func ExecuteClearMailbox(ctx context.Context, input ClearMailboxInput, deps MailboxDeps) error {
	if err := input.Caller.Validate(); err != nil {
		return err
	}
	scope := notification.RecipientScope(input.Caller)
	if err := deps.Notifications.Clear(ctx, scope); err != nil {
		return err
	}
	slog.Info("notification_event", "event", "mailbox_cleared", "scope", string(scope), "caller", input.Caller.ID)
	return nil
}
