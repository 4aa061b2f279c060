package projections

import (
	"context"

	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/notification"
)

// MailboxQuery carries query parameters.
type MailboxQuery struct {
	Caller account.Identity
}

// MailboxResult carries the caller's mailbox.
type MailboxResult struct {
	Scope         notification.Scope
	Notifications []notification.Notification
	Unread        int
}

// MailboxDeps holds dependencies for QueryMailbox.
type MailboxDeps struct {
	Notifications MailboxReader
}

// QueryMailbox returns the caller's mailbox, newest first.
// PRE: Caller is authenticated
// POST: Admins read the shared admin mailbox, clients their own
func QueryMailbox(ctx context.Context, query MailboxQuery, deps MailboxDeps) (MailboxResult, error) {
	if err := query.Caller.Validate(); err != nil {
		return MailboxResult{}, err
	}
	scope := notification.RecipientScope(query.Caller)
	list, err := deps.Notifications.List(ctx, scope)
	if err != nil {
		return MailboxResult{}, err
	}
	unread, err := deps.Notifications.UnreadCount(ctx, scope)
	if err != nil {
		return MailboxResult{}, err
	}
	if list == nil {
		list = []notification.Notification{}
	}
	return MailboxResult{Scope: scope, Notifications: list, Unread: unread}, nil
}
