package orchestrators

import (
	"context"
	"testing"
	"time"

	notificationstore "vendordesk/internal/adapters/storage/notification"
	"vendordesk/internal/domain/notification"
)

func seedMailbox(t *testing.T) *notificationstore.MemoryStore {
	t.Helper()
	store := notificationstore.NewMemoryStore()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for id, scope := range map[string]notification.Scope{
		"admin-note":  notification.AdminScope,
		"client-note": notification.ClientScope("c1"),
		"other-note":  notification.ClientScope("c2"),
	} {
		err := store.Append(context.Background(), notification.Notification{
			ID: id, Scope: scope, Kind: notification.KindDeletionRequested, Title: "t", CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

// TestMarkNotificationRead_OwnMailbox tests a caller can mark their own notification read.
func TestMarkNotificationRead_OwnMailbox(t *testing.T) {
	store := seedMailbox(t)
	ctx := context.Background()
	deps := MailboxDeps{Notifications: store}

	if err := ExecuteMarkNotificationRead(ctx, MarkNotificationReadInput{Caller: clientC, NotificationID: "client-note"}, deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.UnreadCount(ctx, notification.ClientScope("c1")); n != 0 {
		t.Errorf("expected 0 unread, got %d", n)
	}
	if err := ExecuteMarkNotificationRead(ctx, MarkNotificationReadInput{Caller: adminX, NotificationID: "admin-note"}, deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.UnreadCount(ctx, notification.AdminScope); n != 0 {
		t.Errorf("expected 0 admin unread, got %d", n)
	}
}

// TestMarkNotificationRead_ForeignOrUnknown tests other mailboxes and unknown ids are silent no-ops.
func TestMarkNotificationRead_ForeignOrUnknown(t *testing.T) {
	store := seedMailbox(t)
	ctx := context.Background()
	deps := MailboxDeps{Notifications: store}

	for _, id := range []string{"other-note", "admin-note", "missing"} {
		if err := ExecuteMarkNotificationRead(ctx, MarkNotificationReadInput{Caller: clientC, NotificationID: id}, deps); err != nil {
			t.Errorf("%s: expected nil, got %v", id, err)
		}
	}
	if n, _ := store.UnreadCount(ctx, notification.ClientScope("c2")); n != 1 {
		t.Errorf("c2 notification should stay unread, got %d unread", n)
	}
	if n, _ := store.UnreadCount(ctx, notification.AdminScope); n != 1 {
		t.Errorf("admin notification should stay unread, got %d unread", n)
	}
}

// TestClearMailbox tests clearing only touches the caller's mailbox.
func TestClearMailbox(t *testing.T) {
	store := seedMailbox(t)
	ctx := context.Background()
	if err := ExecuteClearMailbox(ctx, ClearMailboxInput{Caller: clientC}, MailboxDeps{Notifications: store}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list, _ := store.List(ctx, notification.ClientScope("c1")); len(list) != 0 {
		t.Errorf("expected empty mailbox, got %d", len(list))
	}
	if list, _ := store.List(ctx, notification.ClientScope("c2")); len(list) != 1 {
		t.Errorf("other mailbox should be untouched, got %d", len(list))
	}
}
