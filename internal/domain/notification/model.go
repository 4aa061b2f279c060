package notification

import (
	"errors"
	"strings"
	"time"

	"vendordesk/internal/domain/account"
)

// Notification kinds
const (
	KindDeletionRequested = "deletion-requested"
	KindDeletionApproved  = "deletion-approved"
	KindDeletionRejected  = "deletion-rejected"
	KindAccountRestored   = "account-restored"
)

// AdminScope is the single mailbox shared by all admins.
const AdminScope Scope = "admin"

const clientScopePrefix = "client:"

// Domain errors
var (
	ErrEmptyID     = errors.New("notification ID is required")
	ErrEmptyScope  = errors.New("recipient scope is required")
	ErrEmptyTitle  = errors.New("notification title cannot be empty")
	ErrInvalidKind = errors.New("unknown notification kind")
)

// Scope names a mailbox: the admin mailbox or one client's mailbox.
type Scope string

// ClientScope returns the mailbox scope of a client.
func ClientScope(clientID string) Scope {
	return Scope(clientScopePrefix + clientID)
}

// RecipientScope returns the mailbox a caller reads: the shared admin mailbox
// for admins, the caller's own mailbox otherwise.
func RecipientScope(caller account.Identity) Scope {
	if caller.IsAdmin() {
		return AdminScope
	}
	return ClientScope(caller.ID)
}

// IsAdmin returns true for the admin mailbox.
func (s Scope) IsAdmin() bool {
	return s == AdminScope
}

// ClientID returns the client owning the mailbox, or "" for the admin mailbox.
func (s Scope) ClientID() string {
	id, ok := strings.CutPrefix(string(s), clientScopePrefix)
	if !ok {
		return ""
	}
	return id
}

// Valid returns true for the admin scope or a client scope with a non-empty ID.
func (s Scope) Valid() bool {
	return s.IsAdmin() || s.ClientID() != ""
}

// Notification is one mailbox entry. Only Read changes after creation.
type Notification struct {
	ID        string
	Scope     Scope
	Kind      string
	Title     string
	Body      string
	CreatedAt time.Time
	Read      bool
}

// Validate checks if the Notification has valid data.
// PRE: Notification struct is populated
// POST: Returns nil if valid, error otherwise
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if !n.Scope.Valid() {
		return ErrEmptyScope
	}
	if !isValidKind(n.Kind) {
		return ErrInvalidKind
	}
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if n.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// MarkRead flips the notification to read.
// PRE: Notification exists
// POST: Read is true
func (n *Notification) MarkRead() {
	n.Read = true
}

func isValidKind(kind string) bool {
	switch kind {
	case KindDeletionRequested, KindDeletionApproved, KindDeletionRejected, KindAccountRestored:
		return true
	}
	return false
}
