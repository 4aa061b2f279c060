package account

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxNameLength  = 200
)

// Role constants
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Account status constants. StatusPendingDeletion is part of the vocabulary
// but never stored: a pending request does not change access.
const (
	StatusActive          = "active"
	StatusPendingDeletion = "pending_deletion"
	StatusDeleted         = "deleted"
	StatusRestored        = "restored"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleClient}

// Domain errors
var (
	ErrInvalidEmail  = errors.New("email must contain '@'")
	ErrEmptyEmail    = errors.New("email cannot be empty")
	ErrEmptyID       = errors.New("account ID is required")
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrInvalidRole   = errors.New("role must be one of: admin, client")
	ErrInvalidStatus = errors.New("status must be one of: active, deleted, restored")
)

// Identity is the authenticated caller of an operation. The core trusts it;
// credential checking happens before an Identity exists.
type Identity struct {
	ID    string
	Role  string
	Name  string
	Email string
}

// Validate checks that the identity carries an ID and a known role.
// PRE: none
// POST: Returns nil if valid, error otherwise
func (i Identity) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyID
	}
	if !isValidRole(i.Role) {
		return ErrInvalidRole
	}
	return nil
}

// IsAdmin returns true if the identity has the admin role.
// INVARIANT: Identity fields are not mutated
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// IsClient returns true if the identity has the client role.
// INVARIANT: Identity fields are not mutated
func (i Identity) IsClient() bool {
	return i.Role == RoleClient
}

// Account is the directory record behind an identity. Purging a client
// removes this record.
type Account struct {
	ID        string
	Email     string
	Name      string
	Company   string
	Role      string
	CreatedAt time.Time
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return errors.New("email cannot exceed 254 characters")
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > MaxNameLength {
		return errors.New("name cannot exceed 200 characters")
	}
	if !isValidRole(a.Role) {
		return ErrInvalidRole
	}
	if a.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// Identity returns the caller identity this account signs in as.
// INVARIANT: Account fields are not mutated
func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Role: a.Role, Name: a.Name, Email: a.Email}
}

// IsAdmin returns true if the account has admin role.
// INVARIANT: Account fields are not mutated
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// StatusRecord is the admin-driven account flag stored next to the directory
// record. It is one input of the derived account status; the other is the
// client's latest deletion request.
type StatusRecord struct {
	ClientID  string
	Status    string
	ChangedAt time.Time
	ChangedBy string
}

// Validate checks the record carries a client and a storable status.
// PRE: none
// POST: Returns nil if valid, error otherwise
func (r *StatusRecord) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return ErrEmptyID
	}
	switch r.Status {
	case StatusActive, StatusDeleted, StatusRestored:
	default:
		return ErrInvalidStatus
	}
	return nil
}

func isValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
