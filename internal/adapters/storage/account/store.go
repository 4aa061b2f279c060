package account

import (
	"context"

	domain "vendordesk/internal/domain/account"
)

// Store persists directory accounts and their admin-driven status flag.
type Store interface {
	// Save inserts or updates a directory account.
	// PRE: a has been validated
	// POST: a is persisted; email stays unique across accounts
	Save(ctx context.Context, a domain.Account) error

	// GetByID retrieves an account. Missing accounts wrap errs.ErrNotFound.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail retrieves an account by email. Missing accounts wrap errs.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// List returns accounts ordered by creation time.
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)

	// GetStatus returns the stored status flag of an account.
	// PRE: clientID is non-empty
	// POST: errs.ErrNotFound if the account does not exist; an active record
	//       with zero ChangedAt if no flag was ever written
	GetStatus(ctx context.Context, clientID string) (domain.StatusRecord, error)

	// SetStatus writes the status flag of an existing account.
	// PRE: rec has been validated
	// POST: errs.ErrNotFound if the account does not exist
	SetStatus(ctx context.Context, rec domain.StatusRecord) error

	// DeleteIdentity removes the account and its status flag.
	// PRE: clientID is non-empty
	// POST: errs.ErrNotFound if already gone
	DeleteIdentity(ctx context.Context, clientID string) error
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Role   string
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
