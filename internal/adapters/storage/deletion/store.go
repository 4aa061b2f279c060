package deletion

import (
	"context"
	"errors"
	"time"

	domain "vendordesk/internal/domain/deletion"
)

// ErrDuplicatePending is returned by Insert when the client already has a pending request.
var ErrDuplicatePending = errors.New("client already has a pending deletion request")

// Store defines the interface for deletion request persistence.
type Store interface {
	// Insert persists a new pending request.
	// PRE: r is valid and pending
	// POST: r is stored, or ErrDuplicatePending if the client already has a pending request
	Insert(ctx context.Context, r domain.Request) error

	// GetByID retrieves a deletion request by its ID.
	// PRE: id is non-empty
	// POST: Returns the request or an errs.ErrNotFound-wrapped error
	GetByID(ctx context.Context, id string) (domain.Request, error)

	// Transition atomically moves a request along a legal edge.
	// PRE: in.ID names a stored request
	// POST: Returns the updated request; errs.ErrInvalidTransition if the
	//       edge is illegal or another writer changed the status first
	Transition(ctx context.Context, in TransitionInput) (domain.Request, error)

	// List returns requests matching the filter, newest first.
	// PRE: none
	// POST: Ordered by created_at desc, ties by reverse insertion order
	List(ctx context.Context, filter Filter) ([]domain.Request, error)
}

// TransitionInput carries the parameters of a status change.
type TransitionInput struct {
	ID       string
	To       string
	By       string
	Response string
	At       time.Time
}

// Filter carries filtering parameters for List.
type Filter struct {
	ClientID string
	Statuses []string // empty means any status
	Limit    int      // 0 means no limit
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)

func (f Filter) matches(r domain.Request) bool {
	if f.ClientID != "" && r.ClientID != f.ClientID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
