package deletion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
)

// Status constants for deletion request lifecycle.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

// DefaultReason is stored when the client gives no reason.
const DefaultReason = "No reason provided"

// MaxReasonLength caps client-supplied reason and admin response text.
const MaxReasonLength = 2000

// Domain errors.
var (
	ErrEmptyClientID  = errors.New("client_id is required")
	ErrEmptyRequestID = errors.New("request_id is required")
	ErrEmptyEmail     = errors.New("client email is required")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrEmptyResponder = errors.New("responder is required")
	ErrTextTooLong    = errors.New("text cannot exceed 2000 characters")
)

// edges lists every legal status change. Anything absent is rejected.
var edges = map[string][]string{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// Request represents a client's request to have their account deleted.
// Client fields are a snapshot taken at request time and are never re-joined.
type Request struct {
	ID            string
	ClientID      string
	ClientName    string
	ClientEmail   string
	Reason        string
	Status        string
	AdminResponse string
	ProcessedBy   string     // Admin who first moved the request out of pending
	ProcessedAt   *time.Time // Set once, with ProcessedBy
	CreatedAt     time.Time
}

// NewRequest creates a pending deletion request for the given client.
// PRE: client is a client identity; id is unique
// POST: Returns a pending request with the identity snapshot and reason (or DefaultReason)
func NewRequest(id string, client account.Identity, reason string, now time.Time) Request {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}
	return Request{
		ID:          id,
		ClientID:    client.ID,
		ClientName:  client.Name,
		ClientEmail: client.Email,
		Reason:      reason,
		Status:      StatusPending,
		CreatedAt:   now.UTC(),
	}
}

// Validate checks that the Request has valid data.
// PRE: Request fields may be empty
// POST: Returns nil if valid, error otherwise
// INVARIANT: ID, ClientID, ClientEmail, CreatedAt must be non-empty; Status must be known
func (r *Request) Validate() error {
	if r.ID == "" {
		return ErrEmptyRequestID
	}
	if r.ClientID == "" {
		return ErrEmptyClientID
	}
	if r.ClientEmail == "" {
		return ErrEmptyEmail
	}
	if !IsValidStatus(r.Status) {
		return ErrInvalidStatus
	}
	if len(r.Reason) > MaxReasonLength || len(r.AdminResponse) > MaxReasonLength {
		return ErrTextTooLong
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// IsPending returns true if the request awaits an admin decision.
// INVARIANT: Request fields are not mutated
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// IsTerminal returns true if the request reached a final state.
// PRE: Request status is known
// POST: Returns true if rejected or completed
func (r *Request) IsTerminal() bool {
	return IsTerminal(r.Status)
}

// Transition moves the request along a legal edge.
// PRE: by is the responding admin's ID
// POST: Status is to; ProcessedBy/ProcessedAt/AdminResponse set if leaving pending
// INVARIANT: On error the request is unchanged
func (r *Request) Transition(to, by, response string, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: request %s cannot move from %s to %s", errs.ErrInvalidTransition, r.ID, r.Status, to)
	}
	if by == "" {
		return ErrEmptyResponder
	}
	if len(response) > MaxReasonLength {
		return ErrTextTooLong
	}
	if r.Status == StatusPending {
		t := at.UTC()
		r.ProcessedBy = by
		r.ProcessedAt = &t
		r.AdminResponse = strings.TrimSpace(response)
	}
	r.Status = to
	return nil
}

// CanTransition reports whether from→to is a legal edge.
// PRE: none
// POST: Returns true only for pending→approved, pending→rejected, approved→completed
func CanTransition(from, to string) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing edge.
func IsTerminal(status string) bool {
	return status == StatusRejected || status == StatusCompleted
}

// IsValidStatus returns true for known statuses.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}
