// Package projector derives a client's account status from the deletion
// request history and the admin-driven status flag.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	accountstore "vendordesk/internal/adapters/storage/account"
	deletionstore "vendordesk/internal/adapters/storage/deletion"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
)

// Projector is the single source of truth for whether a client may use the system.
type Projector struct {
	requests deletionstore.Store
	accounts accountstore.Store
}

// New creates a Projector over the request and account stores.
func New(requests deletionstore.Store, accounts accountstore.Store) *Projector {
	return &Projector{requests: requests, accounts: accounts}
}

// StatusOf returns the client's derived account status.
// PRE: clientID is non-empty
// POST: errs.ErrNotFound if the identity no longer exists; otherwise
//
//	deleted  when the latest request is approved and no restore followed it,
//	restored when the latest request is approved and a restore followed it,
//	active   otherwise (a pending request does not change access).
func (p *Projector) StatusOf(ctx context.Context, clientID string) (string, error) {
	rec, err := p.accounts.GetStatus(ctx, clientID)
	if err != nil {
		return "", err
	}
	latest, ok, err := p.latestRequest(ctx, clientID)
	if err != nil {
		return "", err
	}
	if !ok || latest.Status != deletion.StatusApproved {
		return account.StatusActive, nil
	}
	if rec.Status == account.StatusRestored && latest.ProcessedAt != nil && !rec.ChangedAt.Before(*latest.ProcessedAt) {
		return account.StatusRestored, nil
	}
	return account.StatusDeleted, nil
}

// IsBlocked reports whether the client must be denied access.
// PRE: clientID is non-empty
// POST: true iff StatusOf is deleted; errors propagate (including NotFound)
func (p *Projector) IsBlocked(ctx context.Context, clientID string) (bool, error) {
	status, err := p.StatusOf(ctx, clientID)
	if err != nil {
		return false, err
	}
	return status == account.StatusDeleted, nil
}

// ApplyApproval records that the client's deletion was approved.
// PRE: the client's latest request has just been approved
// POST: stored flag is deleted; a repeat call writes nothing
func (p *Projector) ApplyApproval(ctx context.Context, clientID, by string, at time.Time) error {
	rec, err := p.accounts.GetStatus(ctx, clientID)
	if err != nil {
		return err
	}
	if rec.Status == account.StatusDeleted {
		return nil
	}
	return p.accounts.SetStatus(ctx, account.StatusRecord{
		ClientID:  clientID,
		Status:    account.StatusDeleted,
		ChangedAt: at.UTC(),
		ChangedBy: by,
	})
}

// ApplyRestore lifts the block on a deleted account.
// PRE: StatusOf(clientID) is deleted
// POST: StatusOf(clientID) is restored; errs.ErrInvalidState otherwise
func (p *Projector) ApplyRestore(ctx context.Context, clientID, by string, at time.Time) error {
	status, err := p.StatusOf(ctx, clientID)
	if err != nil {
		return err
	}
	if status != account.StatusDeleted {
		return fmt.Errorf("%w: account %s is %s, not deleted", errs.ErrInvalidState, clientID, status)
	}
	return p.accounts.SetStatus(ctx, account.StatusRecord{
		ClientID:  clientID,
		Status:    account.StatusRestored,
		ChangedAt: at.UTC(),
		ChangedBy: by,
	})
}

// ApplyPurge erases the identity behind an approved request.
// PRE: r is the request being purged, read inside the caller's transaction
// POST: the identity is gone and StatusOf returns errs.ErrNotFound;
//
//	errs.ErrInvalidState unless r is approved. An identity that is already
//	gone counts as erased.
func (p *Projector) ApplyPurge(ctx context.Context, r deletion.Request) error {
	if r.Status != deletion.StatusApproved {
		return fmt.Errorf("%w: request %s is %s, not approved", errs.ErrInvalidState, r.ID, r.Status)
	}
	err := p.accounts.DeleteIdentity(ctx, r.ClientID)
	if errors.Is(err, errs.ErrNotFound) {
		slog.Warn("deletion_event", "event", "identity_already_purged", "client_id", r.ClientID, "request_id", r.ID)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("deletion_event", "event", "identity_purged", "client_id", r.ClientID, "request_id", r.ID)
	return nil
}

func (p *Projector) latestRequest(ctx context.Context, clientID string) (deletion.Request, bool, error) {
	list, err := p.requests.List(ctx, deletionstore.Filter{ClientID: clientID, Limit: 1})
	if err != nil {
		return deletion.Request{}, false, fmt.Errorf("latest request: %w", err)
	}
	if len(list) == 0 {
		return deletion.Request{}, false, nil
	}
	return list[0], true, nil
}
