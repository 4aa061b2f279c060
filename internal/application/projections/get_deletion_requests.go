package projections

import (
	"context"
	"errors"
	"fmt"

	deletionstore "vendordesk/internal/adapters/storage/deletion"
	"vendordesk/internal/application/listutil"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
)

// --- Pending requests (admin) ---

// PendingRequestsQuery carries query parameters.
type PendingRequestsQuery struct {
	Caller account.Identity
	Page   listutil.PageParams
}

// PendingRequestsResult carries the query result.
type PendingRequestsResult struct {
	Requests []deletion.Request
	Page     listutil.PageInfo
}

// QueryPendingRequestsForAdmin lists requests awaiting a decision.
// PRE: Caller is an admin
// POST: Returns pending requests newest first, paged
func QueryPendingRequestsForAdmin(ctx context.Context, query PendingRequestsQuery, deps DeletionProjectionDeps) (PendingRequestsResult, error) {
	if !query.Caller.IsAdmin() {
		return PendingRequestsResult{}, fmt.Errorf("%w: admin only", errs.ErrForbidden)
	}
	list, err := deps.Requests.List(ctx, deletionstore.Filter{Statuses: []string{deletion.StatusPending}})
	if err != nil {
		return PendingRequestsResult{}, err
	}
	page, info := listutil.Paginate(list, query.Page)
	return PendingRequestsResult{Requests: page, Page: info}, nil
}

// --- Deleted / restored accounts (admin) ---

// AccountsByStatusQuery carries query parameters.
type AccountsByStatusQuery struct {
	Caller account.Identity
	Page   listutil.PageParams
}

// AccountWithRequest pairs a client's approved request with their current status.
type AccountWithRequest struct {
	Request deletion.Request
	Status  string
}

// AccountsByStatusResult carries the query result.
type AccountsByStatusResult struct {
	Accounts []AccountWithRequest
	Page     listutil.PageInfo
}

// QueryDeletedAccountsForAdmin lists clients whose access is currently revoked.
// PRE: Caller is an admin
// POST: Returns one entry per deleted client with the approving request, newest first
func QueryDeletedAccountsForAdmin(ctx context.Context, query AccountsByStatusQuery, deps DeletionProjectionDeps) (AccountsByStatusResult, error) {
	return accountsWithStatus(ctx, query, deps, account.StatusDeleted)
}

// QueryRestoredAccountsForAdmin lists clients restored after an approved deletion.
// PRE: Caller is an admin
// POST: Returns one entry per restored client with the approving request, newest first
func QueryRestoredAccountsForAdmin(ctx context.Context, query AccountsByStatusQuery, deps DeletionProjectionDeps) (AccountsByStatusResult, error) {
	return accountsWithStatus(ctx, query, deps, account.StatusRestored)
}

// accountsWithStatus joins approved requests with the projector's view of each client.
// INVARIANT: a client appears at most once, keyed on their newest approved request
func accountsWithStatus(ctx context.Context, query AccountsByStatusQuery, deps DeletionProjectionDeps, want string) (AccountsByStatusResult, error) {
	if !query.Caller.IsAdmin() {
		return AccountsByStatusResult{}, fmt.Errorf("%w: admin only", errs.ErrForbidden)
	}
	approved, err := deps.Requests.List(ctx, deletionstore.Filter{Statuses: []string{deletion.StatusApproved}})
	if err != nil {
		return AccountsByStatusResult{}, err
	}

	seen := make(map[string]bool)
	var out []AccountWithRequest
	for _, r := range approved {
		if seen[r.ClientID] {
			continue
		}
		seen[r.ClientID] = true
		status, err := deps.Projector.StatusOf(ctx, r.ClientID)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return AccountsByStatusResult{}, err
		}
		if status == want {
			out = append(out, AccountWithRequest{Request: r, Status: status})
		}
	}
	page, info := listutil.Paginate(out, query.Page)
	return AccountsByStatusResult{Accounts: page, Page: info}, nil
}

// --- Client views ---

// ClientRequestQuery carries query parameters for client-scoped projections.
type ClientRequestQuery struct {
	Caller   account.Identity
	ClientID string // defaults to the caller
}

// resolveClient applies the ownership rule: clients see only themselves, admins anyone.
func (q ClientRequestQuery) resolveClient() (string, error) {
	clientID := q.ClientID
	if clientID == "" {
		clientID = q.Caller.ID
	}
	if q.Caller.IsAdmin() || (q.Caller.IsClient() && q.Caller.ID == clientID) {
		return clientID, nil
	}
	return "", fmt.Errorf("%w: cannot view deletion requests of %s", errs.ErrForbidden, clientID)
}

// ActivePendingRequestResult carries the client's pending request, if any.
type ActivePendingRequestResult struct {
	Request deletion.Request
	Found   bool
}

// QueryActivePendingRequestForClient returns the client's pending request.
// PRE: Caller is the client or an admin
// POST: Found is false when no request is pending
func QueryActivePendingRequestForClient(ctx context.Context, query ClientRequestQuery, deps DeletionProjectionDeps) (ActivePendingRequestResult, error) {
	clientID, err := query.resolveClient()
	if err != nil {
		return ActivePendingRequestResult{}, err
	}
	list, err := deps.Requests.List(ctx, deletionstore.Filter{
		ClientID: clientID,
		Statuses: []string{deletion.StatusPending},
		Limit:    1,
	})
	if err != nil {
		return ActivePendingRequestResult{}, err
	}
	if len(list) == 0 {
		return ActivePendingRequestResult{}, nil
	}
	return ActivePendingRequestResult{Request: list[0], Found: true}, nil
}

// QueryHasActiveDeletionRequest reports whether the client has a pending request.
// PRE: Caller is the client or an admin
// POST: Returns true iff a pending request exists
func QueryHasActiveDeletionRequest(ctx context.Context, query ClientRequestQuery, deps DeletionProjectionDeps) (bool, error) {
	res, err := QueryActivePendingRequestForClient(ctx, query, deps)
	return res.Found, err
}

// AccountStatusResult carries the status shown to a client.
type AccountStatusResult struct {
	ClientID string
	Status   string // active, pending_deletion, deleted or restored
	Blocked  bool
	Pending  *deletion.Request
}

// QueryAccountStatus returns the client's display status.
// PRE: Caller is the client or an admin
// POST: Status is pending_deletion when a request is pending and access is
//
//	otherwise unaffected; errs.ErrNotFound for a purged identity
func QueryAccountStatus(ctx context.Context, query ClientRequestQuery, deps DeletionProjectionDeps) (AccountStatusResult, error) {
	clientID, err := query.resolveClient()
	if err != nil {
		return AccountStatusResult{}, err
	}
	status, err := deps.Projector.StatusOf(ctx, clientID)
	if err != nil {
		return AccountStatusResult{}, err
	}
	result := AccountStatusResult{
		ClientID: clientID,
		Status:   status,
		Blocked:  status == account.StatusDeleted,
	}
	pending, err := QueryActivePendingRequestForClient(ctx, ClientRequestQuery{Caller: query.Caller, ClientID: clientID}, deps)
	if err != nil {
		return AccountStatusResult{}, err
	}
	if pending.Found {
		result.Pending = &pending.Request
		if !result.Blocked {
			result.Status = account.StatusPendingDeletion
		}
	}
	return result, nil
}
