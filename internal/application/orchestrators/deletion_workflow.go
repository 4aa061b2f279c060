package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vendordesk/internal/adapters/storage"
	deletionstore "vendordesk/internal/adapters/storage/deletion"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
	"vendordesk/internal/domain/notification"
)

// Process actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Default client notification bodies when the admin leaves no response.
const (
	DefaultApprovedMessage = "Your account deletion request has been approved. Access to your account has been closed."
	DefaultRejectedMessage = "Your account deletion request has been declined. Your account remains active."
	DefaultRestoredMessage = "Your account has been restored. You can sign in again."
)

// ErrInvalidAction is returned when the process action is neither approve nor reject.
var ErrInvalidAction = errors.New("action must be one of: approve, reject")

// AccountDirectory looks up directory accounts.
type AccountDirectory interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// AccountProjector is the account status authority the workflow drives.
type AccountProjector interface {
	IsBlocked(ctx context.Context, clientID string) (bool, error)
	ApplyApproval(ctx context.Context, clientID, by string, at time.Time) error
	ApplyRestore(ctx context.Context, clientID, by string, at time.Time) error
	ApplyPurge(ctx context.Context, r deletion.Request) error
}

// NotificationAppender writes to mailboxes.
type NotificationAppender interface {
	Append(ctx context.Context, n notification.Notification) error
}

// DeletionWorkflowDeps holds dependencies for the deletion workflow orchestrators.
type DeletionWorkflowDeps struct {
	Requests      deletionstore.Store
	Accounts      AccountDirectory
	Projector     AccountProjector
	Notifications NotificationAppender
	Tx            storage.TxRunner
	GenerateID    func() string
	Now           func() time.Time
}

// --- Create Deletion Request ---

// CreateDeletionRequestInput carries input for the create deletion request orchestrator.
type CreateDeletionRequestInput struct {
	Caller account.Identity
	Reason string
}

// CreateDeletionRequestResult reports the request and whether this call created it.
type CreateDeletionRequestResult struct {
	Request deletion.Request
	Created bool
}

// ExecuteCreateDeletionRequest files a deletion request for the calling client.
// PRE: Caller is authenticated
// POST: Caller has exactly one pending request; the admin mailbox got one
//
//	notification if and only if Created is true
func ExecuteCreateDeletionRequest(ctx context.Context, input CreateDeletionRequestInput, deps DeletionWorkflowDeps) (CreateDeletionRequestResult, error) {
	if !input.Caller.IsClient() {
		return CreateDeletionRequestResult{}, fmt.Errorf("%w: only clients can request account deletion", errs.ErrForbidden)
	}
	if len(input.Reason) > deletion.MaxReasonLength {
		return CreateDeletionRequestResult{}, deletion.ErrTextTooLong
	}

	acct, err := deps.Accounts.GetByID(ctx, input.Caller.ID)
	if err != nil {
		return CreateDeletionRequestResult{}, err
	}
	blocked, err := deps.Projector.IsBlocked(ctx, acct.ID)
	if err != nil {
		return CreateDeletionRequestResult{}, err
	}
	if blocked {
		return CreateDeletionRequestResult{}, fmt.Errorf("%w: account %s is deleted", errs.ErrForbidden, acct.ID)
	}

	if existing, ok, err := pendingRequestFor(ctx, deps.Requests, acct.ID); err != nil || ok {
		return CreateDeletionRequestResult{Request: existing}, err
	}

	r := deletion.NewRequest(deps.GenerateID(), acct.Identity(), input.Reason, deps.Now())
	err = deps.Tx.InTx(ctx, func(ctx context.Context) error {
		return deps.Requests.Insert(ctx, r)
	})
	if err != nil {
		if !errors.Is(err, deletionstore.ErrDuplicatePending) {
			return CreateDeletionRequestResult{}, err
		}
		// Lost a race with a concurrent create; return the winner's request.
		existing, ok, err := pendingRequestFor(ctx, deps.Requests, acct.ID)
		if err != nil {
			return CreateDeletionRequestResult{}, err
		}
		if !ok {
			return CreateDeletionRequestResult{}, fmt.Errorf("%w: pending request for %s disappeared", errs.ErrInvalidState, acct.ID)
		}
		return CreateDeletionRequestResult{Request: existing}, nil
	}

	slog.Info("deletion_event", "event", "deletion_requested", "request_id", r.ID, "client_id", r.ClientID)
	notify(ctx, deps, notification.Notification{
		Scope: notification.AdminScope,
		Kind:  notification.KindDeletionRequested,
		Title: "Account deletion requested",
		Body:  requestSummary(r),
	})
	return CreateDeletionRequestResult{Request: r, Created: true}, nil
}

// --- Process Deletion Request ---

// ProcessDeletionRequestInput carries input for the process deletion request orchestrator.
type ProcessDeletionRequestInput struct {
	Caller    account.Identity
	RequestID string
	Action    string // ActionApprove or ActionReject
	Response  string
}

// ExecuteProcessDeletionRequest approves or rejects a pending request.
// PRE: Caller is an admin; RequestID names a pending request
// POST: Request is approved (account blocked) or rejected; the client's
//
//	mailbox got exactly one notification
//
// INVARIANT: Concurrent calls on the same request have exactly one winner;
// losers fail with errs.ErrInvalidTransition
func ExecuteProcessDeletionRequest(ctx context.Context, input ProcessDeletionRequestInput, deps DeletionWorkflowDeps) (deletion.Request, error) {
	if !input.Caller.IsAdmin() {
		return deletion.Request{}, fmt.Errorf("%w: only admins can process deletion requests", errs.ErrForbidden)
	}
	var to string
	switch input.Action {
	case ActionApprove:
		to = deletion.StatusApproved
	case ActionReject:
		to = deletion.StatusRejected
	default:
		return deletion.Request{}, ErrInvalidAction
	}

	now := deps.Now()
	var updated deletion.Request
	err := deps.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = deps.Requests.Transition(ctx, deletionstore.TransitionInput{
			ID:       input.RequestID,
			To:       to,
			By:       input.Caller.ID,
			Response: input.Response,
			At:       now,
		})
		if err != nil {
			return err
		}
		if to == deletion.StatusApproved {
			return deps.Projector.ApplyApproval(ctx, updated.ClientID, input.Caller.ID, now)
		}
		return nil
	})
	if err != nil {
		return deletion.Request{}, err
	}

	slog.Info("deletion_event", "event", "deletion_"+updated.Status, "request_id", updated.ID, "client_id", updated.ClientID, "by", input.Caller.ID)

	n := notification.Notification{
		Scope: notification.ClientScope(updated.ClientID),
		Kind:  notification.KindDeletionRejected,
		Title: "Account deletion declined",
		Body:  orDefault(updated.AdminResponse, DefaultRejectedMessage),
	}
	if to == deletion.StatusApproved {
		n.Kind = notification.KindDeletionApproved
		n.Title = "Account deletion approved"
		n.Body = orDefault(updated.AdminResponse, DefaultApprovedMessage)
	}
	notify(ctx, deps, n)
	return updated, nil
}

// --- Purge Account ---

// PurgeAccountInput carries input for the purge account orchestrator.
type PurgeAccountInput struct {
	Caller    account.Identity
	RequestID string
}

// ExecutePurgeAccount permanently erases the identity behind an approved request.
// PRE: Caller is an admin; the request is approved
// POST: Request is completed and the client identity no longer exists.
//
//	Every other approved request of the client is completed too.
//	Pending requests fail with errs.ErrInvalidState; rejected and
//	completed ones with errs.ErrInvalidTransition. No notification is sent.
func ExecutePurgeAccount(ctx context.Context, input PurgeAccountInput, deps DeletionWorkflowDeps) (deletion.Request, error) {
	if !input.Caller.IsAdmin() {
		return deletion.Request{}, fmt.Errorf("%w: only admins can purge accounts", errs.ErrForbidden)
	}

	now := deps.Now()
	var completed deletion.Request
	err := deps.Tx.InTx(ctx, func(ctx context.Context) error {
		r, err := deps.Requests.GetByID(ctx, input.RequestID)
		if err != nil {
			return err
		}
		switch r.Status {
		case deletion.StatusPending:
			return fmt.Errorf("%w: request %s has not been approved", errs.ErrInvalidState, r.ID)
		case deletion.StatusRejected, deletion.StatusCompleted:
			return fmt.Errorf("%w: request %s is already %s", errs.ErrInvalidTransition, r.ID, r.Status)
		}
		if err := deps.Projector.ApplyPurge(ctx, r); err != nil {
			return err
		}
		// The identity is gone for every approved request of this client,
		// so none of them may stay approved.
		approved, err := deps.Requests.List(ctx, deletionstore.Filter{
			ClientID: r.ClientID,
			Statuses: []string{deletion.StatusApproved},
		})
		if err != nil {
			return err
		}
		for _, a := range approved {
			done, err := deps.Requests.Transition(ctx, deletionstore.TransitionInput{
				ID: a.ID,
				To: deletion.StatusCompleted,
				By: input.Caller.ID,
				At: now,
			})
			if err != nil {
				return err
			}
			if done.ID == r.ID {
				completed = done
			}
		}
		if completed.ID == "" {
			return fmt.Errorf("%w: request %s is no longer approved", errs.ErrInvalidTransition, r.ID)
		}
		return nil
	})
	if err != nil {
		return deletion.Request{}, err
	}

	slog.Info("deletion_event", "event", "account_purged", "request_id", completed.ID, "client_id", completed.ClientID, "by", input.Caller.ID)
	return completed, nil
}

// --- Restore Account ---

// RestoreAccountInput carries input for the restore account orchestrator.
type RestoreAccountInput struct {
	Caller   account.Identity
	ClientID string
}

// ExecuteRestoreAccount lifts the block on a deleted account.
// PRE: Caller is an admin; the account status is deleted
// POST: Account status is restored; the approved request is left as is;
//
//	the client's mailbox got one account-restored notification
func ExecuteRestoreAccount(ctx context.Context, input RestoreAccountInput, deps DeletionWorkflowDeps) error {
	if !input.Caller.IsAdmin() {
		return fmt.Errorf("%w: only admins can restore accounts", errs.ErrForbidden)
	}
	if input.ClientID == "" {
		return account.ErrEmptyID
	}

	now := deps.Now()
	err := deps.Tx.InTx(ctx, func(ctx context.Context) error {
		return deps.Projector.ApplyRestore(ctx, input.ClientID, input.Caller.ID, now)
	})
	if err != nil {
		return err
	}

	slog.Info("deletion_event", "event", "account_restored", "client_id", input.ClientID, "by", input.Caller.ID)
	notify(ctx, deps, notification.Notification{
		Scope: notification.ClientScope(input.ClientID),
		Kind:  notification.KindAccountRestored,
		Title: "Account restored",
		Body:  DefaultRestoredMessage,
	})
	return nil
}

// --- helpers ---

// pendingRequestFor returns the client's pending request, if any.
func pendingRequestFor(ctx context.Context, requests deletionstore.Store, clientID string) (deletion.Request, bool, error) {
	list, err := requests.List(ctx, deletionstore.Filter{
		ClientID: clientID,
		Statuses: []string{deletion.StatusPending},
		Limit:    1,
	})
	if err != nil || len(list) == 0 {
		return deletion.Request{}, false, err
	}
	return list[0], true, nil
}

// notify appends n after the state change has committed. A failed append is
// logged and does not undo or fail the committed operation.
func notify(ctx context.Context, deps DeletionWorkflowDeps, n notification.Notification) {
	n.ID = deps.GenerateID()
	n.CreatedAt = deps.Now()
	if err := deps.Notifications.Append(ctx, n); err != nil {
		slog.Error("notification_append_failed", "kind", n.Kind, "scope", string(n.Scope), "error", err)
	}
}

// requestSummary renders the admin notification body as markdown.
func requestSummary(r deletion.Request) string {
	name := r.ClientName
	if name == "" {
		name = r.ClientEmail
	}
	return fmt.Sprintf("**%s** (%s) asked to delete their account.\n\nReason: %s", name, r.ClientEmail, r.Reason)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
