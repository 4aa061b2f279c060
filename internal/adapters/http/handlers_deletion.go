package web

import (
	"context"
	"net/http"

	"vendordesk/internal/adapters/http/middleware"
	"vendordesk/internal/application/listutil"
	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/application/projections"
	"vendordesk/internal/domain/account"
)

// --- Client portal ---

// handleMyStatus returns the caller's account status (GET /api/me/status).
// PRE: Caller is an active client
// POST: Returns status, blocked flag, and the pending request if any
func (s *Server) handleMyStatus(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := projections.QueryAccountStatus(r.Context(), projections.ClientRequestQuery{
		Caller: sess.Identity(),
	}, s.projectionDeps())
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{
		"client_id": res.ClientID,
		"status":    res.Status,
		"blocked":   res.Blocked,
	}
	if res.Pending != nil {
		body["pending_request"] = toRequestJSON(*res.Pending)
	}
	writeJSON(w, http.StatusOK, body)
}

type createDeletionRequestBody struct {
	Reason string `json:"reason"`
}

// handleCreateDeletionRequest files a deletion request (POST /api/client/deletion-request).
// PRE: Caller is an active client
// POST: 201 with the new request, or 200 with the already pending one
func (s *Server) handleCreateDeletionRequest(w http.ResponseWriter, r *http.Request) {
	var body createDeletionRequestBody
	if err := strictDecode(w, r, &body); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := orchestrators.ExecuteCreateDeletionRequest(r.Context(), orchestrators.CreateDeletionRequestInput{
		Caller: sess.Identity(),
		Reason: body.Reason,
	}, s.workflowDeps())
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"request": toRequestJSON(res.Request),
		"created": res.Created,
	})
}

// handleGetDeletionRequest returns the caller's pending request (GET /api/client/deletion-request).
// PRE: Caller is an active client
// POST: has_active_request is false and request is omitted when nothing is pending
func (s *Server) handleGetDeletionRequest(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := projections.QueryActivePendingRequestForClient(r.Context(), projections.ClientRequestQuery{
		Caller: sess.Identity(),
	}, s.projectionDeps())
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{"has_active_request": res.Found}
	if res.Found {
		body["request"] = toRequestJSON(res.Request)
	}
	writeJSON(w, http.StatusOK, body)
}

// --- Admin portal ---

// handleListPendingRequests lists requests awaiting a decision (GET /api/admin/deletion-requests).
func (s *Server) handleListPendingRequests(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := projections.QueryPendingRequestsForAdmin(r.Context(), projections.PendingRequestsQuery{
		Caller: sess.Identity(),
		Page:   listutil.ParsePageParams(r.URL.Query()),
	}, s.projectionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestsJSON(res.Requests),
		"page":     res.Page,
	})
}

type processRequestBody struct {
	Action   string `json:"action"`
	Response string `json:"response"`
}

// handleProcessRequest approves or rejects a request (POST /api/admin/deletion-requests/{id}/process).
// PRE: Caller is an admin; body names approve or reject
// POST: 200 with the processed request; 409 if it already left pending
func (s *Server) handleProcessRequest(w http.ResponseWriter, r *http.Request) {
	var body processRequestBody
	if err := strictDecode(w, r, &body); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	sess, _ := middleware.GetSessionFromContext(r.Context())
	updated, err := orchestrators.ExecuteProcessDeletionRequest(r.Context(), orchestrators.ProcessDeletionRequestInput{
		Caller:    sess.Identity(),
		RequestID: r.PathValue("id"),
		Action:    body.Action,
		Response:  body.Response,
	}, s.workflowDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": toRequestJSON(updated)})
}

// handlePurgeAccount erases the identity behind an approved request (POST /api/admin/deletion-requests/{id}/purge).
// PRE: Caller is an admin
// POST: 200 with the completed request; 409 unless the request is approved
func (s *Server) handlePurgeAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	completed, err := orchestrators.ExecutePurgeAccount(r.Context(), orchestrators.PurgeAccountInput{
		Caller:    sess.Identity(),
		RequestID: r.PathValue("id"),
	}, s.workflowDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	s.sessions.DeleteAccount(completed.ClientID)
	writeJSON(w, http.StatusOK, map[string]any{"request": toRequestJSON(completed)})
}

// handleListDeletedAccounts lists clients whose access is revoked (GET /api/admin/deleted-accounts).
func (s *Server) handleListDeletedAccounts(w http.ResponseWriter, r *http.Request) {
	s.listAccountsByStatus(w, r, projections.QueryDeletedAccountsForAdmin)
}

// handleListRestoredAccounts lists restored clients (GET /api/admin/restored-accounts).
func (s *Server) handleListRestoredAccounts(w http.ResponseWriter, r *http.Request) {
	s.listAccountsByStatus(w, r, projections.QueryRestoredAccountsForAdmin)
}

type accountsQueryFunc func(ctx context.Context, q projections.AccountsByStatusQuery, deps projections.DeletionProjectionDeps) (projections.AccountsByStatusResult, error)

func (s *Server) listAccountsByStatus(w http.ResponseWriter, r *http.Request, query accountsQueryFunc) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := query(r.Context(), projections.AccountsByStatusQuery{
		Caller: sess.Identity(),
		Page:   listutil.ParsePageParams(r.URL.Query()),
	}, s.projectionDeps())
	if err != nil {
		writeError(w, err)
		return
	}

	accounts := make([]map[string]any, 0, len(res.Accounts))
	for _, a := range res.Accounts {
		accounts = append(accounts, map[string]any{
			"client_id": a.Request.ClientID,
			"status":    a.Status,
			"request":   toRequestJSON(a.Request),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"page":     res.Page,
	})
}

// handleRestoreAccount lifts the block on a deleted account (POST /api/admin/accounts/{id}/restore).
// PRE: Caller is an admin
// POST: 200 with the restored status; 409 unless the account is deleted
func (s *Server) handleRestoreAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	clientID := r.PathValue("id")
	err := orchestrators.ExecuteRestoreAccount(r.Context(), orchestrators.RestoreAccountInput{
		Caller:   sess.Identity(),
		ClientID: clientID,
	}, s.workflowDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "status": account.StatusRestored})
}
