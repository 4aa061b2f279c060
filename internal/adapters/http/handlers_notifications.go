package web

import (
	"net/http"

	"vendordesk/internal/adapters/http/middleware"
	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/application/projections"
)

// handleListNotifications returns the caller's mailbox (GET /api/notifications).
// POST: Notifications newest first, each with raw and rendered body, plus the unread count
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	res, err := projections.QueryMailbox(r.Context(), projections.MailboxQuery{
		Caller: sess.Identity(),
	}, projections.MailboxDeps{Notifications: s.deps.Notifications})
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]notificationJSON, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		list = append(list, toNotificationJSON(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":         string(res.Scope),
		"unread":        res.Unread,
		"notifications": list,
	})
}

// handleMarkNotificationRead marks one notification read (POST /api/notifications/{id}/read).
// POST: 204 whether or not the id names one of the caller's notifications
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	err := orchestrators.ExecuteMarkNotificationRead(r.Context(), orchestrators.MarkNotificationReadInput{
		Caller:         sess.Identity(),
		NotificationID: r.PathValue("id"),
	}, orchestrators.MailboxDeps{Notifications: s.deps.Notifications})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearNotifications empties the caller's mailbox (DELETE /api/notifications).
func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	err := orchestrators.ExecuteClearMailbox(r.Context(), orchestrators.ClearMailboxInput{
		Caller: sess.Identity(),
	}, orchestrators.MailboxDeps{Notifications: s.deps.Notifications})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
