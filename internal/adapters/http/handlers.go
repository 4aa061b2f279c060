package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/deletion"
	"vendordesk/internal/domain/errs"
	"vendordesk/internal/domain/notification"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 16 << 10

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is omitted (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// renderMarkdown converts a notification body to HTML, escaping it whole if
// conversion fails.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTMLEscapeString(md)
	}
	return buf.String()
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err)
	}
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: msg})
}

// validationErrors are caller mistakes that map to 400.
var validationErrors = []error{
	orchestrators.ErrInvalidAction,
	deletion.ErrTextTooLong,
	deletion.ErrEmptyRequestID,
	account.ErrEmptyID,
	account.ErrInvalidRole,
}

// writeError maps an operation error to its HTTP status.
// PRE: err is non-nil
// POST: Forbidden→403, NotFound→404, InvalidTransition/InvalidState→409,
// validation→400, anything else→500 with a generic body
func writeError(w http.ResponseWriter, err error) {
	switch kind := errs.KindOf(err); kind {
	case errs.KindForbidden:
		writeJSON(w, http.StatusForbidden, errorResponse{Error: kind, Message: err.Error()})
		return
	case errs.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: kind, Message: err.Error()})
		return
	case errs.KindInvalidTransition, errs.KindInvalidState:
		writeJSON(w, http.StatusConflict, errorResponse{Error: kind, Message: err.Error()})
		return
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			badRequest(w, err.Error())
			return
		}
	}
	internalError(w, err)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
// An empty body leaves v untouched.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// --- Response shapes ---

type identityJSON struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toIdentityJSON(id account.Identity) identityJSON {
	return identityJSON{ID: id.ID, Role: id.Role, Name: id.Name, Email: id.Email}
}

type requestJSON struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	ClientName    string     `json:"client_name"`
	ClientEmail   string     `json:"client_email"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	AdminResponse string     `json:"admin_response,omitempty"`
	ProcessedBy   string     `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toRequestJSON(r deletion.Request) requestJSON {
	return requestJSON{
		ID:            r.ID,
		ClientID:      r.ClientID,
		ClientName:    r.ClientName,
		ClientEmail:   r.ClientEmail,
		Reason:        r.Reason,
		Status:        r.Status,
		AdminResponse: r.AdminResponse,
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   r.ProcessedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func toRequestsJSON(list []deletion.Request) []requestJSON {
	out := make([]requestJSON, 0, len(list))
	for _, r := range list {
		out = append(out, toRequestJSON(r))
	}
	return out
}

type notificationJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationJSON(n notification.Notification) notificationJSON {
	return notificationJSON{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		BodyHTML:  renderMarkdown(n.Body),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
