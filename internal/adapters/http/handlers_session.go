package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"vendordesk/internal/adapters/http/middleware"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
)

// ErrInvalidCredentials is returned when no identity matches the credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is the sign-in payload.
type Credentials struct {
	Email string `json:"email"`
}

// Authenticator turns credentials into a caller identity. Credential
// checking lives behind this seam.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (account.Identity, error)
}

// AccountLookup finds directory accounts by email.
type AccountLookup interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// DirectoryAuthenticator resolves the identity of a directory account by
// email. It does not check any secret.
type DirectoryAuthenticator struct {
	Accounts AccountLookup
}

// Authenticate implements Authenticator.
// PRE: none
// POST: Returns the account's identity, or ErrInvalidCredentials if the
// email is unknown or its identity was purged
func (a DirectoryAuthenticator) Authenticate(ctx context.Context, creds Credentials) (account.Identity, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" {
		return account.Identity{}, ErrInvalidCredentials
	}
	acct, err := a.Accounts.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return account.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return account.Identity{}, fmt.Errorf("authenticate: %w", err)
	}
	return acct.Identity(), nil
}

// handleLogin establishes a session (POST /api/session).
// PRE: none
// POST: Sets the session cookie for an active identity; blocked clients get 403
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := strictDecode(w, r, &creds); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	id, err := s.deps.Auth.Authenticate(ctx, creds)
	if errors.Is(err, ErrInvalidCredentials) {
		slog.Warn("auth_event", "event", "login_failed", "email", creds.Email)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_credentials"})
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if err := id.Validate(); err != nil {
		internalError(w, fmt.Errorf("authenticator returned invalid identity: %w", err))
		return
	}

	if id.IsClient() {
		blocked, err := s.deps.Projector.IsBlocked(ctx, id.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if blocked {
			slog.Info("auth_event", "event", "login_blocked", "account_id", id.ID)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "account_blocked"})
			return
		}
	}

	token, err := s.sessions.Create(id)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token, s.opts.SecureCookies, s.opts.SessionTTL)
	slog.Info("auth_event", "event", "login", "account_id", id.ID, "role", id.Role)
	writeJSON(w, http.StatusOK, map[string]any{"account": toIdentityJSON(id)})
}

// handleLogout ends the current session (DELETE /api/session).
// POST: Session removed and cookie cleared; idempotent
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		s.sessions.Delete(sess.Token)
		slog.Info("auth_event", "event", "logout", "account_id", sess.AccountID)
	}
	middleware.ClearSessionCookie(w, s.opts.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// requireActiveClient terminates the sessions of clients whose access is
// revoked. Admin sessions pass through.
// POST: A blocked or purged client gets 403 {"error":"account_blocked"}
// and every session of that account is gone
func (s *Server) requireActiveClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.GetSessionFromContext(r.Context())
		if !ok || sess.Role != account.RoleClient {
			next.ServeHTTP(w, r)
			return
		}
		blocked, err := s.deps.Projector.IsBlocked(r.Context(), sess.AccountID)
		if errors.Is(err, errs.ErrNotFound) {
			blocked, err = true, nil
		}
		if err != nil {
			internalError(w, err)
			return
		}
		if blocked {
			n := s.sessions.DeleteAccount(sess.AccountID)
			middleware.ClearSessionCookie(w, s.opts.SecureCookies)
			slog.Info("auth_event", "event", "blocked_session_terminated", "account_id", sess.AccountID, "sessions", n)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "account_blocked"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
