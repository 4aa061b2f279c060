// Package web serves the account lifecycle JSON API for the client and admin portals.
package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vendordesk/internal/adapters/http/middleware"
	"vendordesk/internal/adapters/storage"
	accountStore "vendordesk/internal/adapters/storage/account"
	deletionStore "vendordesk/internal/adapters/storage/deletion"
	notificationStore "vendordesk/internal/adapters/storage/notification"
	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/application/projections"
	accountDomain "vendordesk/internal/domain/account"
)

// DefaultRateLimitPerSecond is the per-IP request budget when none is configured.
const DefaultRateLimitPerSecond = 20

// Projector is the account status authority behind the API.
type Projector interface {
	orchestrators.AccountProjector
	projections.StatusProjector
}

// Deps holds the collaborators the handlers call into.
type Deps struct {
	Requests      deletionStore.Store
	Accounts      accountStore.Store
	Notifications notificationStore.Store
	Projector     Projector
	Tx            storage.TxRunner
	Auth          Authenticator
	GenerateID    func() string
	Now           func() time.Time
}

// Options configures transport concerns.
type Options struct {
	CSRFKey            []byte // 32 bytes
	SecureCookies      bool
	TrustedOrigins     []string
	RateLimitPerSecond int
	SessionTTL         time.Duration
	SlowRequest        time.Duration
}

// Server is the HTTP handler for the API.
type Server struct {
	deps     Deps
	opts     Options
	sessions *middleware.SessionStore
	limiter  *middleware.RateLimiter
	handler  http.Handler
}

// NewServer wires routes and the middleware chain.
// PRE: deps.Requests, Accounts, Notifications, Projector and Tx are set
// POST: Returns a ready handler; Close must be called to stop background work
func NewServer(deps Deps, opts Options) (*Server, error) {
	if len(opts.CSRFKey) != 32 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(opts.CSRFKey))
	}
	if deps.GenerateID == nil {
		deps.GenerateID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Auth == nil {
		deps.Auth = DirectoryAuthenticator{Accounts: deps.Accounts}
	}
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = middleware.DefaultSessionTTL
	}

	s := &Server{
		deps:     deps,
		opts:     opts,
		sessions: middleware.NewSessionStore(opts.SessionTTL),
		limiter:  middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = middleware.Chain(mux,
		middleware.Auth(s.sessions),
		middleware.CSRF(opts.CSRFKey, middleware.CSRFOptions{
			Secure:         opts.SecureCookies,
			TrustedOrigins: opts.TrustedOrigins,
		}),
		middleware.SecurityHeaders,
		middleware.RateLimit(s.limiter),
		middleware.Timing(opts.SlowRequest),
	)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	client := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(accountDomain.RoleClient)(s.requireActiveClient(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(accountDomain.RoleAdmin)(h)
	}
	anyRole := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(s.requireActiveClient(h))
	}

	mux.HandleFunc("GET /healthz", handleHealth)

	// Session
	mux.HandleFunc("POST /api/session", s.handleLogin)
	mux.HandleFunc("DELETE /api/session", s.handleLogout)

	// Client portal
	mux.Handle("GET /api/me/status", client(s.handleMyStatus))
	mux.Handle("POST /api/client/deletion-request", client(s.handleCreateDeletionRequest))
	mux.Handle("GET /api/client/deletion-request", client(s.handleGetDeletionRequest))

	// Admin portal
	mux.Handle("GET /api/admin/deletion-requests", admin(s.handleListPendingRequests))
	mux.Handle("POST /api/admin/deletion-requests/{id}/process", admin(s.handleProcessRequest))
	mux.Handle("POST /api/admin/deletion-requests/{id}/purge", admin(s.handlePurgeAccount))
	mux.Handle("GET /api/admin/deleted-accounts", admin(s.handleListDeletedAccounts))
	mux.Handle("GET /api/admin/restored-accounts", admin(s.handleListRestoredAccounts))
	mux.Handle("POST /api/admin/accounts/{id}/restore", admin(s.handleRestoreAccount))

	// Mailbox
	mux.Handle("GET /api/notifications", anyRole(s.handleListNotifications))
	mux.Handle("POST /api/notifications/{id}/read", anyRole(s.handleMarkNotificationRead))
	mux.Handle("DELETE /api/notifications", anyRole(s.handleClearNotifications))
}

// workflowDeps builds the orchestrator dependencies for one request.
func (s *Server) workflowDeps() orchestrators.DeletionWorkflowDeps {
	return orchestrators.DeletionWorkflowDeps{
		Requests:      s.deps.Requests,
		Accounts:      s.deps.Accounts,
		Projector:     s.deps.Projector,
		Notifications: s.deps.Notifications,
		Tx:            s.deps.Tx,
		GenerateID:    s.deps.GenerateID,
		Now:           s.deps.Now,
	}
}

func (s *Server) projectionDeps() projections.DeletionProjectionDeps {
	return projections.DeletionProjectionDeps{
		Requests:  s.deps.Requests,
		Projector: s.deps.Projector,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
