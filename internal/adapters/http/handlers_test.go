package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vendordesk/internal/adapters/storage"
	accountStore "vendordesk/internal/adapters/storage/account"
	deletionStore "vendordesk/internal/adapters/storage/deletion"
	notificationStore "vendordesk/internal/adapters/storage/notification"
	"vendordesk/internal/application/listutil"
	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/application/projector"
	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
	"vendordesk/internal/domain/notification"
)

// --- Test environment ---

type testEnv struct {
	srv      *Server
	accounts *accountStore.MemoryStore
	notes    *notificationStore.MemoryStore
}

var (
	adminAccount  = account.Account{ID: "a1", Email: "ops@vendordesk.io", Name: "Ops Desk", Role: account.RoleAdmin}
	clientAccount = account.Account{ID: "c1", Email: "dana@acme.test", Name: "Dana Whitfield", Company: "Acme", Role: account.RoleClient}
)

func quietLogs(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	quietLogs(t)
	ctx := context.Background()

	requests := deletionStore.NewMemoryStore()
	accounts := accountStore.NewMemoryStore()
	notes := notificationStore.NewMemoryStore()

	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	for _, a := range []account.Account{adminAccount, clientAccount} {
		a.CreatedAt = now
		if err := accounts.Save(ctx, a); err != nil {
			t.Fatalf("seed %s: %v", a.ID, err)
		}
	}

	srv, err := NewServer(Deps{
		Requests:      requests,
		Accounts:      accounts,
		Notifications: notes,
		Projector:     projector.New(requests, accounts),
		Tx:            storage.NewMemoryTxRunner(),
		GenerateID:    ids,
		Now:           clock,
	}, Options{
		CSRFKey:            bytes.Repeat([]byte{1}, 32),
		RateLimitPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, accounts: accounts, notes: notes}
}

// do sends a JSON request, optionally authenticated by cookie.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rr := e.do(t, "POST", "/api/session", map[string]string{"email": email}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "vendordesk_session" {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie", email)
	return nil
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type requestResponse struct {
	Request requestJSON `json:"request"`
	Created bool        `json:"created"`
}

type statusResponse struct {
	ClientID       string       `json:"client_id"`
	Status         string       `json:"status"`
	Blocked        bool         `json:"blocked"`
	PendingRequest *requestJSON `json:"pending_request"`
}

type mailboxResponse struct {
	Scope         string             `json:"scope"`
	Unread        int                `json:"unread"`
	Notifications []notificationJSON `json:"notifications"`
}

type accountsResponse struct {
	Accounts []struct {
		ClientID string `json:"client_id"`
		Status   string `json:"status"`
	} `json:"accounts"`
	Page listutil.PageInfo `json:"page"`
}

// --- Lifecycle ---

// TestDeletionLifecycle_ApproveAndRestore walks a client through request,
// approval, block-and-logout, restore and the resulting mailboxes.
func TestDeletionLifecycle_ApproveAndRestore(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)

	rr := env.do(t, "POST", "/api/client/deletion-request", map[string]string{"reason": "Closing the business"}, clientCookie)
	expectStatus(t, rr, http.StatusCreated)
	created := decodeBody[requestResponse](t, rr)
	if !created.Created || created.Request.Status != "pending" || created.Request.Reason != "Closing the business" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rr = env.do(t, "POST", "/api/client/deletion-request", map[string]string{"reason": "again"}, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	again := decodeBody[requestResponse](t, rr)
	if again.Created || again.Request.ID != created.Request.ID {
		t.Fatalf("expected the existing request back, got %+v", again)
	}

	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	if st := decodeBody[statusResponse](t, rr); st.Status != account.StatusPendingDeletion || st.Blocked || st.PendingRequest == nil {
		t.Fatalf("expected pending_deletion, got %+v", st)
	}

	adminCookie := env.login(t, adminAccount.Email)
	rr = env.do(t, "GET", "/api/admin/deletion-requests", nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	pending := decodeBody[struct {
		Requests []requestJSON     `json:"requests"`
		Page     listutil.PageInfo `json:"page"`
	}](t, rr)
	if len(pending.Requests) != 1 || pending.Page.Total != 1 || pending.Requests[0].ClientID != clientAccount.ID {
		t.Fatalf("expected one pending request, got %+v", pending)
	}

	rr = env.do(t, "GET", "/api/notifications", nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	adminBox := decodeBody[mailboxResponse](t, rr)
	if adminBox.Scope != "admin" || adminBox.Unread != 1 || len(adminBox.Notifications) != 1 {
		t.Fatalf("expected one admin notification, got %+v", adminBox)
	}
	if n := adminBox.Notifications[0]; n.Kind != notification.KindDeletionRequested || !strings.Contains(n.BodyHTML, "<strong>Dana Whitfield</strong>") {
		t.Errorf("unexpected admin notification: %+v", n)
	}

	path := "/api/admin/deletion-requests/" + created.Request.ID + "/process"
	rr = env.do(t, "POST", path, map[string]string{"action": "approve", "response": "Done"}, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	approved := decodeBody[requestResponse](t, rr)
	if approved.Request.Status != "approved" || approved.Request.ProcessedBy != adminAccount.ID || approved.Request.ProcessedAt == nil {
		t.Fatalf("unexpected approval: %+v", approved.Request)
	}

	// Blocked client is logged out on its next request.
	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusForbidden)
	if !strings.Contains(rr.Body.String(), "account_blocked") {
		t.Errorf("expected account_blocked, got %s", rr.Body.String())
	}
	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = env.do(t, "POST", "/api/session", map[string]string{"email": clientAccount.Email}, nil)
	expectStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "GET", "/api/admin/deleted-accounts", nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	if deleted := decodeBody[accountsResponse](t, rr); len(deleted.Accounts) != 1 || deleted.Accounts[0].ClientID != clientAccount.ID {
		t.Fatalf("expected c1 in deleted accounts, got %+v", deleted)
	}

	rr = env.do(t, "POST", "/api/admin/accounts/"+clientAccount.ID+"/restore", nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/admin/restored-accounts", nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	if restored := decodeBody[accountsResponse](t, rr); len(restored.Accounts) != 1 || restored.Accounts[0].Status != account.StatusRestored {
		t.Fatalf("expected c1 restored, got %+v", restored)
	}
	rr = env.do(t, "GET", "/api/admin/deleted-accounts", nil, adminCookie)
	if deleted := decodeBody[accountsResponse](t, rr); len(deleted.Accounts) != 0 {
		t.Fatalf("expected no deleted accounts, got %+v", deleted)
	}

	clientCookie = env.login(t, clientAccount.Email)
	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	if st := decodeBody[statusResponse](t, rr); st.Status != account.StatusRestored || st.Blocked {
		t.Fatalf("expected restored, got %+v", st)
	}

	rr = env.do(t, "GET", "/api/notifications", nil, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	box := decodeBody[mailboxResponse](t, rr)
	if box.Unread != 2 || len(box.Notifications) != 2 {
		t.Fatalf("expected two client notifications, got %+v", box)
	}
	if box.Notifications[0].Kind != notification.KindAccountRestored || box.Notifications[1].Kind != notification.KindDeletionApproved {
		t.Errorf("expected restored then approved, got %s, %s", box.Notifications[0].Kind, box.Notifications[1].Kind)
	}
	if box.Notifications[1].Body != "Done" {
		t.Errorf("expected admin response as body, got %q", box.Notifications[1].Body)
	}

	rr = env.do(t, "POST", "/api/notifications/"+box.Notifications[0].ID+"/read", nil, clientCookie)
	expectStatus(t, rr, http.StatusNoContent)
	rr = env.do(t, "GET", "/api/notifications", nil, clientCookie)
	if box = decodeBody[mailboxResponse](t, rr); box.Unread != 1 || !box.Notifications[0].Read {
		t.Fatalf("expected one unread after mark read, got %+v", box)
	}

	rr = env.do(t, "DELETE", "/api/notifications", nil, clientCookie)
	expectStatus(t, rr, http.StatusNoContent)
	rr = env.do(t, "GET", "/api/notifications", nil, clientCookie)
	if box = decodeBody[mailboxResponse](t, rr); len(box.Notifications) != 0 || box.Unread != 0 {
		t.Fatalf("expected empty mailbox, got %+v", box)
	}
	rr = env.do(t, "GET", "/api/notifications", nil, adminCookie)
	if adminBox = decodeBody[mailboxResponse](t, rr); len(adminBox.Notifications) != 1 {
		t.Errorf("clearing the client mailbox touched the admin mailbox: %+v", adminBox)
	}
}

// TestRejectedRequest_ClientStaysActive tests that rejection leaves access alone.
func TestRejectedRequest_ClientStaysActive(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)

	rr := env.do(t, "POST", "/api/client/deletion-request", nil, clientCookie)
	expectStatus(t, rr, http.StatusCreated)
	req := decodeBody[requestResponse](t, rr).Request
	if req.Reason != "No reason provided" {
		t.Errorf("expected default reason, got %q", req.Reason)
	}

	rr = env.do(t, "POST", "/api/admin/deletion-requests/"+req.ID+"/process", map[string]string{"action": "reject"}, adminCookie)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/client/deletion-request", nil, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[map[string]any](t, rr); got["has_active_request"] != false {
		t.Errorf("expected no active request, got %v", got)
	}
	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusOK)
	if st := decodeBody[statusResponse](t, rr); st.Status != account.StatusActive {
		t.Errorf("expected active, got %+v", st)
	}
}

// TestProcessRequest_ErrorMapping tests status codes for failed processing.
func TestProcessRequest_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)

	rr := env.do(t, "POST", "/api/client/deletion-request", map[string]string{"reason": "bye"}, clientCookie)
	expectStatus(t, rr, http.StatusCreated)
	id := decodeBody[requestResponse](t, rr).Request.ID
	path := "/api/admin/deletion-requests/" + id + "/process"

	tests := []struct {
		name     string
		path     string
		body     any
		cookie   *http.Cookie
		wantCode int
		wantErr  string
	}{
		{"unknown action", path, map[string]string{"action": "archive"}, adminCookie, http.StatusBadRequest, "invalid_request"},
		{"unknown field", path, map[string]string{"verdict": "approve"}, adminCookie, http.StatusBadRequest, "invalid_request"},
		{"unknown request", "/api/admin/deletion-requests/nope/process", map[string]string{"action": "approve"}, adminCookie, http.StatusNotFound, errs.KindNotFound},
		{"client caller", path, map[string]string{"action": "approve"}, clientCookie, http.StatusForbidden, "forbidden"},
		{"anonymous", path, map[string]string{"action": "approve"}, nil, http.StatusUnauthorized, "not_authenticated"},
		{"approve", path, map[string]string{"action": "approve"}, adminCookie, http.StatusOK, ""},
		{"approve again", path, map[string]string{"action": "approve"}, adminCookie, http.StatusConflict, errs.KindInvalidTransition},
		{"reject after approve", path, map[string]string{"action": "reject"}, adminCookie, http.StatusConflict, errs.KindInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", tt.path, tt.body, tt.cookie)
			expectStatus(t, rr, tt.wantCode)
			if tt.wantErr != "" {
				if got := decodeBody[errorResponse](t, rr); got.Error != tt.wantErr {
					t.Errorf("error = %q, want %q", got.Error, tt.wantErr)
				}
			}
		})
	}
}

// TestConcurrentProcess_OneWinner tests that racing admins get one 200 and the rest 409.
func TestConcurrentProcess_OneWinner(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)
	rr := env.do(t, "POST", "/api/client/deletion-request", nil, clientCookie)
	id := decodeBody[requestResponse](t, rr).Request.ID

	const racers = 8
	codes := make(chan int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := "approve"
			if i%2 == 1 {
				action = "reject"
			}
			codes <- env.do(t, "POST", "/api/admin/deletion-requests/"+id+"/process", map[string]string{"action": action}, adminCookie).Code
		}(i)
	}
	wg.Wait()
	close(codes)

	ok, conflict := 0, 0
	for c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if ok != 1 || conflict != racers-1 {
		t.Errorf("ok=%d conflict=%d, want 1 and %d", ok, conflict, racers-1)
	}

	rr = env.do(t, "GET", "/api/notifications", nil, clientCookie)
	if rr.Code == http.StatusOK {
		if box := decodeBody[mailboxResponse](t, rr); len(box.Notifications) != 1 {
			t.Errorf("expected exactly one decision notification, got %d", len(box.Notifications))
		}
	}
}

// TestPurgeAccount tests purge preconditions and the erased identity.
func TestPurgeAccount(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)

	rr := env.do(t, "POST", "/api/client/deletion-request", nil, clientCookie)
	id := decodeBody[requestResponse](t, rr).Request.ID
	purge := "/api/admin/deletion-requests/" + id + "/purge"

	rr = env.do(t, "POST", purge, nil, adminCookie)
	expectStatus(t, rr, http.StatusConflict)
	if got := decodeBody[errorResponse](t, rr); got.Error != errs.KindInvalidState {
		t.Errorf("purge pending: error = %q, want invalid_state", got.Error)
	}

	rr = env.do(t, "POST", "/api/admin/deletion-requests/"+id+"/process", map[string]string{"action": "approve"}, adminCookie)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, "POST", purge, nil, adminCookie)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[requestResponse](t, rr); got.Request.Status != "completed" {
		t.Errorf("expected completed, got %q", got.Request.Status)
	}

	if _, err := env.accounts.GetByID(context.Background(), clientAccount.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected identity to be gone, got %v", err)
	}
	rr = env.do(t, "GET", "/api/me/status", nil, clientCookie)
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = env.do(t, "POST", "/api/session", map[string]string{"email": clientAccount.Email}, nil)
	expectStatus(t, rr, http.StatusUnauthorized)

	rr = env.do(t, "POST", purge, nil, adminCookie)
	expectStatus(t, rr, http.StatusConflict)
	rr = env.do(t, "POST", "/api/admin/accounts/"+clientAccount.ID+"/restore", nil, adminCookie)
	expectStatus(t, rr, http.StatusNotFound)
}

// TestRestoreAccount_ActiveIsConflict tests restoring an account that was never deleted.
func TestRestoreAccount_ActiveIsConflict(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, adminAccount.Email)
	rr := env.do(t, "POST", "/api/admin/accounts/"+clientAccount.ID+"/restore", nil, adminCookie)
	expectStatus(t, rr, http.StatusConflict)
}

// TestRoleGates tests that each portal rejects the other role.
func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)

	rr := env.do(t, "POST", "/api/client/deletion-request", nil, adminCookie)
	expectStatus(t, rr, http.StatusForbidden)
	for _, path := range []string{"/api/admin/deletion-requests", "/api/admin/deleted-accounts", "/api/admin/restored-accounts"} {
		rr = env.do(t, "GET", path, nil, clientCookie)
		expectStatus(t, rr, http.StatusForbidden)
	}
	rr = env.do(t, "GET", "/api/notifications", nil, nil)
	expectStatus(t, rr, http.StatusUnauthorized)
}

// --- Mailbox ---

// TestNotifications_RawHTMLOmitted tests that bodies render markdown but not raw HTML.
func TestNotifications_RawHTMLOmitted(t *testing.T) {
	env := newTestEnv(t)
	err := env.notes.Append(context.Background(), notification.Notification{
		ID:        "n1",
		Scope:     notification.ClientScope(clientAccount.ID),
		Kind:      notification.KindDeletionRejected,
		Title:     "Declined",
		Body:      "<script>alert(1)</script>\n\n**kept** text",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	rr := env.do(t, "GET", "/api/notifications", nil, env.login(t, clientAccount.Email))
	expectStatus(t, rr, http.StatusOK)
	box := decodeBody[mailboxResponse](t, rr)
	if len(box.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(box.Notifications))
	}
	n := box.Notifications[0]
	if strings.Contains(n.BodyHTML, "<script>") {
		t.Errorf("raw HTML leaked into body_html: %q", n.BodyHTML)
	}
	if !strings.Contains(n.BodyHTML, "<strong>kept</strong>") {
		t.Errorf("expected markdown to render, got %q", n.BodyHTML)
	}
	if n.Body != "<script>alert(1)</script>\n\n**kept** text" {
		t.Errorf("expected raw body unchanged, got %q", n.Body)
	}
}

// TestMarkRead_ForeignNotificationIgnored tests that a client cannot touch the admin mailbox.
func TestMarkRead_ForeignNotificationIgnored(t *testing.T) {
	env := newTestEnv(t)
	clientCookie := env.login(t, clientAccount.Email)
	adminCookie := env.login(t, adminAccount.Email)
	env.do(t, "POST", "/api/client/deletion-request", nil, clientCookie)

	rr := env.do(t, "GET", "/api/notifications", nil, adminCookie)
	adminBox := decodeBody[mailboxResponse](t, rr)
	if len(adminBox.Notifications) != 1 {
		t.Fatalf("expected one admin notification, got %d", len(adminBox.Notifications))
	}

	rr = env.do(t, "POST", "/api/notifications/"+adminBox.Notifications[0].ID+"/read", nil, clientCookie)
	expectStatus(t, rr, http.StatusNoContent)
	rr = env.do(t, "POST", "/api/notifications/unknown/read", nil, clientCookie)
	expectStatus(t, rr, http.StatusNoContent)

	rr = env.do(t, "GET", "/api/notifications", nil, adminCookie)
	if adminBox = decodeBody[mailboxResponse](t, rr); adminBox.Unread != 1 {
		t.Errorf("expected admin notification to stay unread, got %+v", adminBox)
	}
}

// --- Session ---

// TestLoginLogout tests sign-in failures and logout.
func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/session", map[string]string{"email": "nobody@acme.test"}, nil)
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = env.do(t, "POST", "/api/session", nil, nil)
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = env.do(t, "POST", "/api/session", map[string]string{"email": clientAccount.Email, "password": "x"}, nil)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/session", map[string]string{"email": "DANA@acme.test"}, nil)
	expectStatus(t, rr, http.StatusOK)
	got := decodeBody[struct {
		Account identityJSON `json:"account"`
	}](t, rr)
	if got.Account.ID != clientAccount.ID || got.Account.Role != account.RoleClient {
		t.Errorf("unexpected account: %+v", got.Account)
	}

	cookie := env.login(t, clientAccount.Email)
	rr = env.do(t, "DELETE", "/api/session", nil, cookie)
	expectStatus(t, rr, http.StatusNoContent)
	rr = env.do(t, "GET", "/api/me/status", nil, cookie)
	expectStatus(t, rr, http.StatusUnauthorized)
}

// stubAuthenticator returns a fixed identity or error.
type stubAuthenticator struct {
	id  account.Identity
	err error
}

// Authenticate implements Authenticator for testing.
func (s stubAuthenticator) Authenticate(ctx context.Context, creds Credentials) (account.Identity, error) {
	return s.id, s.err
}

// TestLogin_AuthenticatorFailure tests that authenticator errors are not leaked.
func TestLogin_AuthenticatorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.srv.deps.Auth = stubAuthenticator{err: errors.New("directory offline at 10.0.0.5")}

	rr := env.do(t, "POST", "/api/session", map[string]string{"email": clientAccount.Email}, nil)
	expectStatus(t, rr, http.StatusInternalServerError)
	if strings.Contains(rr.Body.String(), "10.0.0.5") {
		t.Errorf("internal detail leaked: %s", rr.Body.String())
	}
}

// --- Wiring ---

// TestNewServer_RejectsShortCSRFKey tests key validation.
func TestNewServer_RejectsShortCSRFKey(t *testing.T) {
	if _, err := NewServer(Deps{}, Options{CSRFKey: []byte("short")}); err == nil {
		t.Error("expected error for short CSRF key")
	}
}

// TestServer_Headers tests that the chain sets security and request ID headers.
func TestServer_Headers(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/healthz", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	for _, h := range []string{"X-Content-Type-Options", "Content-Security-Policy", "X-Request-ID"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

// TestWriteError tests the error to status mapping.
func TestWriteError(t *testing.T) {
	quietLogs(t)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", fmt.Errorf("%w: admin only", errs.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: request r9", errs.ErrNotFound), http.StatusNotFound},
		{"transition", fmt.Errorf("%w: rejected", errs.ErrInvalidTransition), http.StatusConflict},
		{"state", fmt.Errorf("%w: pending", errs.ErrInvalidState), http.StatusConflict},
		{"action", orchestrators.ErrInvalidAction, http.StatusBadRequest},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}

	rr := httptest.NewRecorder()
	writeError(rr, errors.New("disk full"))
	if strings.Contains(rr.Body.String(), "disk") {
		t.Errorf("internal error leaked: %s", rr.Body.String())
	}
}
