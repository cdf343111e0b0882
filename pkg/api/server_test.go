package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/login"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sessions"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse battery staple"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return nil
}

// memSessions joins token records with memAccounts like the SQL store does
type memSessions struct {
	mu       sync.Mutex
	accounts *memAccounts
	tokens   map[string]sessions.Token
}

func (m *memSessions) Put(ctx context.Context, t *sessions.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Token] = *t
	return nil
}

func (m *memSessions) FindByToken(ctx context.Context, token string) (*sessions.Record, error) {
	m.mu.Lock()
	t, ok := m.tokens[token]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	acct, err := m.accounts.GetByID(ctx, t.AccountID)
	if err != nil || acct == nil {
		return nil, err
	}
	return &sessions.Record{Token: t, Account: acct}, nil
}

func (m *memSessions) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *memSessions) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type memAudit struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (m *memAudit) Append(ctx context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) Search(ctx context.Context, q audit.Query) ([]*audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*audit.Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
	}
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memAudit) Count(ctx context.Context, q audit.Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *memAudit) snapshot() []*audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Entry(nil), m.entries...)
}

type testServer struct {
	*Server
	accounts *memAccounts
	sessions *memSessions
	audit    *memAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hasher := auth.NewHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	accts := &memAccounts{accounts: map[string]*auth.Account{
		"admin@example.com": {
			ID: 1, Email: "admin@example.com", PasswordHash: hash, Status: auth.StatusActive,
			Role: auth.Role{ID: 1, Name: auth.RoleAdmin, IsSystem: true},
		},
		"user@example.com": {
			ID: 2, Email: "user@example.com", PasswordHash: hash, Status: auth.StatusActive,
			Role:     auth.Role{ID: 2, Name: auth.RoleUser},
			Employee: &auth.Employee{ID: 20, FullName: "Regular User"},
		},
		"gone@example.com": {
			ID: 3, Email: "gone@example.com", PasswordHash: hash, Status: auth.StatusInactive,
			Role: auth.Role{ID: 2, Name: auth.RoleUser},
		},
	}}
	store := &memSessions{accounts: accts, tokens: map[string]sessions.Token{}}
	auditStore := &memAudit{}

	codec, err := auth.NewTokenCodec(testSecret, auth.DefaultTokenTTL)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	srv := NewServer(Options{}, Deps{
		Login:    login.NewService(accts, store, hasher, codec, 0, nil),
		Guard:    middleware.NewGuard(codec, store, "", nil),
		Audit:    audit.NewService(auditStore),
		Recorder: audit.NewRecorder(auditStore, nil, false),
		Logger:   logger,
	})

	return &testServer{Server: srv, accounts: accts, sessions: store, audit: auditStore}
}

func (s *testServer) do(t *testing.T, method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "warden-test")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := findCookie(rec, middleware.DefaultCookieName)
	require.NotNil(t, c)
	return c
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestServer_SessionEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", decodeError(t, rec))

	cookie := s.login(t, "user@example.com")
	rec = s.do(t, http.MethodGet, "/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body principalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.AccountID)
	assert.Equal(t, auth.RoleUser, body.Role)
	assert.Equal(t, []auth.Capability{auth.CapabilityViewSession}, body.Capabilities)
}

func TestServer_SessionEndpointClearsBadCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/session", "", &http.Cookie{Name: middleware.DefaultCookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cleared := findCookie(rec, middleware.DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestServer_SecurityLogs(t *testing.T) {
	s := newTestServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/admin/security-logs", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin", func(t *testing.T) {
		cookie := s.login(t, "user@example.com")
		rec := s.do(t, http.MethodGet, "/admin/security-logs", "", cookie)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient permissions", decodeError(t, rec))
	})

	t.Run("admin", func(t *testing.T) {
		cookie := s.login(t, "admin@example.com")
		rec := s.do(t, http.MethodGet, "/admin/security-logs?page=1&limit=2", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page audit.Page
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Equal(t, 1, page.Pagination.Page)
		assert.Equal(t, 2, page.Pagination.Limit)
		assert.LessOrEqual(t, len(page.Entries), 2)
		assert.Positive(t, page.Pagination.Total)
	})

	t.Run("invalid query", func(t *testing.T) {
		cookie := s.login(t, "admin@example.com")
		rec := s.do(t, http.MethodGet, "/admin/security-logs?limit=500", "", cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_PagesRedirectToLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/app/dashboard", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	cookie := s.login(t, "user@example.com")
	rec = s.do(t, http.MethodGet, "/app/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RejectedPageSessionsAreRecorded(t *testing.T) {
	s := newTestServer(t)

	cookie := s.login(t, "user@example.com")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", "", cookie).Code)
	before := len(s.audit.snapshot())

	rec := s.do(t, http.MethodGet, "/app/dashboard", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/app/dashboard", "", &http.Cookie{Name: middleware.DefaultCookieName, Value: "forged"})
	assert.Equal(t, http.StatusFound, rec.Code)

	entries := s.audit.snapshot()[before:]
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "/app/dashboard", e.URL)
		assert.Equal(t, http.StatusFound, e.StatusCode)
		assert.Nil(t, e.AccountID)
	}
}

func TestServer_AnonymousPageVisitNotRecorded(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/app/dashboard", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Empty(t, s.audit.snapshot())
}

func TestServer_RecordsSecurityLog(t *testing.T) {
	s := newTestServer(t)

	s.login(t, "admin@example.com")
	s.do(t, http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"nope"}`)

	entries := s.audit.snapshot()
	require.Len(t, entries, 2)

	assert.Equal(t, "/auth/login", entries[0].URL)
	assert.Equal(t, http.StatusOK, entries[0].StatusCode)
	require.NotNil(t, entries[0].AccountID)
	assert.Equal(t, int64(1), *entries[0].AccountID)

	assert.Equal(t, http.StatusUnauthorized, entries[1].StatusCode)
	assert.Nil(t, entries[1].AccountID)
}

func TestServer_RequestIDEchoed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/session", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	entries := s.audit.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusNotFound, entries[0].StatusCode)
}
