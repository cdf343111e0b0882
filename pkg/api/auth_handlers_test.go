package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/middleware"
)

func TestLogin_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/login", `{"email":"  User@Example.com ","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.AccountID)
	assert.Equal(t, "user@example.com", body.Email)
	assert.Equal(t, auth.RoleUser, body.Role)
	assert.Equal(t, auth.StatusActive, body.Status)
	require.NotNil(t, body.Employee)
	assert.Equal(t, "Regular User", body.Employee.FullName)
	assert.NotContains(t, rec.Body.String(), "password")

	cookie := findCookie(rec, middleware.DefaultCookieName)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, middleware.CookieMaxAge, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)

	assert.Equal(t, 1, s.sessions.count())
	rec2, err := s.sessions.FindByToken(t.Context(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, rec2)
	assert.Equal(t, "warden-test", rec2.DeviceInfo)
	assert.Equal(t, "192.0.2.1", rec2.IPAddress)
}

func TestLogin_IgnoresBodyIPAddress(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"`+testPassword+`","ipAddress":"203.0.113.9"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := findCookie(rec, middleware.DefaultCookieName)
	require.NotNil(t, cookie)
	stored, err := s.sessions.FindByToken(t.Context(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "192.0.2.1", stored.IPAddress)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			body:       `{"email":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing email",
			body:       `{"password":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "email is required",
		},
		{
			name:       "invalid email",
			body:       `{"email":"nope","password":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "email must be a valid email address",
		},
		{
			name:       "unknown email",
			body:       `{"email":"nobody@example.com","password":"` + testPassword + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "wrong password",
			body:       `{"email":"user@example.com","password":"wrong"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "inactive account",
			body:       `{"email":"gone@example.com","password":"` + testPassword + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "account is not active",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rec))
			}
			assert.Nil(t, findCookie(rec, middleware.DefaultCookieName))
			assert.Zero(t, s.sessions.count())
		})
	}
}

func TestLogin_WrongMethod(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "user@example.com")

	rec := s.do(t, http.MethodPost, "/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"logged out"}`, rec.Body.String())
	assert.Zero(t, s.sessions.count())

	cleared := findCookie(rec, middleware.DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
	assert.True(t, cleared.HttpOnly)

	entries := s.audit.snapshot()
	last := entries[len(entries)-1]
	assert.Equal(t, "/auth/logout", last.URL)
	require.NotNil(t, last.AccountID)
	assert.Equal(t, int64(2), *last.AccountID)

	rec = s.do(t, http.MethodGet, "/auth/session", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	s := newTestServer(t)

	t.Run("no cookie", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/logout", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, findCookie(rec, middleware.DefaultCookieName))
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/logout", "", &http.Cookie{Name: middleware.DefaultCookieName, Value: "stale"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("twice", func(t *testing.T) {
		cookie := s.login(t, "admin@example.com")
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", "", cookie).Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", "", cookie).Code)
	})
}
