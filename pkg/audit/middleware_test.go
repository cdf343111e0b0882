package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Handler(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		recorded bool
	}{
		{"auth path", http.MethodGet, "/auth/session", http.StatusOK, true},
		{"admin path", http.MethodGet, "/admin/security-logs", http.StatusOK, true},
		{"mutation", http.MethodPost, "/app/items", http.StatusCreated, true},
		{"failure", http.MethodGet, "/app/dashboard", http.StatusNotFound, true},
		{"plain read", http.MethodGet, "/app/dashboard", http.StatusOK, false},
		{"head read", http.MethodHead, "/app/dashboard", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			handler := NewRecorder(store, nil, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(tt.method, tt.path+"?x=1", nil)
			req.RemoteAddr = "198.51.100.2:4000"
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.recorded {
				assert.Empty(t, store.entries)
				return
			}
			require.Len(t, store.entries, 1)
			entry := store.entries[0]
			assert.Equal(t, tt.method, entry.Method)
			assert.Equal(t, tt.path+"?x=1", entry.URL)
			assert.Equal(t, tt.status, entry.StatusCode)
			assert.Equal(t, "198.51.100.2", entry.IPAddress)
			assert.Nil(t, entry.AccountID)
			assert.False(t, entry.CreatedAt.IsZero())
		})
	}
}

func TestRecorder_Annotate(t *testing.T) {
	store := &fakeStore{}
	handler := NewRecorder(store, nil, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Annotate(r.Context(), 42)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	require.Len(t, store.entries, 1)
	require.NotNil(t, store.entries[0].AccountID)
	assert.Equal(t, int64(42), *store.entries[0].AccountID)
}

func TestRecorder_MarkRelevant(t *testing.T) {
	store := &fakeStore{}
	handler := NewRecorder(store, nil, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MarkRelevant(r.Context())
		http.Redirect(w, r, "/login", http.StatusFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/app/dashboard", nil))

	require.Len(t, store.entries, 1)
	assert.Equal(t, http.StatusFound, store.entries[0].StatusCode)
	assert.Equal(t, "/app/dashboard", store.entries[0].URL)
}

func TestAnnotate_OutsideRecorder(t *testing.T) {
	assert.NotPanics(t, func() { Annotate(context.Background(), 1) })
	assert.NotPanics(t, func() { MarkRelevant(context.Background()) })
}

func TestRecorder_StoreFailureDoesNotFailRequest(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	handler := NewRecorder(store, nil, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"logged out"}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"logged out"}`, w.Body.String())
}
