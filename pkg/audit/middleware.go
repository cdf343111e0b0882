package audit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
)

const recordTimeout = 5 * time.Second

// annotation carries the account resolved by handlers further down the chain
type annotation struct {
	mu        sync.Mutex
	accountID *int64
	relevant  bool
}

type annotationKey struct{}

// Annotate records the account responsible for the current request. It is a
// no-op outside a Recorder.
func Annotate(ctx context.Context, accountID int64) {
	a, ok := ctx.Value(annotationKey{}).(*annotation)
	if !ok {
		return
	}
	a.mu.Lock()
	a.accountID = &accountID
	a.mu.Unlock()
}

// MarkRelevant forces the current request into the security log regardless
// of method, path or status. It is a no-op outside a Recorder.
func MarkRelevant(ctx context.Context) {
	a, ok := ctx.Value(annotationKey{}).(*annotation)
	if !ok {
		return
	}
	a.mu.Lock()
	a.relevant = true
	a.mu.Unlock()
}

// Recorder appends a security log entry for auth-relevant requests
type Recorder struct {
	store      Store
	metrics    *observability.Metrics
	trustProxy bool
	now        func() time.Time
}

// NewRecorder creates a recording middleware
func NewRecorder(store Store, metrics *observability.Metrics, trustProxy bool) *Recorder {
	return &Recorder{
		store:      store,
		metrics:    metrics,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

// Handler wraps an HTTP handler with security logging
func (m *Recorder) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		a := &annotation{}
		ctx := context.WithValue(r.Context(), annotationKey{}, a)

		wrapped := httputil.NewStatusRecorder(w)
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		a.mu.Lock()
		accountID := a.accountID
		relevant := a.relevant
		a.mu.Unlock()

		if !relevant && !shouldRecord(r, wrapped.Status) {
			return
		}

		entry := &Entry{
			AccountID:      accountID,
			Method:         r.Method,
			URL:            r.URL.RequestURI(),
			StatusCode:     wrapped.Status,
			IPAddress:      httputil.ClientIP(r, m.trustProxy),
			ResponseTimeMS: m.now().Sub(start).Milliseconds(),
			CreatedAt:      start,
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()

		err := m.store.Append(writeCtx, entry)
		m.metrics.RecordSecurityLogWrite(err)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Error("Failed to record security log")
		}
	})
}

// shouldRecord selects mutations, failures and auth or admin paths
func shouldRecord(r *http.Request, statusCode int) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	if statusCode >= 400 {
		return true
	}
	return isSensitivePath(r.URL.Path)
}

func isSensitivePath(path string) bool {
	return strings.HasPrefix(path, "/auth") || strings.HasPrefix(path, "/admin")
}
