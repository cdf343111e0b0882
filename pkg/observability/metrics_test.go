package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordLogin("success")
	m.RecordSessionCheck("authenticated", "")
	m.RecordLogout()
	m.RecordTokensSwept(3)
	m.RecordSecurityLogWrite(nil)
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLogin("success")
	m.RecordLogin("invalid_credentials")
	m.RecordLogin("invalid_credentials")
	m.RecordSessionCheck("unauthenticated", "expired")
	m.RecordLogout()
	m.RecordTokensSwept(0)
	m.RecordTokensSwept(5)
	m.RecordSecurityLogWrite(nil)
	m.RecordSecurityLogWrite(errors.New("insert failed"))

	if got := testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("invalid_credentials")); got != 2 {
		t.Errorf("Expected 2 invalid credential attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionChecksTotal.WithLabelValues("unauthenticated", "expired")); got != 1 {
		t.Errorf("Expected 1 expired session check, got %v", got)
	}
	if got := testutil.ToFloat64(m.LogoutsTotal); got != 1 {
		t.Errorf("Expected 1 logout, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokensSweptTotal); got != 5 {
		t.Errorf("Expected 5 swept tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.SecurityLogWritesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 failed security log write, got %v", got)
	}
}

func TestHTTPMetricsMiddleware_RouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/secret-value", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")); got != 1 {
		t.Errorf("Expected request labelled with route template, got %v", got)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	called := false
	handler := HTTPMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("Expected the wrapped handler to run")
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordLogout()

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "warden_logouts_total 1") {
		t.Errorf("Expected logout counter in output, got:\n%s", rec.Body.String())
	}
}
