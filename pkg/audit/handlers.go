package audit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
)

const dateLayout = "2006-01-02"

// Handlers provides the HTTP API for security logs
type Handlers struct {
	service *Service
}

// NewHandlers creates new security log handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers security log routes. The router is expected to
// run the API session guard first.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/security-logs", h.listSecurityLogs).Methods(http.MethodGet)
}

// listSecurityLogs handles GET /admin/security-logs
func (h *Handlers) listSecurityLogs(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.service.Query(r.Context(), contextkeys.GetPrincipal(r.Context()), q)
	switch {
	case err == nil:
		httputil.WriteSuccess(w, page)
	case errors.Is(err, ErrUnauthenticated):
		httputil.WriteUnauthorized(w, ErrUnauthenticated.Error())
	case errors.Is(err, ErrForbidden):
		httputil.WriteForbidden(w, ErrForbidden.Error())
	case errors.Is(err, ErrInvalidQuery):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Security log query failed")
		httputil.WriteInternalError(w)
	}
}

// ParseQuery reads page, limit, status, ip, startDate and endDate from the URL
func ParseQuery(r *http.Request) (Query, error) {
	var q Query
	var err error

	if q.Page, err = httputil.ParseQueryInt(r, "page", DefaultPage); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if q.Page < 1 {
		return q, fmt.Errorf("%w: page must be at least 1", ErrInvalidQuery)
	}

	if q.Limit, err = httputil.ParseQueryInt(r, "limit", DefaultLimit); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, MaxLimit)
	}

	if s := httputil.ParseQueryString(r, "status", ""); s != "" {
		code, err := strconv.Atoi(s)
		if err != nil || code < 100 || code > 599 {
			return q, fmt.Errorf("%w: status must be an HTTP status code", ErrInvalidQuery)
		}
		q.StatusCode = &code
	}

	q.IP = httputil.ParseQueryString(r, "ip", "")

	if s := httputil.ParseQueryString(r, "startDate", ""); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return q, fmt.Errorf("%w: startDate: %v", ErrInvalidQuery, err)
		}
		q.StartDate = &t
	}

	if s := httputil.ParseQueryString(r, "endDate", ""); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return q, fmt.Errorf("%w: endDate: %v", ErrInvalidQuery, err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		q.EndDate = &t
	}

	return q, nil
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC3339
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return t, false, nil
}
