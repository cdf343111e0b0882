package audit

import (
	"errors"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	// ErrUnauthenticated is returned when no principal is resolved
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the principal's role cannot read security logs
	ErrForbidden = errors.New("insufficient permissions")
	// ErrInvalidQuery is returned for malformed filters or pagination
	ErrInvalidQuery = errors.New("invalid query")
)

// Entry is one append-only security log record
type Entry struct {
	ID             int64     `json:"id"`
	AccountID      *int64    `json:"account_id,omitempty"`
	Method         string    `json:"method"`
	URL            string    `json:"url"`
	StatusCode     int       `json:"status_code"`
	IPAddress      string    `json:"ip_address,omitempty"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Query filters and paginates security log reads.
// Nil or empty filters match everything.
type Query struct {
	StatusCode *int
	IP         string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

// Normalize applies the default page and limit and caps the limit
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Offset returns the row offset of the normalized page
func (q Query) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.Limit
}

// Pagination describes where a page sits in the full result set
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination computes pages as ceil(total/limit)
func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// Page is one page of security log entries
type Page struct {
	Entries    []*Entry   `json:"entries"`
	Pagination Pagination `json:"pagination"`
}
