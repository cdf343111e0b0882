package audit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Service answers security log queries for admins
type Service struct {
	store Store
}

// NewService creates a security log query service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Query returns one page of entries matching q. A nil principal yields
// ErrUnauthenticated and a role without CapabilityReadSecurityLog yields
// ErrForbidden.
func (s *Service) Query(ctx context.Context, principal *auth.Principal, q Query) (*Page, error) {
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	if !principal.Can(auth.CapabilityReadSecurityLog) {
		return nil, ErrForbidden
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return nil, fmt.Errorf("%w: endDate is before startDate", ErrInvalidQuery)
	}

	q = q.Normalize()

	var entries []*Entry
	var total int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.Search(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Page{
		Entries:    entries,
		Pagination: NewPagination(q.Page, q.Limit, total),
	}, nil
}
