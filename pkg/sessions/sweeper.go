package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Sweeper periodically deletes expired token records on a cron schedule.
// It is off unless a schedule is configured.
type Sweeper struct {
	store   Store
	cron    *cron.Cron
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewSweeper schedules a sweep of store. schedule uses standard five-field cron syntax.
func NewSweeper(store Store, schedule string, logger *observability.Logger, metrics *observability.Metrics) (*Sweeper, error) {
	s := &Sweeper{
		store:   store,
		cron:    cron.New(),
		logger:  logger.WithField("component", "session_sweeper"),
		metrics: metrics,
		timeout: 30 * time.Second,
		now:     time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Session sweeper started")
}

// Stop waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	defer observability.RecoverPanic(s.logger, "session sweep")

	if _, err := s.Sweep(context.Background()); err != nil {
		s.logger.WithError(err).Error("Session sweep failed")
	}
}

// Sweep deletes expired records once and returns how many were removed
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.metrics.RecordTokensSwept(n)
	if n > 0 {
		s.logger.WithField("deleted", n).Info("Swept expired session tokens")
	}
	return n, nil
}
