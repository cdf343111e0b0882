package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ServerGroup runs several HTTP servers together. When ctx is cancelled or
// any server fails, every server is shut down gracefully and the registered
// shutdown functions run.
type ServerGroup struct {
	logger          *Logger
	servers         []*http.Server
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// NewServerGroup creates a server group. A zero timeout means 30 seconds.
func NewServerGroup(logger *Logger, timeout time.Duration, servers ...*http.Server) *ServerGroup {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ServerGroup{
		logger:          logger,
		servers:         servers,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call after the servers stop
func (g *ServerGroup) RegisterShutdownFunc(fn ShutdownFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdownFuncs = append(g.shutdownFuncs, fn)
}

// Run blocks until ctx is done or a server fails, then shuts everything down
func (g *ServerGroup) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	for _, srv := range g.servers {
		srv := srv
		eg.Go(func() error {
			g.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		return g.shutdown()
	})

	return eg.Wait()
}

func (g *ServerGroup) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()

	g.logger.Info("Starting graceful shutdown")

	var errs []error
	for _, srv := range g.servers {
		if err := srv.Shutdown(ctx); err != nil {
			g.logger.WithError(err).WithField("addr", srv.Addr).Error("HTTP server shutdown error")
			errs = append(errs, err)
		}
	}

	g.mu.Lock()
	funcs := g.shutdownFuncs
	g.mu.Unlock()

	for i, fn := range funcs {
		if err := fn(ctx); err != nil {
			g.logger.WithError(err).Errorf("Shutdown function %d failed", i)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	g.logger.Info("Graceful shutdown complete")
	return nil
}
