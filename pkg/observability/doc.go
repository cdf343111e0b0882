// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry tracing and graceful server shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account_id", 7).Info("Login succeeded")
//
// Inside a request, FromContext adds the request id, the authenticated
// account and the active trace to the logger carried in the context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("Session lookup failed")
//
// Never log passwords, password hashes or raw session tokens. Use
// auth.Fingerprint to identify a token in logs.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLogin("success")
//
// A nil *Metrics records nothing, so components accept it as optional.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # Shutdown
//
//	group := observability.NewServerGroup(logger, 30*time.Second, apiServer, healthServer)
//	group.RegisterShutdownFunc(tp.Shutdown)
//	err := group.Run(ctx) // returns after ctx is cancelled and shutdown completes
package observability
