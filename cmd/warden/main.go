package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/login"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sessions"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/postgres"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file (overrides WARDEN_CONFIG_FILE)")
	migrateOnly := flag.Bool("migrate-only", false, "Apply database migrations and exit")
	logLevel := flag.String("bootstrap-log-level", "info", "Log level for startup messages (debug, info, warn, error)")
	flag.Parse()

	bootLog := setupLogger(*logLevel)

	if *configFile != "" {
		if err := os.Setenv("WARDEN_CONFIG_FILE", *configFile); err != nil {
			bootLog.Fatalf("Failed to set config file: %v", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog.Fatalf("Failed to load configuration: %v", err)
	}
	bootLog.WithFields(logrus.Fields{
		"port":          cfg.Server.Port,
		"health_port":   cfg.Server.HealthPort,
		"session_store": cfg.Storage.SessionBackend,
		"replicas":      len(cfg.Storage.PostgresReplicaURLs),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrateOnly); err != nil {
		bootLog.Fatalf("warden exited: %v", err)
	}
	bootLog.Info("warden stopped")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func run(ctx context.Context, cfg *config.Config, migrateOnly bool) error {
	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: cfg.Storage.PostgresReplicaURLs,
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
		MaxLifetime: cfg.Storage.PostgresMaxLifetime,
		MaxIdleTime: cfg.Storage.PostgresMaxIdleTime,
	}, logger)
	if err != nil {
		return err
	}
	defer cm.Close()

	if err := postgres.RunMigrations(ctx, cm.Primary(), logger); err != nil {
		return err
	}
	if migrateOnly {
		logger.Info("Migrations applied")
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	accountStore := accounts.NewPostgresStore(cm.Primary())
	hasher := auth.NewHasher(cfg.Session.BcryptCost)

	var redisClient *redis.Client
	var sessionStore sessions.Store
	switch cfg.Storage.SessionBackend {
	case storage.SessionBackendRedis:
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		sessionStore = sessions.NewRedisStore(redisClient, accountStore)
	default:
		sessionStore = sessions.NewPostgresStore(cm.Primary())
	}

	if cfg.Session.AdminEmail != "" {
		if err := ensureAdmin(ctx, accountStore, hasher, cfg.Session.AdminEmail, cfg.Session.AdminPassword, logger); err != nil {
			return err
		}
	}

	codec, err := auth.NewTokenCodec(cfg.Session.Secret, cfg.Session.TokenTTL)
	if err != nil {
		return err
	}

	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	auditStore := audit.NewPostgresStore(cm.Primary()).WithReader(cm.Replica)
	server := api.NewServer(api.Options{
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		LoginPath:    cfg.Session.LoginPath,
		TrustProxy:   cfg.Server.TrustProxy,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, api.Deps{
		Login:    login.NewService(accountStore, sessionStore, hasher, codec, cfg.Session.SessionTTL, metrics),
		Guard:    middleware.NewGuard(codec, sessionStore, cfg.Session.CookieName, metrics),
		Audit:    audit.NewService(auditStore),
		Recorder: audit.NewRecorder(auditStore, metrics, cfg.Server.TrustProxy),
		Metrics:  metrics,
		Logger:   logger,
	})

	checker := observability.NewHealthChecker(cm.Primary(), redisClient)
	if redisClient != nil {
		checker.RequireRedis()
	}
	if len(cfg.Storage.PostgresReplicaURLs) > 0 {
		checker.WithOptionalCheck("replicas", cm.CheckReplicas)
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group := observability.NewServerGroup(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)

	if cfg.Session.SweepSchedule != "" {
		sweeper, err := sessions.NewSweeper(sessionStore, cfg.Session.SweepSchedule, logger, metrics)
		if err != nil {
			return err
		}
		sweeper.Start()
		group.RegisterShutdownFunc(sweeper.Stop)
	}
	if tp != nil {
		group.RegisterShutdownFunc(tp.Shutdown)
	}

	if len(cfg.Storage.PostgresReplicaURLs) > 0 {
		cm.StartReplicaMonitor(ctx, 30*time.Second)
	}

	logger.WithField("addr", apiServer.Addr).Info("Starting warden")
	return group.Run(ctx)
}

// ensureAdmin creates the bootstrap admin account unless the email is taken
func ensureAdmin(ctx context.Context, store *accounts.PostgresStore, hasher *auth.Hasher, email, password string, logger *observability.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	id, err := store.Create(ctx, email, hash, auth.RoleAdmin, auth.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.WithField("account_id", id).Info("Created bootstrap admin account")
	return nil
}
