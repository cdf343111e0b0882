// Package config loads warden configuration.
//
// Values come from defaults, then an optional YAML file named by
// WARDEN_CONFIG_FILE, then WARDEN_* environment variables. Later sources win.
//
// Server settings:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_HEALTH_PORT="9090"
//	WARDEN_TRUST_PROXY="false"
//
// Storage settings:
//
//	WARDEN_DATABASE_URL="postgres://localhost/warden?sslmode=disable"
//	WARDEN_DATABASE_REPLICA_URLS="postgres://replica1/warden,postgres://replica2/warden"
//	WARDEN_SESSION_STORE="postgres"  # postgres, redis
//	WARDEN_REDIS_URL="redis://localhost:6379"
//
// Session settings:
//
//	WARDEN_TOKEN_SECRET="<at least 32 bytes>"
//	WARDEN_TOKEN_TTL="168h"
//	WARDEN_SESSION_TTL="8h"
//	WARDEN_COOKIE_SECURE="true"
//	WARDEN_SWEEP_SCHEDULE="@hourly"  # empty disables the sweeper
//
// Observability settings:
//
//	WARDEN_LOG_LEVEL="info"  # debug, info, warn, error
//	WARDEN_OTEL_ENABLED="true"
//	WARDEN_OTEL_ENDPOINT="otel-collector:4317"
//
// The equivalent YAML file:
//
//	server:
//	  port: "8080"
//	  trust_proxy: true
//	storage:
//	  postgres_url: postgres://localhost/warden
//	session:
//	  secret: change-me-change-me-change-me-32b
//	  session_ttl: 8h
package config
