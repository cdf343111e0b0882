// Package storage holds connection settings and client constructors shared by
// warden's persistence layers.
//
// # Overview
//
// Durable state lives in PostgreSQL: accounts and roles, session token
// records and the security log. Redis is optional and serves as an
// alternative session token backend (see sessions.RedisStore).
//
// Connections are constructed once in cmd/warden and passed into every store
// explicitly; nothing in warden holds a package-level connection.
//
//	cfg := storage.DefaultConfig()
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{PrimaryURL: cfg.PostgresURL}, logger)
//	rdb, err := storage.NewRedisClient(cfg)
//
// # Subpackages
//
//   - postgres: primary/replica connection manager and schema bootstrap
package storage
