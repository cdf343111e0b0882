package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns warden's schema migrations in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles and accounts tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL UNIQUE,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
					role_id BIGINT NOT NULL REFERENCES roles(id),
					last_login_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (email = LOWER(email))
				);

				CREATE TABLE IF NOT EXISTS employees (
					id BIGSERIAL PRIMARY KEY,
					account_id BIGINT UNIQUE REFERENCES accounts(id) ON DELETE SET NULL,
					full_name VARCHAR(255) NOT NULL,
					position VARCHAR(255)
				);

				CREATE INDEX IF NOT EXISTS idx_accounts_role_id ON accounts(role_id);
			`,
		},
		{
			Version:     2,
			Description: "Seed system roles",
			SQL: `
				INSERT INTO roles (name, is_system) VALUES ('admin', TRUE), ('user', TRUE)
				ON CONFLICT (name) DO NOTHING;
			`,
		},
		{
			Version:     3,
			Description: "Create session_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS session_tokens (
					id BIGSERIAL PRIMARY KEY,
					token TEXT NOT NULL UNIQUE,
					account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					device_info TEXT,
					ip_address VARCHAR(45),
					expires_at TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (expires_at > created_at)
				);

				CREATE INDEX IF NOT EXISTS idx_session_tokens_account_id ON session_tokens(account_id);
				CREATE INDEX IF NOT EXISTS idx_session_tokens_expires_at ON session_tokens(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create security_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS security_logs (
					id BIGSERIAL PRIMARY KEY,
					account_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
					method VARCHAR(16) NOT NULL,
					url TEXT NOT NULL,
					status_code INTEGER NOT NULL,
					ip_address VARCHAR(45),
					response_time_ms BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_security_logs_created_at ON security_logs(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_security_logs_status_code ON security_logs(status_code);
				CREATE INDEX IF NOT EXISTS idx_security_logs_account_id ON security_logs(account_id);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in warden_migrations.
// Each migration runs in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS warden_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM warden_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     m.Version,
			"description": m.Description,
		})
		log.Info("Applying migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO warden_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
