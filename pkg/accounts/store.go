// Package accounts reads and updates account rows joined with their role
// and employee profile.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Store is the account lookup capability consumed by login and the session stores
type Store interface {
	// GetByEmail returns nil, nil when no account has the email
	GetByEmail(ctx context.Context, email string) (*auth.Account, error)
	// GetByID returns nil, nil when no account has the id
	GetByID(ctx context.Context, id int64) (*auth.Account, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Columns selects an account with its role and optional employee profile.
// Callers must join roles as r and left join employees as e.
const Columns = `a.id, a.email, a.password_hash, a.status, a.last_login_at, a.created_at, a.updated_at,
	r.id, r.name, r.is_system,
	e.id, e.full_name, e.position`

// Scanner is satisfied by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Scan reads one row selected with Columns. Any leading destinations are
// scanned before the account columns.
func Scan(s Scanner, leading ...interface{}) (*auth.Account, error) {
	var (
		a            auth.Account
		status       string
		roleName     string
		lastLogin    sql.NullTime
		employeeID   sql.NullInt64
		employeeName sql.NullString
		position     sql.NullString
	)

	dest := append(leading,
		&a.ID, &a.Email, &a.PasswordHash, &status, &lastLogin, &a.CreatedAt, &a.UpdatedAt,
		&a.Role.ID, &roleName, &a.Role.IsSystem,
		&employeeID, &employeeName, &position,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	role, err := auth.ParseRoleName(roleName)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", a.ID, err)
	}
	a.Role.Name = role
	a.Status = auth.AccountStatus(status)

	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	if employeeID.Valid {
		a.Employee = &auth.Employee{
			ID:       employeeID.Int64,
			FullName: employeeName.String,
			Position: position.String,
		}
	}
	return &a, nil
}

// PostgresStore implements Store over PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an account store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectAccount = `SELECT ` + Columns + `
	FROM accounts a
	JOIN roles r ON r.id = a.role_id
	LEFT JOIN employees e ON e.account_id = a.id`

// GetByEmail looks up an account by its lower-cased email
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+` WHERE a.email = $1`, strings.ToLower(email))
	return s.one(row)
}

// GetByID looks up an account by id
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+` WHERE a.id = $1`, id)
	return s.one(row)
}

func (s *PostgresStore) one(row *sql.Row) (*auth.Account, error) {
	a, err := Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}

// UpdateLastLogin records a successful login
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = $1, updated_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Create provisions an account with the named role and returns its id.
// The role must already exist.
func (s *PostgresStore) Create(ctx context.Context, email, passwordHash string, role auth.RoleName, status auth.AccountStatus) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("invalid status %q", status)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, password_hash, status, role_id)
		SELECT $1, $2, $3, r.id FROM roles r WHERE r.name = $4
		RETURNING id`,
		strings.ToLower(strings.TrimSpace(email)), passwordHash, string(status), string(role),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("role %q does not exist", role)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}
