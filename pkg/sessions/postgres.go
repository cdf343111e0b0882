package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/accounts"
)

// PostgresStore keeps session tokens in the session_tokens table
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a token store. db must be the primary connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Put inserts the record and sets its ID
func (s *PostgresStore) Put(ctx context.Context, t *Token) error {
	if err := prepare(t, s.now()); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO session_tokens (token, account_id, device_info, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.Token, t.AccountID, nullString(t.DeviceInfo), nullString(t.IPAddress), t.ExpiresAt, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// FindByToken loads the record with its account, role and employee profile
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	var (
		rec    Record
		device sql.NullString
		ip     sql.NullString
	)

	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.token, t.account_id, t.device_info, t.ip_address, t.expires_at, t.created_at,
			`+accounts.Columns+`
		FROM session_tokens t
		JOIN accounts a ON a.id = t.account_id
		JOIN roles r ON r.id = a.role_id
		LEFT JOIN employees e ON e.account_id = a.id
		WHERE t.token = $1`,
		token,
	)

	account, err := accounts.Scan(row,
		&rec.ID, &rec.Token.Token, &rec.AccountID, &device, &ip, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session token: %w", err)
	}

	rec.DeviceInfo = device.String
	rec.IPAddress = ip.String
	rec.Account = account
	return &rec, nil
}

// DeleteByToken removes the record if present
func (s *PostgresStore) DeleteByToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// DeleteExpired removes every record expiring at or before cutoff
func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired session tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted session tokens: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
