// Package sessions persists issued session tokens so a signed token can be
// revoked before it expires.
//
// A token is a live session only while its record exists. Records are
// written at login, read on every guarded request and deleted at logout.
// Expired records are not swept unless a Sweeper is configured; the session
// guard deletes an expired record when it encounters one.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// ErrInvalidExpiry is returned by Put when a record would expire at or
// before its issue time
var ErrInvalidExpiry = errors.New("session expiry must be after issue time")

// Token is one issued session token record
type Token struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	AccountID  int64     `json:"account_id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the record has expired at now
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Record is a token joined with its owning account and role
type Record struct {
	Token
	Account *auth.Account
}

// Store is the token-record capability used by login, logout and the session guard
type Store interface {
	// Put persists one record. Accounts may hold any number of records.
	Put(ctx context.Context, t *Token) error
	// FindByToken returns nil, nil when no record matches
	FindByToken(ctx context.Context, token string) (*Record, error)
	// DeleteByToken is idempotent
	DeleteByToken(ctx context.Context, token string) error
	// DeleteExpired removes records expiring at or before the cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// prepare fills CreatedAt and checks the expiry invariant
func prepare(t *Token, now time.Time) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if !t.ExpiresAt.After(t.CreatedAt) {
		return ErrInvalidExpiry
	}
	return nil
}
