package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL is the lifetime embedded in every signed token
	DefaultTokenTTL = 7 * 24 * time.Hour

	tokenIssuer = "warden"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried by a session token
type Claims struct {
	AccountID int64
	Email     string
	Role      RoleName
	Status    AccountStatus

	// Set by Issue and Verify
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the wire form. Pointer fields let Verify tell a missing
// claim from a zero value.
type tokenClaims struct {
	AccountID *int64  `json:"account_id,omitempty"`
	Email     string  `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	Status    *string `json:"status,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec signing with secret. A zero ttl uses DefaultTokenTTL.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the codec's time source
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// TTL returns the lifetime of issued tokens
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a new token for the claims. Every call embeds a fresh token id.
func (c *TokenCodec) Issue(claims Claims) (string, error) {
	if claims.AccountID == 0 || claims.Role == "" || claims.Status == "" {
		return "", fmt.Errorf("account id, role and status are required")
	}

	now := c.now()
	role := string(claims.Role)
	status := string(claims.Status)
	accountID := claims.AccountID

	wire := tokenClaims{
		AccountID: &accountID,
		Email:     claims.Email,
		Role:      &role,
		Status:    &status,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and required claims. Every failure wraps ErrInvalidToken.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	wire := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, wire,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if wire.AccountID == nil || *wire.AccountID <= 0 {
		return nil, fmt.Errorf("%w: missing account_id claim", ErrInvalidToken)
	}
	if wire.Role == nil {
		return nil, fmt.Errorf("%w: missing role claim", ErrInvalidToken)
	}
	if wire.Status == nil {
		return nil, fmt.Errorf("%w: missing status claim", ErrInvalidToken)
	}

	role, err := ParseRoleName(*wire.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	status := AccountStatus(*wire.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidToken, *wire.Status)
	}

	claims := &Claims{
		AccountID: *wire.AccountID,
		Email:     wire.Email,
		Role:      role,
		Status:    status,
		ID:        wire.ID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

// Fingerprint returns a short, non-reversible identifier for logging a token
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
