// Package login orchestrates the two state-changing session entry points.
//
// Login validates input, verifies credentials, issues a signed token and
// persists its record. Logout revokes the record. Credential failures
// collapse to ErrInvalidCredentials or ErrAccountInactive and never reveal
// which factor failed.
package login

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sessions"
)

// DefaultSessionTTL bounds a login session record and matches the cookie lifetime
const DefaultSessionTTL = 8 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not active")
)

// ValidationError reports malformed login input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Request is the login input. IPAddress is overwritten by the HTTP handler
// with the connection's client address; only in-process callers set it.
type Request struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
}

// Result is a successful login
type Result struct {
	Token     string
	ExpiresAt time.Time
	Account   *auth.Account
	Principal *auth.Principal
}

// Service runs login and logout
type Service struct {
	accounts   accounts.Store
	sessions   sessions.Store
	hasher     *auth.Hasher
	codec      *auth.TokenCodec
	validate   *validator.Validate
	sessionTTL time.Duration
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewService creates a login service. A zero sessionTTL uses DefaultSessionTTL.
func NewService(accountStore accounts.Store, sessionStore sessions.Store, hasher *auth.Hasher, codec *auth.TokenCodec, sessionTTL time.Duration, metrics *observability.Metrics) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return &Service{
		accounts:   accountStore,
		sessions:   sessionStore,
		hasher:     hasher,
		codec:      codec,
		validate:   validate,
		sessionTTL: sessionTTL,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for record and last-login timestamps
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login authenticates req and opens a session. Errors are a
// *ValidationError, ErrInvalidCredentials, ErrAccountInactive or an
// internal failure.
func (s *Service) Login(ctx context.Context, req Request) (*Result, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validate.Struct(req); err != nil {
		s.metrics.RecordLogin("invalid_input")
		return nil, &ValidationError{Message: formatValidationErrors(err)}
	}

	acct, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		s.metrics.RecordLogin("error")
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		s.hasher.VerifyDummy(req.Password)
		s.metrics.RecordLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(req.Password, acct.PasswordHash) {
		s.metrics.RecordLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !acct.IsActive() {
		s.metrics.RecordLogin("inactive")
		return nil, ErrAccountInactive
	}

	token, err := s.codec.Issue(auth.Claims{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role.Name,
		Status:    acct.Status,
	})
	if err != nil {
		s.metrics.RecordLogin("error")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := s.now()
	rec := &sessions.Token{
		Token:      token,
		AccountID:  acct.ID,
		DeviceInfo: req.DeviceInfo,
		IPAddress:  req.IPAddress,
		ExpiresAt:  now.Add(s.sessionTTL),
		CreatedAt:  now,
	}
	if err := s.sessions.Put(ctx, rec); err != nil {
		s.metrics.RecordLogin("error")
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"account_id": acct.ID,
		"token":      auth.Fingerprint(token),
	})
	if err := s.accounts.UpdateLastLogin(ctx, acct.ID, now); err != nil {
		logger.WithError(err).Warn("Failed to update last login")
	} else {
		acct.LastLoginAt = &now
	}

	s.metrics.RecordLogin("success")
	logger.Info("Login succeeded")

	return &Result{
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
		Account:   acct,
		Principal: auth.NewPrincipal(acct),
	}, nil
}

// Logout revokes token and reports the account it belonged to, or 0 when the
// token is unknown. An empty token is a no-op. Callers log the error and still
// report success to the client.
func (s *Service) Logout(ctx context.Context, token string) (int64, error) {
	s.metrics.RecordLogout()
	if token == "" {
		return 0, nil
	}

	var accountID int64
	rec, err := s.sessions.FindByToken(ctx, token)
	switch {
	case err != nil:
		observability.FromContext(ctx).WithError(err).
			WithField("token", auth.Fingerprint(token)).
			Warn("Failed to look up session before logout")
	case rec != nil:
		accountID = rec.AccountID
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return accountID, fmt.Errorf("failed to delete session %s: %w", auth.Fingerprint(token), err)
	}
	return accountID, nil
}

func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldError.Field()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", fieldError.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fieldError.Field()))
		}
	}
	return strings.Join(messages, "; ")
}
