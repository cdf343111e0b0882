package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sessions"
)

// Outcome is the result of resolving a request's session
type Outcome int

const (
	Unauthenticated Outcome = iota
	Authenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unauthenticated"
	}
}

// Reasons reported with an Unauthenticated outcome
const (
	ReasonNoCookie       = "no_cookie"
	ReasonInvalidToken   = "invalid_token"
	ReasonUnknownToken   = "unknown_token"
	ReasonExpired        = "expired"
	ReasonInactive       = "inactive"
	ReasonAccountChanged = "account_mismatch"
)

// Result describes how a request's session resolved. The transport decides
// whether to redirect or respond.
type Result struct {
	Outcome     Outcome
	Principal   *auth.Principal
	Reason      string
	ClearCookie bool
}

func unauthenticated(reason string, clear bool) Result {
	return Result{Outcome: Unauthenticated, Reason: reason, ClearCookie: clear}
}

// Guard resolves the session cookie of a request into a principal
type Guard struct {
	codec      *auth.TokenCodec
	store      sessions.Store
	cookieName string
	now        func() time.Time
	metrics    *observability.Metrics
}

// NewGuard creates a guard reading the named cookie
func NewGuard(codec *auth.TokenCodec, store sessions.Store, cookieName string, metrics *observability.Metrics) *Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Guard{
		codec:      codec,
		store:      store,
		cookieName: cookieName,
		now:        time.Now,
		metrics:    metrics,
	}
}

// WithClock overrides the clock used for record expiry
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Resolve inspects the session cookie. The error is reserved for internal
// failures such as an unreachable store.
func (g *Guard) Resolve(r *http.Request) (Result, error) {
	result, err := g.resolve(r)
	if err != nil {
		g.metrics.RecordSessionCheck("error", "internal")
		return Result{}, err
	}
	g.metrics.RecordSessionCheck(result.Outcome.String(), result.Reason)
	return result, nil
}

func (g *Guard) resolve(r *http.Request) (Result, error) {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return unauthenticated(ReasonNoCookie, false), nil
	}
	token := cookie.Value

	claims, err := g.codec.Verify(token)
	if err != nil {
		return unauthenticated(ReasonInvalidToken, true), nil
	}

	ctx := r.Context()
	rec, err := g.store.FindByToken(ctx, token)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up session: %w", err)
	}
	if rec == nil || rec.Account == nil {
		return unauthenticated(ReasonUnknownToken, true), nil
	}

	if rec.Expired(g.now()) {
		if err := g.store.DeleteByToken(ctx, token); err != nil {
			observability.FromContext(ctx).WithError(err).
				WithField("token", auth.Fingerprint(token)).
				Warn("Failed to delete expired session")
		}
		return unauthenticated(ReasonExpired, true), nil
	}

	if rec.Account.ID != claims.AccountID || rec.AccountID != claims.AccountID {
		return unauthenticated(ReasonAccountChanged, true), nil
	}

	if !rec.Account.IsActive() {
		return unauthenticated(ReasonInactive, true), nil
	}

	return Result{
		Outcome:   Authenticated,
		Principal: auth.NewPrincipal(rec.Account),
	}, nil
}

// Mode selects how a SessionMiddleware answers unauthenticated requests
type Mode int

const (
	// APIMode responds 401 JSON
	APIMode Mode = iota
	// PageMode redirects to the login path
	PageMode
)

// SessionMiddleware guards routes with the session cookie
type SessionMiddleware struct {
	guard     *Guard
	mode      Mode
	loginPath string
	secure    bool
}

// NewSessionMiddleware creates a guard middleware. loginPath is only used in PageMode.
func NewSessionMiddleware(guard *Guard, mode Mode, loginPath string, secureCookie bool) *SessionMiddleware {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &SessionMiddleware{
		guard:     guard,
		mode:      mode,
		loginPath: loginPath,
		secure:    secureCookie,
	}
}

// Handler wraps an HTTP handler with session resolution
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := m.guard.Resolve(r)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("Session resolution failed")
			httputil.WriteInternalError(w)
			return
		}

		if result.Outcome != Authenticated {
			if result.Reason != ReasonNoCookie {
				audit.MarkRelevant(r.Context())
			}
			if result.ClearCookie {
				ClearSessionCookie(w, m.guard.cookieName, m.secure)
			}
			if m.mode == PageMode {
				http.Redirect(w, r, m.loginPath, http.StatusFound)
				return
			}
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		audit.Annotate(r.Context(), result.Principal.AccountID)
		ctx := contextkeys.WithPrincipal(r.Context(), result.Principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability rejects principals whose role lacks the capability.
// A missing principal is 401; an insufficient role is 403 and never redirected.
func RequireCapability(c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Authorize(contextkeys.GetPrincipal(r.Context()), c) {
			case Unauthenticated:
				httputil.WriteUnauthorized(w, "authentication required")
			case Forbidden:
				httputil.WriteForbidden(w, "insufficient permissions")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Authorize maps a principal and capability onto an outcome without a request
func Authorize(p *auth.Principal, c auth.Capability) Outcome {
	switch {
	case p == nil:
		return Unauthenticated
	case !p.Can(c):
		return Forbidden
	default:
		return Authenticated
	}
}
