package api

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/login"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
)

// Options configures the HTTP surface
type Options struct {
	CookieName   string
	CookieSecure bool
	LoginPath    string
	TrustProxy   bool
	MaxBodyBytes int64
}

// Deps are the services the server routes to
type Deps struct {
	Login    *login.Service
	Guard    *middleware.Guard
	Audit    *audit.Service
	Recorder *audit.Recorder
	Metrics  *observability.Metrics
	Logger   *observability.Logger

	// Pages is mounted under /app behind the redirecting guard. Nil serves
	// the current principal.
	Pages http.Handler
}

// Server represents our API server
type Server struct {
	opts    Options
	deps    Deps
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(opts Options, deps Deps) *Server {
	if opts.CookieName == "" {
		opts.CookieName = middleware.DefaultCookieName
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	if deps.Pages == nil {
		deps.Pages = http.HandlerFunc(currentPrincipal)
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	var h http.Handler = s.router
	if deps.Recorder != nil {
		h = deps.Recorder.Handler(h)
	}
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)(h)
	s.handler = observability.TraceHandler(s.handler, "warden")

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))

	apiGuard := middleware.NewSessionMiddleware(s.deps.Guard, middleware.APIMode, s.opts.LoginPath, s.opts.CookieSecure)
	pageGuard := middleware.NewSessionMiddleware(s.deps.Guard, middleware.PageMode, s.opts.LoginPath, s.opts.CookieSecure)

	authHandlers := NewAuthHandlers(s.deps.Login, s.opts)
	authHandlers.RegisterRoutes(s.router)

	s.router.Handle("/auth/session", apiGuard.Handler(http.HandlerFunc(currentPrincipal))).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(apiGuard.Handler, middleware.RequireCapability(auth.CapabilityReadSecurityLog))
	audit.NewHandlers(s.deps.Audit).RegisterRoutes(admin)

	pages := s.router.PathPrefix("/app").Subrouter()
	pages.Use(pageGuard.Handler)
	pages.PathPrefix("").Handler(s.deps.Pages)
}

// Router exposes the route table, e.g. for listing routes in tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type principalResponse struct {
	AccountID    int64              `json:"accountId"`
	Email        string             `json:"email"`
	Role         auth.RoleName      `json:"role"`
	Status       auth.AccountStatus `json:"status"`
	Capabilities []auth.Capability  `json:"capabilities"`
}

func newPrincipalResponse(p *auth.Principal) principalResponse {
	return principalResponse{
		AccountID:    p.AccountID,
		Email:        p.Email,
		Role:         p.Role,
		Status:       p.Status,
		Capabilities: p.Role.Capabilities(),
	}
}

// currentPrincipal handles GET /auth/session
func currentPrincipal(w http.ResponseWriter, r *http.Request) {
	p := contextkeys.GetPrincipal(r.Context())
	if p == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, newPrincipalResponse(p))
}
