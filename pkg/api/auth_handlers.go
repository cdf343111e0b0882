package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/login"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
)

// AuthHandlers handles login and logout
type AuthHandlers struct {
	service *login.Service
	opts    Options
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(service *login.Service, opts Options) *AuthHandlers {
	return &AuthHandlers{service: service, opts: opts}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	AccountID int64              `json:"accountId"`
	Email     string             `json:"email"`
	Status    auth.AccountStatus `json:"status"`
	Role      auth.RoleName      `json:"role"`
	Employee  *auth.Employee     `json:"employee,omitempty"`
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req login.Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.DeviceInfo == "" {
		req.DeviceInfo = r.UserAgent()
	}
	// the recorded address always comes from the connection, never the body
	req.IPAddress = httputil.ClientIP(r, h.opts.TrustProxy)

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		var verr *login.ValidationError
		switch {
		case errors.As(err, &verr):
			httputil.WriteBadRequest(w, verr.Message)
		case errors.Is(err, login.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, login.ErrInvalidCredentials.Error())
		case errors.Is(err, login.ErrAccountInactive):
			httputil.WriteUnauthorized(w, login.ErrAccountInactive.Error())
		default:
			observability.FromContext(r.Context()).WithError(err).Error("Login failed")
			httputil.WriteInternalError(w)
		}
		return
	}

	audit.Annotate(r.Context(), result.Account.ID)
	middleware.SetSessionCookie(w, h.opts.CookieName, result.Token, h.opts.CookieSecure)
	httputil.WriteSuccess(w, LoginResponse{
		AccountID: result.Account.ID,
		Email:     result.Account.Email,
		Status:    result.Account.Status,
		Role:      result.Account.Role.Name,
		Employee:  result.Account.Employee,
	})
}

// logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.opts.CookieName); err == nil && cookie.Value != "" {
		accountID, err := h.service.Logout(r.Context(), cookie.Value)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("Logout could not revoke session")
		}
		if accountID != 0 {
			audit.Annotate(r.Context(), accountID)
		}
	}

	middleware.ClearSessionCookie(w, h.opts.CookieName, h.opts.CookieSecure)
	httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
}
