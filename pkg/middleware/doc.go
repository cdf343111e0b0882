// Package middleware resolves the session cookie into a principal and
// gates routes on role capabilities.
//
// Guard.Resolve runs the per-request state machine and returns a Result
// tagged Authenticated or Unauthenticated. It never writes a response.
// SessionMiddleware turns the result into a response: PageMode redirects to
// the login path, APIMode answers 401 JSON. Both clear the cookie when the
// guard asks for it.
//
//	guard := middleware.NewGuard(codec, store, "auth-token", metrics)
//	api := middleware.NewSessionMiddleware(guard, middleware.APIMode, "", secure)
//	admin.Use(api.Handler, middleware.RequireCapability(auth.CapabilityReadSecurityLog))
//
// RequireCapability answers 403 for an authenticated principal whose role
// lacks the capability. Forbidden requests are never redirected.
package middleware
