// Package api wires the warden HTTP surface.
//
// # Routes
//
//	POST /auth/login             set the auth-token cookie
//	POST /auth/logout            revoke the session, clear the cookie, always 200
//	GET  /auth/session           current principal (401 when unauthenticated)
//	GET  /admin/security-logs    admin only, paginated and filtered
//	     /app/...                pages, unauthenticated callers are redirected to the login path
//
// Every request passes through request id, panic recovery, access logging,
// body size limits, security log recording and tracing. Route metrics use
// the mux path template as the label.
//
// # Usage Example
//
//	server := api.NewServer(api.Options{
//		CookieSecure: true,
//		TrustProxy:   true,
//	}, api.Deps{
//		Login:    loginService,
//		Guard:    guard,
//		Audit:    auditService,
//		Recorder: recorder,
//		Metrics:  metrics,
//		Logger:   logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
