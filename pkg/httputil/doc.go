// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// Every error body has the shape {"error": "..."}:
//
//	httputil.WriteBadRequest(w, "email must be a valid email address")
//	httputil.WriteUnauthorized(w, "invalid credentials")
//	httputil.WriteForbidden(w, "insufficient permissions")
//	httputil.WriteInternalError(w) // never includes the cause
//
// # Request Parsing
//
//	var req LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	page, err := httputil.ParseQueryInt(r, "page", 1)
//	ip := httputil.ClientIP(r, trustProxy)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
