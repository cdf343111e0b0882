// Package audit records and queries the security log.
//
// # Recording
//
// Recorder wraps the router and appends one Entry per auth-relevant request:
// every mutation, every response with status >= 400 and anything under /auth
// or /admin. Handlers that resolve an account call Annotate so the entry is
// attributed to it. Failed writes are logged and never fail the request.
//
//	recorder := audit.NewRecorder(store, metrics, trustProxy)
//	handler := recorder.Handler(router)
//
// # Querying
//
// Only principals whose role grants auth.CapabilityReadSecurityLog may read
// entries. Results are newest first with offset pagination:
//
//	page, err := service.Query(ctx, principal, audit.Query{
//		StatusCode: &status,
//		IP:         "10.0.",
//		Page:       2,
//		Limit:      25,
//	})
//	// page.Pagination.Pages == ceil(total / limit)
//
// Entries are append-only. Nothing in this package updates or deletes them.
package audit
