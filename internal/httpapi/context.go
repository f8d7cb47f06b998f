// Package httpapi is the HTTP surface spec.md §1 calls "a thin request
// decoder that calls core operations": it decodes requests, calls the
// engine facade, and maps engine errors to HTTP statuses (spec.md §7).
// Grounded on the teacher's pkg/web (RequestContext/Router/Middleware
// shapes) and pkg/core/request_id.go for request-scoped context values,
// adapted from fasthttp/the teacher's in-house router to the standard
// library's pattern-matching ServeMux (Go 1.22+), which is the only
// router any example in this domain's retrieval pack uses without a
// third-party dependency (the teacher's own pkg/web/router.go is a
// hand-rolled exact-match map; gorilla/mux and similar never appear
// attached to a plain-HTTP JSON API in the pack — see DESIGN.md).
package httpapi

import "context"

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retrieves the request ID attached by the requestID
// middleware, or "" if none is present.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
