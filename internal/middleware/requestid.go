// Package middleware provides HTTP middleware for the sync service API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is read from the request and echoed on the response.
const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID tags every request with an ID for log correlation. A
// caller-supplied X-Request-ID is kept, so the same ID can follow a sync
// trigger from an upstream dashboard through to the per-table log lines;
// without one a fresh UUID is issued. The ID is echoed on the response and
// stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request's ID, or the empty string
// outside the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
