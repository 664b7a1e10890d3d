// Package middleware provides HTTP middleware shared by the service binaries.
package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id between services.
const RequestIDHeader = "X-Request-Id"

type contextKey struct{}

// RequestID assigns each request a correlation id, reusing one supplied by the
// caller when present, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	})
}

// RequestIDFromContext retrieves the correlation id stored by RequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}

// Logging logs one line per request, tagged with the correlation id.
func Logging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := RequestIDFromContext(r.Context())
			logger.Printf("%s %s (request_id=%s)", r.Method, r.URL.Path, id)
			next.ServeHTTP(w, r)
		})
	}
}
