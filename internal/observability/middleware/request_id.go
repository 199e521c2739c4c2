package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is the wire header carrying the request ID in and out.
const requestIDHeader = "X-Request-ID"

// RequestIDContextKey is a context key for storing request IDs.
type RequestIDContextKey struct{}

// getRequestID reads the request ID from the inbound header or context,
// generating one when the client sent none.
func getRequestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); id != "" {
		return id
	}
	if id, ok := r.Context().Value(RequestIDContextKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// RequestIDGeneration resolves the request ID and stores it in the request
// context for downstream handlers.
func RequestIDGeneration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), RequestIDContextKey{}, getRequestID(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDPropagation propagates the request ID to external consumers: the
// response header for client correlation, and the request log attributes.
func RequestIDPropagation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID, ok := r.Context().Value(RequestIDContextKey{}).(string); ok && requestID != "" {
			// Set early so the header survives recovery scenarios.
			w.Header().Set(requestIDHeader, requestID)

			SetLogAttrs(r.Context(), slog.String("request_id", requestID))
		}

		next.ServeHTTP(w, r)
	})
}
