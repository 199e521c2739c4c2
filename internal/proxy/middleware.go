package proxy

import (
	"fmt"
	"net/http"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// Recovery recovers from panics in HTTP handlers and returns a 500
// proxy_error to the client. Faults the translation layer deliberately does
// not defend against (a backend contract violation like a choiceless 2xx
// reply) land here. Panics after streaming has begun cannot produce a clean
// error body; the write below then fails silently against committed headers.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				writeJSONError(r.Context(), w, anthropicadapter.NewProxyError(
					http.StatusInternalServerError,
					fmt.Sprintf("internal fault: %v", v),
				))
				// Logging of panics is handled in Logging middleware
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimit enforces maximum request body size.
// Handlers that read the body will receive *http.MaxBytesError when the limit is exceeded.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// applyMiddlewares applies middlewares to a handler in the order they appear.
// The first middleware in the slice is the outermost (executes first).
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
