package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes the wire error shape with its resolved HTTP status:
// the backend's passed-through status when one is set, otherwise the status
// implied by the error type.
func writeJSONError(ctx context.Context, w http.ResponseWriter, errResp *anthropicadapter.ErrorResponse) {
	writeJSON(ctx, w, errResp, errResp.HTTPStatus())
}

// writeInternalError wraps an uncaught fault as a 500 proxy_error carrying
// the raw error message.
func writeInternalError(ctx context.Context, w http.ResponseWriter, err error) {
	writeJSONError(ctx, w, anthropicadapter.NewProxyError(http.StatusInternalServerError, err.Error()))
}
