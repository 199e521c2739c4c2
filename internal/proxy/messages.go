package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// MessagesHandler serves the Messages and legacy Completions operations.
// Both endpoints accept both request forms; the adapter decides which form
// drives translation.
type MessagesHandler struct {
	Adapter   anthropicadapter.MessagesAdapter
	Transport http.RoundTripper
}

// Compile-time check to ensure MessagesHandler implements http.Handler
var _ http.Handler = (*MessagesHandler)(nil)

// ServeHTTP decodes the inbound request and dispatches on the stream flag.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var clientReq anthropicadapter.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&clientReq); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONError(ctx, w, anthropicadapter.NewProxyError(
				http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
			))
			return
		}
		// Request parsing faults surface as 500 proxy_error with the
		// raw message; the taxonomy has no finer-grained kind for them.
		slog.ErrorContext(ctx, "failed to decode request", "error", err)
		writeInternalError(ctx, w, err)
		return
	}

	if clientReq.Stream {
		h.streamResponse(ctx, w, clientReq)
	} else {
		h.writeResponse(ctx, w, clientReq)
	}
}

// writeResponse handles the buffered path.
func (h *MessagesHandler) writeResponse(ctx context.Context, w http.ResponseWriter, clientReq anthropicadapter.MessagesRequest) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Adapter.ProcessRequest(ctx, clientReq, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "error", err)

		var errResp *anthropicadapter.ErrorResponse
		if errors.As(err, &errResp) {
			writeJSONError(ctx, w, errResp)
			return
		}
		writeInternalError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse re-emits the adapter's event stream over SSE. Errors that
// occur before the first event still produce a JSON error body; once
// streaming has begun, a failure closes the stream and is logged only.
func (h *MessagesHandler) streamResponse(ctx context.Context, w http.ResponseWriter, clientReq anthropicadapter.MessagesRequest) {
	if ctx.Err() != nil {
		return
	}
	stream, err := h.Adapter.ProcessStreamingRequest(ctx, clientReq, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "streaming request failed", "error", err)

		var errResp *anthropicadapter.ErrorResponse
		if errors.As(err, &errResp) {
			writeJSONError(ctx, w, errResp)
			return
		}
		writeInternalError(ctx, w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeInternalError(ctx, w, err)
		return
	}

	for event, err := range stream {
		// A disconnected client surfaces as context cancellation; stop
		// reading from the backend and release both stream handles.
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "stream error", "error", err)
			return
		}
		if err := sse.WriteData(event); err != nil {
			slog.ErrorContext(ctx, "failed to write event", "error", err)
			return
		}
	}
	// The stream ends here whether or not a terminal event was seen; an
	// upstream that quit early must not leave the client hanging.
}
