package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// call posts the backend request and returns the raw response on any 2xx
// status. The transport chain is expected to handle authentication; this
// function only shapes the HTTP exchange.
//
// Non-2xx replies are drained and turned into a proxy_error carrying the
// backend's status and, when its body parses, the backend's own message.
func call(ctx context.Context, url string, backendReq chatCompletionRequest, transport http.RoundTripper) (*http.Response, error) {
	body, err := json.Marshal(backendReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling backend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Transport: transport,
		// Client.Timeout = 0 allows long-running SSE streams (bounded by server WriteTimeout)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, anthropicadapter.NewProxyError(0, fmt.Sprintf("backend request failed: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, backendError(resp)
	}

	return resp, nil
}

// backendError converts a non-2xx backend reply into the wire error shape,
// passing the backend's status through untouched.
func backendError(resp *http.Response) *anthropicadapter.ErrorResponse {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := fmt.Sprintf("backend returned status %d", resp.StatusCode)
	if readErr == nil {
		var body chatErrorBody
		if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
			message = fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, body.Error.Message)
		} else if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
			message = fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, truncate(trimmed, 512))
		}
	}

	return anthropicadapter.NewProxyError(resp.StatusCode, message)
}
