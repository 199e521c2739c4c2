package openaichat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// readBufferSize is the backend stream read granularity. Chunks smaller or
// larger than this are handled identically; the reframer owns line framing.
const readBufferSize = 4096

// ChatCompletionAdapter translates between the inbound Anthropic-style
// protocol and an OpenAI-style chat-completion backend. The adapter itself
// is stateless; per-stream state lives in a Reframer owned by a single
// request task.
type ChatCompletionAdapter struct {
	// BaseURL is the backend root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// Model is the operator-configured backend model, used for every
	// forwarded request regardless of what the caller asked for.
	Model string
}

// Compile-time check that ChatCompletionAdapter implements the adapter contract.
var _ anthropicadapter.MessagesAdapter = (*ChatCompletionAdapter)(nil)

// endpoint resolves the chat-completions URL under the configured base.
func (a *ChatCompletionAdapter) endpoint() string {
	return strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
}

// ProcessRequest handles the buffered path: translate, forward, reassemble.
func (a *ChatCompletionAdapter) ProcessRequest(ctx context.Context, clientReq anthropicadapter.MessagesRequest, transport http.RoundTripper) (*anthropicadapter.MessageResponse, error) {
	backendReq := translateRequest(clientReq, a.Model)
	backendReq.Stream = false

	resp, err := call(ctx, a.endpoint(), backendReq, transport)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var backendResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&backendResp); err != nil {
		return nil, fmt.Errorf("decoding backend response: %w", err)
	}

	return translateResponse(&backendResp, clientReq), nil
}

// ProcessStreamingRequest handles the streaming path. The returned iterator
// reads the backend body chunk by chunk, pushes each chunk through a
// Reframer, and yields the unified events as they complete. The backend
// connection is released when iteration stops, whether by exhaustion, a
// consumer break, or upstream close.
//
// A backend stream that ends without a finish signal simply ends the
// iteration; the caller's connection must not be held open waiting for
// terminal events that will never come.
func (a *ChatCompletionAdapter) ProcessStreamingRequest(ctx context.Context, clientReq anthropicadapter.MessagesRequest, transport http.RoundTripper) (iter.Seq2[*anthropicadapter.StreamEvent, error], error) {
	backendReq := translateRequest(clientReq, a.Model)
	backendReq.Stream = true

	resp, err := call(ctx, a.endpoint(), backendReq, transport)
	if err != nil {
		return nil, err
	}

	return func(yield func(*anthropicadapter.StreamEvent, error) bool) {
		defer func() { _ = resp.Body.Close() }()

		reframer := NewReframer(a.Model)
		buf := make([]byte, readBufferSize)

		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				for _, event := range reframer.Feed(ctx, buf[:n]) {
					if !yield(&event, nil) {
						return
					}
				}
			}
			if readErr != nil {
				if readErr != io.EOF && ctx.Err() == nil {
					// A read failure terminates this one stream only;
					// the events already yielded stand as delivered.
					slog.WarnContext(ctx, "backend stream read failed",
						"error", readErr,
						"emitted_bytes", len(reframer.Text()),
					)
				}
				return
			}
			if reframer.Done() {
				// Terminal events are out; the remaining backend
				// bytes are only the [DONE] sentinel framing.
				return
			}
		}
	}, nil
}
