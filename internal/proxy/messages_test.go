package proxy

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
	"github.com/jhagel/anthropic-relay/internal/anthropicadapter/openaichat"
)

// roundTripFunc fakes the backend for end-to-end handler tests.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func backendReply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestHandler(transport http.RoundTripper) http.Handler {
	handler := &MessagesHandler{
		Adapter:   &openaichat.ChatCompletionAdapter{BaseURL: "https://backend.example/v1", Model: "gpt-4o"},
		Transport: transport,
	}
	return applyMiddlewares(handler, Recovery, RequestSizeLimit(1<<20))
}

func TestMessagesHandler_Buffered(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return backendReply(200, `{"choices":[{"message":{"content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"model":"claude-3-opus","messages":[{"role":"user","content":"Hi"}],"stream":false}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp anthropicadapter.MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "Hello" {
		t.Errorf("content = %+v", resp.Content)
	}
	if resp.StopReason == nil || *resp.StopReason != "end_turn" {
		t.Errorf("stop_reason = %v", resp.StopReason)
	}
	if resp.Model != "claude-3-opus" {
		t.Errorf("model = %q, want caller echo", resp.Model)
	}
	if resp.Usage.InputTokens != 3 || resp.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if !strings.HasPrefix(resp.ID, "msg_") {
		t.Errorf("id = %q", resp.ID)
	}
}

func TestMessagesHandler_Streaming(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"},\"finish_reason\":null}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":null}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(strings.NewReader(sse)),
		}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}],"stream":true}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content-type = %q", got)
	}

	// Every record is "data: <json>" followed by a blank line.
	var types []string
	var text strings.Builder
	for _, record := range strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n") {
		payload, ok := strings.CutPrefix(record, "data: ")
		if !ok {
			t.Fatalf("record without data prefix: %q", record)
		}
		var event anthropicadapter.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("unmarshal record %q: %v", payload, err)
		}
		types = append(types, string(event.Type))
		if event.Type == anthropicadapter.EventContentBlockDelta {
			var delta anthropicadapter.TextDelta
			raw, _ := json.Marshal(event.Delta)
			_ = json.Unmarshal(raw, &delta)
			text.WriteString(delta.Text)
		}
	}

	want := []string{"message_start", "content_block_delta", "content_block_delta", "message_delta", "message_stop"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("event order = %v, want %v", types, want)
	}
	if text.String() != "Hello" {
		t.Errorf("streamed text = %q", text.String())
	}
}

func TestMessagesHandler_LegacyPromptPath(t *testing.T) {
	var sentBody []byte
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sentBody, _ = io.ReadAll(r.Body)
		return backendReply(200, `{"choices":[{"message":{"content":"Hello"},"finish_reason":"stop"}],"usage":{}}`), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/completions",
		strings.NewReader(`{"prompt":"\n\nHuman: Hi\n\nAssistant: Hello","stream":false}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var sent struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(sentBody, &sent); err != nil {
		t.Fatalf("unmarshal forwarded body: %v", err)
	}
	if len(sent.Messages) != 2 {
		t.Fatalf("forwarded messages = %+v", sent.Messages)
	}
	if sent.Messages[0].Role != "user" || sent.Messages[0].Content != "Hi" {
		t.Errorf("first forwarded message = %+v", sent.Messages[0])
	}
	if sent.Messages[1].Role != "assistant" || sent.Messages[1].Content != "Hello" {
		t.Errorf("second forwarded message = %+v", sent.Messages[1])
	}
}

func TestMessagesHandler_BackendErrorPassthrough(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return backendReply(502, `{"error":{"message":"bad gateway"}}`), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}]}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want the backend's 502", rec.Code)
	}
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error.Type != "proxy_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}
	if !strings.Contains(body.Error.Message, "bad gateway") {
		t.Errorf("message = %q, want the backend message included", body.Error.Message)
	}
}

func TestMessagesHandler_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	newTestHandler(nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "proxy_error") {
		t.Errorf("body = %s, want proxy_error", rec.Body.String())
	}
}

func TestMessagesHandler_BodyTooLarge(t *testing.T) {
	handler := applyMiddlewares(&MessagesHandler{
		Adapter: &openaichat.ChatCompletionAdapter{BaseURL: "https://backend.example/v1", Model: "m"},
	}, Recovery, RequestSizeLimit(16))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"way past sixteen bytes"}]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "proxy_error") {
		t.Errorf("body = %s, want proxy_error", rec.Body.String())
	}
}

func TestMessagesHandler_ChoicelessReplyRecovered(t *testing.T) {
	// A 2xx backend reply with zero choices violates the backend contract;
	// the translator fails fast and the recovery middleware renders a 500.
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return backendReply(200, `{"choices":[],"usage":{}}`), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}]}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "proxy_error") {
		t.Errorf("body = %s, want proxy_error", rec.Body.String())
	}
}

// stubAdapter returns canned results without touching a backend.
type stubAdapter struct {
	resp      *anthropicadapter.MessageResponse
	err       error
	streamErr error
}

func (s *stubAdapter) ProcessRequest(ctx context.Context, clientReq anthropicadapter.MessagesRequest, transport http.RoundTripper) (*anthropicadapter.MessageResponse, error) {
	return s.resp, s.err
}

func (s *stubAdapter) ProcessStreamingRequest(ctx context.Context, clientReq anthropicadapter.MessagesRequest, transport http.RoundTripper) (iter.Seq2[*anthropicadapter.StreamEvent, error], error) {
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return func(yield func(*anthropicadapter.StreamEvent, error) bool) {}, nil
}

func TestMessagesHandler_PreStreamErrorIsJSON(t *testing.T) {
	// An error before the first event must still produce a JSON error
	// body, not an empty event stream.
	handler := &MessagesHandler{
		Adapter: &stubAdapter{streamErr: anthropicadapter.NewProxyError(503, "backend returned status 503")},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}],"stream":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content-type = %q, want application/json", got)
	}
}

func TestMessagesHandler_StreamCoercion(t *testing.T) {
	// Truthy non-boolean stream values pick the streaming path.
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"},\"finish_reason\":\"stop\"}]}\n\n"
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(sse)),
		}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}],"stream":"true"}`))
	rec := httptest.NewRecorder()
	newTestHandler(transport).ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content-type = %q, want text/event-stream for a coerced stream flag", got)
	}
}
