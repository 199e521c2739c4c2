package openaichat

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// toStopReason maps backend finish reasons to unified stop reasons. Total
// function: unknown values pass through unchanged so clients see whatever
// vocabulary the backend invented rather than a lossy guess.
func toStopReason(finishReason string) string {
	switch finishReason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "content_filter":
		return "stop_sequence"
	default:
		return finishReason
	}
}

// translateResponse converts a buffered backend reply into the unified
// response shape. The model field echoes the caller's requested model, not
// the backend one, so clients keep their own identity across the proxy.
//
// Exactly the first choice is read. A 2xx backend reply with zero choices
// violates the backend contract and is allowed to fail fast here; the
// recovery middleware renders it as a 500 proxy_error.
func translateResponse(backendResp *chatCompletionResponse, clientReq anthropicadapter.MessagesRequest) *anthropicadapter.MessageResponse {
	choice := backendResp.Choices[0]
	stopReason := toStopReason(choice.FinishReason)

	return &anthropicadapter.MessageResponse{
		ID:   newMessageID(),
		Type: "message",
		Role: "assistant",
		Content: []anthropicadapter.ContentBlock{
			{Type: "text", Text: choice.Message.Content},
		},
		Model:        clientReq.Model,
		StopReason:   &stopReason,
		StopSequence: nil,
		Usage: anthropicadapter.Usage{
			InputTokens:  backendResp.Usage.PromptTokens,
			OutputTokens: backendResp.Usage.CompletionTokens,
		},
	}
}

// newMessageID generates a unified message identifier (msg_<32 hex chars>).
// Uniqueness is best-effort collision avoidance, not a correctness invariant.
func newMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
