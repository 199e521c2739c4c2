package anthropicadapter

// StreamEventType identifies a unified streaming event.
type StreamEventType string

// The four event types a stream may carry, in lifecycle order.
const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
)

// StreamEvent is one unified SSE record. Which optional fields are set
// depends on Type:
//
//   - message_start: Message
//   - content_block_delta: Index and a TextDelta
//   - message_delta: a MessageDelta
//   - message_stop: nothing
type StreamEvent struct {
	Type    StreamEventType  `json:"type"`
	Message *MessageResponse `json:"message,omitempty"`
	Index   *int             `json:"index,omitempty"`
	Delta   any              `json:"delta,omitempty"`
}

// TextDelta carries one verbatim fragment of assistant text.
type TextDelta struct {
	Type string `json:"type"` // always "text_delta"
	Text string `json:"text"`
}

// MessageDelta carries the mapped stop reason once generation finishes.
// StopSequence serializes as an explicit null; the backend protocol has no
// equivalent concept to fill it with.
type MessageDelta struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}
