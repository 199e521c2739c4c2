package anthropicadapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MessagesRequest is the inbound request body for both /v1/messages and
// /v1/completions. Exactly one of Messages/Prompt drives translation:
// Prompt is consulted only when Messages is absent.
type MessagesRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []InboundMessage `json:"messages,omitempty"`
	System      string           `json:"system,omitempty"`
	Prompt      string           `json:"prompt,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
	TopK        *int             `json:"top_k,omitempty"`
	Stream      StreamFlag       `json:"stream,omitempty"`
}

// InboundMessage is a single conversation turn in the Messages form.
type InboundMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is the tagged union behind a message's "content" field,
// which clients send either as a plain string or as a list of content parts.
// The shape is decided once here, at the decode boundary.
type MessageContent struct {
	// Text holds the content when the client sent a plain string.
	Text string
	// Parts holds the content when the client sent a part list.
	Parts []ContentPart
	// IsParts distinguishes an empty part list from empty text; an
	// assistant turn with an empty part list is a stale turn terminator
	// and is dropped during translation.
	IsParts bool
}

// UnmarshalJSON accepts a string, a content-part array, or null.
// Null and missing content decode as empty text rather than failing, so a
// sloppy client payload degrades to an empty turn instead of a 4xx/5xx.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = MessageContent{}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = MessageContent{Text: text}
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		*c = MessageContent{Parts: parts, IsParts: true}
		return nil
	}

	return fmt.Errorf("content must be a string or an array of content parts")
}

// MarshalJSON renders the union back to its wire shape. Only used by tests
// and request logging; inbound traffic is decode-only.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// ContentPart is one unit of structured message content.
type ContentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries either an inline base64 blob or a URL reference.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// StreamFlag decodes the "stream" field with truthy semantics: clients built
// on loosely typed stacks send true/false, but also 1/0 or "true". Anything
// recognizably truthy enables streaming; everything else disables it.
type StreamFlag bool

// UnmarshalJSON coerces bool, number, and string values to a strict boolean.
func (s *StreamFlag) UnmarshalJSON(data []byte) error {
	switch {
	case string(data) == "null":
		*s = false
	case string(data) == "true":
		*s = true
	case string(data) == "false":
		*s = false
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err == nil {
			*s = n != 0
			return nil
		}
		var str string
		if err := json.Unmarshal(data, &str); err == nil {
			b, err := strconv.ParseBool(strings.TrimSpace(str))
			*s = StreamFlag(err == nil && b)
			return nil
		}
		return fmt.Errorf("stream must be a boolean")
	}
	return nil
}

// MessageResponse is the buffered (non-streaming) response body, and doubles
// as the message envelope inside a message_start stream event.
type MessageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ContentBlock is a single block of assistant output.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage mirrors the unified token accounting shape.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
