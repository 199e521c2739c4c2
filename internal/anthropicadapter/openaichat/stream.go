package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// reframerState tracks the lifecycle of one re-framed stream.
type reframerState int

const (
	stateIdle      reframerState = iota // no header emitted yet
	stateStreaming                      // message_start emitted
	stateDone                           // terminal events emitted, stream closed
)

// dataPrefix is the SSE field prefix carrying a payload. Lines without it
// (comments, keep-alives, the blank record separators) carry nothing.
const dataPrefix = "data: "

// doneSentinel terminates the backend stream. It is framing, not content,
// and is discarded.
const doneSentinel = "[DONE]"

// Reframer consumes the backend's chat-completion SSE byte stream and
// re-emits the unified event lifecycle incrementally, preserving arrival
// order. One instance serves exactly one stream and is not safe for
// concurrent use; the single request task owns it for the stream's lifetime.
//
// Backend bytes arrive at arbitrary chunk boundaries that respect neither
// line nor UTF-8 sequence boundaries. The reframer therefore buffers raw
// bytes and decodes only complete newline-terminated lines: a multi-byte
// character split across reads stays byte-buffered until its line completes,
// which is what keeps non-ASCII output intact.
type Reframer struct {
	model string
	state reframerState

	// buf carries the trailing partial line across Feed calls.
	buf []byte

	// messageID is generated once and stable for the whole stream.
	messageID string

	// accumulated collects the full assistant text for debug logging;
	// emitted deltas never depend on it.
	accumulated strings.Builder
}

// NewReframer creates a reframer for one stream. The model string is the
// fixed label carried by the message_start event.
func NewReframer(model string) *Reframer {
	return &Reframer{
		model:     model,
		messageID: newMessageID(),
	}
}

// Feed consumes one chunk of backend bytes and returns the unified events
// completed by it, in order. Incomplete trailing data is carried forward to
// be finished by the next chunk. After the terminal event has been emitted,
// further input is ignored. ctx carries the request scope for logging only.
func (r *Reframer) Feed(ctx context.Context, p []byte) []anthropicadapter.StreamEvent {
	if r.state == stateDone {
		return nil
	}

	r.buf = append(r.buf, p...)

	var events []anthropicadapter.StreamEvent
	for r.state != stateDone {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}
		line := string(r.buf[:i])
		r.buf = r.buf[i+1:]
		events = append(events, r.consumeLine(ctx, line)...)
	}
	return events
}

// Done reports whether the terminal message_stop event has been emitted.
func (r *Reframer) Done() bool {
	return r.state == stateDone
}

// Text returns the assistant text accumulated so far.
func (r *Reframer) Text() string {
	return r.accumulated.String()
}

// consumeLine handles one complete SSE line. Non-data lines are ignored, the
// [DONE] sentinel is discarded, and a record that fails to parse is skipped:
// one bad record must never abort the stream.
func (r *Reframer) consumeLine(ctx context.Context, line string) []anthropicadapter.StreamEvent {
	line = strings.TrimSuffix(line, "\r")

	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return nil
	}
	if payload == doneSentinel {
		return nil
	}

	var chunk chatCompletionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		slog.WarnContext(ctx, "skipping malformed stream record",
			"error", err.Error(),
			"data", truncate(payload, 200),
		)
		return nil
	}

	return r.consumeChunk(&chunk)
}

// consumeChunk drives the state machine for one decoded record.
func (r *Reframer) consumeChunk(chunk *chatCompletionChunk) []anthropicadapter.StreamEvent {
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	var delta string
	if choice.Delta.Content != nil {
		delta = *choice.Delta.Content
	}

	var events []anthropicadapter.StreamEvent

	// The header goes out once, on the first record carrying either text
	// or a finish signal. Role-only warmup records don't trigger it.
	if r.state == stateIdle && (delta != "" || choice.FinishReason != nil) {
		events = append(events, r.messageStartEvent())
		r.state = stateStreaming
	}

	if delta != "" {
		r.accumulated.WriteString(delta)
		index := 0
		events = append(events, anthropicadapter.StreamEvent{
			Type:  anthropicadapter.EventContentBlockDelta,
			Index: &index,
			Delta: anthropicadapter.TextDelta{Type: "text_delta", Text: delta},
		})
	}

	if choice.FinishReason != nil {
		events = append(events,
			anthropicadapter.StreamEvent{
				Type: anthropicadapter.EventMessageDelta,
				Delta: anthropicadapter.MessageDelta{
					StopReason:   toStopReason(*choice.FinishReason),
					StopSequence: nil,
				},
			},
			anthropicadapter.StreamEvent{
				Type: anthropicadapter.EventMessageStop,
			},
		)
		r.state = stateDone
	}

	return events
}

// messageStartEvent builds the stream header: stable message ID, assistant
// role, empty content placeholder, fixed model label.
func (r *Reframer) messageStartEvent() anthropicadapter.StreamEvent {
	return anthropicadapter.StreamEvent{
		Type: anthropicadapter.EventMessageStart,
		Message: &anthropicadapter.MessageResponse{
			ID:           r.messageID,
			Type:         "message",
			Role:         "assistant",
			Content:      []anthropicadapter.ContentBlock{},
			Model:        r.model,
			StopReason:   nil,
			StopSequence: nil,
			Usage:        anthropicadapter.Usage{},
		},
	}
}

// truncate limits a string to maxLen bytes for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
