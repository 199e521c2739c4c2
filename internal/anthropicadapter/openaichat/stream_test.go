package openaichat

import (
	"context"
	"strings"
	"testing"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// feedInChunks pushes the stream through a fresh reframer in chunks of the
// given size and returns all emitted events.
func feedInChunks(t *testing.T, data string, chunkSize int) []anthropicadapter.StreamEvent {
	t.Helper()
	r := NewReframer("backend-model")

	var events []anthropicadapter.StreamEvent
	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		events = append(events, r.Feed(context.Background(), []byte(data[i:end]))...)
	}
	return events
}

func eventTypes(events []anthropicadapter.StreamEvent) []anthropicadapter.StreamEventType {
	types := make([]anthropicadapter.StreamEventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func deltaTexts(events []anthropicadapter.StreamEvent) []string {
	var texts []string
	for _, ev := range events {
		if ev.Type == anthropicadapter.EventContentBlockDelta {
			texts = append(texts, ev.Delta.(anthropicadapter.TextDelta).Text)
		}
	}
	return texts
}

const basicStream = `data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}

data: {"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}

data: {"choices":[{"delta":{"content":"lo"},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`

func TestReframer_Lifecycle(t *testing.T) {
	events := feedInChunks(t, basicStream, len(basicStream))

	wantTypes := []anthropicadapter.StreamEventType{
		anthropicadapter.EventMessageStart,
		anthropicadapter.EventContentBlockDelta,
		anthropicadapter.EventContentBlockDelta,
		anthropicadapter.EventMessageDelta,
		anthropicadapter.EventMessageStop,
	}
	gotTypes := eventTypes(events)
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("event types = %v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Fatalf("event types = %v, want %v", gotTypes, wantTypes)
		}
	}

	start := events[0]
	if start.Message == nil {
		t.Fatal("message_start carries no message envelope")
	}
	if !strings.HasPrefix(start.Message.ID, "msg_") {
		t.Errorf("message id = %q", start.Message.ID)
	}
	if start.Message.Role != "assistant" || start.Message.Model != "backend-model" {
		t.Errorf("message envelope = %+v", start.Message)
	}
	if start.Message.Content == nil || len(start.Message.Content) != 0 {
		t.Errorf("message_start content = %v, want empty (non-nil) block list", start.Message.Content)
	}

	for _, ev := range events[1:3] {
		if ev.Index == nil || *ev.Index != 0 {
			t.Errorf("content_block_delta index = %v, want 0", ev.Index)
		}
	}

	delta := events[3].Delta.(anthropicadapter.MessageDelta)
	if delta.StopReason != "end_turn" {
		t.Errorf("stop_reason = %q, want end_turn", delta.StopReason)
	}
	if delta.StopSequence != nil {
		t.Errorf("stop_sequence = %v, want null", delta.StopSequence)
	}

	if texts := deltaTexts(events); strings.Join(texts, "") != "Hello" {
		t.Errorf("delta texts = %v", texts)
	}
}

func TestReframer_ChunkBoundaryIndependence(t *testing.T) {
	// The same byte stream must produce the same events no matter where
	// the read boundaries fall, including mid-line and mid-JSON.
	whole := feedInChunks(t, basicStream, len(basicStream))

	for _, size := range []int{1, 2, 3, 7, 16, 100} {
		split := feedInChunks(t, basicStream, size)
		if len(split) != len(whole) {
			t.Fatalf("chunk size %d: %d events, want %d", size, len(split), len(whole))
		}
		for i := range whole {
			if split[i].Type != whole[i].Type {
				t.Errorf("chunk size %d: event %d type %s, want %s", size, i, split[i].Type, whole[i].Type)
			}
		}
		if got, want := strings.Join(deltaTexts(split), ""), strings.Join(deltaTexts(whole), ""); got != want {
			t.Errorf("chunk size %d: text %q, want %q", size, got, want)
		}
	}
}

func TestReframer_SplitMultibyteCharacter(t *testing.T) {
	// 2-, 3-, and 4-byte UTF-8 sequences in one delta.
	stream := `data: {"choices":[{"delta":{"content":"héllo ✓ 漢字 🚀"},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"stop"}]}

`
	// Byte-at-a-time feeding splits every multi-byte sequence.
	events := feedInChunks(t, stream, 1)

	if got := strings.Join(deltaTexts(events), ""); got != "héllo ✓ 漢字 🚀" {
		t.Errorf("text = %q, non-ASCII content corrupted by chunk splits", got)
	}
}

func TestReframer_MessageStartOnce(t *testing.T) {
	events := feedInChunks(t, basicStream, len(basicStream))

	starts := 0
	for i, ev := range events {
		if ev.Type == anthropicadapter.EventMessageStart {
			starts++
			if i != 0 {
				t.Errorf("message_start at position %d, want before all deltas", i)
			}
		}
	}
	if starts != 1 {
		t.Errorf("message_start emitted %d times, want exactly once", starts)
	}
}

func TestReframer_RoleOnlyWarmupEmitsNothing(t *testing.T) {
	r := NewReframer("m")
	events := r.Feed(context.Background(), []byte(`data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}` + "\n"))
	if len(events) != 0 {
		t.Errorf("warmup chunk emitted %v, want nothing until first text or finish", eventTypes(events))
	}
}

func TestReframer_MalformedRecordSkipped(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"a"},"finish_reason":null}]}

data: {not json at all

data: {"choices":[{"delta":{"content":"b"},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"stop"}]}

`
	events := feedInChunks(t, stream, len(stream))

	if got := strings.Join(deltaTexts(events), ""); got != "ab" {
		t.Errorf("text = %q, malformed record must not drop later deltas", got)
	}
	last := events[len(events)-1]
	if last.Type != anthropicadapter.EventMessageStop {
		t.Errorf("last event = %s, want message_stop", last.Type)
	}
}

func TestReframer_IgnoresNonDataLines(t *testing.T) {
	stream := ": keep-alive comment\n" +
		"event: something\n" +
		"\n" +
		`data: {"choices":[{"delta":{"content":"x"},"finish_reason":"stop"}]}` + "\n"

	events := feedInChunks(t, stream, len(stream))

	if got := strings.Join(deltaTexts(events), ""); got != "x" {
		t.Errorf("text = %q", got)
	}
}

func TestReframer_CRLFLines(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\r\n\r\n"

	events := feedInChunks(t, stream, len(stream))

	if got := strings.Join(deltaTexts(events), ""); got != "ok" {
		t.Errorf("text = %q, CRLF framing broke parsing", got)
	}
}

func TestReframer_DoneSentinelDiscarded(t *testing.T) {
	r := NewReframer("m")
	events := r.Feed(context.Background(), []byte("data: [DONE]\n\n"))
	if len(events) != 0 {
		t.Errorf("[DONE] emitted %v, want nothing", eventTypes(events))
	}
	if r.Done() {
		t.Error("[DONE] alone must not mark the stream finished")
	}
}

func TestReframer_InputAfterFinishIgnored(t *testing.T) {
	r := NewReframer("m")
	r.Feed(context.Background(), []byte(`data: {"choices":[{"delta":{"content":"a"},"finish_reason":"stop"}]}` + "\n"))

	if !r.Done() {
		t.Fatal("finish_reason must mark the stream done")
	}
	events := r.Feed(context.Background(), []byte(`data: {"choices":[{"delta":{"content":"late"},"finish_reason":null}]}` + "\n"))
	if len(events) != 0 {
		t.Errorf("post-finish input emitted %v, want nothing", eventTypes(events))
	}
}

func TestReframer_EndWithoutFinish(t *testing.T) {
	r := NewReframer("m")
	r.Feed(context.Background(), []byte(`data: {"choices":[{"delta":{"content":"partial"},"finish_reason":null}]}` + "\n"))

	// Nothing more arrives. The reframer must not claim completion or
	// synthesize terminal events it never saw.
	if r.Done() {
		t.Error("stream without a finish signal must not report done")
	}
	if r.Text() != "partial" {
		t.Errorf("accumulated text = %q", r.Text())
	}
}

func TestReframer_EmptyChoicesChunkIgnored(t *testing.T) {
	r := NewReframer("m")
	events := r.Feed(context.Background(), []byte(`data: {"choices":[]}` + "\n"))
	if len(events) != 0 {
		t.Errorf("empty-choices chunk emitted %v, want nothing", eventTypes(events))
	}
}

func TestReframer_FinishWithFinalText(t *testing.T) {
	// A single record carrying both text and the finish signal produces
	// the full lifecycle in one Feed call, in order.
	stream := `data: {"choices":[{"delta":{"content":"all"},"finish_reason":"length"}]}` + "\n"

	events := feedInChunks(t, stream, len(stream))

	want := []anthropicadapter.StreamEventType{
		anthropicadapter.EventMessageStart,
		anthropicadapter.EventContentBlockDelta,
		anthropicadapter.EventMessageDelta,
		anthropicadapter.EventMessageStop,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}

	delta := events[2].Delta.(anthropicadapter.MessageDelta)
	if delta.StopReason != "max_tokens" {
		t.Errorf("stop_reason = %q, want max_tokens", delta.StopReason)
	}
}
