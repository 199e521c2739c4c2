package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter emits "data: <json>\n\n" records on a streaming HTTP response,
// flushing after every record so partial output reaches the client as it is
// produced.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter prepares w for event-stream output and verifies it can flush.
// The probe flush commits the 200 status and stream headers; on an
// unsupported writer it fails without writing, so the caller can still fall
// back to a JSON error.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("response writer does not support streaming: %w", err)
	}

	return &SSEWriter{w: w, rc: rc}, nil
}

// WriteData serializes v and sends it as one data record, flushed.
func (s *SSEWriter) WriteData(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event: %w", err)
	}
	return nil
}
