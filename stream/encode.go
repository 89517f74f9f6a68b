package stream

import (
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/agentrelay/core"
)

// Content types of the supported wire encodings.
const (
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeSSE    = "text/event-stream"
)

// WriteNDJSON writes ev as one JSON line and flushes w if it supports it.
func WriteNDJSON(w io.Writer, ev core.Event) error {
	line, err := ev.MarshalLine()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSE writes ev as a server-sent event "data:" frame and flushes w if
// it supports it.
func WriteSSE(w io.Writer, ev core.Event) error {
	line, err := ev.MarshalLine()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	frame := make([]byte, 0, len(line)+7)
	frame = append(frame, "data: "...)
	frame = append(frame, line...)
	frame = append(frame, '\n')
	if _, err := w.Write(frame); err != nil {
		return err
	}
	flush(w)
	return nil
}

// Writer selects the encoder for a content type; anything but SSE yields
// NDJSON.
func Writer(contentType string) func(io.Writer, core.Event) error {
	if contentType == ContentTypeSSE {
		return WriteSSE
	}
	return WriteNDJSON
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
