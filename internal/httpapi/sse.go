package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// setSSEHeaders prepares w for an `event: <type>\ndata: <json>\n\n` stream
// (spec §4.9 "SSE encoding", §6 "SSE framing: UTF-8, LF line endings,
// two-LF record terminator"). Returns the response's http.Flusher, or nil
// if the underlying ResponseWriter doesn't support flushing.
func setSSEHeaders(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)
	return flusher
}

// writeSSE encodes data as compact JSON and writes one SSE record for
// eventType, flushing immediately so the client sees it without buffering.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
