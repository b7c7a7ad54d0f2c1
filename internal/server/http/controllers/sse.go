package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
)

// sseSession writes Server-Sent Events frames for one stream connection.
//
// Envelopes are sent as named events carrying the sequence number in the SSE
// id field, so EventSource clients resume with Last-Event-ID semantics on
// their side; the relay itself always replays the current ring on reconnect.
type sseSession struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSESession(w http.ResponseWriter) (*sseSession, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseSession{w: w, flusher: flusher}, true
}

// sendRetry emits the reconnect-delay hint once at session start.
func (s *sseSession) sendRetry(ms int) error {
	if _, err := fmt.Fprintf(s.w, "retry: %d\n\n", ms); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSession) sendEnvelope(e envelope.Envelope) error {
	b, err := e.Encode()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\nid: %s\ndata: %s\n\n",
		e.Event, strconv.FormatUint(e.Sequence, 10), b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sendGap reports envelopes dropped from this subscriber's queue.
func (s *sseSession) sendGap(dropped uint64) error {
	b, err := json.Marshal(gapPayload{Dropped: dropped})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: stream-gap\ndata: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sendPing emits a comment frame to keep idle connections open.
func (s *sseSession) sendPing() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
