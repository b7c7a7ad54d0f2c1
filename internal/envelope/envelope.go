// Package envelope defines the canonical event record moving through the
// relay: producer drafts on the way in, sealed envelopes everywhere else.
package envelope

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the canonical event record relayed to the durable bus and to
// stream subscribers. Sequence and Timestamp are assigned by the relay at
// ingestion time; producer clocks are not trusted. Payload is opaque to the
// relay: it is routed, never inspected.
type Envelope struct {
	Event     string         `json:"event"`
	Origin    string         `json:"origin"`
	Payload   map[string]any `json:"payload"`
	Sequence  uint64         `json:"sequence"`
	Timestamp int64          `json:"timestamp"` // ingestion wall clock, Unix ms
}

// Draft is a producer-submitted envelope before the relay assigns sequence
// and timestamp.
type Draft struct {
	Event   string         `json:"event"`
	Origin  string         `json:"origin"`
	Payload map[string]any `json:"payload"`
}

// ValidationError reports a malformed draft. It is the only ingestion error
// surfaced synchronously to producers.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "envelope: missing required field " + strconv.Quote(e.Field)
}

// Validate checks the draft's required fields. Payload contents are never
// validated; an absent payload is allowed and sealed as an empty mapping.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Event) == "" {
		return &ValidationError{Field: "event"}
	}
	if strings.TrimSpace(d.Origin) == "" {
		return &ValidationError{Field: "origin"}
	}
	return nil
}

// Seal produces the final Envelope with the relay-assigned sequence and
// ingestion timestamp.
func (d Draft) Seal(sequence uint64, timestampMs int64) Envelope {
	payload := d.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		Event:     d.Event,
		Origin:    d.Origin,
		Payload:   payload,
		Sequence:  sequence,
		Timestamp: timestampMs,
	}
}

// Encode returns the JSON wire form shared by the bus and the SSE stream.
func (e Envelope) Encode() ([]byte, error) { return json.Marshal(e) }

// Decode parses the JSON wire form.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}
