package bus

import (
	"encoding/json"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
)

// wireEnvelope is the bus channel message format. Relay carries the publishing
// instance's identifier so a listener can skip its own publishes.
type wireEnvelope struct {
	Event     string         `json:"event"`
	Origin    string         `json:"origin"`
	Payload   map[string]any `json:"payload"`
	Sequence  uint64         `json:"sequence"`
	Timestamp int64          `json:"timestamp"`
	Relay     string         `json:"relay"`
}

func encodeWire(e envelope.Envelope, relayID string) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Event:     e.Event,
		Origin:    e.Origin,
		Payload:   e.Payload,
		Sequence:  e.Sequence,
		Timestamp: e.Timestamp,
		Relay:     relayID,
	})
}

func decodeWire(b []byte) (wireEnvelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return wireEnvelope{}, err
	}
	return w, nil
}
