package controllers

// Request/response types for the events API.

type ingestReq struct {
	Event   string         `json:"event"`
	Origin  string         `json:"origin"`
	Payload map[string]any `json:"payload"`
}

type ingestResp struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

type statsResp struct {
	LastSequence uint64 `json:"last_sequence"`
	Subscribers  int    `json:"subscribers"`
	RingCapacity int    `json:"ring_capacity"`
	BusEnabled   bool   `json:"bus_enabled"`
}

type healthResp struct {
	Status string `json:"status"`
	Bus    bool   `json:"bus"`
}

type gapPayload struct {
	Dropped uint64 `json:"dropped"`
}
