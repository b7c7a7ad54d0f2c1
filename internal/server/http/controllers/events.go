package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/internal/metrics"
	"github.com/marcusmattus/gami-protocol-mcp/internal/relay"
	"github.com/marcusmattus/gami-protocol-mcp/internal/runtime"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

// EventsController handles event ingestion, streaming, replay, and stats.
type EventsController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewEventsController creates a new events controller.
func NewEventsController(rt *runtime.Runtime, logger log.Logger) *EventsController {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &EventsController{rt: rt, logger: logger.WithComponent("http.events")}
}

// RegisterRoutes registers all event routes with the given mux.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events/ingest", c.handleIngest)
	mux.HandleFunc("/v1/events/stream", c.handleStreamSSE)
	mux.HandleFunc("/v1/events/recent", c.handleRecent)
	mux.HandleFunc("/v1/events/stats", c.handleStats)
}

// handleIngest accepts one event draft and returns its assigned sequence and
// timestamp. Acceptance means sequenced and buffered, not yet on the bus.
func (c *EventsController) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req ingestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := c.rt.Dispatcher().Ingest(envelope.Draft{
		Event:   req.Event,
		Origin:  req.Origin,
		Payload: req.Payload,
	})
	if err != nil {
		var verr *envelope.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Relay shutting down")
		return
	}
	writeAccepted(w, ingestResp{Sequence: env.Sequence, Timestamp: env.Timestamp})
}

// handleRecent returns the replay ring contents, oldest first.
func (c *EventsController) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	recent := c.rt.Dispatcher().Recent()
	writeJSON(w, map[string]any{"events": recent, "count": len(recent)})
}

// handleStats returns relay counters for dashboards and debugging.
func (c *EventsController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	d := c.rt.Dispatcher()
	writeJSON(w, statsResp{
		LastSequence: d.LastSequence(),
		Subscribers:  d.SubscriberCount(),
		RingCapacity: c.rt.Config().Ring.Capacity,
		BusEnabled:   c.rt.BusEnabled(),
	})
}

// handleStreamSSE streams envelopes over SSE.
// Query params: filter (CEL expression), queue_bound
func (c *EventsController) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cfg := c.rt.Config().Subscriber

	filter := r.URL.Query().Get("filter")
	if cfg.FilterMaxLen > 0 && len(filter) > cfg.FilterMaxLen {
		writeError(w, http.StatusBadRequest, "Filter too long")
		return
	}
	var opts relay.SubscribeOptions
	opts.Filter = filter
	if v := r.URL.Query().Get("queue_bound"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= cfg.QueueBound {
			opts.QueueBound = n
		}
	}

	sub, err := c.rt.Dispatcher().Subscribe(opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to subscribe: "+err.Error())
		return
	}
	defer c.rt.Dispatcher().Unsubscribe(sub)

	session, ok := newSSESession(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	if err := session.sendRetry(cfg.RetryHintMs); err != nil {
		return
	}
	c.logger.Debug("stream session open", log.Str("subscriber", sub.ID().Short()))

	heartbeat := time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond
	for {
		item, delivered, err := sub.Next(r.Context(), heartbeat)
		if err != nil {
			return
		}
		if !delivered {
			if err := session.sendPing(); err != nil {
				return
			}
			metrics.HeartbeatsSent.Inc()
			continue
		}
		if item.Gap {
			if err := session.sendGap(item.Dropped); err != nil {
				return
			}
			continue
		}
		if err := session.sendEnvelope(item.Envelope); err != nil {
			return
		}
	}
}
