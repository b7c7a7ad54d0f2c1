// Package metrics defines the relay's Prometheus collectors and the handler
// serving them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_ingested_total",
			Help: "Total number of envelopes accepted by the dispatcher, by source",
		},
		[]string{"source"},
	)

	EventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_rejected_total",
			Help: "Total number of drafts rejected by validation",
		},
	)

	// Durable bus metrics
	BusPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bus_published_total",
			Help: "Total number of envelopes successfully published to the durable bus",
		},
	)

	BusRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bus_retries_total",
			Help: "Total number of retried bus publish attempts",
		},
	)

	BusDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bus_dropped_total",
			Help: "Total number of envelopes dropped before reaching the bus, by reason",
		},
		[]string{"reason"},
	)

	// Stream metrics
	SubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_subscribers_active",
			Help: "Number of currently connected stream subscribers",
		},
	)

	SubscriberDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_subscriber_dropped_total",
			Help: "Total number of envelopes dropped from subscriber queues under backpressure",
		},
	)

	HeartbeatsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_heartbeats_total",
			Help: "Total number of idle keep-alive frames sent to subscribers",
		},
	)
)

// Drop reasons for BusDropped.
const (
	DropReasonOverflow  = "overflow"  // pending queue saturated
	DropReasonExhausted = "exhausted" // retry attempts exhausted
)

// Ingestion sources for EventsIngested.
const (
	SourceProducer = "producer"
	SourceBus      = "bus"
)

func init() {
	prometheus.MustRegister(
		EventsIngested,
		EventsRejected,
		BusPublished,
		BusRetries,
		BusDropped,
		SubscribersActive,
		SubscriberDropped,
		HeartbeatsSent,
	)
}

// Handler returns the HTTP handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
