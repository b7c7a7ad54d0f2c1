// Package httpserver exposes the relay over HTTP: event ingestion, the SSE
// stream, replay and stats queries, health, and Prometheus metrics.
package httpserver
