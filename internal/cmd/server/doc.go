// Package serverrun boots the relay: it wires config, logging, the runtime,
// and the HTTP server, and blocks until the context or a signal stops it.
package serverrun
