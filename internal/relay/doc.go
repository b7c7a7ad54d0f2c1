// Package relay implements the event relay core: the Dispatcher that assigns
// sequence numbers and fans envelopes out, the Registry of live stream
// subscribers, and the per-subscriber bounded delivery queues.
//
// # Ordering model
//
// Sequence assignment and ring append run in one critical section, so
// sequence numbers form a single global order across concurrent producers.
// Fan-out and subscriber registration are serialized through an ordered
// dispatch queue drained by a single goroutine; a subscriber therefore
// receives its backlog replay followed by exactly the envelopes sequenced
// after its registration, in order, with no duplicates. Gaps appear only when
// a subscriber's own queue overflows, and are reported in-band as gap items.
//
// # Failure isolation
//
// Ingest never blocks on the durable bus or on subscribers. A slow subscriber
// overflows only its own queue; bus publishing is handed off through the
// non-blocking Publisher seam.
package relay
