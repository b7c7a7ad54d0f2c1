// Package bus connects the relay to the durable event bus. The Publisher
// accepts non-blocking handoffs from the dispatcher and pushes envelopes to
// the bus under a bounded retry policy; the Listener re-ingests envelopes
// published by other relay instances on the same channel.
package bus
