package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/internal/metrics"
	"github.com/marcusmattus/gami-protocol-mcp/internal/ring"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/id"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

// ErrDispatcherClosed is returned by Ingest and Subscribe after Close.
var ErrDispatcherClosed = errors.New("relay: dispatcher closed")

// Publisher is the handoff seam to the durable bus. Enqueue must not block;
// the bus publisher applies its own bounds and retry policy.
type Publisher interface {
	Enqueue(envelope.Envelope)
}

// Options configure a Dispatcher.
type Options struct {
	// Ring holds the replay buffer. Required.
	Ring *ring.Buffer
	// Publisher receives every locally ingested envelope. Optional; nil
	// disables bus publishing.
	Publisher Publisher
	// Logger for dispatch diagnostics. Optional.
	Logger log.Logger
	// QueueBound is the default per-subscriber queue bound when a
	// SubscribeOptions leaves it zero.
	QueueBound int
}

// SubscribeOptions configure one subscriber.
type SubscribeOptions struct {
	// QueueBound overrides the dispatcher default when positive.
	QueueBound int
	// Filter is an optional CEL expression applied before queueing.
	Filter string
}

// dispatchItem is one entry in the ordered dispatch queue: either an envelope
// to fan out, or a subscriber joining the live stream. Keeping both in a
// single FIFO pins every subscriber's first live envelope to the sequence
// right after its backlog.
type dispatchItem struct {
	env       envelope.Envelope
	forwarded bool
	join      *Subscriber
}

// Dispatcher assigns sequence numbers, appends to the replay ring, hands
// envelopes to the bus publisher, and fans them out to subscribers. See the
// package doc for the ordering model.
type Dispatcher struct {
	ring       *ring.Buffer
	publisher  Publisher
	logger     log.Logger
	queueBound int
	registry   *Registry
	idgen      *id.Generator

	mu       sync.Mutex
	sequence uint64
	pending  []dispatchItem
	closed   bool

	notify  chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// New returns a running Dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	bound := opts.QueueBound
	if bound < 1 {
		bound = 1
	}
	d := &Dispatcher{
		ring:       opts.Ring,
		publisher:  opts.Publisher,
		logger:     logger.WithComponent("relay.dispatcher"),
		queueBound: bound,
		registry:   NewRegistry(),
		idgen:      id.NewGenerator(),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Ingest validates a draft from a producer, seals it with the next sequence
// and the current wall clock, stores it in the replay ring, and queues it for
// bus publish and fan-out. It never blocks on the bus or on subscribers.
func (d *Dispatcher) Ingest(draft envelope.Draft) (envelope.Envelope, error) {
	return d.ingest(draft, false)
}

// IngestForwarded is Ingest for envelopes received from the durable bus.
// Forwarded envelopes are re-sequenced locally and fanned out but never
// handed back to the publisher.
func (d *Dispatcher) IngestForwarded(draft envelope.Draft) (envelope.Envelope, error) {
	return d.ingest(draft, true)
}

func (d *Dispatcher) ingest(draft envelope.Draft, forwarded bool) (envelope.Envelope, error) {
	if err := draft.Validate(); err != nil {
		metrics.EventsRejected.Inc()
		return envelope.Envelope{}, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return envelope.Envelope{}, ErrDispatcherClosed
	}
	d.sequence++
	env := draft.Seal(d.sequence, time.Now().UnixMilli())
	d.ring.Append(env)
	d.pending = append(d.pending, dispatchItem{env: env, forwarded: forwarded})
	d.mu.Unlock()

	source := metrics.SourceProducer
	if forwarded {
		source = metrics.SourceBus
	}
	metrics.EventsIngested.WithLabelValues(source).Inc()

	d.wake()
	return env, nil
}

// Subscribe registers a new subscriber. Its queue is preloaded with a snapshot
// of the replay ring, and the subscriber joins the live stream at the exact
// sequence boundary of that snapshot.
func (d *Dispatcher) Subscribe(opts SubscribeOptions) (*Subscriber, error) {
	filter, err := NewFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	bound := opts.QueueBound
	if bound < 1 {
		bound = d.queueBound
	}
	sub := newSubscriber(d.idgen.Next(), bound, filter)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDispatcherClosed
	}
	for _, env := range d.ring.Snapshot() {
		sub.push(env)
	}
	d.pending = append(d.pending, dispatchItem{join: sub})
	d.mu.Unlock()

	d.wake()
	d.logger.Debug("subscriber joined", log.Str("subscriber", sub.id.Short()))
	return sub, nil
}

// Unsubscribe removes sub from fan-out and unblocks its pending Next call.
// Safe to call more than once.
func (d *Dispatcher) Unsubscribe(sub *Subscriber) {
	if d.registry.remove(sub) {
		d.logger.Debug("subscriber left", log.Str("subscriber", sub.id.Short()))
	}
	sub.close()
}

// Recent returns the replay ring contents, oldest first.
func (d *Dispatcher) Recent() []envelope.Envelope {
	return d.ring.Snapshot()
}

// LastSequence returns the most recently assigned sequence number, zero when
// nothing has been ingested.
func (d *Dispatcher) LastSequence() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sequence
}

// SubscriberCount returns the number of live subscribers.
func (d *Dispatcher) SubscriberCount() int {
	return d.registry.Len()
}

// Close stops ingestion, drains the dispatch queue, and closes every
// subscriber. It blocks until the dispatch goroutine has exited.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	<-d.stopped

	for _, sub := range d.registry.snapshot() {
		d.Unsubscribe(sub)
	}
}

func (d *Dispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// run drains the ordered dispatch queue. It is the only goroutine that hands
// envelopes to the publisher or pushes to subscribers, which keeps both in
// sequence order.
func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, item := range batch {
			if item.join != nil {
				d.registry.add(item.join)
				continue
			}
			if d.publisher != nil && !item.forwarded {
				d.publisher.Enqueue(item.env)
			}
			for _, sub := range d.registry.snapshot() {
				sub.push(item.env)
			}
		}

		if len(batch) == 0 {
			select {
			case <-d.done:
				// Final drain below picks up anything queued before Close.
			case <-d.notify:
				continue
			}
			d.mu.Lock()
			remaining := len(d.pending) > 0
			d.mu.Unlock()
			if !remaining {
				return
			}
		}
	}
}
