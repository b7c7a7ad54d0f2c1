package bus

import (
	"context"
	"sync"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/internal/metrics"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

// Conn is the bus transport used by Publisher and Listener. Implemented by
// RedisConn in production and by fakes in tests.
type Conn interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherOptions configure a Publisher.
type PublisherOptions struct {
	Conn    Conn
	Channel string
	// RelayID identifies this instance on the wire so its own publishes can
	// be skipped by the local Listener.
	RelayID string
	// Policy bounds attempts per envelope. Zero value means DefaultPolicy.
	Policy RetryPolicy
	// PendingLimit bounds the handoff queue; the oldest pending envelope is
	// dropped on overflow. Values below 1 default to 1024.
	PendingLimit int
	Logger       log.Logger
}

// Publisher pushes envelopes to the durable bus from a single worker
// goroutine. Enqueue never blocks and never fails; delivery trouble is
// absorbed by the retry policy and the bounded pending queue.
type Publisher struct {
	conn    Conn
	channel string
	relayID string
	policy  RetryPolicy
	limit   int
	logger  log.Logger

	mu      sync.Mutex
	pending []envelope.Envelope
	closed  bool

	notify   chan struct{}
	done     chan struct{}
	finished chan struct{}
}

// NewPublisher returns a running Publisher.
func NewPublisher(opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	pol := opts.Policy
	if pol.Type == "" {
		pol = DefaultPolicy()
	}
	if pol.MaxAttempts < 1 {
		pol.MaxAttempts = 1
	}
	limit := opts.PendingLimit
	if limit < 1 {
		limit = 1024
	}
	p := &Publisher{
		conn:     opts.Conn,
		channel:  opts.Channel,
		relayID:  opts.RelayID,
		policy:   pol,
		limit:    limit,
		logger:   logger.WithComponent("bus.publisher"),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue hands an envelope to the publish worker. On overflow the oldest
// pending envelope is discarded so ingestion latency stays flat while the bus
// is down.
func (p *Publisher) Enqueue(e envelope.Envelope) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if len(p.pending) >= p.limit {
		dropped := p.pending[0]
		copy(p.pending, p.pending[1:])
		p.pending = p.pending[:len(p.pending)-1]
		metrics.BusDropped.WithLabelValues(metrics.DropReasonOverflow).Inc()
		p.logger.Warn("pending queue full, dropping oldest envelope",
			log.Uint64("sequence", dropped.Sequence),
			log.Int("limit", p.limit))
	}
	p.pending = append(p.pending, e)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// PendingLen returns the number of envelopes waiting for publish.
func (p *Publisher) PendingLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close stops the worker. Envelopes still pending are abandoned; the bus
// already has everything published before the call.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.finished
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.done)
	<-p.finished
}

func (p *Publisher) run() {
	defer close(p.finished)
	for {
		p.mu.Lock()
		var next envelope.Envelope
		have := len(p.pending) > 0
		if have {
			next = p.pending[0]
			copy(p.pending, p.pending[1:])
			p.pending = p.pending[:len(p.pending)-1]
		}
		p.mu.Unlock()

		if !have {
			select {
			case <-p.done:
				return
			case <-p.notify:
				continue
			}
		}

		p.publish(next)

		select {
		case <-p.done:
			return
		default:
		}
	}
}

// publish attempts delivery up to MaxAttempts times, backing off between
// attempts per the policy. Exhaustion drops the envelope and moves on; one
// poisoned envelope must not stall the stream behind it.
func (p *Publisher) publish(e envelope.Envelope) {
	payload, err := encodeWire(e, p.relayID)
	if err != nil {
		metrics.BusDropped.WithLabelValues(metrics.DropReasonExhausted).Inc()
		p.logger.Error("encode envelope for bus",
			log.Uint64("sequence", e.Sequence), log.Err(err))
		return
	}

	var lastErr error
	for attempt := uint32(1); attempt <= p.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.BusRetries.Inc()
			timer := time.NewTimer(computeBackoff(p.policy, attempt-1))
			select {
			case <-p.done:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = p.conn.Publish(ctx, p.channel, payload)
		cancel()
		if lastErr == nil {
			metrics.BusPublished.Inc()
			return
		}
		p.logger.Debug("bus publish attempt failed",
			log.Uint64("sequence", e.Sequence),
			log.Int("attempt", int(attempt)),
			log.Err(lastErr))
	}

	metrics.BusDropped.WithLabelValues(metrics.DropReasonExhausted).Inc()
	p.logger.Warn("bus publish attempts exhausted, dropping envelope",
		log.Uint64("sequence", e.Sequence),
		log.Int("attempts", int(p.policy.MaxAttempts)),
		log.Err(lastErr))
}
