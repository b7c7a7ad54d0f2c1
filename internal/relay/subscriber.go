package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/internal/metrics"
	"github.com/marcusmattus/gami-protocol-mcp/pkg/id"
)

// ErrSubscriberClosed is returned by Next after the subscriber was removed
// from the registry.
var ErrSubscriberClosed = errors.New("relay: subscriber closed")

// Item is one unit of delivery to a stream session: either an envelope
// (replayed or live) or a gap marker summarizing envelopes dropped from this
// subscriber's queue under backpressure.
type Item struct {
	Envelope envelope.Envelope
	Gap      bool
	Dropped  uint64
}

// Subscriber is one connected stream client. The dispatcher enqueues into its
// bounded queue; the session's transmit loop drains it via Next. A full queue
// drops the oldest entries for this subscriber only and records the count for
// the next gap marker.
type Subscriber struct {
	id     id.ID
	bound  int
	filter *Filter // nil means deliver everything

	mu      sync.Mutex
	queue   []envelope.Envelope
	dropped uint64
	closed  bool
	notify  chan struct{}
}

func newSubscriber(connID id.ID, bound int, filter *Filter) *Subscriber {
	if bound < 1 {
		bound = 1
	}
	return &Subscriber{
		id:     connID,
		bound:  bound,
		filter: filter,
		notify: make(chan struct{}, 1),
	}
}

// ID returns the connection identifier.
func (s *Subscriber) ID() id.ID { return s.id }

// push enqueues an envelope without ever blocking. When the bound is reached
// the oldest queued envelope is evicted and counted toward the next gap
// marker. Filtered-out envelopes are skipped silently; a filter miss is not a
// gap.
func (s *Subscriber) push(e envelope.Envelope) {
	if s.filter != nil && !s.filter.Eval(e) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.bound {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		s.dropped++
		metrics.SubscriberDropped.Inc()
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// close marks the subscriber terminal and wakes any blocked Next call.
func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the next item for delivery. A pending drop count is reported
// first, as a gap item, since the dropped envelopes preceded everything still
// queued. Next blocks until an item is available, the context is done, or
// idle elapses; on idle timeout it returns ok=false with a nil error so the
// session can emit a keep-alive.
func (s *Subscriber) Next(ctx context.Context, idle time.Duration) (Item, bool, error) {
	for {
		s.mu.Lock()
		if s.dropped > 0 {
			n := s.dropped
			s.dropped = 0
			s.mu.Unlock()
			return Item{Gap: true, Dropped: n}, true, nil
		}
		if len(s.queue) > 0 {
			e := s.queue[0]
			copy(s.queue, s.queue[1:])
			s.queue = s.queue[:len(s.queue)-1]
			s.mu.Unlock()
			return Item{Envelope: e}, true, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Item{}, false, ErrSubscriberClosed
		}

		timer := time.NewTimer(idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Item{}, false, ctx.Err()
		case <-s.notify:
			timer.Stop()
		case <-timer.C:
			return Item{}, false, nil
		}
	}
}
