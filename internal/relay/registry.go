package relay

import (
	"sync"

	"github.com/marcusmattus/gami-protocol-mcp/internal/metrics"
)

// Registry tracks the active stream subscribers. It owns subscriber
// lifecycle: the dispatcher only iterates snapshots and never outlives a
// disconnect.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscriber)}
}

func (r *Registry) add(s *Subscriber) {
	r.mu.Lock()
	r.subs[s.id.String()] = s
	r.mu.Unlock()
	metrics.SubscribersActive.Inc()
}

func (r *Registry) remove(s *Subscriber) bool {
	key := s.id.String()
	r.mu.Lock()
	_, ok := r.subs[key]
	if ok {
		delete(r.subs, key)
	}
	r.mu.Unlock()
	if ok {
		metrics.SubscribersActive.Dec()
	}
	return ok
}

// snapshot returns the currently registered subscribers. Fan-out iterates the
// returned slice, never the live map, so registration during a fan-out cannot
// produce partial delivery.
func (r *Registry) snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
