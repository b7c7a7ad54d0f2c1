// Package ring implements the fixed-capacity buffer of recent envelopes used
// for late-subscriber backlog replay.
package ring

import (
	"sync"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
)

// Buffer is a fixed-capacity, append-only, overwrite-oldest buffer. It holds
// at most its capacity of envelopes; appending beyond capacity evicts the
// oldest entry. The dispatcher's single append path is the only writer;
// Snapshot serves concurrent readers.
type Buffer struct {
	mu   sync.Mutex
	buf  []envelope.Envelope
	head int // next write position
	size int
}

// New returns an empty Buffer with the given capacity. Capacity is clamped to
// at least one entry.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{buf: make([]envelope.Envelope, capacity)}
}

// Append inserts an envelope, evicting the oldest entry when full.
func (b *Buffer) Append(e envelope.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.head] = e
	b.head = (b.head + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
}

// Snapshot returns the current contents, oldest first.
func (b *Buffer) Snapshot() []envelope.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]envelope.Envelope, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.buf)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.buf[(start+i)%len(b.buf)])
	}
	return out
}

// Len returns the number of buffered envelopes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed capacity.
func (b *Buffer) Capacity() int { return len(b.buf) }
