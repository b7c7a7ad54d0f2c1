package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
	"github.com/marcusmattus/gami-protocol-mcp/internal/ring"
)

type capturePublisher struct {
	mu   sync.Mutex
	envs []envelope.Envelope
}

func (p *capturePublisher) Enqueue(e envelope.Envelope) {
	p.mu.Lock()
	p.envs = append(p.envs, e)
	p.mu.Unlock()
}

func (p *capturePublisher) sequences() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, len(p.envs))
	for i, e := range p.envs {
		out[i] = e.Sequence
	}
	return out
}

func newTestDispatcher(t *testing.T, ringCap, queueBound int, pub Publisher) *Dispatcher {
	t.Helper()
	d := New(Options{
		Ring:       ring.New(ringCap),
		Publisher:  pub,
		QueueBound: queueBound,
	})
	t.Cleanup(d.Close)
	return d
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

// collect drains n items from sub, failing on gaps.
func collect(t *testing.T, sub *Subscriber, n int) []uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []uint64
	for len(out) < n {
		item, ok, err := sub.Next(ctx, time.Second)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			continue
		}
		if item.Gap {
			t.Fatalf("unexpected gap of %d before sequence %d", item.Dropped, len(out)+1)
		}
		out = append(out, item.Envelope.Sequence)
	}
	return out
}

func TestIngestAssignsContiguousSequences(t *testing.T) {
	d := newTestDispatcher(t, 64, 8, nil)

	const workers, perWorker = 8, 50
	var (
		mu       sync.Mutex
		assigned = make(map[uint64]bool)
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				env, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"})
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if assigned[env.Sequence] {
					t.Errorf("sequence %d assigned twice", env.Sequence)
				}
				assigned[env.Sequence] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if got := d.LastSequence(); got != workers*perWorker {
		t.Fatalf("LastSequence = %d, want %d", got, workers*perWorker)
	}
	for seq := uint64(1); seq <= workers*perWorker; seq++ {
		if !assigned[seq] {
			t.Fatalf("sequence %d never assigned", seq)
		}
	}
}

func TestIngestRejectsInvalidDraft(t *testing.T) {
	d := newTestDispatcher(t, 8, 8, nil)
	_, err := d.Ingest(envelope.Draft{Event: "", Origin: "test"})
	var verr *envelope.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Ingest: %v", err)
	}
	if d.LastSequence() != 0 {
		t.Fatalf("rejected draft consumed a sequence: %d", d.LastSequence())
	}
}

func TestSubscribeReplaysRingBacklog(t *testing.T) {
	d := newTestDispatcher(t, 3, 8, nil)
	for i := 0; i < 5; i++ {
		if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)

	got := collect(t, sub, 3)
	for i, want := range []uint64{3, 4, 5} {
		if got[i] != want {
			t.Fatalf("replay = %v, want [3 4 5]", got)
		}
	}
}

func TestLiveDeliveryInOrderNoDuplicates(t *testing.T) {
	d := newTestDispatcher(t, 16, 256, nil)

	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)

	const total = 100
	for i := 0; i < total; i++ {
		if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	got := collect(t, sub, total)
	for i := range got {
		if got[i] != uint64(i+1) {
			t.Fatalf("delivery[%d] = %d, want %d", i, got[i], i+1)
		}
	}
}

func TestSubscribeDuringIngestNoGapNoDuplicate(t *testing.T) {
	d := newTestDispatcher(t, 512, 1024, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
				return
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)

	got := collect(t, sub, 50)
	close(stop)
	wg.Wait()

	for i := 1; i < len(got); i++ {
		if got[i] != got[i-1]+1 {
			t.Fatalf("delivery not contiguous at %d: %v", i, got)
		}
	}
}

func TestSlowSubscriberGetsGapMarker(t *testing.T) {
	d := newTestDispatcher(t, 16, 8, nil)

	sub, err := d.Subscribe(SubscribeOptions{QueueBound: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)
	waitFor(t, func() bool { return d.SubscriberCount() == 1 })

	const total = 10
	for i := 0; i < total; i++ {
		if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return uint64(len(sub.queue))+sub.dropped == total
	})

	ctx := context.Background()
	item, ok, err := sub.Next(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if !item.Gap || item.Dropped != total-2 {
		t.Fatalf("first item = %+v, want gap of %d", item, total-2)
	}
	last := uint64(0)
	for i := 0; i < 2; i++ {
		item, ok, err = sub.Next(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Next: ok=%v err=%v", ok, err)
		}
		if item.Gap || item.Envelope.Sequence <= last {
			t.Fatalf("post-gap item = %+v after %d", item, last)
		}
		last = item.Envelope.Sequence
	}
}

func TestReconnectReplaysFreshSnapshot(t *testing.T) {
	d := newTestDispatcher(t, 4, 8, nil)
	for i := 0; i < 2; i++ {
		if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(t, sub, 2); got[1] != 2 {
		t.Fatalf("first session replay = %v", got)
	}
	d.Unsubscribe(sub)

	for i := 0; i < 3; i++ {
		if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	sub2, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub2)
	got := collect(t, sub2, 4)
	for i, want := range []uint64{2, 3, 4, 5} {
		if got[i] != want {
			t.Fatalf("second session replay = %v, want [2 3 4 5]", got)
		}
	}
}

func TestPublisherReceivesLocalButNotForwarded(t *testing.T) {
	pub := &capturePublisher{}
	d := newTestDispatcher(t, 8, 8, pub)

	if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.IngestForwarded(envelope.Draft{Event: "tick", Origin: "peer"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(pub.sequences()) == 2 })
	got := pub.sequences()
	if got[0] != 1 || got[1] != 3 {
		t.Fatalf("published sequences = %v, want [1 3]", got)
	}
}

func TestForwardedEnvelopeReachesSubscribers(t *testing.T) {
	d := newTestDispatcher(t, 8, 8, nil)
	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)

	env, err := d.IngestForwarded(envelope.Draft{Event: "remote", Origin: "peer"})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, sub, 1)
	if got[0] != env.Sequence {
		t.Fatalf("delivered %v, want %d", got, env.Sequence)
	}
}

func TestSubscribeWithFilter(t *testing.T) {
	d := newTestDispatcher(t, 8, 8, nil)
	sub, err := d.Subscribe(SubscribeOptions{Filter: `event == "keep"`})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Unsubscribe(sub)

	if _, err := d.Ingest(envelope.Draft{Event: "skip", Origin: "test"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Ingest(envelope.Draft{Event: "keep", Origin: "test"}); err != nil {
		t.Fatal(err)
	}

	got := collect(t, sub, 1)
	if got[0] != 2 {
		t.Fatalf("filtered delivery = %v, want [2]", got)
	}
}

func TestSubscribeBadFilter(t *testing.T) {
	d := newTestDispatcher(t, 8, 8, nil)
	if _, err := d.Subscribe(SubscribeOptions{Filter: "event =="}); err == nil {
		t.Fatal("Subscribe accepted an invalid filter expression")
	}
}

func TestCloseStopsIngestAndSubscribers(t *testing.T) {
	d := New(Options{Ring: ring.New(8), QueueBound: 8})
	sub, err := d.Subscribe(SubscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	if _, err := d.Ingest(envelope.Draft{Event: "tick", Origin: "test"}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Ingest after close: %v", err)
	}
	if _, err := d.Subscribe(SubscribeOptions{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Subscribe after close: %v", err)
	}
	if _, _, err := sub.Next(context.Background(), time.Second); !errors.Is(err, ErrSubscriberClosed) {
		t.Fatalf("Next after close: %v", err)
	}
	if d.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount after close = %d", d.SubscriberCount())
	}
}
