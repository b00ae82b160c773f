package tabsession

import (
	"context"
	"sync"
	"testing"
	"time"
)

type slowNotifier struct {
	mu    sync.Mutex
	seen  []Outcome
	delay time.Duration
}

func (n *slowNotifier) Notify(_ context.Context, o Outcome) {
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	n.mu.Lock()
	n.seen = append(n.seen, o)
	n.mu.Unlock()
}

func (n *slowNotifier) outcomes() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Outcome, len(n.seen))
	copy(out, n.seen)
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &slowNotifier{}
	d := newNotifyDispatcher(NotifyConfig{BufferSize: 8}, sink, nil)

	d.emit(OpLogin, OutcomeSuccess, "one", nil)
	d.emit(OpLogout, OutcomeSuccess, "two", nil)
	d.emit(OpRefresh, OutcomeFailure, "three", ErrUnauthorized)
	d.Close()

	got := sink.outcomes()
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got[i].Message != want {
			t.Fatalf("outcome %d = %q, want %q", i, got[i].Message, want)
		}
		if got[i].ID == "" || got[i].At.IsZero() {
			t.Fatalf("outcome %d missing ID or timestamp: %+v", i, got[i])
		}
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &slowNotifier{delay: 5 * time.Millisecond}
	d := newNotifyDispatcher(NotifyConfig{BufferSize: 16}, sink, nil)

	for i := 0; i < 10; i++ {
		d.emit(OpRefresh, OutcomeSuccess, "queued", nil)
	}
	d.Close()

	if got := len(sink.outcomes()); got != 10 {
		t.Fatalf("Close must drain the buffer, delivered %d of 10", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &gatedNotifier{gate: block}
	metrics := newMetrics(MetricsConfig{Enabled: true})
	d := newNotifyDispatcher(NotifyConfig{BufferSize: 1, DropIfFull: true}, sink, metrics)

	// First outcome occupies the worker, second fills the buffer, the
	// rest must drop.
	for i := 0; i < 5; i++ {
		d.emit(OpLogout, OutcomeSuccess, "burst", nil)
	}
	close(block)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected dropped outcomes")
	}
	if metrics.Snapshot().Counters[MetricNotificationDropped] != d.Dropped() {
		t.Fatal("drop counter and metric disagree")
	}
}

type gatedNotifier struct {
	gate <-chan struct{}
	once sync.Once
}

func (n *gatedNotifier) Notify(context.Context, Outcome) {
	n.once.Do(func() { <-n.gate })
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := newNotifyDispatcher(NotifyConfig{BufferSize: 1}, nil, nil)
	d.Close()
	d.Close()
	d.emit(OpLogin, OutcomeSuccess, "after close", nil) // must not panic
}
