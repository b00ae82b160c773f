package tabsession

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// notifyDispatcher decouples command settlement from outcome display: the
// controller path never blocks on however slow the host application's
// toast layer is. Outcomes are delivered in order from a single worker
// goroutine and the buffer is drained on Close.
type notifyDispatcher struct {
	cfg       NotifyConfig
	sink      Notifier
	metrics   *Metrics
	ch        chan Outcome
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sink Notifier, metrics *Metrics) *notifyDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpNotifier{}
	}

	d := &notifyDispatcher{
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		ch:      make(chan Outcome, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case outcome := <-d.ch:
			d.sink.Notify(context.Background(), outcome)
		case <-d.done:
			for {
				select {
				case outcome := <-d.ch:
					d.sink.Notify(context.Background(), outcome)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) emit(op string, kind OutcomeKind, message string, err error) {
	if d == nil || d.closed.Load() {
		return
	}

	outcome := Outcome{
		ID:      uuid.NewString(),
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
		At:      time.Now(),
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- outcome:
		case <-d.done:
		default:
			d.dropped.Add(1)
			d.metrics.Inc(MetricNotificationDropped)
		}
		return
	}

	select {
	case d.ch <- outcome:
	case <-d.done:
	}
}

// Dropped returns how many outcomes were discarded by a full buffer.
func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains buffered outcomes and stops the worker. Idempotent.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
