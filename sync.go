package tabsession

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession/tokenstore"
)

// Synchronizer watches the token store for mutations made outside this
// controller — another tab, another process — and re-hydrates the session
// for each one. Events written through the controller's own store handle
// are ignored; events on non-token slots never reach the store contract.
//
// Events are not debounced or coalesced: each qualifying event triggers
// one independent FetchUser, in arrival order. A rapid burst therefore
// produces a burst of hydrations; with fencing enabled only the newest
// result lands.
type Synchronizer struct {
	ctrl  *Controller
	store tokenstore.Store
	log   zerolog.Logger
	queue int

	mu          sync.Mutex
	cancelWatch func()
	events      chan tokenstore.Event
	done        chan struct{}
	wg          sync.WaitGroup
}

func newSynchronizer(cfg SyncConfig, ctrl *Controller, store tokenstore.Store, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		ctrl:  ctrl,
		store: store,
		log:   logger.With().Str("component", "crosstab").Logger(),
		queue: cfg.QueueSize,
	}
}

// Start acquires the watch subscription and begins processing events.
// Starting an already started synchronizer is an error.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelWatch != nil {
		return errors.New("synchronizer already started")
	}

	events := make(chan tokenstore.Event, s.queue)
	done := make(chan struct{})
	origin := s.store.Origin()

	cancel, err := s.store.Watch(func(ev tokenstore.Event) {
		if ev.Origin == origin {
			return
		}
		select {
		case events <- ev:
		case <-done:
		}
	})
	if err != nil {
		return err
	}

	s.cancelWatch = cancel
	s.events = events
	s.done = done
	s.wg.Add(1)
	go s.run(ctx, events, done)
	return nil
}

func (s *Synchronizer) run(ctx context.Context, events <-chan tokenstore.Event, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case ev := <-events:
			s.log.Debug().
				Str("slot", string(ev.Slot)).
				Bool("present", ev.Present).
				Msg("external token change, re-hydrating")
			s.ctrl.metrics.Inc(MetricSyncTriggered)
			if _, err := s.ctrl.FetchUser(ctx); err != nil && !errors.Is(err, ErrControllerClosed) {
				s.log.Debug().Err(err).Msg("sync-triggered hydration failed")
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop releases the watch subscription and waits for the event loop to
// drain. Stop is idempotent and safe to call on a never-started
// synchronizer, so teardown paths can call it unconditionally.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancelWatch
	done := s.done
	s.cancelWatch = nil
	s.events = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	close(done)
	s.wg.Wait()
}
