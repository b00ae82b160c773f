package tabsession

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession/tokenstore"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newSyncFixture(t *testing.T) (*Controller, *Synchronizer, *tokenstore.Handle, *mockIdentity) {
	t.Helper()

	substrate := tokenstore.NewMemory()
	local := substrate.Attach()
	remote := substrate.Attach()

	seedToken(t, local, tokenstore.SlotAccess, "valid-token")
	id := &mockIdentity{users: map[string]UserRecord{
		"valid-token": {ID: "u-1", Role: "tenant"},
	}}
	cfg := defaultConfig()
	ctrl := newController(cfg.Session, local, id, &mockCreds{}, zerolog.Nop(), newMetrics(cfg.Metrics))
	syncer := newSynchronizer(cfg.Sync, ctrl, local, zerolog.Nop())
	return ctrl, syncer, remote, id
}

func TestExternalClearDropsSession(t *testing.T) {
	ctrl, syncer, remote, _ := newSyncFixture(t)
	ctx := context.Background()

	if _, err := ctrl.FetchUser(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !ctrl.Snapshot().IsLoggedIn {
		t.Fatal("precondition: authenticated")
	}

	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer syncer.Stop()

	// Another tab signs out: it clears the shared token slots.
	if err := remote.Clear(ctx, tokenstore.SlotAccess); err != nil {
		t.Fatalf("remote clear: %v", err)
	}

	waitUntil(t, "session to drop", func() bool {
		snap := ctrl.Snapshot()
		return !snap.IsLoggedIn && !snap.Loading
	})
	if got := ctrl.MetricsSnapshot().Counters[MetricSyncTriggered]; got == 0 {
		t.Fatal("expected a sync-triggered hydration to be counted")
	}
}

func TestExternalTokenWriteRehydrates(t *testing.T) {
	ctrl, syncer, remote, id := newSyncFixture(t)
	ctx := context.Background()

	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer syncer.Stop()

	// Another tab signs in as a different user.
	id.mu.Lock()
	id.users["other-token"] = UserRecord{ID: "u-2", Role: "landlord"}
	id.mu.Unlock()
	if err := remote.Set(ctx, tokenstore.SlotAccess, "other-token"); err != nil {
		t.Fatalf("remote set: %v", err)
	}

	waitUntil(t, "new identity to land", func() bool {
		snap := ctrl.Snapshot()
		return snap.IsLoggedIn && snap.User.ID == "u-2" && !snap.Loading
	})
}

func TestOwnWritesDoNotTriggerSync(t *testing.T) {
	ctrl, syncer, _, id := newSyncFixture(t)
	ctx := context.Background()

	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer syncer.Stop()

	// Mutations through the controller's own handle must be filtered out.
	if err := ctrl.store.Set(ctx, tokenstore.SlotAccess, "valid-token"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ctrl.store.Set(ctx, tokenstore.SlotRefresh, "r1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := ctrl.MetricsSnapshot().Counters[MetricSyncTriggered]; got != 0 {
		t.Fatalf("own writes triggered %d sync hydrations", got)
	}
	if id.callCount() != 0 {
		t.Fatalf("own writes caused %d resolver calls", id.callCount())
	}
}

func TestStopReleasesWatcher(t *testing.T) {
	ctrl, syncer, remote, _ := newSyncFixture(t)
	ctx := context.Background()

	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	syncer.Stop()
	syncer.Stop() // idempotent

	if err := remote.Clear(ctx, tokenstore.SlotAccess); err != nil {
		t.Fatalf("remote clear: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := ctrl.MetricsSnapshot().Counters[MetricSyncTriggered]; got != 0 {
		t.Fatalf("stopped synchronizer still triggered %d hydrations", got)
	}
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	_, syncer, _, _ := newSyncFixture(t)
	syncer.Stop()
}

func TestRestartAfterStop(t *testing.T) {
	ctrl, syncer, remote, _ := newSyncFixture(t)
	ctx := context.Background()

	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	syncer.Stop()
	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer syncer.Stop()

	if err := remote.Set(ctx, tokenstore.SlotAccess, "valid-token"); err != nil {
		t.Fatalf("remote set: %v", err)
	}
	waitUntil(t, "restarted synchronizer to hydrate", func() bool {
		return ctrl.MetricsSnapshot().Counters[MetricSyncTriggered] > 0
	})
}
