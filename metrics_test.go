package tabsession

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricHydrationSuccess)
	m.Inc(MetricHydrationSuccess)
	m.Inc(MetricLogoutSuccess)
	m.Inc(metricCount + 1) // out of range, ignored

	snap := m.Snapshot()
	if snap.Counters[MetricHydrationSuccess] != 2 {
		t.Fatalf("expected 2 hydration successes, got %d", snap.Counters[MetricHydrationSuccess])
	}
	if snap.Counters[MetricLogoutSuccess] != 1 {
		t.Fatalf("expected 1 logout success, got %d", snap.Counters[MetricLogoutSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 0 {
		t.Fatalf("expected untouched counter at 0, got %d", snap.Counters[MetricLoginFailure])
	}
}

func TestDisabledMetricsAreNoOp(t *testing.T) {
	m := newMetrics(MetricsConfig{})
	if m != nil {
		t.Fatal("disabled metrics must be a nil registry")
	}

	m.Inc(MetricHydrationSuccess) // nil receiver is valid
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricSyncTriggered)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricSyncTriggered]; got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}
