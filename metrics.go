package tabsession

import "sync/atomic"

// MetricID identifies one counter in the metrics registry.
type MetricID uint16

const (
	// MetricHydrationSuccess counts hydrations that resolved an identity.
	MetricHydrationSuccess MetricID = iota
	// MetricHydrationNoSession counts hydrations that found no usable token.
	MetricHydrationNoSession
	// MetricHydrationFailure counts hydrations rejected or failed upstream.
	MetricHydrationFailure
	// MetricHydrationStaleDropped counts fenced-out hydration results.
	MetricHydrationStaleDropped
	// MetricSyncTriggered counts hydrations triggered by cross-tab events.
	MetricSyncTriggered
	// MetricLoginSuccess counts successful credential exchanges.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected or failed credential exchanges.
	MetricLoginFailure
	// MetricLogoutSuccess counts logouts whose remote revoke succeeded.
	MetricLogoutSuccess
	// MetricLogoutRevokeFailed counts logouts whose remote revoke failed.
	// Local state is cleared either way.
	MetricLogoutRevokeFailed
	// MetricRenewSuccess counts successful refresh-token exchanges.
	MetricRenewSuccess
	// MetricRenewFailure counts failed refresh-token exchanges.
	MetricRenewFailure
	// MetricNavigation counts role-dashboard navigations performed.
	MetricNavigation
	// MetricNotificationDropped counts outcomes dropped by a full
	// dispatcher buffer.
	MetricNotificationDropped

	metricCount
)

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Metrics is a lock-free counter registry. A nil *Metrics is a valid no-op
// receiver, which is how a disabled registry is represented.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies all counters. A nil receiver yields an empty snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
