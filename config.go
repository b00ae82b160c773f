package tabsession

import (
	"errors"
	"time"

	"github.com/rentdesk/tabsession/roleroute"
)

// Config defines the tunable behavior of a [Provider] and its controller.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable; Build clones the config it is given.
type Config struct {
	Session SessionConfig
	Router  roleroute.Config
	Sync    SyncConfig
	Notify  NotifyConfig
	Metrics MetricsConfig
}

// SessionConfig governs hydration and credential handling.
type SessionConfig struct {
	// HydrateTimeout bounds a single identity resolution call. Zero means
	// no controller-imposed deadline beyond the caller's context.
	HydrateTimeout time.Duration
	// RenewOnUnauthorized enables one refresh-token exchange and retry
	// when hydration is rejected with an unauthorized error while a
	// refresh token is present.
	RenewOnUnauthorized bool
	// AllowStaleHydration disables generation fencing. With fencing on
	// (the default), a hydration result is discarded when a newer
	// hydration or a logout started after it was issued. With it off,
	// overlapping hydrations settle last-write-wins, which can let a
	// late stale result overwrite a newer one.
	AllowStaleHydration bool
}

// SyncConfig governs the cross-tab synchronizer.
type SyncConfig struct {
	// QueueSize is the event buffer between the storage watcher and the
	// hydration loop. Each queued event triggers one independent
	// hydration; events are never coalesced.
	QueueSize int
}

// NotifyConfig governs the async outcome dispatcher.
type NotifyConfig struct {
	// BufferSize is the outcome channel capacity.
	BufferSize int
	// DropIfFull drops outcomes instead of blocking when the buffer is
	// full. Dropped outcomes are counted.
	DropIfFull bool
}

// MetricsConfig governs the lock-free counter registry.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			HydrateTimeout:      10 * time.Second,
			RenewOnUnauthorized: true,
		},
		Sync: SyncConfig{
			QueueSize: 16,
		},
		Notify: NotifyConfig{
			BufferSize: 32,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Router.Routes != nil {
		routes := make(map[string]string, len(cfg.Router.Routes))
		for role, path := range cfg.Router.Routes {
			routes[role] = path
		}
		out.Router.Routes = routes
	}
	return out
}

// Validate reports the first configuration error found.
func (c Config) Validate() error {
	if c.Session.HydrateTimeout < 0 {
		return errors.New("session: negative hydrate timeout")
	}
	if c.Sync.QueueSize <= 0 {
		return errors.New("sync: queue size must be positive")
	}
	if c.Notify.BufferSize <= 0 {
		return errors.New("notify: buffer size must be positive")
	}
	for role, path := range c.Router.Routes {
		if role == "" {
			return errors.New("router: empty role in route table")
		}
		if path == "" || path[0] != '/' {
			return errors.New("router: route paths must start with '/'")
		}
	}
	return nil
}
