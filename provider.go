package tabsession

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession/roleroute"
)

// Provider is the composition layer handed to the rest of the application.
// It wires the [Controller], the role router, the cross-tab synchronizer,
// and the outcome dispatcher into one surface: a read-only state
// projection plus a small set of commands.
//
// Commands never return errors. Every command settles into an [Outcome]
// delivered to the configured [Notifier]; failures otherwise surface only
// as the loss of authenticated state.
type Provider struct {
	ctrl    *Controller
	router  *roleroute.Router
	syncer  *Synchronizer
	notify  *notifyDispatcher
	nav     Navigator
	log     zerolog.Logger
	metrics *Metrics

	closeOnce sync.Once
}

// Mount starts the cross-tab synchronizer and runs the initial hydration
// from the token store, returning the settled state. The synchronizer
// starts first so a mutation racing the initial hydration is not missed.
func (p *Provider) Mount(ctx context.Context) State {
	if err := p.syncer.Start(ctx); err != nil {
		p.log.Warn().Err(err).Msg("cross-tab synchronizer failed to start")
	}
	snap, _ := p.ctrl.FetchUser(ctx)
	return snap
}

// Close tears the provider down: the synchronizer subscription is released
// unconditionally, pending notifications are drained, and subsequent
// controller operations fail with [ErrControllerClosed]. Idempotent.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.ctrl.close()
		p.syncer.Stop()
		p.notify.Close()
	})
}

// Snapshot returns the current session projection.
func (p *Provider) Snapshot() State { return p.ctrl.Snapshot() }

// Subscribe registers a state observer on the underlying controller.
func (p *Provider) Subscribe(fn func(State)) func() { return p.ctrl.Subscribe(fn) }

// Controller exposes the underlying session controller for callers that
// need operation results directly, such as tests or the synchronizer.
func (p *Provider) Controller() *Controller { return p.ctrl }

// Login exchanges credentials for a session and reports the outcome.
func (p *Provider) Login(ctx context.Context, username, password string) {
	_, err := p.ctrl.Login(ctx, username, password)
	if err != nil {
		if !errors.Is(err, ErrControllerClosed) {
			p.notify.emit(OpLogin, OutcomeFailure, "Sign-in failed", err)
		}
		return
	}
	p.notify.emit(OpLogin, OutcomeSuccess, "Signed in", nil)
}

// Logout tears the session down and reports the outcome. Local state is
// cleared even when the remote revoke fails; the failure variant of the
// notification is the only trace of it.
func (p *Provider) Logout(ctx context.Context) {
	_, err := p.ctrl.Logout(ctx)
	if err != nil && !errors.Is(err, ErrControllerClosed) {
		p.notify.emit(OpLogout, OutcomeFailure, "Signed out locally, but the server could not be reached", err)
		return
	}
	if err == nil {
		p.notify.emit(OpLogout, OutcomeSuccess, "Signed out", nil)
	}
}

// RefreshUser re-hydrates the identity of an authenticated session. It
// no-ops when no user is present; failures surface as a notification and
// the resulting unauthenticated state, never as an error.
func (p *Provider) RefreshUser(ctx context.Context) {
	if !p.ctrl.Snapshot().IsLoggedIn {
		return
	}
	if _, err := p.ctrl.FetchUser(ctx); err != nil && !errors.Is(err, ErrControllerClosed) {
		p.notify.emit(OpRefresh, OutcomeFailure, "Could not refresh your session", err)
	}
}

// NavigateToRoleDashboard routes the current user to their role's landing
// page, or to the login page when no user is present.
func (p *Provider) NavigateToRoleDashboard(ctx context.Context) {
	snap := p.ctrl.Snapshot()
	path := p.router.LoginPath()
	if snap.User != nil {
		path = p.router.Resolve(snap.User.Role)
	}
	p.metrics.Inc(MetricNavigation)
	p.log.Debug().Str("path", path).Msg("navigating to role dashboard")
	p.nav.Navigate(ctx, path)
}

// RoleRedirectURL resolves a role to its landing path without navigating.
func (p *Provider) RoleRedirectURL(role string) string {
	return p.router.Resolve(role)
}

// NotificationsDropped reports outcomes discarded by a full dispatcher
// buffer since construction.
func (p *Provider) NotificationsDropped() uint64 { return p.notify.Dropped() }

// MetricsSnapshot exposes the counter registry.
func (p *Provider) MetricsSnapshot() MetricsSnapshot { return p.metrics.Snapshot() }
