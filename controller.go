package tabsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession/claims"
	"github.com/rentdesk/tabsession/tokenstore"
)

// Controller owns the in-memory session state machine. It is constructed
// through [Builder.Build] and driven by the Provider, the cross-tab
// synchronizer, and any consumer holding a reference.
//
// All exported methods are safe for concurrent use. State mutations are
// serialized under an internal mutex; collaborator calls (identity
// resolution, credential exchange, store I/O) happen outside it.
type Controller struct {
	cfg      SessionConfig
	store    tokenstore.Store
	identity IdentityResolver
	creds    CredentialService
	log      zerolog.Logger
	metrics  *Metrics

	mu       sync.Mutex
	settled  SessionPhase
	user     *UserRecord
	inflight int
	gen      uint64
	subs     map[uint64]func(State)
	nextSub  uint64
	closed   bool
}

func newController(cfg SessionConfig, store tokenstore.Store, identity IdentityResolver, creds CredentialService, logger zerolog.Logger, metrics *Metrics) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    store,
		identity: identity,
		creds:    creds,
		log:      logger.With().Str("component", "session").Logger(),
		metrics:  metrics,
		settled:  PhaseInit,
		subs:     make(map[uint64]func(State)),
	}
}

// Snapshot returns the current read-only session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	phase := c.settled
	if c.inflight > 0 {
		phase = PhaseLoading
	}
	var user *UserRecord
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return State{
		Phase:      phase,
		User:       user,
		IsLoggedIn: c.user != nil,
		Loading:    c.inflight > 0,
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// state change, including the transition into loading. The returned cancel
// releases the subscription and is idempotent. fn runs on the goroutine
// that caused the change and must not call back into the Controller.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// begin opens one operation: marks the session loading, advances the
// hydration generation, and notifies subscribers. The returned generation
// fences the operation's result against newer operations.
func (c *Controller) begin() (uint64, []func(State), State, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return 0, nil, snap, ErrControllerClosed
	}
	c.inflight++
	c.gen++
	gen := c.gen
	snap := c.snapshotLocked()
	subs := c.subsLocked()
	c.mu.Unlock()
	return gen, subs, snap, nil
}

func (c *Controller) subsLocked() []func(State) {
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return fns
}

func fanout(subs []func(State), snap State) {
	for _, fn := range subs {
		fn(snap)
	}
}

// settle closes one hydration-style operation. The result is applied
// unless fencing is enabled and a newer operation started after gen was
// issued, in which case it is discarded and the current state stands.
func (c *Controller) settle(gen uint64, user *UserRecord, opErr error) State {
	c.mu.Lock()
	c.inflight--
	stale := !c.cfg.AllowStaleHydration && gen != c.gen
	if stale {
		c.metrics.Inc(MetricHydrationStaleDropped)
	} else {
		if opErr != nil || user == nil {
			c.user = nil
			c.settled = PhaseUnauthenticated
		} else {
			u := *user
			c.user = &u
			c.settled = PhaseAuthenticated
		}
	}
	snap := c.snapshotLocked()
	subs := c.subsLocked()
	c.mu.Unlock()

	if stale {
		c.log.Debug().Uint64("gen", gen).Msg("discarding stale hydration result")
	}
	fanout(subs, snap)
	return snap
}

// FetchUser re-hydrates the user identity from the stored access token.
// It is idempotent and safe to invoke concurrently; with fencing enabled
// (the default) the most recently issued call determines the final state.
//
// A missing token pair is the quiet path: the session settles
// unauthenticated and the returned error is nil. Resolution failures also
// settle unauthenticated and are returned for observability; callers that
// only care about state may ignore the error.
func (c *Controller) FetchUser(ctx context.Context) (State, error) {
	gen, subs, snap, err := c.begin()
	if err != nil {
		return snap, err
	}
	fanout(subs, snap)

	user, err := c.resolveStored(ctx)
	snap = c.settle(gen, user, err)

	switch {
	case err == nil:
		c.metrics.Inc(MetricHydrationSuccess)
		return snap, nil
	case errors.Is(err, ErrNoSession):
		c.metrics.Inc(MetricHydrationNoSession)
		return snap, nil
	default:
		c.metrics.Inc(MetricHydrationFailure)
		c.log.Warn().Err(err).Msg("hydration failed")
		return snap, err
	}
}

// resolveStored reads the access token and resolves it to an identity,
// renewing the token pair once when permitted.
func (c *Controller) resolveStored(ctx context.Context) (*UserRecord, error) {
	access, present, err := c.store.Get(ctx, tokenstore.SlotAccess)
	if err != nil {
		return nil, err
	}
	if !present || access == "" {
		return nil, ErrNoSession
	}

	renewable := c.cfg.RenewOnUnauthorized && c.creds != nil
	renewed := false

	// A token already expired by local clock is certain to be rejected;
	// skip the doomed round-trip and go straight to renewal.
	if renewable {
		if peeked, perr := claims.Peek(access); perr == nil && peeked.Expired(time.Now()) {
			if pair, rerr := c.renew(ctx); rerr == nil {
				access = pair.Access
				renewed = true
			}
		}
	}

	user, err := c.resolveToken(ctx, access)
	if err == nil {
		return user, nil
	}
	if renewable && !renewed && errors.Is(err, ErrUnauthorized) {
		pair, rerr := c.renew(ctx)
		if rerr != nil {
			return nil, err
		}
		return c.resolveToken(ctx, pair.Access)
	}
	return nil, err
}

func (c *Controller) resolveToken(ctx context.Context, access string) (*UserRecord, error) {
	if c.cfg.HydrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HydrateTimeout)
		defer cancel()
	}
	return c.identity.ResolveIdentity(ctx, access)
}

// renew exchanges the stored refresh token for a fresh pair and persists
// it, access slot first.
func (c *Controller) renew(ctx context.Context) (TokenPair, error) {
	refresh, present, err := c.store.Get(ctx, tokenstore.SlotRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if !present || refresh == "" {
		return TokenPair{}, ErrNoSession
	}

	pair, err := c.creds.Renew(ctx, refresh)
	if err != nil {
		c.metrics.Inc(MetricRenewFailure)
		c.log.Warn().Err(err).Msg("token renewal failed")
		return TokenPair{}, errors.Join(ErrRenewFailed, err)
	}
	if err := c.store.Set(ctx, tokenstore.SlotAccess, pair.Access); err != nil {
		return TokenPair{}, err
	}
	if err := c.store.Set(ctx, tokenstore.SlotRefresh, pair.Refresh); err != nil {
		return TokenPair{}, err
	}
	c.metrics.Inc(MetricRenewSuccess)
	return pair, nil
}

// RenewTokens exchanges the stored refresh token for a fresh pair and
// persists it, without re-hydrating the identity. Hydration drives renewal
// itself when a stored token stops resolving; this exists for callers that
// want to refresh credentials ahead of expiry.
func (c *Controller) RenewTokens(ctx context.Context) (TokenPair, error) {
	if c.creds == nil {
		return TokenPair{}, ErrNoCredentialService
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return TokenPair{}, ErrControllerClosed
	}
	return c.renew(ctx)
}

// Login exchanges credentials for a token pair, persists it, and hydrates
// the identity, all as one loading operation. On exchange failure the
// session settles unauthenticated and the exchange error is returned.
func (c *Controller) Login(ctx context.Context, username, password string) (State, error) {
	if c.creds == nil {
		return c.Snapshot(), ErrNoCredentialService
	}
	gen, subs, snap, err := c.begin()
	if err != nil {
		return snap, err
	}
	fanout(subs, snap)

	pair, err := c.creds.Login(ctx, username, password)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return c.settle(gen, nil, err), err
	}
	if err := c.store.Set(ctx, tokenstore.SlotAccess, pair.Access); err != nil {
		return c.settle(gen, nil, err), err
	}
	if err := c.store.Set(ctx, tokenstore.SlotRefresh, pair.Refresh); err != nil {
		return c.settle(gen, nil, err), err
	}

	user, err := c.resolveToken(ctx, pair.Access)
	snap = c.settle(gen, user, err)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return snap, err
	}
	c.metrics.Inc(MetricLoginSuccess)
	return snap, nil
}

// Logout revokes the session remotely on a best-effort basis, clears both
// token slots, and only then clears the in-memory user. Local teardown is
// unconditional: a failed revoke still leaves the tab unauthenticated with
// an empty store, and the failure is reported via [ErrRevokeFailed].
func (c *Controller) Logout(ctx context.Context) (State, error) {
	_, subs, snap, err := c.begin()
	if err != nil {
		return snap, err
	}
	fanout(subs, snap)

	var revokeErr error
	if c.creds != nil {
		if access, present, gerr := c.store.Get(ctx, tokenstore.SlotAccess); gerr == nil && present && access != "" {
			revokeErr = c.creds.Revoke(ctx, access)
		}
	}

	// Both slots clear before the user does: an observer reacting to the
	// storage change always finds a fully-cleared store.
	clearErr := errors.Join(
		c.store.Clear(ctx, tokenstore.SlotAccess),
		c.store.Clear(ctx, tokenstore.SlotRefresh),
	)

	c.mu.Lock()
	// Advance the generation so an in-flight hydration that started before
	// this logout cannot resurrect the session when fencing is enabled.
	c.gen++
	c.inflight--
	c.user = nil
	c.settled = PhaseUnauthenticated
	snap = c.snapshotLocked()
	fns := c.subsLocked()
	c.mu.Unlock()
	fanout(fns, snap)

	if revokeErr != nil {
		c.metrics.Inc(MetricLogoutRevokeFailed)
		c.log.Warn().Err(revokeErr).Msg("remote revoke failed, local session cleared anyway")
		return snap, errors.Join(ErrRevokeFailed, revokeErr)
	}
	if clearErr != nil {
		c.log.Warn().Err(clearErr).Msg("token store clear failed during logout")
		return snap, clearErr
	}
	c.metrics.Inc(MetricLogoutSuccess)
	return snap, nil
}

// MetricsSnapshot exposes the counter registry.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Controller) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
