package tabsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rentdesk/tabsession/tokenstore"
)

type captureNotifier struct{ ch chan Outcome }

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan Outcome, 16)}
}

func (n *captureNotifier) Notify(_ context.Context, o Outcome) { n.ch <- o }

func (n *captureNotifier) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-n.ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome notification")
		return Outcome{}
	}
}

func (n *captureNotifier) expectNone(t *testing.T) {
	t.Helper()
	select {
	case o := <-n.ch:
		t.Fatalf("unexpected outcome: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
}

type captureNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *captureNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *captureNavigator) last(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		t.Fatal("no navigation recorded")
	}
	return n.paths[len(n.paths)-1]
}

type providerFixture struct {
	provider *Provider
	store    *tokenstore.Handle
	remote   *tokenstore.Handle
	id       *mockIdentity
	creds    *mockCreds
	notifier *captureNotifier
	nav      *captureNavigator
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()

	substrate := tokenstore.NewMemory()
	f := &providerFixture{
		store:  substrate.Attach(),
		remote: substrate.Attach(),
		id: &mockIdentity{users: map[string]UserRecord{
			"valid-token": {ID: "u-1", Username: "pat", Role: "landlord", Active: true},
		}},
		creds:    &mockCreds{loginPair: TokenPair{Access: "valid-token", Refresh: "refresh-token"}},
		notifier: newCaptureNotifier(),
		nav:      &captureNavigator{},
	}

	provider, err := New().
		WithTokenStore(f.store).
		WithIdentity(f.id).
		WithCredentials(f.creds).
		WithNavigator(f.nav).
		WithNotifier(f.notifier).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f.provider = provider
	t.Cleanup(provider.Close)
	return f
}

func TestMountWithStoredToken(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")

	snap := f.provider.Mount(context.Background())
	if !snap.IsLoggedIn || snap.User.Role != "landlord" || snap.Loading {
		t.Fatalf("expected settled landlord session, got %+v", snap)
	}
}

func TestMountWithEmptyStore(t *testing.T) {
	f := newProviderFixture(t)

	snap := f.provider.Mount(context.Background())
	if snap.IsLoggedIn || snap.User != nil || snap.Loading {
		t.Fatalf("expected settled unauthenticated session, got %+v", snap)
	}
}

func TestLogoutEmitsSuccessOutcome(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")
	ctx := context.Background()
	f.provider.Mount(ctx)

	f.provider.Logout(ctx)

	o := f.notifier.wait(t)
	if o.Op != OpLogout || o.Kind != OutcomeSuccess || o.Err != nil {
		t.Fatalf("expected logout success outcome, got %+v", o)
	}
	if f.provider.Snapshot().IsLoggedIn {
		t.Fatal("expected unauthenticated state after logout")
	}
}

func TestLogoutEmitsFailureOutcomeOnRevokeError(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")
	f.creds.revokeErr = errors.New("identity service down")
	ctx := context.Background()
	f.provider.Mount(ctx)

	f.provider.Logout(ctx)

	o := f.notifier.wait(t)
	if o.Op != OpLogout || o.Kind != OutcomeFailure || !errors.Is(o.Err, ErrRevokeFailed) {
		t.Fatalf("expected logout failure outcome, got %+v", o)
	}
	// The failure is notification-only: local state is gone regardless.
	if f.provider.Snapshot().IsLoggedIn {
		t.Fatal("expected unauthenticated state despite revoke failure")
	}
}

func TestRefreshUserNoOpsWhenLoggedOut(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	f.provider.Mount(ctx)

	f.provider.RefreshUser(ctx)

	if got := f.id.callCount(); got != 0 {
		t.Fatalf("refresh of a logged-out session reached the resolver %d times", got)
	}
	f.notifier.expectNone(t)
}

func TestRefreshUserEmitsFailureOutcome(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")
	ctx := context.Background()
	f.provider.Mount(ctx)

	// The token stops resolving: the session drops and the failure is
	// reported as a notification, never as an error to the caller.
	f.id.mu.Lock()
	delete(f.id.users, "valid-token")
	f.id.mu.Unlock()
	f.creds.renewErr = ErrUnauthorized

	f.provider.RefreshUser(ctx)

	o := f.notifier.wait(t)
	if o.Op != OpRefresh || o.Kind != OutcomeFailure {
		t.Fatalf("expected refresh failure outcome, got %+v", o)
	}
	if f.provider.Snapshot().IsLoggedIn {
		t.Fatal("expected session dropped after failed refresh")
	}
}

func TestLoginEmitsOutcomes(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	f.provider.Mount(ctx)

	f.provider.Login(ctx, "pat", "hunter2")
	o := f.notifier.wait(t)
	if o.Op != OpLogin || o.Kind != OutcomeSuccess {
		t.Fatalf("expected login success outcome, got %+v", o)
	}

	f.provider.Logout(ctx)
	f.notifier.wait(t) // drain logout outcome

	f.creds.loginErr = ErrInvalidCredentials
	f.provider.Login(ctx, "pat", "wrong")
	o = f.notifier.wait(t)
	if o.Op != OpLogin || o.Kind != OutcomeFailure || !errors.Is(o.Err, ErrInvalidCredentials) {
		t.Fatalf("expected login failure outcome, got %+v", o)
	}
}

func TestNavigateToRoleDashboard(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")
	ctx := context.Background()
	f.provider.Mount(ctx)

	f.provider.NavigateToRoleDashboard(ctx)
	if got := f.nav.last(t); got != "/landlord" {
		t.Fatalf("expected /landlord, got %q", got)
	}

	f.provider.Logout(ctx)
	f.provider.NavigateToRoleDashboard(ctx)
	if got := f.nav.last(t); got != "/auth/login" {
		t.Fatalf("expected /auth/login for logged-out navigation, got %q", got)
	}
}

func TestRoleRedirectURLPassthrough(t *testing.T) {
	f := newProviderFixture(t)

	cases := map[string]string{
		"ADMIN":            "/admin",
		"property_manager": "/property-manager",
		"unknown":          "/admin",
	}
	for role, want := range cases {
		if got := f.provider.RoleRedirectURL(role); got != want {
			t.Errorf("RoleRedirectURL(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestCrossTabLogoutThroughProvider(t *testing.T) {
	f := newProviderFixture(t)
	seedToken(t, f.store, tokenstore.SlotAccess, "valid-token")
	ctx := context.Background()

	if snap := f.provider.Mount(ctx); !snap.IsLoggedIn {
		t.Fatalf("precondition: authenticated, got %+v", snap)
	}

	// Another tab clears the access token.
	if err := f.remote.Clear(ctx, tokenstore.SlotAccess); err != nil {
		t.Fatalf("remote clear: %v", err)
	}

	waitUntil(t, "provider to drop session", func() bool {
		snap := f.provider.Snapshot()
		return !snap.IsLoggedIn && !snap.Loading
	})
}

func TestProviderCloseIsIdempotent(t *testing.T) {
	f := newProviderFixture(t)
	f.provider.Mount(context.Background())

	f.provider.Close()
	f.provider.Close()

	// Commands after Close are inert: no panic, no notification.
	f.provider.Logout(context.Background())
	f.notifier.expectNone(t)
}

func TestBuilderValidation(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without token store")
	}
	if _, err := New().WithTokenStore(tokenstore.NewMemory().Attach()).Build(); err == nil {
		t.Fatal("expected error without identity resolver")
	}

	b := New().
		WithTokenStore(tokenstore.NewMemory().Attach()).
		WithIdentity(&mockIdentity{})
	p, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer p.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed on second build, got %v", err)
	}
}
