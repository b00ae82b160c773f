package tabsession

import (
	"context"
	"time"
)

// SessionPhase is the lifecycle state of the in-memory session.
type SessionPhase uint8

const (
	// PhaseInit means no hydration has been attempted yet.
	PhaseInit SessionPhase = iota
	// PhaseLoading means a hydration, login, or logout is in flight.
	PhaseLoading
	// PhaseAuthenticated means a user identity is present.
	PhaseAuthenticated
	// PhaseUnauthenticated means no user is present and nothing is in flight.
	PhaseUnauthenticated
)

// String returns the lower-case phase name.
func (p SessionPhase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// UserRecord is the identity record returned by the identity-resolution
// collaborator. It is treated as immutable once fetched and replaced
// wholesale on each hydration, never partially patched.
type UserRecord struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	Verified    bool   `json:"verified"`
}

// TokenPair is the access/refresh credential pair produced by the
// credential-exchange collaborator and persisted in the token store.
// Absence of either half is equivalent to "no session".
type TokenPair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// State is the read-only projection of the session exposed to consumers.
// Invariant: IsLoggedIn == (User != nil) in every State ever observed.
type State struct {
	Phase      SessionPhase
	User       *UserRecord
	IsLoggedIn bool
	Loading    bool
}

// IdentityResolver resolves a stored access token into a user identity.
// Implementations must return [ErrUnauthorized] (possibly wrapped) when the
// token is rejected and [ErrIdentityUnavailable] for transport or
// server-side failures, so the controller can tell the two apart.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*UserRecord, error)
}

// CredentialService is the credential-exchange collaborator: it produces
// and invalidates token pairs. All methods may suspend on network I/O.
type CredentialService interface {
	Login(ctx context.Context, username, password string) (TokenPair, error)
	Renew(ctx context.Context, refreshToken string) (TokenPair, error)
	Revoke(ctx context.Context, accessToken string) error
}

// Navigator performs a client-side route change. It is the single
// integration point between the session core and the host application's
// routing; implementations must not block.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// OutcomeKind classifies a command outcome.
type OutcomeKind uint8

const (
	// OutcomeSuccess is emitted when a command settled successfully.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure is emitted when a command settled with a failure that
	// was absorbed at the session boundary.
	OutcomeFailure
)

// Outcome is the typed result of a Provider command, handed to the
// [Notifier] instead of being returned to the caller. Err is nil for
// success outcomes.
type Outcome struct {
	ID      string
	Op      string
	Kind    OutcomeKind
	Message string
	Err     error
	At      time.Time
}

// Command names carried in [Outcome.Op].
const (
	OpLogin   = "login"
	OpLogout  = "logout"
	OpRefresh = "refresh_user"
)

// Notifier receives command outcomes for user-visible display. Delivery is
// fire-and-forget; the core never consumes a return value.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome)
}

// NoOpNotifier discards every outcome. It is the default sink when none is
// configured.
type NoOpNotifier struct{}

// Notify implements [Notifier] by doing nothing.
func (NoOpNotifier) Notify(context.Context, Outcome) {}

// NoOpNavigator discards navigation requests.
type NoOpNavigator struct{}

// Navigate implements [Navigator] by doing nothing.
func (NoOpNavigator) Navigate(context.Context, string) {}
