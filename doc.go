// Package tabsession manages the client-side authentication session of a
// browser-style tab: token storage, identity hydration, cross-tab
// synchronization, and role-based landing routes for a multi-role property
// management application (admin, property manager, tenant, landlord).
//
// The package is designed around injected collaborators: callers provide a
// [tokenstore.Store], an [IdentityResolver], and optionally a
// [CredentialService], [Navigator], and [Notifier] through [Builder.Build].
// After Build, the resulting [Provider] and its [Controller] are safe for
// concurrent use.
//
// # Architecture boundaries
//
// tabsession is the public surface. It exposes [Provider], [Controller],
// [Builder], [Config], and value types (State, UserRecord, Outcome). Token
// persistence lives in tokenstore, route resolution in roleroute, claim
// peeking in claims, and the default HTTP collaborator in identity.
//
// # What this package must NOT do
//
//   - Issue, sign, or cryptographically validate tokens. Tokens are opaque
//     bearer credentials; the identity service owns their meaning.
//   - Surface collaborator failures to consumers as returned errors from
//     Provider commands. Failures become state transitions and [Outcome]
//     notifications, never panics or propagated errors.
//   - Store anything beyond the two token slots in the storage substrate.
//
// # Consistency contract
//
// At every observable [State], IsLoggedIn == (User != nil). A hydration,
// login, or logout in flight is visible as Loading == true and is always
// eventually cleared. Within one Logout call, both token slots are cleared
// before the in-memory user is cleared, so an observer reacting to the
// storage change never sees a half-torn session.
package tabsession
