// Package tokenstore provides durable, tab-local persistence for the access
// and refresh token slots, with change notification semantics modeled on
// browser storage events: every mutation is observable by any other
// execution context attached to the same substrate.
//
// Two implementations are provided. [Memory] is an in-process substrate
// whose handles stand in for browser tabs sharing one origin. [Redis] uses
// a shared Redis instance for the values and a pub/sub channel for the
// change notifications, so separate processes observe each other's
// mutations.
//
// # Architecture boundaries
//
// This package owns token persistence and change fan-out. It does NOT
// interpret tokens, resolve identities, or decide what a change means —
// those responsibilities belong to the session controller.
//
// # What this package must NOT do
//
//   - Import tabsession or any of its other sub-packages (no upward imports).
//   - Accept slot names outside the two token slots.
//   - Expose a value mid-write: a read never observes a torn mutation.
package tokenstore
