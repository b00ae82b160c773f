package tokenstore

import (
	"context"
	"errors"
)

// Slot names one of the two well-known token storage keys.
type Slot string

const (
	// SlotAccess holds the short-lived bearer token used for identity
	// resolution.
	SlotAccess Slot = "access_token"
	// SlotRefresh holds the longer-lived token used to obtain a new access
	// token.
	SlotRefresh Slot = "refresh_token"
)

// ErrUnknownSlot is returned for any slot name outside the two token slots.
var ErrUnknownSlot = errors.New("unknown token slot")

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("token store closed")

// ValidSlot reports whether s is one of the two token slots.
func ValidSlot(s Slot) bool {
	return s == SlotAccess || s == SlotRefresh
}

// Event describes one committed mutation of a token slot. Present is false
// for a clear, in which case Value is empty. Origin identifies the writing
// handle so consumers can distinguish their own writes from external ones.
type Event struct {
	Slot    Slot
	Value   string
	Present bool
	Origin  string
}

// WatchFunc receives change events. It is invoked once per committed
// mutation, after the new value is readable, and must not block for long:
// delivery happens on the mutating goroutine (Memory) or the subscriber
// goroutine (Redis).
type WatchFunc func(Event)

// Store is the token persistence contract consumed by the session
// controller. Get, Set, and Clear operate on exactly the two token slots.
// Watch registers a change observer and returns its cancel function;
// cancel is idempotent and releases the observer unconditionally.
//
// Origin returns the stable identity of this handle's writes. Events whose
// Origin equals this value were produced through this handle.
type Store interface {
	Get(ctx context.Context, slot Slot) (value string, present bool, err error)
	Set(ctx context.Context, slot Slot, value string) error
	Clear(ctx context.Context, slot Slot) error
	Watch(fn WatchFunc) (cancel func(), err error)
	Origin() string
}
