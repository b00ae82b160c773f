package tokenstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process storage substrate shared by one or more handles.
// Each [Handle] models one browser tab attached to the substrate: writes
// through any handle are visible to reads through every handle, and every
// registered watcher observes exactly one event per committed mutation.
type Memory struct {
	mu       sync.Mutex
	values   map[Slot]string
	watchers map[uint64]WatchFunc
	nextID   uint64
}

// NewMemory returns an empty substrate with no attached handles.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[Slot]string, 2),
		watchers: make(map[uint64]WatchFunc),
	}
}

// Attach creates a new handle with its own origin identity.
func (m *Memory) Attach() *Handle {
	return &Handle{substrate: m, origin: uuid.NewString()}
}

func (m *Memory) get(slot Slot) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[slot]
	return v, ok
}

// mutate commits the change and returns the watcher snapshot to notify.
// The value is fully committed before any watcher can run, so a concurrent
// read observes either the old or the new value, never a torn state.
func (m *Memory) mutate(slot Slot, value string, present bool) []WatchFunc {
	m.mu.Lock()
	if present {
		m.values[slot] = value
	} else {
		delete(m.values, slot)
	}
	fns := make([]WatchFunc, 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	return fns
}

func (m *Memory) watch(fn WatchFunc) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

// Handle is one tab's view of a [Memory] substrate. It implements [Store].
type Handle struct {
	substrate *Memory
	origin    string
}

// Origin returns the handle's writer identity.
func (h *Handle) Origin() string { return h.origin }

// Get reads a slot. The context is accepted for interface symmetry with
// remote stores and is not consulted.
func (h *Handle) Get(_ context.Context, slot Slot) (string, bool, error) {
	if !ValidSlot(slot) {
		return "", false, ErrUnknownSlot
	}
	v, ok := h.substrate.get(slot)
	return v, ok, nil
}

// Set writes a slot and notifies every watcher attached to the substrate.
func (h *Handle) Set(_ context.Context, slot Slot, value string) error {
	if !ValidSlot(slot) {
		return ErrUnknownSlot
	}
	ev := Event{Slot: slot, Value: value, Present: true, Origin: h.origin}
	for _, fn := range h.substrate.mutate(slot, value, true) {
		fn(ev)
	}
	return nil
}

// Clear removes a slot and notifies every watcher attached to the
// substrate. Clearing an absent slot still emits an event, matching
// browser storage semantics for removeItem.
func (h *Handle) Clear(_ context.Context, slot Slot) error {
	if !ValidSlot(slot) {
		return ErrUnknownSlot
	}
	ev := Event{Slot: slot, Present: false, Origin: h.origin}
	for _, fn := range h.substrate.mutate(slot, "", false) {
		fn(ev)
	}
	return nil
}

// Watch registers fn for every subsequent mutation on the substrate,
// including mutations made through this handle. The returned cancel is
// idempotent.
func (h *Handle) Watch(fn WatchFunc) (func(), error) {
	if fn == nil {
		return func() {}, nil
	}
	return h.substrate.watch(fn), nil
}
