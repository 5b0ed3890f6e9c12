package stock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FetchTracker issues monotonically increasing fetch tokens per draft.
// Beginning a new fetch cancels the context of the one it supersedes, and only the
// holder of the latest token may apply its result. Tokens come from one counter shared
// by all drafts, so a token is never issued twice. State for a draft is dropped once
// none of its fetches is in flight.
type FetchTracker struct {
	mu      sync.Mutex
	next    uint64
	fetches map[uuid.UUID]*fetchState
}

type fetchState struct {
	first    uint64 // tokens below first belong to state dropped by Forget
	token    uint64
	cancel   context.CancelFunc
	inFlight int
}

// NewFetchTracker creates an empty tracker
func NewFetchTracker() *FetchTracker {
	return &FetchTracker{
		fetches: make(map[uuid.UUID]*fetchState),
	}
}

// Begin registers a new fetch for the draft and returns its context and token.
// Any in-flight fetch for the same draft is cancelled. Every Begin must be paired
// with a Finish.
func (t *FetchTracker) Begin(ctx context.Context, draftID uuid.UUID) (context.Context, uint64) {
	fetchCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	state, ok := t.fetches[draftID]
	if !ok {
		state = &fetchState{first: t.next}
		t.fetches[draftID] = state
	}
	if state.cancel != nil {
		state.cancel()
	}
	state.token = t.next
	state.cancel = cancel
	state.inFlight++
	return fetchCtx, state.token
}

// IsCurrent reports whether token is still the latest issued for the draft
func (t *FetchTracker) IsCurrent(draftID uuid.UUID, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.fetches[draftID]
	return ok && state.token == token
}

// Latest returns the latest token issued for the draft, zero if none is in flight
func (t *FetchTracker) Latest(draftID uuid.UUID) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.fetches[draftID]; ok {
		return state.token
	}
	return 0
}

// Finish releases a completed fetch. The draft's state is dropped when it was the
// last one in flight.
func (t *FetchTracker) Finish(draftID uuid.UUID, token uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.fetches[draftID]
	if !ok || token < state.first {
		return
	}
	if state.token == token && state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	state.inFlight--
	if state.inFlight <= 0 {
		delete(t.fetches, draftID)
	}
}

// Forget cancels any in-flight fetch and drops all state for the draft
func (t *FetchTracker) Forget(draftID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.fetches[draftID]; ok {
		if state.cancel != nil {
			state.cancel()
		}
		delete(t.fetches, draftID)
	}
}

// Len returns the number of drafts with a fetch in flight
func (t *FetchTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fetches)
}

// draftLocks serializes operations on a single draft without blocking other drafts.
// Entries are reference counted and removed when the last holder or waiter unlocks.
type draftLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*draftLock
}

type draftLock struct {
	mu   sync.Mutex
	refs int
}

func newDraftLocks() *draftLocks {
	return &draftLocks{locks: make(map[uuid.UUID]*draftLock)}
}

func (l *draftLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &draftLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *draftLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
