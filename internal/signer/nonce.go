package signer

import (
	"sort"
	"sync"
	"time"
)

// nonceEntry is the per-public-key nonce state. All fields are only ever
// touched while holding the entry's own mutex.
type nonceEntry struct {
	mu       sync.Mutex
	current  uint64
	pending  map[uint64]struct{}
	touchedAt time.Time
}

// NonceManager allocates strictly increasing, per-key nonces under
// concurrent access. Grounded on the shared per-address mutex map idiom:
// one lock per key, never a single global lock serializing unrelated keys.
type NonceManager struct {
	mu      sync.Mutex
	entries map[string]*nonceEntry
}

// NewNonceManager creates an empty manager.
func NewNonceManager() *NonceManager {
	return &NonceManager{entries: make(map[string]*nonceEntry)}
}

func (m *NonceManager) entryFor(key string) *nonceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &nonceEntry{pending: make(map[uint64]struct{}), touchedAt: time.Now()}
		m.entries[key] = e
	}
	return e
}

// WithLock serializes all operations against a single key's nonce entry.
// f receives an Allocator for the entry (Current reads the nonce); it must
// not retain the Allocator beyond the call.
func (m *NonceManager) WithLock(key string, f func(alloc *Allocator)) {
	e := m.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touchedAt = time.Now()
	f(&Allocator{entry: e})
}

// Allocator is the handle passed into the critical section by WithLock.
type Allocator struct {
	entry *nonceEntry
}

// Use atomically returns the next nonce and advances current, recording the
// nonce as pending until Confirm or ClearPending is called.
func (a *Allocator) Use() uint64 {
	n := a.entry.current
	a.entry.current++
	a.entry.pending[n] = struct{}{}
	return n
}

// Confirm removes a nonce from the pending set once the backend has
// acknowledged the submission that used it.
func (a *Allocator) Confirm(nonce uint64) {
	delete(a.entry.pending, nonce)
}

// ClearPending drops every pending nonce without touching current. Used on
// nonce-mismatch detection and after a sync, per the spec's backend-restart
// recovery rule: submissions tracked in pending were either confirmed
// (reflected already in current) or lost (must be retried with a fresh
// nonce allocation).
func (a *Allocator) ClearPending() {
	a.entry.pending = make(map[uint64]struct{})
}

// Sync reconciles the local nonce with a backend-reported value. A reported
// 0 while current > 0 is treated as the backend having lost state across a
// restart and is ignored (the local value is retained); every other case
// adopts the backend value. Pending is always cleared afterward.
func (a *Allocator) Sync(backendNonce uint64) (adopted uint64, guarded bool) {
	if backendNonce == 0 && a.entry.current > 0 {
		a.ClearPending()
		return a.entry.current, true
	}
	a.entry.current = backendNonce
	a.ClearPending()
	return a.entry.current, false
}

// Current returns the next nonce to be allocated, without allocating it.
func (a *Allocator) Current() uint64 {
	return a.entry.current
}

// Pending returns a sorted snapshot of nonces submitted but not yet
// confirmed.
func (a *Allocator) Pending() []uint64 {
	out := make([]uint64, 0, len(a.entry.pending))
	for n := range a.entry.pending {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot is one key's persisted nonce state, as written to/read from the
// nonce snapshot store across restarts.
type Snapshot struct {
	Key     string
	Current uint64
}

// Snapshot returns the current nonce for every known key, for periodic
// persistence. Pending nonces are deliberately not persisted: on restart
// they are always re-derived from Sync against the backend, per the
// pending/current split nonce recovery rule.
func (m *NonceManager) Snapshot() []Snapshot {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	entries := make([]*nonceEntry, 0, len(m.entries))
	for k, e := range m.entries {
		keys = append(keys, k)
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(keys))
	for i, e := range entries {
		e.mu.Lock()
		cur := e.current
		e.mu.Unlock()
		if cur == 0 {
			continue
		}
		out = append(out, Snapshot{Key: keys[i], Current: cur})
	}
	return out
}

// Restore seeds the manager's in-memory state from persisted snapshots,
// called once at startup before any session connects. A restored current
// is a floor, never adopted blindly past whatever the backend later
// reports via Sync.
func (m *NonceManager) Restore(snapshots []Snapshot) {
	for _, s := range snapshots {
		e := m.entryFor(s.Key)
		e.mu.Lock()
		if s.Current > e.current {
			e.current = s.Current
		}
		e.touchedAt = time.Now()
		e.mu.Unlock()
	}
}

// Reap removes entries untouched for longer than idleFor and that are back
// at their initial state (current==0, no pending) — the rest remain
// indefinitely since they track a live on-chain account.
func (m *NonceManager) Reap(idleFor time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-idleFor)
	for key, e := range m.entries {
		e.mu.Lock()
		reapable := e.current == 0 && len(e.pending) == 0 && e.touchedAt.Before(cutoff)
		e.mu.Unlock()
		if reapable {
			delete(m.entries, key)
		}
	}
}
