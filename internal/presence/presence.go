package presence

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker maintains a monotonic server clock and sequence, plus the set of
// live sockets and the count with an active game, mirroring the teacher's
// world.VisibilityManager idiom (registry under a lock, periodic tick)
// generalized from zone visibility to connection presence.
type Tracker struct {
	mu       sync.Mutex
	online   map[string]bool // socketID -> hasActiveGame
	seq      atomic.Int64
	start    time.Time
}

// NewTracker builds an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]bool), start: time.Now()}
}

// Add registers a newly connected socket.
func (t *Tracker) Add(socketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[socketID] = false
}

// Remove unregisters a socket on close.
func (t *Tracker) Remove(socketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.online, socketID)
}

// SetActiveGame records whether socketID currently has an active game.
func (t *Tracker) SetActiveGame(socketID string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.online[socketID]; ok {
		t.online[socketID] = active
	}
}

// Snapshot is the current presence view.
type Snapshot struct {
	OnlineCount int
	ActiveGames int
}

// Snapshot returns the current online/active-game counts.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{OnlineCount: len(t.online)}
	for _, active := range t.online {
		if active {
			s.ActiveGames++
		}
	}
	return s
}

// ClockSync is the {serverTime, seq} pair emitted on connect and on a
// periodic cadence. seq is strictly increasing across every call, process-
// wide.
type ClockSync struct {
	ServerTimeMs int64
	Seq          int64
}

// NextClockSync returns the current monotonic server time in milliseconds
// since the tracker started, plus the next sequence number.
func (t *Tracker) NextClockSync() ClockSync {
	return ClockSync{
		ServerTimeMs: time.Since(t.start).Milliseconds(),
		Seq:          t.seq.Add(1),
	}
}
