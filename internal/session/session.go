package session

import (
	"sync"
	"time"

	"github.com/udisondev/rtgateway/internal/signer"
)

// Session is one live client connection: its custodial keypair, cached
// on-chain account view, and in-flight game state. Mutated by the dispatch
// handlers of the owning socket through the accessor methods below, which
// hold mu for the duration of the mutation.
type Session struct {
	ID        string
	Keys      signer.KeyPair
	ClientIP  string
	CreatedAt time.Time

	mu             sync.Mutex
	balance        uint64
	registered     bool
	hasBalance     bool
	activeGameID   uint64
	gameType       string
	lastActivityAt time.Time
}

// New creates a session in its initial (unregistered, no balance) state.
func New(id string, keys signer.KeyPair, clientIP string) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Keys:           keys,
		ClientIP:       clientIP,
		CreatedAt:      now,
		lastActivityAt: now,
	}
}

// Touch records activity, resetting the idle TTL clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivityAt = time.Now()
	s.mu.Unlock()
}

// IdleSince returns how long the session has been inactive.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivityAt)
}

// Balance returns the cached balance along with onboarding flags.
func (s *Session) Balance() (balance uint64, registered, hasBalance bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, s.registered, s.hasBalance
}

// SetBalance updates the cached balance/onboarding view, as refreshed from
// the backend on a cadence or after a balance-affecting event.
func (s *Session) SetBalance(balance uint64, registered, hasBalance bool) {
	s.mu.Lock()
	s.balance = balance
	s.registered = registered
	s.hasBalance = hasBalance
	s.mu.Unlock()
}

// ActiveGame returns the current game id/type, or (0, "") if none.
func (s *Session) ActiveGame() (id uint64, gameType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeGameID, s.gameType
}

// SetOptimisticGame records a client-generated game id before the backend
// has assigned its own, so UI can render immediately.
func (s *Session) SetOptimisticGame(id uint64, gameType string) {
	s.mu.Lock()
	s.activeGameID = id
	s.gameType = gameType
	s.mu.Unlock()
}

// AdoptServerGameID replaces the optimistic id with the server-assigned one
// once a game_started event with a nonzero id arrives. A zero server id
// preserves whatever local id is already set, per the spec's rule that the
// backend's assignment only ever refines, never erases, local state.
func (s *Session) AdoptServerGameID(serverID uint64) {
	if serverID == 0 {
		return
	}
	s.mu.Lock()
	s.activeGameID = serverID
	s.mu.Unlock()
}

// ClearGame ends the active game, e.g. on game_result/finalized.
func (s *Session) ClearGame() {
	s.mu.Lock()
	s.activeGameID = 0
	s.gameType = ""
	s.mu.Unlock()
}
