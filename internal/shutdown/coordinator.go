// Package shutdown drives the gateway's graceful drain: set draining, stop
// accepting new connections, wait out active games, then force-close
// whatever is left, grounded on the teacher's context.WithCancel plus
// signal.Notify shutdown pattern in cmd/gameserver/main.go, generalized
// from a single cancel to a draining-then-timeout sequence.
package shutdown

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/udisondev/rtgateway/internal/dispatch"
	"github.com/udisondev/rtgateway/internal/engine"
	"github.com/udisondev/rtgateway/internal/session"
)

// pollInterval is how often Drain checks for remaining active games, per
// the spec's fixed 500ms poll.
const pollInterval = 500 * time.Millisecond

// SessionCloser is the subset of wsserver.Server the coordinator needs to
// deliver a final envelope and force-close a connection. Declared here
// rather than imported concretely so this package stays free of a
// dependency on wsserver's websocket-specific types.
type SessionCloser interface {
	SendToSession(id string, msg []byte) bool
	CloseSession(id string, code int, reason string) bool
}

// Coordinator owns the process-wide draining flag. Draining is a pointer
// so it can be shared with wsserver.Server.Draining: both read the same
// atomic without either package depending on the other's types.
type Coordinator struct {
	Draining *atomic.Bool
	Sessions *session.Manager
	Closer   SessionCloser
	Log      *slog.Logger

	// DrainTimeout bounds how long active sessions are given to finish
	// their current game before being force-closed. Zero uses the spec
	// default of 30s.
	DrainTimeout time.Duration

	shutdownOnce atomic.Bool
}

// NewCoordinator builds a Coordinator sharing draining with its caller
// (typically also handed to wsserver.Server.Draining).
func NewCoordinator(draining *atomic.Bool, sessions *session.Manager, closer SessionCloser, log *slog.Logger) *Coordinator {
	return &Coordinator{Draining: draining, Sessions: sessions, Closer: closer, Log: log}
}

// Drain sets the draining flag and blocks until every session with an
// active game has finished or the drain timeout elapses, force-closing
// whatever remains. Safe to call more than once; only the first call
// drains, later calls return immediately, satisfying the "second signal
// is a no-op" rule.
func (c *Coordinator) Drain(ctx context.Context) {
	if c.shutdownOnce.Swap(true) {
		return
	}
	c.Draining.Store(true)
	c.Log.Info("draining started")

	timeout := c.DrainTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.After(timeout)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if c.activeGameCount() == 0 {
			c.Log.Info("draining complete, no active games remaining")
			return
		}
		select {
		case <-ctx.Done():
			c.forceCloseAll()
			return
		case <-deadline:
			c.Log.Warn("drain timeout reached, force-closing remaining sessions")
			c.forceCloseAll()
			return
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) activeGameCount() int {
	count := 0
	c.Sessions.ForEach(func(s *session.Session) bool {
		if _, gt := s.ActiveGame(); gt != "" {
			count++
		}
		return true
	})
	return count
}

// forceCloseAll sends a SESSION_EXPIRED envelope then a 1001 close frame
// to every still-registered session, per the drain timeout rule.
func (c *Coordinator) forceCloseAll() {
	msg := dispatch.EncodeError(engine.NewError(engine.CodeSessionExpired, "server is shutting down"))
	c.Sessions.ForEach(func(s *session.Session) bool {
		c.Closer.SendToSession(s.ID, msg)
		c.Closer.CloseSession(s.ID, 1001, "server is shutting down")
		return true
	})
}
