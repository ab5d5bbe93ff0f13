package shutdown

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/signer"
)

type fakeCloser struct {
	mu     sync.Mutex
	sent   map[string][]byte
	closed map[string]int
}

func newFakeCloser() *fakeCloser {
	return &fakeCloser{sent: make(map[string][]byte), closed: make(map[string]int)}
}

func (f *fakeCloser) SendToSession(id string, msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = msg
	return true
}

func (f *fakeCloser) CloseSession(id string, code int, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[id] = code
	return true
}

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newSess(t *testing.T, id string) *session.Session {
	t.Helper()
	kp, err := signer.GenerateKeyPair()
	require.NoError(t, err)
	return session.New(id, kp, "127.0.0.1")
}

func TestDrainCompletesImmediatelyWithNoActiveGames(t *testing.T) {
	sessions := session.NewManager()
	sessions.Add(newSess(t, "s1"))
	closer := newFakeCloser()
	c := NewCoordinator(&atomic.Bool{}, sessions, closer, testLog())

	done := make(chan struct{})
	go func() {
		c.Drain(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not complete with no active games")
	}
	assert.True(t, c.Draining.Load())
	assert.Empty(t, closer.closed)
}

func TestDrainForceClosesAfterTimeout(t *testing.T) {
	sessions := session.NewManager()
	sess := newSess(t, "s1")
	sess.SetOptimisticGame(42, "blackjack")
	sessions.Add(sess)
	closer := newFakeCloser()
	c := NewCoordinator(&atomic.Bool{}, sessions, closer, testLog())
	c.DrainTimeout = 50 * time.Millisecond

	c.Drain(context.Background())

	assert.True(t, c.Draining.Load())
	closer.mu.Lock()
	defer closer.mu.Unlock()
	assert.Equal(t, 1001, closer.closed["s1"])
	assert.Contains(t, string(closer.sent["s1"]), "SESSION_EXPIRED")
}

func TestDrainSecondCallIsNoOp(t *testing.T) {
	sessions := session.NewManager()
	closer := newFakeCloser()
	c := NewCoordinator(&atomic.Bool{}, sessions, closer, testLog())

	c.Drain(context.Background())
	c.Drain(context.Background()) // must return immediately, not re-drain

	assert.True(t, c.Draining.Load())
}

func TestDrainGameFinishingBeforeTimeoutAvoidsForceClose(t *testing.T) {
	sessions := session.NewManager()
	sess := newSess(t, "s1")
	sess.SetOptimisticGame(7, "roulette")
	sessions.Add(sess)
	closer := newFakeCloser()
	c := NewCoordinator(&atomic.Bool{}, sessions, closer, testLog())
	c.DrainTimeout = 5 * time.Second

	go func() {
		time.Sleep(600 * time.Millisecond)
		sess.ClearGame()
	}()

	start := time.Now()
	c.Drain(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second)

	closer.mu.Lock()
	defer closer.mu.Unlock()
	assert.Empty(t, closer.closed)
}
