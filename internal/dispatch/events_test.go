package dispatch

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/wire"
)

// recordingSocket captures every enqueued message instead of discarding it,
// so tests can assert on what PublishToTopic actually sent.
type recordingSocket struct {
	id string

	mu       sync.Mutex
	messages [][]byte
}

func (r *recordingSocket) ID() string { return r.id }

func (r *recordingSocket) Enqueue(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return true
}

func (r *recordingSocket) Close(code int, reason string) {}

func (r *recordingSocket) drain() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

func TestRouteEventFulfillsWaiterForGameStarted(t *testing.T) {
	d, closeFn := testDeps(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeFn()

	waitCh := d.Waiter.Register("sess-1", wire.KindGameStarted, 0)
	RouteEvent(d, wire.Event{Kind: wire.KindGameStarted, SessionID: 42, GameType: 0, Bet: 10})

	select {
	case ev := <-waitCh:
		assert.Equal(t, uint64(42), ev.SessionID)
	default:
		t.Fatal("expected waiter to be fulfilled")
	}
}

func TestRouteEventPublishesGameStartedToResolvedTopic(t *testing.T) {
	d, closeFn := testDeps(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeFn()

	sock := &recordingSocket{id: "spectator-1"}
	d.Broadcast.Subscribe(sock, []string{"game:blackjack"})

	RouteEvent(d, wire.Event{Kind: wire.KindGameStarted, SessionID: 7, GameType: 0, Bet: 25})

	msgs := sock.drain()
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0]), `"kind":"game_started"`)
}

func TestRouteEventSkipsTopicForTableScopedEvents(t *testing.T) {
	d, closeFn := testDeps(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeFn()

	sock := &recordingSocket{id: "spectator-1"}
	d.Broadcast.Subscribe(sock, []string{"game:roulette"})

	RouteEvent(d, wire.Event{Kind: wire.KindRoundOpened, Round: 3})

	assert.Empty(t, sock.drain())
}

func TestRouteEventResolvesPlayerSettledViaOwningSession(t *testing.T) {
	d, closeFn := testDeps(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeFn()

	sess := newTestSess(t)
	sess.SetOptimisticGame(0, "roulette")
	sess.AdoptServerGameID(99)
	d.Sessions.Add(sess)

	sock := &recordingSocket{id: "spectator-1"}
	d.Broadcast.Subscribe(sock, []string{"game:roulette"})

	RouteEvent(d, wire.Event{Kind: wire.KindPlayerSettled, SessionID: 99, Payout: 50, FinalChips: 200})

	msgs := sock.drain()
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0]), `"kind":"player_settled"`)
}
