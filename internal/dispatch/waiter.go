package dispatch

import (
	"sync"

	"github.com/udisondev/rtgateway/internal/wire"
)

// pendingWait is one handler's outstanding request for a backend event.
// backendSessionID is 0 when the handler has not yet learned the backend's
// assigned id (the *_deal family, awaiting game_started); otherwise events
// are matched to the gateway session that owns that backend id.
type pendingWait struct {
	kind             string
	backendSessionID uint64
	ch               chan wire.Event
}

// Waiter correlates decoded backend events (which carry only a numeric
// backend session id, never the gateway's own connection id) back to the
// gateway session whose handler is blocked awaiting one. This correlation
// is this gateway's own convention — the wire protocol has no explicit
// request/event correlation field — documented as such since the backend
// protocol doesn't specify one.
type Waiter struct {
	mu      sync.Mutex
	pending map[string]*pendingWait // gateway session id -> wait
}

// NewWaiter builds an empty correlator.
func NewWaiter() *Waiter {
	return &Waiter{pending: make(map[string]*pendingWait)}
}

// Register records that gatewaySessionID is waiting for an event of kind,
// optionally scoped to a known backendSessionID. The returned channel
// receives exactly one event or is abandoned (never closed) on timeout —
// the caller always selects on ctx.Done()/a timer alongside it.
func (w *Waiter) Register(gatewaySessionID, kind string, backendSessionID uint64) chan wire.Event {
	ch := make(chan wire.Event, 1)
	w.mu.Lock()
	w.pending[gatewaySessionID] = &pendingWait{kind: kind, backendSessionID: backendSessionID, ch: ch}
	w.mu.Unlock()
	return ch
}

// Cancel removes any outstanding wait for gatewaySessionID, e.g. after a
// timeout or socket close, so a late event can't be misdelivered.
func (w *Waiter) Cancel(gatewaySessionID string) {
	w.mu.Lock()
	delete(w.pending, gatewaySessionID)
	w.mu.Unlock()
}

// Dispatch delivers ev to the first pending wait whose kind matches and
// whose backendSessionID is either unset or equal to ev.SessionID. At most
// one waiter is fulfilled per event.
func (w *Waiter) Dispatch(ev wire.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for gatewaySessionID, pw := range w.pending {
		if pw.kind != ev.Kind {
			continue
		}
		if pw.backendSessionID != 0 && pw.backendSessionID != ev.SessionID {
			continue
		}
		select {
		case pw.ch <- ev:
		default:
		}
		delete(w.pending, gatewaySessionID)
		return
	}
}
