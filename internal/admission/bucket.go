package admission

import (
	"sync"
	"time"
)

// MessageBucket is a fixed-window token bucket per session: maxMessages
// per windowMs; exceeding it blocks the session for blockMs. ping messages
// bypass the bucket entirely (liveness must always succeed).
type MessageBucket struct {
	mu           sync.Mutex
	buckets      map[string]*bucketState
	maxMessages  int
	window       time.Duration
	block        time.Duration
}

type bucketState struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// NewMessageBucket builds a per-session limiter.
func NewMessageBucket(maxMessages int, window, block time.Duration) *MessageBucket {
	return &MessageBucket{
		buckets:     make(map[string]*bucketState),
		maxMessages: maxMessages,
		window:      window,
		block:       block,
	}
}

// Allow reports whether sessionID may send a non-ping message now. When
// false, retryAfter is the number of whole seconds the client should wait.
func (b *MessageBucket) Allow(sessionID string, isPing bool) (allowed bool, retryAfter int) {
	if isPing {
		return true, 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	st, ok := b.buckets[sessionID]
	if !ok {
		st = &bucketState{windowStart: now}
		b.buckets[sessionID] = st
	}

	if now.Before(st.blockedUntil) {
		return false, int(st.blockedUntil.Sub(now).Seconds()) + 1
	}

	if now.Sub(st.windowStart) > b.window {
		st.windowStart = now
		st.count = 0
	}

	st.count++
	if st.count > b.maxMessages {
		st.blockedUntil = now.Add(b.block)
		return false, int(b.block.Seconds())
	}
	return true, 0
}

// Remove drops a session's bucket state on disconnect.
func (b *MessageBucket) Remove(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buckets, sessionID)
}
