package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type idempotencyStatus int

const (
	statusPending idempotencyStatus = iota
	statusCompleted
	statusFailed
)

type idempotencyEntry struct {
	fingerprint [32]byte
	status      idempotencyStatus
	result      *SubmitResult
	failErr     error
	createdAt   time.Time
	done        chan struct{} // closed when a concurrent identical request finishes
}

type idempotencyKey struct {
	sessionID string
	key       string
}

// Forwarder ships signed submissions to the backend with at-most-once
// semantics from the client's perspective: a retry loop over Client plus an
// idempotency store keyed by (sessionId, idempotencyKey). Grounded on the
// alancoin gateway's idempotencyCache (getOrReserve/complete/cancel/sweep).
type Forwarder struct {
	client *Client
	policy RetryPolicy

	mu      sync.Mutex
	entries map[idempotencyKey]*idempotencyEntry
	ttl     time.Duration

	completed int64
	failed    int64
	deduped   int64
}

// NewForwarder builds a Forwarder over client with the given idempotency
// entry TTL and retry policy.
func NewForwarder(client *Client, ttl time.Duration, policy RetryPolicy) *Forwarder {
	return &Forwarder{
		client:  client,
		policy:  policy,
		entries: make(map[idempotencyKey]*idempotencyEntry),
		ttl:     ttl,
	}
}

// ForwardResult is what the dispatch handler sees after a Forward call.
type ForwardResult struct {
	Result       *SubmitResult
	Deduplicated bool
}

// Forward submits payload under (sessionID, key). skipRetries disables the
// retry loop for this call only (handlers can opt out for latency-critical
// paths the spec calls out).
func (f *Forwarder) Forward(ctx context.Context, sessionID, key string, payload []byte, skipRetries bool) (*ForwardResult, error) {
	fingerprint := sha256.Sum256(payload)
	idk := idempotencyKey{sessionID: sessionID, key: key}

	entry, wait, err := f.reserve(idk, fingerprint)
	if err != nil {
		return nil, err
	}
	if wait != nil {
		<-wait
		return f.readCompleted(idk, fingerprint)
	}

	result, submitErr := f.submitWithRetry(ctx, payload, skipRetries)

	f.mu.Lock()
	defer f.mu.Unlock()
	if submitErr != nil {
		entry.status = statusFailed
		entry.failErr = submitErr
		f.failed++
		close(entry.done)
		return nil, submitErr
	}
	entry.status = statusCompleted
	entry.result = result
	f.completed++
	close(entry.done)
	return &ForwardResult{Result: result}, nil
}

// reserve registers a new pending entry, or reports that an existing one
// should be waited on / returned deduplicated / refused, per the spec's
// idempotency rules.
func (f *Forwarder) reserve(idk idempotencyKey, fingerprint [32]byte) (entry *idempotencyEntry, wait chan struct{}, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.entries[idk]
	if !ok {
		entry = &idempotencyEntry{fingerprint: fingerprint, status: statusPending, createdAt: time.Now(), done: make(chan struct{})}
		f.entries[idk] = entry
		return entry, nil, nil
	}

	if existing.fingerprint != fingerprint {
		return nil, nil, NewError(CodeInvalidMessage, "idempotency key already used")
	}

	switch existing.status {
	case statusCompleted:
		f.deduped++
		return existing, existing.done, nil
	case statusFailed:
		// Same fingerprint, failed before: allow retry, overwriting the entry.
		existing.status = statusPending
		existing.done = make(chan struct{})
		existing.createdAt = time.Now()
		return existing, nil, nil
	default: // pending: a concurrent identical request is in flight
		return existing, existing.done, nil
	}
}

func (f *Forwarder) readCompleted(idk idempotencyKey, fingerprint [32]byte) (*ForwardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[idk]
	if !ok || entry.fingerprint != fingerprint {
		return nil, NewError(CodeInternalError, "idempotency entry vanished while waiting")
	}
	if entry.status == statusFailed {
		return nil, entry.failErr
	}
	return &ForwardResult{Result: entry.result, Deduplicated: true}, nil
}

func (f *Forwarder) submitWithRetry(ctx context.Context, payload []byte, skipRetries bool) (*SubmitResult, error) {
	if skipRetries {
		return f.client.Submit(ctx, payload)
	}

	var result *SubmitResult
	operation := func() error {
		r, err := f.client.Submit(ctx, payload)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(f.policy.NewBackOff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("submitting to backend: %w", err)
	}
	return result, nil
}

// Sweep removes idempotency entries older than the configured TTL.
func (f *Forwarder) Sweep() {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-f.ttl)
	for k, e := range f.entries {
		if e.status != statusPending && e.createdAt.Before(cutoff) {
			delete(f.entries, k)
		}
	}
}

// RemoveSession drops every idempotency entry owned by sessionID, called
// on session close/cleanup.
func (f *Forwarder) RemoveSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.entries {
		if k.sessionID == sessionID {
			delete(f.entries, k)
		}
	}
}

// Metrics is a snapshot of the forwarder's idempotency counters.
type Metrics struct {
	Total     int
	Pending   int
	Completed int64
	Failed    int64
	Deduped   int64
}

// Stats returns current forwarder metrics.
func (f *Forwarder) Stats() Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := Metrics{Total: len(f.entries), Completed: f.completed, Failed: f.failed, Deduped: f.deduped}
	for _, e := range f.entries {
		if e.status == statusPending {
			m.Pending++
		}
	}
	return m
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled.
func (f *Forwarder) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Sweep()
		}
	}
}
