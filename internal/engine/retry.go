package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TransportError wraps a failure talking to the backend with an explicit
// retryability verdict, so the forwarder never has to re-sniff a generic
// error for retry eligibility.
type TransportError struct {
	Retryable  bool
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend transport error (status %d): %s", e.StatusCode, e.Message)
	}
	return "backend transport error: " + e.Message
}

// classifyTransportErr inspects a network/transport-level error (not an
// HTTP status — those are classified by caller) and decides retryability:
// timeouts, connection resets, and DNS failures are retryable; anything
// else is treated conservatively as non-retryable.
func classifyTransportErr(err error) *TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Retryable: true, Message: err.Error()}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{Retryable: true, Message: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Retryable: true, Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Retryable: true, Message: err.Error()}
	}
	return &TransportError{Retryable: false, Message: err.Error()}
}

// RetryPolicy configures delay_i = min(initial * mul^i, max) plus ±10%
// jitter, matching the spec's backoff schedule. NewBackOff translates it
// into a cenkalti/backoff ExponentialBackOff so the forwarder's retry loop
// never has to reimplement jittered exponential delay itself.
type RetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultRetryPolicy matches the spec's suggested defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
		MaxRetries: 5,
	}
}

// NewBackOff builds a bounded, jittered exponential backoff from p, capped
// at p.MaxRetries retries (p.MaxRetries+1 attempts in total) via
// backoff.WithMaxRetries.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Initial
	eb.MaxInterval = p.Max
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0.10
	eb.MaxElapsedTime = 0 // bounded by MaxRetries instead of wall-clock
	return backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
}

// isRetryable reports whether err should be retried by the forwarder's
// retry loop. Non-retryable errors (validation, 4xx, insufficient balance,
// nonce mismatch) short-circuit immediately.
func isRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode == 502 || te.StatusCode == 503 || te.StatusCode == 504 {
			return true
		}
		return te.Retryable
	}
	return false
}
