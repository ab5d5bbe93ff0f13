package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shaOf(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewClient(srv.URL, 2*time.Second)
	return client, srv.Close
}

func TestForwardAcceptsOnce(t *testing.T) {
	var calls int32
	client, closeSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true})
	})
	defer closeSrv()

	f := NewForwarder(client, time.Minute, DefaultRetryPolicy())
	res, err := f.Forward(context.Background(), "sess-1", "idem-1", []byte("payload"), true)
	require.NoError(t, err)
	assert.True(t, res.Result.Accepted)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestForwardDeduplicatesIdenticalPayload(t *testing.T) {
	var calls int32
	client, closeSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true})
	})
	defer closeSrv()

	f := NewForwarder(client, time.Minute, DefaultRetryPolicy())
	ctx := context.Background()

	_, err := f.Forward(ctx, "sess-1", "idem-1", []byte("payload"), true)
	require.NoError(t, err)

	res2, err := f.Forward(ctx, "sess-1", "idem-1", []byte("payload"), true)
	require.NoError(t, err)
	assert.True(t, res2.Deduplicated)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second identical request must not re-submit")
}

func TestForwardRefusesDifferentPayloadSameKey(t *testing.T) {
	client, closeSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true})
	})
	defer closeSrv()

	f := NewForwarder(client, time.Minute, DefaultRetryPolicy())
	ctx := context.Background()

	_, err := f.Forward(ctx, "sess-1", "idem-1", []byte("payload-a"), true)
	require.NoError(t, err)

	_, err = f.Forward(ctx, "sess-1", "idem-1", []byte("payload-b"), true)
	require.Error(t, err)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, CodeInvalidMessage, gwErr.Code)
}

func TestForwardRetriesAfterFailure(t *testing.T) {
	client, closeSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true})
	})
	defer closeSrv()

	f := NewForwarder(client, time.Minute, DefaultRetryPolicy())
	ctx := context.Background()

	f.mu.Lock()
	f.entries[idempotencyKey{sessionID: "sess-1", key: "idem-1"}] = &idempotencyEntry{
		fingerprint: shaOf("payload"),
		status:      statusFailed,
		createdAt:   time.Now(),
		done:        make(chan struct{}),
	}
	f.mu.Unlock()

	res, err := f.Forward(ctx, "sess-1", "idem-1", []byte("payload"), true)
	require.NoError(t, err)
	assert.True(t, res.Result.Accepted)
}

func TestSessionCleanupRemovesEntries(t *testing.T) {
	client, closeSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SubmitResult{Accepted: true})
	})
	defer closeSrv()

	f := NewForwarder(client, time.Minute, DefaultRetryPolicy())
	ctx := context.Background()
	_, err := f.Forward(ctx, "sess-1", "idem-1", []byte("payload"), true)
	require.NoError(t, err)

	f.RemoveSession("sess-1")
	assert.Equal(t, 0, f.Stats().Total)
}

func TestMapBackendCode(t *testing.T) {
	assert.Equal(t, CodeInsufficientBalance, MapBackendCode(3))
	assert.Equal(t, CodeNoActiveGame, MapBackendCode(6))
	assert.Equal(t, CodeSessionExpired, MapBackendCode(15))
	assert.Equal(t, CodeTransactionRejected, MapBackendCode(999))
}
