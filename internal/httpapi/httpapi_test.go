package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/engine"
)

type fakeSessionCounter struct{ n int }

func (f fakeSessionCounter) Count() int { return f.n }

func testDeps(t *testing.T, backendUp bool, token string, devMode bool) *Deps {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if backendUp {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(backend.Close)

	client := engine.NewClient(backend.URL, time.Second)
	return &Deps{
		Draining:     &atomic.Bool{},
		Engine:       client,
		Forwarder:    engine.NewForwarder(client, time.Minute, engine.DefaultRetryPolicy()),
		Sessions:     fakeSessionCounter{n: 3},
		MetricsToken: token,
		DevMode:      devMode,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestLivezAlwaysOK(t *testing.T) {
	d := testDeps(t, false, "secret", false)
	d.Draining.Store(true)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzDrainingReturns503(t *testing.T) {
	d := testDeps(t, true, "secret", false)
	d.Draining.Store(true)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "draining", body["status"])
}

func TestHealthzBackendUnreachableReturns503(t *testing.T) {
	d := testDeps(t, false, "secret", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unreachable", body["status"])
}

func TestHealthzOK(t *testing.T) {
	d := testDeps(t, true, "secret", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRequiresAuth(t *testing.T) {
	d := testDeps(t, true, "secret-token", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsAcceptsBearerToken(t *testing.T) {
	d := testDeps(t, true, "secret-token", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["sessions_active"])
}

func TestMetricsAcceptsCustomHeader(t *testing.T) {
	d := testDeps(t, true, "secret-token", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("x-metrics-token", "secret-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsPlaceholderTokenRefused(t *testing.T) {
	d := testDeps(t, true, "your_token_here", false)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("x-metrics-token", "your_token_here")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsDevModeBypassesAuth(t *testing.T) {
	d := testDeps(t, true, "", true)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
