// Package httpapi serves the gateway's plain HTTP surface: liveness,
// readiness, and an authenticated metrics endpoint, grounded on
// pokerchain's ws-server /health http.HandleFunc registered alongside the
// /ws upgrade endpoint.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/udisondev/rtgateway/internal/engine"
)

// Deps bundles what the HTTP surface needs to answer readiness and
// metrics requests.
type Deps struct {
	Draining     *atomic.Bool
	Engine       *engine.Client
	Forwarder    *engine.Forwarder
	Sessions     SessionCounter
	MetricsToken string
	DevMode      bool
	Log          *slog.Logger
}

// SessionCounter is the subset of session.Manager this package needs.
type SessionCounter interface {
	Count() int
}

// NewMux builds the /livez /healthz /readyz /metrics handler set.
func NewMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", d.handleLivez)
	mux.HandleFunc("/healthz", d.handleReadiness)
	mux.HandleFunc("/readyz", d.handleReadiness)
	mux.HandleFunc("/metrics", d.handleMetrics)
	return mux
}

// handleLivez never checks dependencies: it only confirms the process is
// still scheduling goroutines and answering HTTP, per the spec's
// liveness/readiness split.
func (d *Deps) handleLivez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (d *Deps) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if d.Draining != nil && d.Draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if !d.Engine.Healthy(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unreachable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMetrics requires a Bearer token or x-metrics-token header matching
// MetricsToken, timing-safe compared, unless DevMode bypasses auth.
// Placeholder tokens (the value itself starting with your_ or PLACEHOLDER_)
// are refused even in production, since a deployment that never replaced
// the sample config is not meaningfully authenticated.
func (d *Deps) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !d.DevMode {
		if isPlaceholder(d.MetricsToken) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "metrics auth token not configured"})
			return
		}
		if !d.authorized(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
	}

	stats := d.Forwarder.Stats()
	body := map[string]any{
		"idempotency_total":     stats.Total,
		"idempotency_pending":   stats.Pending,
		"idempotency_completed": stats.Completed,
		"idempotency_failed":    stats.Failed,
		"idempotency_deduped":   stats.Deduped,
		"draining":              d.Draining != nil && d.Draining.Load(),
	}
	if d.Sessions != nil {
		body["sessions_active"] = d.Sessions.Count()
	}
	writeJSON(w, http.StatusOK, body)
}

func (d *Deps) authorized(r *http.Request) bool {
	token := r.Header.Get("x-metrics-token")
	if token == "" {
		auth := r.Header.Get("Authorization")
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(d.MetricsToken)) == 1
}

func isPlaceholder(token string) bool {
	if token == "" {
		return true
	}
	return strings.HasPrefix(token, "your_") || strings.HasPrefix(token, "PLACEHOLDER_")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
