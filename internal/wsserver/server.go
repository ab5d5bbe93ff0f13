package wsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/udisondev/rtgateway/internal/admission"
	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/dispatch"
	"github.com/udisondev/rtgateway/internal/presence"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/signer"
)

// Server is the WebSocket accept loop plus the admission chain every
// handshake passes through before a Client and Session are created.
type Server struct {
	Origins         admission.OriginPolicy
	Trusted         admission.TrustedProxies
	Connections     *admission.ConnectionLimiter
	SessionCreation *admission.SessionCreationLimiter

	Sessions  *session.Manager
	Broadcast *broadcast.Manager
	Presence  *presence.Tracker
	Dispatch  *dispatch.Deps

	// Draining is shared with the shutdown coordinator: once set, new
	// connections are refused with close code 1013.
	Draining *atomic.Bool

	Log      *slog.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*Client
}

// NewServer builds a Server. gorilla's CheckOrigin hook accepts every
// origin; ServeHTTP checks Origins explicitly before calling Upgrade.
func NewServer(log *slog.Logger) *Server {
	s := &Server{Log: log, Draining: &atomic.Bool{}, clients: make(map[string]*Client)}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true }, // checked explicitly below, before Upgrade
	}
	return s
}

// ServeHTTP runs the full admission chain, then upgrades and spawns the
// connection's pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Draining != nil && s.Draining.Load() {
		s.upgradeAndClose(w, r, websocket.CloseTryAgainLater, "server is draining")
		return
	}

	origin := r.Header.Get("Origin")
	if code, ok := s.Origins.Check(origin); !ok {
		admission.WriteProblem(w, http.StatusForbidden, code, "origin not permitted")
		return
	}

	ip := admission.ClientIP(r, s.Trusted)

	if s.SessionCreation != nil && !s.SessionCreation.Allow(ip) {
		admission.WriteProblem(w, http.StatusTooManyRequests, "RATE_LIMITED", "session creation rate limit exceeded")
		return
	}

	connID := uuid.NewString()
	if code, ok := s.Connections.TryAdmit(ip, connID); !ok {
		status := http.StatusServiceUnavailable
		admission.WriteProblem(w, status, string(code), "connection limit exceeded")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Connections.Release(ip, connID)
		s.Log.Warn("websocket upgrade failed", "err", err, "ip", ip)
		return
	}

	s.serve(conn, ip, connID)
}

// upgradeAndClose accepts the handshake only to immediately close it with
// code, for the draining case: the spec requires new connections to be
// refused with close code 1013, which is only expressible after a
// completed WebSocket handshake.
func (s *Server) upgradeAndClose(w http.ResponseWriter, r *http.Request, code int, reason string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

func (s *Server) serve(conn *websocket.Conn, ip, connID string) {
	keys, err := signer.GenerateKeyPair()
	if err != nil {
		s.Log.Error("key generation failed", "err", err)
		s.Connections.Release(ip, connID)
		_ = conn.Close()
		return
	}

	sess := session.New(connID, keys, ip)
	s.Sessions.Add(sess)
	s.Presence.Add(connID)

	client := newClient(connID, ip, conn, s.Log)
	s.addClient(connID, client)

	go client.writePump()

	s.sendInitialEnvelopes(sess, client)

	client.readPump(func(msg []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		reply := dispatch.Dispatch(ctx, s.Dispatch, sess, client, msg)
		if reply != nil {
			client.Enqueue(reply)
		}
	})

	s.cleanup(client, ip, connID)
}

type sessionReadyEnvelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	PublicKey string `json:"publicKey"`
}

type clockSyncEnvelope struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	Seq        int64  `json:"seq"`
}

type presenceEnvelope struct {
	Type        string `json:"type"`
	OnlineCount int    `json:"onlineCount"`
	ActiveGames int    `json:"activeGames"`
}

// sendInitialEnvelopes sends session_ready, then clock_sync, then
// presence, in that fixed order, per the presence component's connect-time
// contract. session_ready has no corresponding inbound message, so it is
// built here rather than as a dispatch handler.
func (s *Server) sendInitialEnvelopes(sess *session.Session, client *Client) {
	ready, _ := json.Marshal(sessionReadyEnvelope{
		Type:      "session_ready",
		SessionID: sess.ID,
		PublicKey: sess.Keys.PublicKeyHex(),
	})
	client.Enqueue(ready)

	cs := s.Presence.NextClockSync()
	clock, _ := json.Marshal(clockSyncEnvelope{Type: "clock_sync", ServerTime: cs.ServerTimeMs, Seq: cs.Seq})
	client.Enqueue(clock)

	snap := s.Presence.Snapshot()
	pres, _ := json.Marshal(presenceEnvelope{Type: "presence", OnlineCount: snap.OnlineCount, ActiveGames: snap.ActiveGames})
	client.Enqueue(pres)
}

// cleanup runs once readPump has returned (closeCh is already closed by
// then), tearing the session down from every index atomically with
// respect to new lookups, per the session lifecycle's close rule.
func (s *Server) cleanup(client *Client, ip, connID string) {
	s.removeClient(connID)
	s.Sessions.Remove(connID)
	s.Presence.Remove(connID)
	s.Broadcast.Unsubscribe(client)
	s.Dispatch.Forwarder.RemoveSession(connID)
	s.Dispatch.Buckets.Remove(connID)
	s.Connections.Release(ip, connID)
}

func (s *Server) addClient(id string, c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients == nil {
		s.clients = make(map[string]*Client)
	}
	s.clients[id] = c
}

func (s *Server) removeClient(id string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, id)
}

// SendToSession enqueues msg on the connection for id, if still live.
// Used by the shutdown coordinator to deliver a SESSION_EXPIRED envelope
// ahead of the close frame.
func (s *Server) SendToSession(id string, msg []byte) bool {
	s.clientsMu.RLock()
	c, ok := s.clients[id]
	s.clientsMu.RUnlock()
	if !ok {
		return false
	}
	return c.Enqueue(msg)
}

// CloseSession force-closes a live connection by session id, used by the
// shutdown coordinator to close sessions left when a drain ends. Reports whether
// a matching connection was found.
func (s *Server) CloseSession(id string, code int, reason string) bool {
	s.clientsMu.RLock()
	c, ok := s.clients[id]
	s.clientsMu.RUnlock()
	if !ok {
		return false
	}
	c.Close(code, reason)
	return true
}

// ActiveSessionIDs returns the session ids of every currently connected
// client, a snapshot taken under the registry lock.
func (s *Server) ActiveSessionIDs() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}
