// Package wsserver is the WebSocket frontend: accept loop, handshake,
// per-connection read/write pumps, and the Client type that bridges a
// socket into the broadcast manager and the dispatch registry.
package wsserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write, mirroring the pokerchain
	// ws-server's writePump deadline.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is
	// considered dead; readPump resets this on every pong.
	pongWait = 60 * time.Second
	// pingPeriod must be comfortably less than pongWait so a ping always
	// lands before the peer's deadline expires.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize is the hard WebSocket frame cap; larger frames are
	// rejected at the gorilla layer before dispatch ever sees them.
	maxFrameSize = 64 * 1024
	// sendQueueSize bounds a single client's outbound backlog so memory
	// cannot grow unbounded. When it is full, Enqueue drops the message and
	// reports false; the broadcast manager disconnects a socket after
	// repeated failures, while dispatch replies are simply dropped.
	sendQueueSize = 256
)

// Client wraps one accepted WebSocket connection. It implements
// broadcast.Socket so the broadcast manager can address it without depending on this package's concrete type,
// generalizing the teacher's GameClient sendCh/closeCh/closeOnce shape
// from a TCP game connection to a WebSocket one.
type Client struct {
	id   string
	ip   string
	conn *websocket.Conn
	log  *slog.Logger

	send      chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// newClient wraps conn with the given id/ip, ready to have its pumps
// started.
func newClient(id, ip string, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		id:      id,
		ip:      ip,
		conn:    conn,
		log:     log,
		send:    make(chan []byte, sendQueueSize),
		closeCh: make(chan struct{}),
	}
}

// ID returns the client's session id.
func (c *Client) ID() string { return c.id }

// Enqueue queues msg for delivery without blocking. It returns false if the
// queue is full, signaling the caller (broadcast manager or dispatch) that
// this client is too slow to keep up.
func (c *Client) Enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close sends a WebSocket close frame carrying code/reason and stops the
// write pump. Safe to call more than once, and safe to race with the read
// pump's own shutdown on peer disconnect.
func (c *Client) Close(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.shutdown()
}

// shutdown closes closeCh exactly once, whichever path (explicit Close or
// the read pump noticing the peer went away) reaches it first.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

// writePump drains send and periodic pings until closeCh fires or a write
// fails, grounded on the pokerchain ws-server's writePump (NextWriter +
// ticker-driven ping) generalized with the teacher's closeCh shutdown
// signal instead of a channel-close sentinel.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				_ = w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

// readPump reads frames until the connection errors or closes, handing
// each to handle. It owns the read deadline/pong handler; handle is
// expected to never block for long since it serializes this connection's
// message processing.
func (c *Client) readPump(handle func(msg []byte)) {
	defer c.shutdown()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", "client", c.id, "err", err)
			}
			return
		}
		handle(msg)
	}
}
