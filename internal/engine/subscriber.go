package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/udisondev/rtgateway/internal/wire"
)

// maxUpdateSize bounds a single framed update message, guarding against a
// corrupt or adversarial length prefix demanding an unbounded allocation.
const maxUpdateSize = 1 << 20

// Subscriber maintains a long-lived connection to the backend's update
// stream and decodes each length-framed message into wire.Events, handing
// them to onEvent. The framing itself (4-byte length header, big-endian)
// is adapted from the teacher's protocol.ReadPacket, with the Blowfish
// encryption step removed — the client-facing WebSocket frame already
// self-delimits, this connection only needs the same length-prefix idea
// for the backend's raw TCP stream.
type Subscriber struct {
	addr    string
	onEvent func(wire.Event)
	log     *slog.Logger
}

// NewSubscriber builds a Subscriber dialing addr.
func NewSubscriber(addr string, onEvent func(wire.Event), log *slog.Logger) *Subscriber {
	return &Subscriber{addr: addr, onEvent: onEvent, log: log}
}

// Run connects and decodes events until ctx is cancelled, reconnecting with
// backoff on disconnect. It returns nil only when ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	backoffDelay := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.runOnce(ctx); err != nil {
			s.log.Warn("updates subscriber disconnected", "err", err, "retry_in", backoffDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDelay):
			}
			backoffDelay *= 2
			if backoffDelay > maxBackoff {
				backoffDelay = maxBackoff
			}
			continue
		}
		backoffDelay = 500 * time.Millisecond
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dialing backend updates stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	s.log.Info("updates subscriber connected", "addr", s.addr)

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return fmt.Errorf("reading update header: %w", err)
		}
		length := binary.BigEndian.Uint32(header)
		if length == 0 || length > maxUpdateSize {
			return fmt.Errorf("update length %d out of bounds", length)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return fmt.Errorf("reading update payload: %w", err)
		}

		for _, ev := range wire.DecodeUpdate(payload) {
			s.onEvent(ev)
		}
	}
}
