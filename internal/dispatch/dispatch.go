// Package dispatch validates inbound JSON messages, routes them to
// per-type handlers, and builds the outbound JSON replies, per the
// gateway's handler-registry/dispatch component.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/udisondev/rtgateway/internal/admission"
	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/engine"
	"github.com/udisondev/rtgateway/internal/presence"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/signer"
	"github.com/udisondev/rtgateway/internal/wire"
)

// MaxFrameSize is the inbound WebSocket message cap; larger frames are
// rejected with INVALID_MESSAGE rather than processed.
const MaxFrameSize = 64 * 1024

// Deps bundles everything a handler needs, built once at startup and
// shared read-only across every connection (each field is itself
// concurrency-safe).
type Deps struct {
	Sessions   *session.Manager
	Nonces     *signer.NonceManager
	Forwarder  *engine.Forwarder
	Engine     *engine.Client
	Broadcast  *broadcast.Manager
	Presence   *presence.Tracker
	Waiter     *Waiter
	Buckets    *admission.MessageBucket
	Log        *slog.Logger
	EventWait  time.Duration
}

// envelope is the minimal shape every inbound message must satisfy: a
// type discriminator selecting the handler, the rest left as raw JSON for
// the handler itself to decode into its specific request struct.
type envelope struct {
	Type string `json:"type"`
}

// HandlerFunc processes one decoded message for sess/socket and returns the
// reply to send back, or a *engine.Error to send as an error envelope.
type HandlerFunc func(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error)

var registry = map[string]HandlerFunc{
	"ping":                handlePing,
	"get_balance":         handleGetBalance,
	"submit_raw":          handleSubmitRaw,
	"faucet_claim":        handleFaucetClaim,
	"blackjack_deal":      dealHandler(wire.InstrBlackjackDeal, "blackjack"),
	"roulette_spin":       dealHandler(wire.InstrRouletteSpin, "roulette"),
	"craps_roll":          dealHandler(wire.InstrCrapsRoll, "craps"),
	"baccarat_deal":       dealHandler(wire.InstrBaccaratDeal, "baccarat"),
	"sicbo_roll":          dealHandler(wire.InstrSicboRoll, "sicbo"),
	"threecard_deal":      dealHandler(wire.InstrThreeCardDeal, "threecard"),
	"ultimatetx_deal":     dealHandler(wire.InstrUltimateTxDeal, "ultimatetx"),
	"videopoker_deal":     dealHandler(wire.InstrVideoPokerDeal, "videopoker"),
	"casinowar_deal":      dealHandler(wire.InstrCasinoWarDeal, "casinowar"),
	"hilo_deal":           dealHandler(wire.InstrHiloDeal, "hilo"),
	"blackjack_hit":       actionHandler(wire.InstrBlackjackHit),
	"blackjack_stand":     actionHandler(wire.InstrBlackjackStand),
	"blackjack_double":    actionHandler(wire.InstrBlackjackDouble),
	"blackjack_split":     actionHandler(wire.InstrBlackjackSplit),
	"hilo_higher":         actionHandler(wire.InstrHiloHigher),
	"hilo_lower":          actionHandler(wire.InstrHiloLower),
	"hilo_cashout":        actionHandler(wire.InstrHiloCashout),
	"subscribe_game":      handleSubscribeGame,
	"unsubscribe_game":    handleUnsubscribeGame,
	"list_subscriptions":  handleListSubscriptions,
}

// Dispatch parses raw as an envelope, looks up its handler, and returns the
// JSON bytes to send back. raw longer than MaxFrameSize is rejected without
// being parsed.
func Dispatch(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw []byte) []byte {
	if len(raw) > MaxFrameSize {
		return encodeError(engine.NewError(engine.CodeInvalidMessage, "message exceeds maximum frame size"))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return encodeError(engine.NewError(engine.CodeInvalidMessage, "malformed message envelope"))
	}

	isPing := env.Type == "ping"
	if d.Buckets != nil {
		allowed, retryAfter := d.Buckets.Allow(sess.ID, isPing)
		if !allowed {
			e := engine.NewError(engine.CodeRateLimited, "too many messages")
			e.RetryAfter = retryAfter
			return encodeError(e)
		}
	}

	handler, ok := registry[env.Type]
	if !ok {
		return encodeError(engine.NewError(engine.CodeInvalidMessage, "unknown message type: "+env.Type))
	}

	sess.Touch()
	reply, handlerErr := handler(ctx, d, sess, socket, json.RawMessage(raw))
	if handlerErr != nil {
		return encodeError(handlerErr)
	}
	if reply == nil {
		return nil
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return encodeError(engine.NewError(engine.CodeInternalError, "failed to encode reply"))
	}
	return out
}

type errorEnvelope struct {
	Type       string         `json:"type"`
	Code       engine.Code    `json:"code"`
	Message    string         `json:"message"`
	RetryAfter int            `json:"retryAfter,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// EncodeError renders e as the outbound error envelope, exported so
// callers outside this package (the shutdown coordinator forcing a
// draining session closed) can reuse the same wire shape.
func EncodeError(e *engine.Error) []byte {
	return encodeError(e)
}

func encodeError(e *engine.Error) []byte {
	out, _ := json.Marshal(errorEnvelope{
		Type:       "error",
		Code:       e.Code,
		Message:    e.Message,
		RetryAfter: e.RetryAfter,
		Details:    e.Details,
	})
	return out
}
