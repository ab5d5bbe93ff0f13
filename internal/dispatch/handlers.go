package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/engine"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/signer"
	"github.com/udisondev/rtgateway/internal/wire"
)

func handlePing(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	return pongMsg{Type: "pong"}, nil
}

func handleGetBalance(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	refreshBalance(ctx, d, sess)
	balance, registered, hasBalance := sess.Balance()
	return balanceMsg{Type: "balance", Balance: DecimalString(balance), Registered: registered, HasBalance: hasBalance}, nil
}

// refreshBalance queries the backend for sess's current account state and
// updates the cached view, per the "refreshed on a cadence and on every
// balance-affecting event" lifecycle rule. Query failures are logged but
// never fail the handler — the cached value is still a valid reply.
func refreshBalance(ctx context.Context, d *Deps, sess *session.Session) {
	state, err := d.Engine.QueryAccount(ctx, sess.Keys.PublicKeyHex())
	if err != nil {
		d.Log.Warn("account query failed", "session", sess.ID, "err", err)
		return
	}
	sess.SetBalance(state.Balance, state.Registered, state.HasBalance)
	d.Nonces.WithLock(sess.Keys.PublicKeyHex(), func(a *signer.Allocator) {
		if _, guarded := a.Sync(state.Nonce); guarded {
			d.Log.Warn("nonce sync guarded against backend restart", "session", sess.ID, "local", a.Current())
		}
	})
}

type submitRawRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Submission     string `json:"submission"`
}

func handleSubmitRaw(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	var req submitRawRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, engine.NewError(engine.CodeInvalidMessage, "malformed submit_raw request")
	}
	payload, err := base64.StdEncoding.DecodeString(req.Submission)
	if err != nil {
		return nil, engine.NewError(engine.CodeInvalidMessage, "submission is not valid base64")
	}
	if req.IdempotencyKey == "" {
		return nil, engine.NewError(engine.CodeInvalidMessage, "idempotencyKey is required")
	}

	result, fwErr := d.Forwarder.Forward(ctx, sess.ID, req.IdempotencyKey, payload, false)
	if fwErr != nil {
		return nil, mapForwardError(fwErr)
	}
	return submitResultMsg{
		Type:         "submit_result",
		Accepted:     result.Result.Accepted,
		Code:         result.Result.Code,
		Message:      result.Result.Message,
		Deduplicated: result.Deduplicated,
	}, nil
}

type faucetClaimRequest struct {
	Amount float64 `json:"amount"`
}

func handleFaucetClaim(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	var req faucetClaimRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, engine.NewError(engine.CodeInvalidMessage, "malformed faucet_claim request")
	}
	amount, verr := ValidateAmount(req.Amount)
	if verr != nil {
		return nil, verr
	}

	params, _ := json.Marshal(req)
	instruction := wire.EncodeInstruction(wire.InstrFaucetClaim, params)
	tx, nonce := signer.BuildSignedTransaction(d.Nonces, sess.Keys, wire.DefaultNamespace, instruction)
	submission := wire.EncodeSubmission([][]byte{tx})

	result, fwErr := d.Forwarder.Forward(ctx, sess.ID, "faucet:"+DecimalString(amount), submission, false)
	if fwErr != nil {
		settleNonce(d, sess, nonce, fwErr.Error())
		return nil, mapForwardError(fwErr)
	}
	if !result.Result.Accepted {
		settleNonce(d, sess, nonce, result.Result.Message)
		return nil, engine.NewError(engine.MapBackendCode(result.Result.Code), result.Result.Message)
	}
	settleNonce(d, sess, nonce, "")

	refreshBalance(ctx, d, sess)
	balance, registered, hasBalance := sess.Balance()
	return balanceMsg{Type: "balance", Balance: DecimalString(balance), Registered: registered, HasBalance: hasBalance}, nil
}

// settleNonce marks nonce confirmed, or clears the pending set and relies
// on the next balance refresh to resync when rejectMessage matches the
// nonce-mismatch pattern (transport failure text or a backend rejection
// message — both funnel through here).
func settleNonce(d *Deps, sess *session.Session, nonce uint64, rejectMessage string) {
	d.Nonces.WithLock(sess.Keys.PublicKeyHex(), func(a *signer.Allocator) {
		if rejectMessage != "" && signer.IsNonceMismatch(rejectMessage) {
			a.ClearPending()
			return
		}
		a.Confirm(nonce)
	})
}

func mapForwardError(err error) *engine.Error {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return ee
	}
	var te *engine.TransportError
	if errors.As(err, &te) {
		return engine.NewError(engine.CodeBackendUnavailable, te.Error())
	}
	return engine.NewError(engine.CodeInternalError, err.Error())
}

// dealRequest is the shape shared by every *_deal/*_roll/*_spin message:
// an amount plus an opaque bag of game-specific parameters (bets, side
// bets) that are forwarded verbatim into the signed instruction.
type dealRequest struct {
	Amount float64 `json:"amount"`
}

// dealHandler builds the generic "start a round" handler for one game:
// validate amount, sign and forward a transaction carrying the raw request
// body as instruction parameters, then wait for the corresponding
// game_started event (matching scenario 1 in the spec's end-to-end
// examples) before replying.
func dealHandler(instrTag byte, gameType string) HandlerFunc {
	return func(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
		var req dealRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, engine.NewError(engine.CodeInvalidMessage, "malformed "+gameType+" request")
		}
		amount, verr := ValidateAmount(req.Amount)
		if verr != nil {
			return nil, verr
		}
		if _, existingType := sess.ActiveGame(); existingType != "" {
			return nil, engine.NewError(engine.CodeGameInProgress, "a game is already in progress")
		}

		instruction := wire.EncodeInstruction(instrTag, raw)
		tx, nonce := signer.BuildSignedTransaction(d.Nonces, sess.Keys, wire.DefaultNamespace, instruction)
		submission := wire.EncodeSubmission([][]byte{tx})

		waitCh := d.Waiter.Register(sess.ID, wire.KindGameStarted, 0)
		defer d.Waiter.Cancel(sess.ID)

		result, fwErr := d.Forwarder.Forward(ctx, sess.ID, gameType+":"+DecimalString(nonce), submission, false)
		if fwErr != nil {
			settleNonce(d, sess, nonce, fwErr.Error())
			return nil, mapForwardError(fwErr)
		}
		if !result.Result.Accepted {
			settleNonce(d, sess, nonce, result.Result.Message)
			return nil, engine.NewError(engine.MapBackendCode(result.Result.Code), result.Result.Message)
		}
		settleNonce(d, sess, nonce, "")

		sess.SetOptimisticGame(0, gameType)
		d.Presence.SetActiveGame(sess.ID, true)

		timeout := d.EventWait
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		balance, _, _ := sess.Balance()
		select {
		case ev := <-waitCh:
			sess.AdoptServerGameID(ev.SessionID)
			return gameStartedMsg{
				Type:      "game_started",
				SessionID: DecimalString(ev.SessionID),
				Bet:       DecimalString(ev.Bet),
				Balance:   DecimalString(balance),
			}, nil
		case <-ctx.Done():
			return gameStartedMsg{Type: "game_started", Bet: DecimalString(amount), Balance: DecimalString(balance)}, nil
		case <-timer.C:
			// Best-effort reply: the nonce is already consumed and the
			// submission already forwarded, so the gateway cannot undo it;
			// it can only tell the client what it knows.
			return gameStartedMsg{Type: "game_started", Bet: DecimalString(amount), Balance: DecimalString(balance)}, nil
		}
	}
}

// actionHandler builds the generic "act on the current game" handler
// (hit/stand/double/split/higher/lower/cashout): requires an active game,
// signs and forwards the action, then waits for the matching
// player_settled event before replying with the round's result.
func actionHandler(instrTag byte) HandlerFunc {
	return func(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
		gameID, gameType := sess.ActiveGame()
		if gameType == "" {
			return nil, engine.NewError(engine.CodeNoActiveGame, "no active game for this session")
		}

		instruction := wire.EncodeInstruction(instrTag, raw)
		tx, nonce := signer.BuildSignedTransaction(d.Nonces, sess.Keys, wire.DefaultNamespace, instruction)
		submission := wire.EncodeSubmission([][]byte{tx})

		waitCh := d.Waiter.Register(sess.ID, wire.KindPlayerSettled, gameID)
		defer d.Waiter.Cancel(sess.ID)

		result, fwErr := d.Forwarder.Forward(ctx, sess.ID, gameType+"-action:"+DecimalString(nonce), submission, false)
		if fwErr != nil {
			settleNonce(d, sess, nonce, fwErr.Error())
			return nil, mapForwardError(fwErr)
		}
		if !result.Result.Accepted {
			settleNonce(d, sess, nonce, result.Result.Message)
			return nil, engine.NewError(engine.MapBackendCode(result.Result.Code), result.Result.Message)
		}
		settleNonce(d, sess, nonce, "")

		timeout := d.EventWait
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case ev := <-waitCh:
			sess.ClearGame()
			d.Presence.SetActiveGame(sess.ID, false)
			return gameResultMsg{
				Type:       "game_result",
				SessionID:  DecimalString(ev.SessionID),
				Payout:     DecimalString(ev.Payout),
				FinalChips: DecimalString(ev.FinalChips),
				Won:        ev.Won,
			}, nil
		case <-ctx.Done():
			balance, _, _ := sess.Balance()
			return gameResultMsg{Type: "game_result", SessionID: DecimalString(gameID), FinalChips: DecimalString(balance)}, nil
		case <-timer.C:
			balance, _, _ := sess.Balance()
			return gameResultMsg{Type: "game_result", SessionID: DecimalString(gameID), FinalChips: DecimalString(balance)}, nil
		}
	}
}

type gameIDRequest struct {
	GameID any `json:"gameId"`
}

func handleSubscribeGame(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	var req gameIDRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, engine.NewError(engine.CodeInvalidMessage, "malformed subscribe_game request")
	}
	topic, err := broadcast.GameTopic(req.GameID)
	if err != nil {
		return nil, engine.NewError(engine.CodeInvalidGameType, err.Error())
	}
	d.Broadcast.Subscribe(socket, []string{topic})
	return subscribedMsg{Type: "subscribed", Topic: topic}, nil
}

func handleUnsubscribeGame(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	var req gameIDRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, engine.NewError(engine.CodeInvalidMessage, "malformed unsubscribe_game request")
	}
	topic, err := broadcast.GameTopic(req.GameID)
	if err != nil {
		return nil, engine.NewError(engine.CodeInvalidGameType, err.Error())
	}
	d.Broadcast.UnsubscribeFromTopic(socket, topic)
	return subscribedMsg{Type: "unsubscribed", Topic: topic}, nil
}

func handleListSubscriptions(ctx context.Context, d *Deps, sess *session.Session, socket broadcast.Socket, raw json.RawMessage) (any, *engine.Error) {
	return subscriptionsMsg{Type: "subscriptions", Topics: d.Broadcast.Subscriptions(socket)}, nil
}
