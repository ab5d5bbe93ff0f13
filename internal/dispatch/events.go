package dispatch

import (
	"encoding/json"

	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/wire"
)

// gameEventMsg is the spectator-facing envelope published to a game:<name>
// topic. Unlike the per-session reply envelopes in outbound.go, fields are
// omitted rather than zero-valued since a single event kind only ever
// populates a handful of them.
type gameEventMsg struct {
	Type       string `json:"type"`
	Kind       string `json:"kind"`
	SessionID  string `json:"sessionId,omitempty"`
	Round      string `json:"round,omitempty"`
	Bet        string `json:"bet,omitempty"`
	Payout     string `json:"payout,omitempty"`
	FinalChips string `json:"finalChips,omitempty"`
	Won        bool   `json:"won,omitempty"`
	ReasonCode int    `json:"reasonCode,omitempty"`
}

// RouteEvent is the gateway's onEvent callback for the backend update
// stream: it first fulfills any handler blocked on this exact event via
// Waiter, then — if the event's topic can be resolved — republishes a
// spectator-facing copy to the matching game:<name> topic.
//
// The wire protocol carries no explicit topic field, so resolving one is
// this gateway's own convention, not something the backend specifies:
// game_started carries GameType directly; every other kind only carries a
// backend session id, so the owning gateway session is found by scanning
// for the one whose ActiveGame matches, and its remembered gameType is
// used. round_opened/locked/outcome/finalized carry neither a session id
// nor a game type (they're table-scoped, not player-scoped) and are
// dispatched to waiters only — they are never republished to a topic.
func RouteEvent(d *Deps, ev wire.Event) {
	d.Waiter.Dispatch(ev)

	topic, ok := resolveEventTopic(d, ev)
	if !ok {
		return
	}

	nonZero := func(v uint64) string {
		if v == 0 {
			return ""
		}
		return DecimalString(v)
	}
	msg, err := json.Marshal(gameEventMsg{
		Type:       "game_event",
		Kind:       ev.Kind,
		SessionID:  nonZero(ev.SessionID),
		Round:      nonZero(ev.Round),
		Bet:        nonZero(ev.Bet),
		Payout:     nonZero(ev.Payout),
		FinalChips: nonZero(ev.FinalChips),
		Won:        ev.Won,
		ReasonCode: int(ev.ReasonCode),
	})
	if err != nil {
		d.Log.Warn("encoding spectator event", "kind", ev.Kind, "err", err)
		return
	}
	d.Broadcast.PublishToTopic(topic, msg)
}

func resolveEventTopic(d *Deps, ev wire.Event) (string, bool) {
	switch ev.Kind {
	case wire.KindGameStarted:
		name, ok := broadcast.GameIDToName(int(ev.GameType))
		if !ok {
			return "", false
		}
		return broadcast.GameTopic(name)
	case wire.KindPlayerSettled, wire.KindBetAccepted, wire.KindBetRejected:
		if ev.SessionID == 0 {
			return "", false
		}
		gameType, ok := gameTypeForBackendSession(d, ev.SessionID)
		if !ok {
			return "", false
		}
		return broadcast.GameTopic(gameType)
	default:
		// round_opened/locked/outcome/finalized: table-scoped, no owning
		// session or game type to resolve a topic from.
		return "", false
	}
}

func gameTypeForBackendSession(d *Deps, backendSessionID uint64) (string, bool) {
	var gameType string
	found := false
	d.Sessions.ForEach(func(s *session.Session) bool {
		if id, gt := s.ActiveGame(); id == backendSessionID && gt != "" {
			gameType = gt
			found = true
			return false
		}
		return true
	})
	return gameType, found
}
