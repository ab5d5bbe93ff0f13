package wire

// Update tags.
const (
	TagSeed           = 0x00
	TagEvents         = 0x01
	TagFilteredEvents = 0x02
)

// Event output tags (second byte of each Op).
const (
	OutGameStarted   = 21
	OutRoundOpened   = 60
	OutLocked        = 61
	OutOutcome       = 62
	OutPlayerSettled = 63
	OutFinalized     = 64
	OutBetAccepted   = 65
	OutBetRejected   = 66
)

// progressSize/certSize/proofSize are the fixed-width header fields that
// precede every Events/FilteredEvents body. The backend's wire format does
// not name these beyond "Progress/Certificate/Proof"; this gateway treats
// Progress as an 8-byte counter and Certificate/Proof as 32-byte digests,
// matching the digest width the round-lookup decoder uses explicitly
// (digest:32) for consistency across the codec.
const (
	progressSize = 8
	certSize     = 32
	proofSize    = 32
)

// Event is a decoded backend update. Kind selects which of the optional
// fields are meaningful; zero value fields are simply unset for that kind.
type Event struct {
	Kind string

	SessionID  uint64
	Round      uint64
	GameType   byte
	Bet        uint64
	Payout     uint64
	FinalChips uint64
	Won        bool
	ReasonCode byte
	Phase      byte
	Outcome    []byte
}

const (
	KindGameStarted   = "game_started"
	KindRoundOpened   = "round_opened"
	KindLocked        = "locked"
	KindOutcome       = "outcome"
	KindPlayerSettled = "player_settled"
	KindFinalized     = "finalized"
	KindBetAccepted   = "bet_accepted"
	KindBetRejected   = "bet_rejected"
)

// DecodeUpdate decodes one length-delimited update message into zero or more
// Events. It never panics: truncated or malformed input yields an empty
// slice. Unknown top-level tags are ignored, not treated as errors.
func DecodeUpdate(data []byte) []Event {
	r := NewReader(data)
	tag, ok := r.ReadByte()
	if !ok {
		return nil
	}
	switch tag {
	case TagSeed:
		return nil
	case TagEvents:
		return decodeEventsBody(r)
	case TagFilteredEvents:
		// Variant header: one byte selecting the filter kind, then the same
		// Progress/Certificate/Proof/Ops body as a plain Events message.
		if _, ok := r.ReadByte(); !ok {
			return nil
		}
		return decodeEventsBody(r)
	default:
		return nil
	}
}

func decodeEventsBody(r *Reader) []Event {
	if _, ok := r.ReadBytes(progressSize); !ok {
		return nil
	}
	if _, ok := r.ReadBytes(certSize); !ok {
		return nil
	}
	if _, ok := r.ReadBytes(proofSize); !ok {
		return nil
	}
	n, ok := r.ReadVarint()
	if !ok {
		return nil
	}

	// Every op takes at least two bytes, so cap the preallocation by what
	// remains: a forged count must not demand an unbounded allocation.
	capHint := n
	if limit := uint64(r.Remaining() / 2); capHint > limit {
		capHint = limit
	}
	events := make([]Event, 0, capHint)
	for i := uint64(0); i < n; i++ {
		ev, ok := decodeOp(r)
		if !ok {
			// An op failed to parse: abandon the remainder of this update.
			break
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// decodeOp decodes {context:u8, outputTag:u8, eventBody}. ok=false means the
// op itself could not be parsed (caller abandons the rest of the message).
// An unknown output tag also returns ok=false, since the length of its body
// is not known; the ops after it in the same update are not decoded.
func decodeOp(r *Reader) (*Event, bool) {
	if _, ok := r.ReadByte(); !ok { // context, unused by the gateway
		return nil, false
	}
	outTag, ok := r.ReadByte()
	if !ok {
		return nil, false
	}

	switch outTag {
	case OutGameStarted:
		sid, ok1 := r.ReadU64BE()
		gt, ok2 := r.ReadByte()
		bet, ok3 := r.ReadU64BE()
		if !(ok1 && ok2 && ok3) {
			return nil, false
		}
		return &Event{Kind: KindGameStarted, SessionID: sid, GameType: gt, Bet: bet}, true

	case OutRoundOpened:
		round, ok1 := r.ReadU64BE()
		phase, ok2 := r.ReadByte()
		if !(ok1 && ok2) {
			return nil, false
		}
		return &Event{Kind: KindRoundOpened, Round: round, Phase: phase}, true

	case OutLocked:
		round, ok1 := r.ReadU64BE()
		if !ok1 {
			return nil, false
		}
		return &Event{Kind: KindLocked, Round: round}, true

	case OutOutcome:
		round, ok1 := r.ReadU64BE()
		data, ok2 := r.ReadVec()
		if !(ok1 && ok2) {
			return nil, false
		}
		return &Event{Kind: KindOutcome, Round: round, Outcome: data}, true

	case OutPlayerSettled:
		sid, ok1 := r.ReadU64BE()
		payout, ok2 := r.ReadU64BE()
		final, ok3 := r.ReadU64BE()
		won, ok4 := r.ReadByte()
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, false
		}
		return &Event{Kind: KindPlayerSettled, SessionID: sid, Payout: payout, FinalChips: final, Won: won != 0}, true

	case OutFinalized:
		round, ok1 := r.ReadU64BE()
		if !ok1 {
			return nil, false
		}
		return &Event{Kind: KindFinalized, Round: round}, true

	case OutBetAccepted:
		sid, ok1 := r.ReadU64BE()
		amount, ok2 := r.ReadU64BE()
		if !(ok1 && ok2) {
			return nil, false
		}
		return &Event{Kind: KindBetAccepted, SessionID: sid, Bet: amount}, true

	case OutBetRejected:
		sid, ok1 := r.ReadU64BE()
		reason, ok2 := r.ReadByte()
		if !(ok1 && ok2) {
			return nil, false
		}
		return &Event{Kind: KindBetRejected, SessionID: sid, ReasonCode: reason}, true

	default:
		// Unknown tag: the op itself is considered skipped, but since we
		// cannot know its body length we cannot safely continue past it.
		return nil, false
	}
}

// RoundStateOp is the fixed state-op byte preceding a round lookup digest.
const RoundStateOp = 0xD2

// RoundSnapshot is the body returned by a round lookup.
type RoundSnapshot struct {
	Location uint64
	Digest   [32]byte
	ValueTag byte
	Body     []byte
}

// DecodeRoundLookup decodes Progress ‖ Certificate ‖ Proof ‖ u64_be(location)
// ‖ u8(stateOp) ‖ digest:32 ‖ u8(valueTag) ‖ body. It returns ok=false if the
// input is malformed, the state op does not match RoundStateOp, or valueTag
// does not equal expectedValueTag.
func DecodeRoundLookup(data []byte, expectedValueTag byte) (*RoundSnapshot, bool) {
	r := NewReader(data)
	if _, ok := r.ReadBytes(progressSize); !ok {
		return nil, false
	}
	if _, ok := r.ReadBytes(certSize); !ok {
		return nil, false
	}
	if _, ok := r.ReadBytes(proofSize); !ok {
		return nil, false
	}
	location, ok := r.ReadU64BE()
	if !ok {
		return nil, false
	}
	stateOp, ok := r.ReadByte()
	if !ok || stateOp != RoundStateOp {
		return nil, false
	}
	digest, ok := r.ReadBytes(32)
	if !ok {
		return nil, false
	}
	valueTag, ok := r.ReadByte()
	if !ok || valueTag != expectedValueTag {
		return nil, false
	}
	body, _ := r.ReadBytes(r.Remaining())

	snap := &RoundSnapshot{Location: location, ValueTag: valueTag, Body: body}
	copy(snap.Digest[:], digest)
	return snap, true
}
