package wire

// Instruction tags select which backend operation a signed transaction
// invokes. The backend's own instruction encoding is outside this gateway's
// control; these tags and the envelope below are this gateway's own
// convention for serializing a dispatched message's parameters into the
// instruction bytes a transaction signs over.
const (
	InstrGetBalance    = 0x01
	InstrFaucetClaim   = 0x02
	InstrBlackjackDeal = 0x10
	InstrBlackjackHit  = 0x11
	InstrBlackjackStand = 0x12
	InstrBlackjackDouble = 0x13
	InstrBlackjackSplit = 0x14
	InstrRouletteSpin  = 0x20
	InstrCrapsRoll     = 0x21
	InstrBaccaratDeal  = 0x22
	InstrSicboRoll     = 0x23
	InstrThreeCardDeal = 0x24
	InstrUltimateTxDeal = 0x25
	InstrVideoPokerDeal = 0x26
	InstrCasinoWarDeal = 0x27
	InstrHiloDeal      = 0x28
	InstrHiloHigher    = 0x29
	InstrHiloLower     = 0x2A
	InstrHiloCashout   = 0x2B
)

// EncodeInstruction wraps a tag plus its canonically-encoded parameters as
// tag:u8 ‖ vec(params). params is typically the JSON-canonicalized request
// body, giving every instruction a self-delimiting, signable byte form
// without needing a bespoke field layout per game.
func EncodeInstruction(tag byte, params []byte) []byte {
	w := Get()
	defer w.Put()
	w.WriteByte(tag)
	w.WriteVec(params)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}
