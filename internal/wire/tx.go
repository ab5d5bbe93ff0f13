package wire

// DefaultNamespace domain-separates gateway signatures from any other
// protocol sharing the same key material.
const DefaultNamespace = "_NULLSPACE_TX"

// SignaturePayload builds the bytes a transaction's signature covers:
// varint(len(namespace)) ‖ namespace ‖ nonce(8 BE) ‖ instruction.
func SignaturePayload(namespace string, nonce uint64, instruction []byte) []byte {
	w := Get()
	defer w.Put()
	w.WriteVec([]byte(namespace))
	w.WriteU64BE(nonce)
	w.WriteBytes(instruction)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// BuildTransaction assembles nonce(8 BE) ‖ instruction ‖ pubkey(32) ‖ signature(64).
func BuildTransaction(nonce uint64, instruction []byte, pubkey [32]byte, signature [64]byte) []byte {
	w := Get()
	defer w.Put()
	w.WriteU64BE(nonce)
	w.WriteBytes(instruction)
	w.WriteBytes(pubkey[:])
	w.WriteBytes(signature[:])
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// EncodeSubmission wraps one or more signed transactions for the wire:
// tag=1 ‖ varint(count) ‖ tx_1 … tx_n.
func EncodeSubmission(txs [][]byte) []byte {
	w := Get()
	defer w.Put()
	w.WriteByte(0x01)
	w.WriteVarint(uint64(len(txs)))
	for _, tx := range txs {
		w.WriteBytes(tx)
	}
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}
