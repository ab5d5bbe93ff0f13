package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTransactionLayout(t *testing.T) {
	var pub [32]byte
	var sig [64]byte
	for i := range pub {
		pub[i] = byte(i)
	}
	for i := range sig {
		sig[i] = byte(255 - i)
	}
	instruction := []byte{0xAA, 0xBB}

	tx := BuildTransaction(7, instruction, pub, sig)
	assert.Len(t, tx, 8+len(instruction)+32+64)

	r := NewReader(tx)
	nonce, ok := r.ReadU64BE()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), nonce)
	got, ok := r.ReadBytes(len(instruction))
	assert.True(t, ok)
	assert.Equal(t, instruction, got)
}

func TestEncodeSubmissionWrapsCount(t *testing.T) {
	tx1 := []byte{1, 2, 3}
	tx2 := []byte{4, 5}
	out := EncodeSubmission([][]byte{tx1, tx2})

	r := NewReader(out)
	tag, _ := r.ReadByte()
	assert.Equal(t, byte(0x01), tag)
	count, ok := r.ReadVarint()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), count)
}

func TestSignaturePayloadIncludesNamespaceAndNonce(t *testing.T) {
	payload := SignaturePayload(DefaultNamespace, 42, []byte{0x01})
	r := NewReader(payload)
	ns, ok := r.ReadVec()
	assert.True(t, ok)
	assert.Equal(t, DefaultNamespace, string(ns))
	nonce, ok := r.ReadU64BE()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), nonce)
}
