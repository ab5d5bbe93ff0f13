package signer

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/wire"
)

func TestGenerateKeyPairRejectsWeakKeys(t *testing.T) {
	var allZero [32]byte
	assert.True(t, isWeakKey(ed25519.PublicKey(allZero[:])))

	allSame := make([]byte, 32)
	for i := range allSame {
		allSame[i] = 0x42
	}
	assert.True(t, isWeakKey(ed25519.PublicKey(allSame)))
}

func TestGenerateKeyPairProducesUsableSigner(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, kp.PublicKeyHex(), 64)

	sig := kp.Sign([]byte("payload"))
	assert.True(t, ed25519.Verify(kp.Public[:], []byte("payload"), sig[:]))
}

func TestBuildSignedTransactionVerifiesAndTampersFail(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	nonces := NewNonceManager()

	tx, nonce := BuildSignedTransaction(nonces, kp, "_NULLSPACE_TX", []byte{0x01, 0x02})
	assert.Equal(t, uint64(0), nonce)
	require.True(t, len(tx) > 8+32+64)

	sig := tx[len(tx)-64:]
	expectedPayload := wire.SignaturePayload("_NULLSPACE_TX", nonce, []byte{0x01, 0x02})
	assert.True(t, ed25519.Verify(kp.Public[:], expectedPayload, sig))

	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xFF
	assert.False(t, ed25519.Verify(kp.Public[:], expectedPayload, tampered))
}
