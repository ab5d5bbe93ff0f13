package signer

import (
	"regexp"

	"github.com/udisondev/rtgateway/internal/wire"
)

// nonceMismatchPattern matches backend rejection messages that indicate the
// submitted nonce was stale, per the spec's fixed pattern list.
var nonceMismatchPattern = regexp.MustCompile(`(?i)invalid nonce|nonce mismatch|replay`)

// IsNonceMismatch reports whether a backend error message indicates the
// submission should trigger a pending-clear and resync rather than being
// treated as an ordinary rejection.
func IsNonceMismatch(backendMessage string) bool {
	return nonceMismatchPattern.MatchString(backendMessage)
}

// BuildSignedTransaction allocates the next nonce for key, builds the
// transaction bytes, and signs them. It returns the wire-ready transaction
// and the nonce it consumed, so the caller can Confirm/mismatch-handle it
// after the forwarder replies.
func BuildSignedTransaction(nonces *NonceManager, kp KeyPair, namespace string, instruction []byte) (tx []byte, nonce uint64) {
	nonces.WithLock(kp.PublicKeyHex(), func(a *Allocator) {
		nonce = a.Use()
	})
	payload := wire.SignaturePayload(namespace, nonce, instruction)
	sig := kp.Sign(payload)
	tx = wire.BuildTransaction(nonce, instruction, kp.Public, sig)
	return tx, nonce
}
