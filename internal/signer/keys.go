package signer

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// KeyPair is an ephemeral custodial signing identity. The private key never
// leaves this process; it is held only in memory for the lifetime of the
// owning session.
type KeyPair struct {
	Public  [32]byte
	private ed25519.PrivateKey
}

// PublicKeyHex renders the public key as lowercase hex, the form the client
// sees in session_ready.
func (k KeyPair) PublicKeyHex() string {
	return fmt.Sprintf("%x", k.Public[:])
}

// Sign signs payload with the held private key.
func (k KeyPair) Sign(payload []byte) [64]byte {
	var sig [64]byte
	copy(sig[:], ed25519.Sign(k.private, payload))
	return sig
}

// GenerateKeyPair generates a fresh ed25519 keypair from the OS CSPRNG,
// rejecting and retrying on the (astronomically unlikely but checked
// explicitly, since custodial keys must never be predictable) weak keys:
// all-zero or all-same-byte public keys.
func GenerateKeyPair() (KeyPair, error) {
	for attempt := 0; attempt < 5; attempt++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return KeyPair{}, fmt.Errorf("generating signing key: %w", err)
		}
		if isWeakKey(pub) {
			continue
		}
		var kp KeyPair
		copy(kp.Public[:], pub)
		kp.private = priv
		return kp, nil
	}
	return KeyPair{}, fmt.Errorf("generating signing key: exhausted retries against weak-key guard")
}

func isWeakKey(pub ed25519.PublicKey) bool {
	if bytes.Equal(pub, make([]byte, len(pub))) {
		return true
	}
	first := pub[0]
	for _, b := range pub[1:] {
		if b != first {
			return false
		}
	}
	return true
}
