package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/signer"
)

func newTestSession(t *testing.T, id, ip string) *Session {
	t.Helper()
	kp, err := signer.GenerateKeyPair()
	require.NoError(t, err)
	return New(id, kp, ip)
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager()
	s := newTestSession(t, "s1", "1.2.3.4")
	m.Add(s)

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)

	byKey, ok := m.GetByPublicKey(s.Keys.PublicKeyHex())
	require.True(t, ok)
	assert.Same(t, s, byKey)

	assert.Equal(t, 1, m.CountForIP("1.2.3.4"))

	m.Remove("s1")
	_, ok = m.Get("s1")
	assert.False(t, ok)
	_, ok = m.GetByPublicKey(s.Keys.PublicKeyHex())
	assert.False(t, ok)
	assert.Equal(t, 0, m.CountForIP("1.2.3.4"))
	assert.Equal(t, 0, m.Count())
}

func TestManagerRemoveIsIdempotent(t *testing.T) {
	m := NewManager()
	assert.NotPanics(t, func() {
		m.Remove("does-not-exist")
		m.Remove("does-not-exist")
	})
}

func TestSessionActiveGameIDZeroServerPreservesLocal(t *testing.T) {
	s := newTestSession(t, "s1", "1.2.3.4")
	s.SetOptimisticGame(111, "blackjack")
	s.AdoptServerGameID(0)
	id, gt := s.ActiveGame()
	assert.Equal(t, uint64(111), id)
	assert.Equal(t, "blackjack", gt)

	s.AdoptServerGameID(99999)
	id, _ = s.ActiveGame()
	assert.Equal(t, uint64(99999), id)
}
