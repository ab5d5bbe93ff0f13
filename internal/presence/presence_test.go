package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceAddRemove(t *testing.T) {
	tr := NewTracker()
	tr.Add("a")
	tr.Add("b")
	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.OnlineCount)
	assert.Equal(t, 0, snap.ActiveGames)

	tr.SetActiveGame("a", true)
	snap = tr.Snapshot()
	assert.Equal(t, 1, snap.ActiveGames)

	tr.Remove("a")
	snap = tr.Snapshot()
	assert.Equal(t, 1, snap.OnlineCount)
	assert.Equal(t, 0, snap.ActiveGames)
}

func TestClockSyncSeqStrictlyIncreasing(t *testing.T) {
	tr := NewTracker()
	c1 := tr.NextClockSync()
	c2 := tr.NextClockSync()
	assert.Less(t, c1.Seq, c2.Seq)
}
