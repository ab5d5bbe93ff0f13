package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameTopicRoundTrip(t *testing.T) {
	for i, name := range gameNames {
		topic, err := GameTopic(float64(i))
		assert.NoError(t, err)
		assert.Equal(t, "game:"+name, topic)

		topic2, err := GameTopic(name)
		assert.NoError(t, err)
		assert.Equal(t, topic, topic2)
	}
}

func TestGameTopicUnknownFails(t *testing.T) {
	_, err := GameTopic("not-a-game")
	assert.Error(t, err)
	_, err = GameTopic(float64(999))
	assert.Error(t, err)
}
