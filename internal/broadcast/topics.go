package broadcast

import "fmt"

// gameNames maps the numeric game id (0-9) a client may send to its
// canonical name, the same order the spec's per-game message set lists
// them in.
var gameNames = [...]string{
	"blackjack", "roulette", "craps", "baccarat", "sicbo",
	"threecard", "ultimatetx", "videopoker", "casinowar", "hilo",
}

var nameToID = func() map[string]int {
	m := make(map[string]int, len(gameNames))
	for i, n := range gameNames {
		m[n] = i
	}
	return m
}()

// GameIDToName resolves a numeric game id to its canonical name.
func GameIDToName(id int) (string, bool) {
	if id < 0 || id >= len(gameNames) {
		return "", false
	}
	return gameNames[id], true
}

// GameNameToID is the inverse of GameIDToName.
func GameNameToID(name string) (int, bool) {
	id, ok := nameToID[name]
	return id, ok
}

// GameTopic resolves a client-supplied game identifier — either a numeric
// id or a known string alias — to its canonical "game:<name>" topic.
// Unknown identifiers fail validation.
func GameTopic(gameID any) (string, error) {
	switch v := gameID.(type) {
	case string:
		if _, ok := nameToID[v]; ok {
			return "game:" + v, nil
		}
	case float64:
		if name, ok := GameIDToName(int(v)); ok {
			return "game:" + name, nil
		}
	case int:
		if name, ok := GameIDToName(v); ok {
			return "game:" + name, nil
		}
	}
	return "", fmt.Errorf("unknown game id: %v", gameID)
}
