package dispatch

// Outbound envelope shapes, per the external-interface table. Every chip
// field is a decimal string; balance/finalChips are always present even
// when zero.

type sessionReady struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	PublicKey string `json:"publicKey"`
}

type balanceMsg struct {
	Type       string `json:"type"`
	Balance    string `json:"balance"`
	Registered bool   `json:"registered"`
	HasBalance bool   `json:"hasBalance"`
	Message    string `json:"message,omitempty"`
}

type gameStartedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Bet       string `json:"bet"`
	Balance   string `json:"balance"`
}

type gameResultMsg struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	Payout     string `json:"payout"`
	FinalChips string `json:"finalChips"`
	Won        bool   `json:"won"`
}

type submitResultMsg struct {
	Type         string `json:"type"`
	Accepted     bool   `json:"accepted"`
	Code         int    `json:"code"`
	Message      string `json:"message"`
	Deduplicated bool   `json:"deduplicated"`
}

type subscribedMsg struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

type subscriptionsMsg struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type pongMsg struct {
	Type string `json:"type"`
}
