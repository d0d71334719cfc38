package models

// GameAction is one entry of the append-only action log carried in every snapshot.
type GameAction struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId,omitempty"`
	PlayerName  string `json:"playerName,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Description string `json:"description"`
}
