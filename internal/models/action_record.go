package models

import "encoding/json"

// ActionRecord is the archival form of one dispatched action, queued for the historian.
type ActionRecord struct {
	GameCode    string          `json:"game_code"`
	ActionIndex int             `json:"action_index"`
	ActorID     string          `json:"actor_id"`
	ActorRole   Role            `json:"actor_role"`
	ActionType  string          `json:"action_type"`
	Payload     json.RawMessage `json:"action_payload"`
	Version     int64           `json:"version"`
	Timestamp   int64           `json:"timestamp"`
}
