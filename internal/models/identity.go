package models

// Role is the capacity a client participates in a game with.
type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Identity is who a client is within one game. ID is the player id for hosts and players (empty for
// a host that has not taken a seat) and the spectator id for spectators.
type Identity struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (i Identity) IsHost() bool      { return i.Role == RoleHost }
func (i Identity) IsSpectator() bool { return i.Role == RoleSpectator }

// Seated reports whether the identity plays with a seat of its own.
func (i Identity) Seated() bool { return i.Role != RoleSpectator && i.ID != "" }
