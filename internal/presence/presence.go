// Package presence decides which liveness actions a client should dispatch. It holds no state of its
// own: every decision is a function of the snapshot and the caller's clock.
package presence

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
)

const (
	DefaultInactivityTimeout = 5 * time.Minute
	DefaultHostGracePeriod   = 30 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
)

// Tracker evaluates host and player liveness against configured thresholds.
type Tracker struct {
	// InactivityTimeout is how long the host may be silent before the game is cancelled.
	InactivityTimeout time.Duration
	// HostGracePeriod is how long the host may be silent before the game is marked host_reconnecting.
	HostGracePeriod time.Duration
	// HeartbeatInterval throttles heartbeat writes: a heartbeat is only emitted once the recorded
	// timestamp is at least this old.
	HeartbeatInterval time.Duration
}

func NewTracker() Tracker {
	return Tracker{
		InactivityTimeout: DefaultInactivityTimeout,
		HostGracePeriod:   DefaultHostGracePeriod,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// IsExpired reports whether more than timeout has elapsed between lastActive and now (both Unix millis).
func IsExpired(lastActive, now int64, timeout time.Duration) bool {
	return now-lastActive > timeout.Milliseconds()
}

// HostActions returns what a non-host client should dispatch about the host at now: a cancellation
// once the host has been silent past the inactivity timeout, a reconnecting mark once past the grace
// period, or nothing.
func (t Tracker) HostActions(s models.GameState, now int64) []game.Action {
	switch s.GameStatus {
	case models.StatusActive, models.StatusHostReconnecting:
	default:
		return nil
	}
	if IsExpired(s.HostLastActive, now, t.InactivityTimeout) {
		return []game.Action{game.CancelGame{
			Reason: fmt.Sprintf("host inactive for more than %s", t.InactivityTimeout),
		}}
	}
	if s.GameStatus == models.StatusActive && t.HostGracePeriod > 0 && IsExpired(s.HostLastActive, now, t.HostGracePeriod) {
		return []game.Action{game.MarkHostReconnecting{}}
	}
	return nil
}

// HostHeartbeat returns the heartbeat the host should dispatch at now, or nil when the last one is
// recent enough and the game is not waiting on the host.
func (t Tracker) HostHeartbeat(s models.GameState, now int64) game.Action {
	if s.GameStatus == models.StatusCancelled {
		return nil
	}
	if s.GameStatus == models.StatusHostReconnecting || IsExpired(s.HostLastActive, now, t.HeartbeatInterval) {
		return game.HostHeartbeat{}
	}
	return nil
}

// PlayerHeartbeat returns the SET_PLAYER_ACTIVE a seated player should dispatch at now, or nil.
func (t Tracker) PlayerHeartbeat(s models.GameState, playerID string, now int64) game.Action {
	if s.GameStatus == models.StatusCancelled {
		return nil
	}
	p := s.Player(playerID)
	if p == nil {
		return nil
	}
	if !p.IsActive || IsExpired(p.LastActive, now, t.HeartbeatInterval) {
		return game.SetPlayerActive{PlayerID: playerID}
	}
	return nil
}

// PlayerLive reports whether p has been seen within the inactivity timeout.
func (t Tracker) PlayerLive(p models.Player, now int64) bool {
	return p.IsActive && !IsExpired(p.LastActive, now, t.InactivityTimeout)
}

// Visibility maps a client visibility signal to the presence action for playerID.
func Visibility(playerID string, visible bool) game.Action {
	if visible {
		return game.SetPlayerActive{PlayerID: playerID}
	}
	return game.SetPlayerInactive{PlayerID: playerID}
}
