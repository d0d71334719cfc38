// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/middleware"
)

// Subprotocol is the websocket subprotocol clients must request on /games/{code}/ws.
const Subprotocol = "pokerbank.snapshots"

const (
	EventSnapshotUpdated = "snapshot_updated"
	EventSnapshotDeleted = "snapshot_deleted"
)

// SnapshotEvent tells watchers that a game's stored document changed. Clients react by pulling.
type SnapshotEvent struct {
	Type     string `json:"type"`
	GameCode string `json:"gameCode"`
	Version  int64  `json:"version,omitempty"`
}

// Hub tracks the websocket connections watching each game.
type Hub struct {
	logger *logrus.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{logger: logger, conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *Hub) add(code string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[code] == nil {
		h.conns[code] = make(map[*websocket.Conn]struct{})
	}
	h.conns[code][c] = struct{}{}
}

func (h *Hub) remove(code string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[code], c)
	if len(h.conns[code]) == 0 {
		delete(h.conns, code)
	}
}

// Watchers returns how many connections are watching code.
func (h *Hub) Watchers(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[code])
}

// Broadcast sends ev to every watcher of code. Writes happen off the caller's goroutine.
func (h *Hub) Broadcast(code string, ev SnapshotEvent) {
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns[code]))
	for c := range h.conns[code] {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Failed to marshal %s event for game %s: %v", ev.Type, code, err)
		return
	}
	go func() {
		for _, c := range targets {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := c.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Warnf("Failed to notify watcher of game %s: %v", code, err)
				continue
			}
			if ev.Type == EventSnapshotDeleted {
				c.Close(GameDeletedError, "game deleted")
			}
		}
	}()
}

// handleWatch upgrades to a websocket that streams SnapshotEvents for one game. The stream starts
// with the current version so a client can tell whether it missed writes while connecting.
func (s *APIServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	code, ok := gameCode(w, r)
	if !ok {
		return
	}
	current, err := s.Store.Get(r.Context(), code)
	if err != nil {
		s.storeError(w, code, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.wsOriginPatterns(),
	})
	if err != nil {
		s.Logger.Warnf("WebSocket accept error for game %s: %v", code, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "Client must use the '"+Subprotocol+"' subprotocol.")
		return
	}
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	s.Hub.add(code, c)
	defer s.Hub.remove(code, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sendWsMessage(ctx, c, SnapshotEvent{Type: EventSnapshotUpdated, GameCode: code, Version: current.LastStateUpdate})

	err = readWatchMessages(ctx, c)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)
}

// readWatchMessages answers pings until the client goes away. Watchers have nothing else to say.
func readWatchMessages(ctx context.Context, c *websocket.Conn) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}
		if msg.Type == "ping" {
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})
		}
	}
}

// sendWsMessage marshals a message and writes it with a timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("Error marshaling WebSocket message: %v", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		logrus.Debugf("Error writing WebSocket message: %v", err)
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
