// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the snapshot change stream.
const (
	BadSubprotocolError  = 3000 // Client connected with an unsupported subprotocol.
	InvalidGameCodeError = 3003 // Game code in the WS URL is malformed or unknown.
	GameDeletedError     = 3004 // The game's snapshot was deleted while the stream was open.
)
