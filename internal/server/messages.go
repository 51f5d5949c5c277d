package server

import (
	"encoding/json"

	"bullscows-server/internal/game"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StateMessage is the authoritative snapshot push. Unlike every other
// server message it carries two extra top-level fields identifying
// which slot and role the snapshot was redacted for.
type StateMessage struct {
	Type     string     `json:"type"`
	Payload  *game.Game `json:"payload"`
	PlayerID string     `json:"playerId"`
	Role     string     `json:"role"`
}
