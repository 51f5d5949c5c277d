package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"

	"bullscows-server/internal/game"
)

// buildStateMessage redacts the room snapshot for one recipient.
// Players keep sight of their own secret; the opponent's secret and
// spectator views stay hidden until the game completes.
func (s *Server) buildStateMessage(g *game.Game, b Binding) StateMessage {
	viewer := game.PlayerID("")
	playerID := ""
	if b.Role == RolePlayer {
		viewer = b.PlayerID
		playerID = string(b.PlayerID)
	}

	return StateMessage{
		Type:     "state",
		Payload:  g.View(viewer),
		PlayerID: playerID,
		Role:     string(b.Role),
	}
}

// broadcastRoomState fans the post-mutation snapshot out to every
// connection bound to the room. The caller holds the room mutex, so
// all recipients observe the same consistent state.
func (s *Server) broadcastRoomState(room *ActiveRoom) {
	conns := s.connectionManager.RoomConnections(room.Game.RoomCode)

	for connID, binding := range conns {
		conn := s.connectionManager.GetConnection(connID)
		if conn == nil {
			continue
		}

		state := s.buildStateMessage(room.Game, binding)
		if err := s.sendRaw(conn, context.Background(), state); err != nil {
			log.Printf("Failed to broadcast state to %s in room %s: %v",
				connID, room.Game.RoomCode, err)
		}
	}
}

// sendState pushes a snapshot to a single connection, used on (re)join.
func (s *Server) sendState(conn *websocket.Conn, ctx context.Context, room *ActiveRoom, binding Binding) {
	state := s.buildStateMessage(room.Game, binding)
	if err := s.sendRaw(conn, ctx, state); err != nil {
		log.Printf("Failed to send state for room %s: %v", room.Game.RoomCode, err)
	}
}

// sendRaw marshals any message shape and writes one text frame.
func (s *Server) sendRaw(conn *websocket.Conn, ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
