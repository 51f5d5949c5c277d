package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"bullscows-server/internal/game"
)

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid create_room payload")
		return
	}

	room, err := s.roomManager.CreateRoom(req.Name)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	token := uuid.New().String()

	room.mu.Lock()
	defer room.mu.Unlock()

	binding := Binding{
		RoomCode: room.Game.RoomCode,
		Role:     RolePlayer,
		PlayerID: game.Player1,
		Token:    token,
	}
	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: room.Game.RoomCode,
		PlayerID: game.Player1,
		Name:     room.Game.P1.Name,
	})
	s.connectionManager.Bind(connectionID, binding)

	s.sendMessage(socket, ctx, ServerMessage{
		Type: "session",
		Payload: SessionNotification{
			Token:    token,
			RoomCode: room.Game.RoomCode,
			PlayerID: string(game.Player1),
		},
	})

	log.Printf("Room %s created by %s", room.Game.RoomCode, room.Game.P1.Name)
	s.broadcastRoomState(room)
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid join_room payload")
		return
	}

	name := sanitizeName(req.Name)
	if err := validateName(name); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(req.Code)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	g := room.Game

	// First open slot; a full room turns the joiner into a spectator
	// via redirect rather than rejecting them outright.
	var slot game.PlayerID
	switch {
	case g.P1.Name == "":
		slot = game.Player1
	case g.P2.Name == "":
		slot = game.Player2
	default:
		s.sendMessage(socket, ctx, ServerMessage{
			Type:    "redirect",
			Payload: "/spectate/" + g.RoomCode,
		})
		return
	}

	if err := g.SetName(slot, name); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	token := uuid.New().String()
	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: g.RoomCode,
		PlayerID: slot,
		Name:     name,
	})
	s.connectionManager.Bind(connectionID, Binding{
		RoomCode: g.RoomCode,
		Role:     RolePlayer,
		PlayerID: slot,
		Token:    token,
	})
	room.Touch()

	s.sendMessage(socket, ctx, ServerMessage{
		Type: "session",
		Payload: SessionNotification{
			Token:    token,
			RoomCode: g.RoomCode,
			PlayerID: string(slot),
		},
	})

	log.Printf("%s joined room %s as %s", name, g.RoomCode, slot)
	s.broadcastRoomState(room)
}

func (s *Server) handleSpectate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req SpectateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid spectate payload")
		return
	}

	room, err := s.roomManager.GetRoom(req.Code)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.Game.Spectators++
	s.connectionManager.Bind(connectionID, Binding{
		RoomCode: room.Game.RoomCode,
		Role:     RoleSpectator,
	})
	room.Touch()

	// Spectator count is part of the shared snapshot, so everyone in
	// the room gets the rebroadcast.
	s.broadcastRoomState(room)
}

func (s *Server) handleLeaveRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	binding, ok := s.connectionManager.GetBinding(connectionID)
	if !ok {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		s.connectionManager.Unbind(connectionID)
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	s.detachFromRoom(room, connectionID, binding)
	empty := len(s.connectionManager.RoomConnections(room.Game.RoomCode)) == 0 &&
		room.Game.NamedPlayers() == 0
	room.mu.Unlock()

	if empty {
		s.teardownRoom(room.Game.RoomCode)
	}

	s.sendMessage(socket, ctx, ServerMessage{
		Type:    "redirect",
		Payload: "/",
	})
}

// detachFromRoom unbinds one connection and repairs the room state:
// spectators decrement the count, players vacate their slot (with
// promotion when the owner leaves). Caller holds the room mutex.
func (s *Server) detachFromRoom(room *ActiveRoom, connectionID string, binding Binding) {
	g := room.Game

	if binding.Role == RoleSpectator {
		if g.Spectators > 0 {
			g.Spectators--
		}
		s.connectionManager.Unbind(connectionID)
		s.broadcastRoomState(room)
		return
	}

	promoted := g.RemovePlayer(binding.PlayerID)
	if binding.Token != "" {
		s.sessionManager.RemoveSession(binding.Token)
	}
	s.connectionManager.Unbind(connectionID)

	if promoted {
		s.connectionManager.RebindPlayer(g.RoomCode, game.Player2, game.Player1)
		if connID := s.connectionManager.FindPlayerConnection(g.RoomCode, game.Player1); connID != "" {
			if other, ok := s.connectionManager.GetBinding(connID); ok && other.Token != "" {
				s.sessionManager.UpdatePlayerID(other.Token, game.Player1)
			}
		}
	}

	room.Touch()
	log.Printf("Player %s left room %s", binding.PlayerID, g.RoomCode)
	s.broadcastRoomState(room)
}

// teardownRoom removes an empty room and everything keyed by its code.
func (s *Server) teardownRoom(roomCode string) {
	s.roomManager.RemoveRoom(roomCode)
	s.sessionManager.RemoveRoomSessions(roomCode)
	log.Printf("Room %s removed", roomCode)
}

// requirePlayer resolves the caller's binding and rejects spectators
// and unbound connections. A spectator sending a game command is a
// role violation, not a validation failure.
func (s *Server) requirePlayer(socket *websocket.Conn, ctx context.Context, connectionID string) (Binding, bool) {
	binding, ok := s.connectionManager.GetBinding(connectionID)
	if !ok {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return Binding{}, false
	}
	if binding.Role != RolePlayer {
		s.sendError(socket, ctx, "ROLE_VIOLATION: Spectators cannot play")
		return Binding{}, false
	}
	return binding, true
}

func (s *Server) handleSecret(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	binding, ok := s.requirePlayer(socket, ctx, connectionID)
	if !ok {
		return
	}

	var req GameActionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid secret payload")
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := room.Game.SetSecret(binding.PlayerID, req.Data); err != nil {
		// Rejected commands leave the room untouched: no rebroadcast.
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Touch()
	s.broadcastRoomState(room)
}

func (s *Server) handleSubmitGuess(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	binding, ok := s.requirePlayer(socket, ctx, connectionID)
	if !ok {
		return
	}

	var req GameActionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid submit_guess payload")
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	g := room.Game
	guess, err := g.SubmitGuess(binding.PlayerID, req.Data)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Touch()

	if g.Status == game.StatusCompleted {
		log.Printf("Room %s completed: %s wins with %s", g.RoomCode, g.Winner, guess.Code)
		s.recordMatch(g)
	}

	s.broadcastRoomState(room)
}

// recordMatch writes the outcome to the history store without holding
// up the broadcast. Failures are logged, never surfaced to players.
func (s *Server) recordMatch(g *game.Game) {
	if s.historyManager == nil {
		return
	}

	record := g.View("")
	go func() {
		if err := s.historyManager.RecordMatch(record); err != nil {
			log.Printf("Failed to record match for room %s: %v", record.RoomCode, err)
		}
	}()
}

func (s *Server) handleRestart(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	binding, ok := s.requirePlayer(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, err := room.Game.RequestRematch(binding.PlayerID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Touch()
	s.broadcastRoomState(room)
}

func (s *Server) handlePoke(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	binding, ok := s.requirePlayer(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	g := room.Game
	opponent := binding.PlayerID.Opponent()

	// A poke is only meaningful while the opponent is the one holding
	// things up. It never mutates game state either way.
	meaningful := (g.Status == game.StatusActive && g.Turn == opponent) ||
		(g.Status == game.StatusSetup && g.Player(opponent).Secret == "")
	if !meaningful {
		s.sendError(socket, ctx, "ROLE_VIOLATION: Nothing to poke about right now")
		return
	}

	// The client keeps its own cooldown, but the bucket here is the
	// real limit.
	if !s.pokeLimiter.Allow(connectionID) {
		return
	}

	opponentConn := s.connectionManager.FindPlayerConnection(g.RoomCode, opponent)
	if opponentConn == "" {
		return
	}
	conn := s.connectionManager.GetConnection(opponentConn)
	if conn == nil {
		return
	}

	s.sendMessage(conn, context.Background(), ServerMessage{
		Type: "poke",
		Payload: PokeNotification{
			From: g.Player(binding.PlayerID).Name,
		},
	})
}

func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid reconnect payload")
		return
	}

	session, err := s.sessionManager.GetSession(req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sessionManager.RemoveSession(req.Token)
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	// A token can only drive one connection at a time; the newest
	// device wins.
	oldConnID := s.connectionManager.FindPlayerConnection(session.RoomCode, session.PlayerID)
	if oldConnID != "" && oldConnID != connectionID {
		if oldConn := s.connectionManager.GetConnection(oldConnID); oldConn != nil {
			s.sendMessage(oldConn, context.Background(), ServerMessage{
				Type:    "error",
				Payload: "CONNECTED_ELSEWHERE: You connected on another device",
			})
			oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
		}
		s.connectionManager.RemoveConnection(oldConnID)
	}

	s.connectionManager.Bind(connectionID, Binding{
		RoomCode: session.RoomCode,
		Role:     RolePlayer,
		PlayerID: session.PlayerID,
		Token:    req.Token,
	})
	s.sessionManager.MarkConnected(req.Token)
	room.Touch()

	log.Printf("Player %s reconnected to room %s", session.PlayerID, session.RoomCode)
	s.sendState(socket, ctx, room, Binding{
		RoomCode: session.RoomCode,
		Role:     RolePlayer,
		PlayerID: session.PlayerID,
	})
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}
