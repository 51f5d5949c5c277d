package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"bullscows-server/internal/game"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/rooms", s.roomsHandler)
	mux.HandleFunc("/api/room/", s.roomLookupHandler)
	mux.HandleFunc("/api/games", s.gamesHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Bulls and Cows duel server"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// roomsHandler lists joinable rooms for the lobby page: completed
// rooms are skipped, newest first.
func (s *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms := s.roomManager.Rooms()

	roomsList := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		g := room.Game

		if g.Status == game.StatusCompleted {
			room.mu.Unlock()
			continue
		}

		roomsList = append(roomsList, RoomInfo{
			RoomCode:    g.RoomCode,
			OwnerName:   g.Player(g.OwnerID).Name,
			PlayerCount: g.NamedPlayers(),
			Status:      string(g.Status),
			CreatedAt:   room.CreatedAt,
		})
		room.mu.Unlock()
	}

	sort.Slice(roomsList, func(i, j int) bool {
		return roomsList[i].CreatedAt.After(roomsList[j].CreatedAt)
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(roomsList); err != nil {
		http.Error(w, "Failed to encode rooms", http.StatusInternalServerError)
	}
}

func (s *Server) roomLookupHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/room/")
	if code == "" {
		http.Error(w, "Room code required", http.StatusBadRequest)
		return
	}

	room, err := s.roomManager.GetRoom(code)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	room.mu.Lock()
	resp := RoomLookupResponse{
		RoomCode:  room.Game.RoomCode,
		OwnerName: room.Game.Player(room.Game.OwnerID).Name,
	}
	room.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode room", http.StatusInternalServerError)
	}
}

func (s *Server) gamesHandler(w http.ResponseWriter, r *http.Request) {
	if s.historyManager == nil {
		http.Error(w, "Match history is not available", http.StatusServiceUnavailable)
		return
	}

	records, err := s.historyManager.RecentMatches(50)
	if err != nil {
		log.Printf("Failed to load match history: %v", err)
		http.Error(w, "Failed to retrieve match history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		http.Error(w, "Failed to encode match history", http.StatusInternalServerError)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer s.cleanupConnection(connectionID)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			log.Printf("Rate limited connection %s", connectionID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "VALIDATION_ERROR: Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err.Error())
			continue
		}

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID, msg.Payload)

		case "create_room":
			s.handleCreateRoom(socket, ctx, connectionID, msg.Payload)

		case "join_room":
			s.handleJoinRoom(socket, ctx, connectionID, msg.Payload)

		case "spectate":
			s.handleSpectate(socket, ctx, connectionID, msg.Payload)

		case "leave_room":
			s.handleLeaveRoom(socket, ctx, connectionID, msg.Payload)

		case "secret":
			s.handleSecret(socket, ctx, connectionID, msg.Payload)

		case "submit_guess":
			s.handleSubmitGuess(socket, ctx, connectionID, msg.Payload)

		case "restart":
			s.handleRestart(socket, ctx, connectionID, msg.Payload)

		case "poke":
			s.handlePoke(socket, ctx, connectionID, msg.Payload)

		case "reconnect":
			s.handleReconnect(socket, ctx, connectionID, msg.Payload)
		}
	}
}

// cleanupConnection runs when a websocket dies for any reason. A
// spectator simply drops off the count; a player's slot stays reserved
// for the session grace period so they can reconnect.
func (s *Server) cleanupConnection(connectionID string) {
	binding, bound := s.connectionManager.GetBinding(connectionID)

	s.connectionManager.RemoveConnection(connectionID)
	s.rateLimiter.RemoveConnection(connectionID)
	s.pokeLimiter.RemoveConnection(connectionID)
	log.Printf("Connection closed: %s", connectionID)

	if !bound {
		return
	}

	room, err := s.roomManager.GetRoom(binding.RoomCode)
	if err != nil {
		return
	}

	if binding.Role == RoleSpectator {
		room.mu.Lock()
		if room.Game.Spectators > 0 {
			room.Game.Spectators--
		}
		s.broadcastRoomState(room)
		room.mu.Unlock()
		return
	}

	if binding.Token != "" {
		s.sessionManager.MarkDisconnected(binding.Token)
		log.Printf("Player %s dropped from room %s, slot reserved", binding.PlayerID, binding.RoomCode)
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

// sendError rejects the most recent command. Errors never terminate
// the connection and never mutate room state.
func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type:    "error",
		Payload: msg,
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}
