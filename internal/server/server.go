package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"

	"bullscows-server/internal/database"
	"bullscows-server/internal/game"
)

const (
	// How long a silently dropped player keeps their slot reserved
	// before the sweep frees it for a new joiner.
	sessionGracePeriod = 2 * time.Minute

	// Rooms with no activity for this long are torn down.
	roomIdleTTL = 30 * time.Minute

	// Authority-side poke cooldown per connection.
	pokeCooldown = 10 * time.Second

	// Per-connection message budget.
	messageRateLimit  = 10
	messageRateWindow = time.Second
)

type Server struct {
	port              int
	db                database.Service
	connectionManager *ConnectionManager
	roomManager       *RoomManager
	sessionManager    *SessionManager
	historyManager    *HistoryManager
	rateLimiter       *RateLimiter
	pokeLimiter       *PokeLimiter
	done              chan struct{}
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	dbService := database.New()

	historyManager := NewHistoryManager(dbService.DB())
	if err := historyManager.EnsureSchema(); err != nil {
		// Match history is an optional collaborator; the duel itself
		// works without it.
		log.Printf("Warning: match history unavailable: %v", err)
		historyManager = nil
	}

	server := &Server{
		port:              port,
		db:                dbService,
		connectionManager: NewConnectionManager(),
		roomManager:       NewRoomManager(),
		sessionManager:    NewSessionManager(),
		historyManager:    historyManager,
		rateLimiter:       NewRateLimiter(messageRateLimit, messageRateWindow),
		pokeLimiter:       NewPokeLimiter(pokeCooldown),
		done:              make(chan struct{}),
	}

	go server.sessionSweepTask()
	go server.roomCleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", server.port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server, httpServer
}

// Shutdown stops background tasks and closes the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	return s.db.Close()
}

// sessionSweepTask frees player slots whose reservation has expired.
// The room reverts exactly as if the player had sent leave_room.
func (s *Server) sessionSweepTask() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		for _, session := range s.sessionManager.ExpiredSessions(sessionGracePeriod) {
			room, err := s.roomManager.GetRoom(session.RoomCode)
			if err != nil {
				s.sessionManager.RemoveSession(session.Token)
				continue
			}

			room.mu.Lock()
			g := room.Game
			promoted := g.RemovePlayer(session.PlayerID)
			s.sessionManager.RemoveSession(session.Token)

			if promoted {
				s.connectionManager.RebindPlayer(g.RoomCode, game.Player2, game.Player1)
				if connID := s.connectionManager.FindPlayerConnection(g.RoomCode, game.Player1); connID != "" {
					if other, ok := s.connectionManager.GetBinding(connID); ok && other.Token != "" {
						s.sessionManager.UpdatePlayerID(other.Token, game.Player1)
					}
				}
			}

			log.Printf("Reservation expired for %s in room %s", session.PlayerID, g.RoomCode)
			s.broadcastRoomState(room)

			empty := len(s.connectionManager.RoomConnections(g.RoomCode)) == 0 &&
				g.NamedPlayers() == 0
			room.mu.Unlock()

			if empty {
				s.teardownRoom(g.RoomCode)
			}
		}
	}
}

// roomCleanupTask tears down rooms idle past the TTL and trims rate
// limiter bookkeeping.
func (s *Server) roomCleanupTask() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.rateLimiter.Cleanup()

		for _, code := range s.roomManager.StaleRoomCodes(roomIdleTTL) {
			room, err := s.roomManager.GetRoom(code)
			if err != nil {
				continue
			}

			room.mu.Lock()
			for connID := range s.connectionManager.RoomConnections(code) {
				if conn := s.connectionManager.GetConnection(connID); conn != nil {
					s.sendMessage(conn, context.Background(), ServerMessage{
						Type:    "redirect",
						Payload: "/",
					})
					conn.Close(websocket.StatusNormalClosure, "Room expired")
				}
				s.connectionManager.RemoveConnection(connID)
			}
			room.mu.Unlock()

			s.teardownRoom(code)
			log.Printf("Cleaned up stale room %s", code)
		}
	}
}
