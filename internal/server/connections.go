package server

import (
	"sync"

	"github.com/coder/websocket"

	"bullscows-server/internal/game"
)

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Binding ties one live connection to at most one (room, role) pair.
// PlayerID is meaningful only for player bindings; Token only for
// players with a stored session.
type Binding struct {
	RoomCode string
	Role     Role
	PlayerID game.PlayerID
	Token    string
}

type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	bindings    map[string]Binding         // connectionID → room binding
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		bindings:    make(map[string]Binding),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.bindings, id)
}

func (cm *ConnectionManager) GetConnection(id string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[id]
}

// Bind attaches a connection to a room. A connection holds at most one
// binding; binding again replaces the previous one.
func (cm *ConnectionManager) Bind(id string, b Binding) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.bindings[id] = b
}

func (cm *ConnectionManager) Unbind(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.bindings, id)
}

func (cm *ConnectionManager) GetBinding(id string) (Binding, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	b, ok := cm.bindings[id]
	return b, ok
}

// RoomConnections returns the IDs and bindings of every connection
// bound to a room, players and spectators alike.
func (cm *ConnectionManager) RoomConnections(roomCode string) map[string]Binding {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	result := make(map[string]Binding)
	for id, b := range cm.bindings {
		if b.RoomCode == roomCode {
			result[id] = b
		}
	}
	return result
}

// FindPlayerConnection returns the connection ID currently bound to a
// player slot in a room, or "" when that player has no live connection.
func (cm *ConnectionManager) FindPlayerConnection(roomCode string, playerID game.PlayerID) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for id, b := range cm.bindings {
		if b.RoomCode == roomCode && b.Role == RolePlayer && b.PlayerID == playerID {
			return id
		}
	}
	return ""
}

// RebindPlayer moves a player binding from one slot to another, used
// when the remaining player is promoted into the owner slot.
func (cm *ConnectionManager) RebindPlayer(roomCode string, from, to game.PlayerID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, b := range cm.bindings {
		if b.RoomCode == roomCode && b.Role == RolePlayer && b.PlayerID == from {
			b.PlayerID = to
			cm.bindings[id] = b
			return
		}
	}
}
