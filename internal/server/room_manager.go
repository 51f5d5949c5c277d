package server

import (
	"errors"
	"strings"
	"sync"
	"time"

	"bullscows-server/internal/game"
)

// RoomManager is the room registry: it maps 6-character codes to live
// rooms and guarantees code uniqueness. The registry lock guards the
// maps only; each ActiveRoom carries its own mutex, and every mutating
// command for a room must run with that mutex held so commands for one
// room are processed strictly one at a time.
type RoomManager struct {
	rooms     map[string]*ActiveRoom
	usedCodes map[string]bool
	mu        sync.RWMutex
}

type ActiveRoom struct {
	Game           *game.Game
	CreatedAt      time.Time
	LastActivityAt time.Time
	mu             sync.Mutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]*ActiveRoom),
		usedCodes: make(map[string]bool),
	}
}

func (rm *RoomManager) CreateRoom(ownerName string) (*ActiveRoom, error) {
	ownerName = sanitizeName(ownerName)
	if err := validateName(ownerName); err != nil {
		return nil, err
	}

	rm.mu.Lock()
	roomCode := GenerateRoomCode(rm.usedCodes)
	rm.usedCodes[roomCode] = true
	rm.mu.Unlock()

	now := time.Now()
	room := &ActiveRoom{
		Game:           game.New(roomCode),
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := room.Game.SetName(game.Player1, ownerName); err != nil {
		return nil, err
	}

	rm.mu.Lock()
	rm.rooms[roomCode] = room
	rm.mu.Unlock()

	return room, nil
}

func (rm *RoomManager) GetRoom(code string) (*ActiveRoom, error) {
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, err
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, exists := rm.rooms[code]
	if !exists {
		return nil, errors.New("ROOM_NOT_FOUND: Room not found")
	}

	return room, nil
}

// RemoveRoom deletes a room and frees its code for reuse.
func (rm *RoomManager) RemoveRoom(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, code)
	delete(rm.usedCodes, code)
}

// Rooms returns a snapshot of the registry for read-only iteration.
func (rm *RoomManager) Rooms() map[string]*ActiveRoom {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	snapshot := make(map[string]*ActiveRoom, len(rm.rooms))
	for code, room := range rm.rooms {
		snapshot[code] = room
	}
	return snapshot
}

// Touch records activity so the cleanup task spares the room. Callers
// hold the room mutex.
func (r *ActiveRoom) Touch() {
	r.LastActivityAt = time.Now()
}

// StaleRoomCodes returns codes of rooms idle for longer than ttl.
func (rm *RoomManager) StaleRoomCodes(ttl time.Duration) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var stale []string
	cutoff := time.Now().Add(-ttl)
	for code, room := range rm.rooms {
		room.mu.Lock()
		if room.LastActivityAt.Before(cutoff) {
			stale = append(stale, code)
		}
		room.mu.Unlock()
	}
	return stale
}

// sanitizeName trims whitespace, caps the length and strips control
// characters from a display name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 20 {
		name = name[:20]
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, name)
}

func validateName(name string) error {
	if name == "" {
		return errors.New("VALIDATION_ERROR: Name cannot be empty")
	}
	return nil
}
