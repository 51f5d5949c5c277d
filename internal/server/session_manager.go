package server

import (
	"errors"
	"sync"
	"time"

	"bullscows-server/internal/game"
)

// SessionInfo reserves a player slot across connection drops. While
// DisconnectedAt is zero the player has a live connection; once set,
// the slot stays reserved until the grace period runs out and the
// sweep frees it.
type SessionInfo struct {
	Token          string
	RoomCode       string
	PlayerID       game.PlayerID
	Name           string
	DisconnectedAt time.Time
}

type SessionManager struct {
	sessions map[string]SessionInfo // Token -> SessionInfo
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}

	return session, nil
}

// Used for players who intentionally leave.
func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}

// MarkDisconnected starts the reservation clock for a dropped player.
func (sm *SessionManager) MarkDisconnected(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[token]; exists {
		session.DisconnectedAt = time.Now()
		sm.sessions[token] = session
	}
}

// MarkConnected clears the reservation clock after a reconnect.
func (sm *SessionManager) MarkConnected(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[token]; exists {
		session.DisconnectedAt = time.Time{}
		sm.sessions[token] = session
	}
}

// UpdatePlayerID follows a slot promotion so the token keeps pointing
// at the right slot.
func (sm *SessionManager) UpdatePlayerID(token string, id game.PlayerID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[token]; exists {
		session.PlayerID = id
		sm.sessions[token] = session
	}
}

// ExpiredSessions returns sessions whose player has been disconnected
// for longer than grace. The sweep frees those slots.
func (sm *SessionManager) ExpiredSessions(grace time.Duration) []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	cutoff := time.Now().Add(-grace)
	var expired []SessionInfo
	for _, session := range sm.sessions {
		if !session.DisconnectedAt.IsZero() && session.DisconnectedAt.Before(cutoff) {
			expired = append(expired, session)
		}
	}
	return expired
}

// RemoveRoomSessions drops every session tied to a room, used when a
// room is torn down.
func (sm *SessionManager) RemoveRoomSessions(roomCode string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for token, session := range sm.sessions {
		if session.RoomCode == roomCode {
			delete(sm.sessions, token)
		}
	}
}
