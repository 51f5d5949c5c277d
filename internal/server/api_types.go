package server

import "time"

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
type JoinRoomRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ============================================================================
// SPECTATE (spectate)
// ============================================================================
type SpectateRequest struct {
	Code string `json:"code"`
}

// ============================================================================
// LEAVE ROOM (leave_room)
// ============================================================================
type LeaveRoomRequest struct {
	RoomID string `json:"room_id"`
}

// ============================================================================
// GAME ACTIONS (secret, submit_guess)
// ============================================================================
type GameActionRequest struct {
	Data string `json:"data"`
}

// ============================================================================
// RECONNECT (reconnect)
// ============================================================================
type ReconnectRequest struct {
	Token string `json:"token"`
}

// ============================================================================
// SESSION (session push after create/join)
// ============================================================================
type SessionNotification struct {
	Token    string `json:"token"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// ============================================================================
// POKE (poke push to the opponent)
// ============================================================================
type PokeNotification struct {
	From string `json:"from"`
}

// ============================================================================
// ROOMS LISTING (GET /api/rooms)
// ============================================================================
type RoomInfo struct {
	RoomCode    string    `json:"roomCode"`
	OwnerName   string    `json:"ownerName"`
	PlayerCount int       `json:"playerCount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ============================================================================
// SINGLE ROOM LOOKUP (GET /api/room/{code})
// ============================================================================
type RoomLookupResponse struct {
	RoomCode  string `json:"roomCode"`
	OwnerName string `json:"ownerName"`
}
