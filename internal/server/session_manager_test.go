package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bullscows-server/internal/game"
)

func TestSessionLifecycle(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager()

	sm.StoreSession(SessionInfo{
		Token:    "token-1",
		RoomCode: "ABC123",
		PlayerID: game.Player1,
		Name:     "Maximus",
	})

	session, err := sm.GetSession("token-1")
	assert.NoError(err)
	assert.Equal("ABC123", session.RoomCode)
	assert.Equal(game.Player1, session.PlayerID)
	assert.True(session.DisconnectedAt.IsZero())

	_, err = sm.GetSession("missing")
	assert.ErrorContains(err, "TOKEN_NOT_FOUND")

	sm.RemoveSession("token-1")
	_, err = sm.GetSession("token-1")
	assert.Error(err)
}

func TestMarkDisconnectedStartsReservationClock(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager()

	sm.StoreSession(SessionInfo{Token: "token-1", RoomCode: "ABC123", PlayerID: game.Player2})

	sm.MarkDisconnected("token-1")
	session, err := sm.GetSession("token-1")
	assert.NoError(err)
	assert.False(session.DisconnectedAt.IsZero())

	// Reconnecting clears the clock again.
	sm.MarkConnected("token-1")
	session, err = sm.GetSession("token-1")
	assert.NoError(err)
	assert.True(session.DisconnectedAt.IsZero())
}

func TestExpiredSessions(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager()

	sm.StoreSession(SessionInfo{Token: "live", RoomCode: "ABC123", PlayerID: game.Player1})
	sm.StoreSession(SessionInfo{
		Token:          "dropped",
		RoomCode:       "ABC123",
		PlayerID:       game.Player2,
		DisconnectedAt: time.Now().Add(-5 * time.Minute),
	})
	sm.StoreSession(SessionInfo{
		Token:          "recent",
		RoomCode:       "DEF456",
		PlayerID:       game.Player1,
		DisconnectedAt: time.Now(),
	})

	expired := sm.ExpiredSessions(2 * time.Minute)
	assert.Len(expired, 1)
	assert.Equal("dropped", expired[0].Token)
}

func TestUpdatePlayerIDFollowsPromotion(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager()

	sm.StoreSession(SessionInfo{Token: "token-1", RoomCode: "ABC123", PlayerID: game.Player2})
	sm.UpdatePlayerID("token-1", game.Player1)

	session, err := sm.GetSession("token-1")
	assert.NoError(err)
	assert.Equal(game.Player1, session.PlayerID)
}

func TestRemoveRoomSessions(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager()

	sm.StoreSession(SessionInfo{Token: "a", RoomCode: "ABC123", PlayerID: game.Player1})
	sm.StoreSession(SessionInfo{Token: "b", RoomCode: "ABC123", PlayerID: game.Player2})
	sm.StoreSession(SessionInfo{Token: "c", RoomCode: "DEF456", PlayerID: game.Player1})

	sm.RemoveRoomSessions("ABC123")

	_, err := sm.GetSession("a")
	assert.Error(err)
	_, err = sm.GetSession("b")
	assert.Error(err)
	_, err = sm.GetSession("c")
	assert.NoError(err)
}
