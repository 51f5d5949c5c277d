package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bullscows-server/internal/game"
)

func TestCreateRoom(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	room, err := rm.CreateRoom("Maximus")
	assert.NoError(err)

	g := room.Game
	assert.NoError(ValidateRoomCode(g.RoomCode))
	assert.Equal(game.StatusWaiting, g.Status)
	assert.Equal(game.Player1, g.OwnerID)
	assert.Equal("Maximus", g.P1.Name)
	assert.Empty(g.P2.Name)
}

func TestCreateRoomSanitizesOwnerName(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	room, err := rm.CreateRoom("  Maximus\x00\n  ")
	assert.NoError(err)
	assert.Equal("Maximus", room.Game.P1.Name)

	_, err = rm.CreateRoom("   ")
	assert.ErrorContains(err, "VALIDATION_ERROR")
}

func TestCreateRoomCapsNameLength(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	room, err := rm.CreateRoom("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.NoError(err)
	assert.Len(room.Game.P1.Name, 20)
}

func TestGetRoomIsCaseInsensitive(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	room, err := rm.CreateRoom("Maximus")
	assert.NoError(err)

	found, err := rm.GetRoom("  " + room.Game.RoomCode + " ")
	assert.NoError(err)
	assert.Same(room, found)

	_, err = rm.GetRoom("NOSUCH")
	assert.ErrorContains(err, "ROOM_NOT_FOUND")

	_, err = rm.GetRoom("bad")
	assert.ErrorContains(err, "ROOM_NOT_FOUND")
}

func TestRemoveRoomFreesCode(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	room, err := rm.CreateRoom("Maximus")
	assert.NoError(err)
	code := room.Game.RoomCode

	rm.RemoveRoom(code)

	_, err = rm.GetRoom(code)
	assert.Error(err)
	assert.False(rm.usedCodes[code])
}

func TestStaleRoomCodes(t *testing.T) {
	assert := assert.New(t)
	rm := NewRoomManager()

	fresh, err := rm.CreateRoom("Maximus")
	assert.NoError(err)

	stale, err := rm.CreateRoom("Commodus")
	assert.NoError(err)
	stale.LastActivityAt = time.Now().Add(-time.Hour)

	codes := rm.StaleRoomCodes(30 * time.Minute)
	assert.Equal([]string{stale.Game.RoomCode}, codes)

	// Touch revives a room.
	stale.Touch()
	assert.Empty(rm.StaleRoomCodes(30 * time.Minute))
	_ = fresh
}
