package server

import (
	"errors"
	"math/rand"
	"strings"
)

const roomCodeLength = 6

const roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomCode returns a fresh 6-character code not present in
// usedCodes. Codes are uppercase letters and digits.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeCharset[rand.Intn(len(roomCodeCharset))]
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("ROOM_NOT_FOUND: Room code must be exactly 6 characters")
	}

	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return errors.New("ROOM_NOT_FOUND: Room code must contain only A-Z and 0-9")
		}
	}

	return nil
}

// NormalizeRoomCode canonicalizes a code for lookup; display and
// lookup are case-insensitive, storage is uppercase.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
