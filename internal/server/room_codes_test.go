package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)

	code := GenerateRoomCode(map[string]bool{})

	assert.Len(code, 6)
	assert.NoError(ValidateRoomCode(code))
}

func TestGenerateRoomCodeAvoidsUsedCodes(t *testing.T) {
	assert := assert.New(t)

	used := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateRoomCode(used)
		assert.False(used[code], "generated an already used code")
		used[code] = true
	}
}

func TestValidateRoomCode(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidateRoomCode("ABC123"))
	assert.NoError(ValidateRoomCode("ZZZZZZ"))

	assert.Error(ValidateRoomCode(""))
	assert.Error(ValidateRoomCode("ABC12"))
	assert.Error(ValidateRoomCode("ABC1234"))
	assert.Error(ValidateRoomCode("abc123"), "lowercase must be normalized before validation")
	assert.Error(ValidateRoomCode("ABC-12"))
}

func TestNormalizeRoomCode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ABC123", NormalizeRoomCode("abc123"))
	assert.Equal("ABC123", NormalizeRoomCode("  AbC123  "))
}
