package game

import (
	"errors"
	"strings"
	"time"
)

type PlayerID string

const (
	Player1 PlayerID = "p1"
	Player2 PlayerID = "p2"
)

// Opponent returns the other player slot.
func (p PlayerID) Opponent() PlayerID {
	if p == Player1 {
		return Player2
	}
	return Player1
}

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusSetup     Status = "setup"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Guess struct {
	Code      string `json:"code"`
	Bulls     int    `json:"bulls"`
	Cows      int    `json:"cows"`
	Timestamp int64  `json:"timestamp"`
}

type PlayerState struct {
	ID       PlayerID `json:"id"`
	Name     string   `json:"name"`
	Secret   string   `json:"secret"`
	Guesses  []Guess  `json:"guesses"`
	IsWinner bool     `json:"isWinner"`
	IsReady  bool     `json:"isReady"`
}

// Game holds the full authoritative state of one room.
// All mutations must be serialized by the caller (one command at a time
// per room); the struct itself carries no locking.
type Game struct {
	RoomCode   string       `json:"roomCode"`
	Status     Status       `json:"status"`
	Turn       PlayerID     `json:"turn"`
	OwnerID    PlayerID     `json:"ownerId"`
	P1         *PlayerState `json:"p1"`
	P2         *PlayerState `json:"p2"`
	Spectators int          `json:"spectators"`
	Winner     string       `json:"winner,omitempty"`
}

func New(roomCode string) *Game {
	return &Game{
		RoomCode: roomCode,
		Status:   StatusWaiting,
		Turn:     Player1,
		OwnerID:  Player1,
		P1:       &PlayerState{ID: Player1, Guesses: []Guess{}},
		P2:       &PlayerState{ID: Player2, Guesses: []Guess{}},
	}
}

func (g *Game) Player(id PlayerID) *PlayerState {
	if id == Player1 {
		return g.P1
	}
	return g.P2
}

// NamedPlayers counts occupied slots.
func (g *Game) NamedPlayers() int {
	count := 0
	if g.P1.Name != "" {
		count++
	}
	if g.P2.Name != "" {
		count++
	}
	return count
}

// SetName fills a slot and advances waiting -> setup the moment both
// slots are occupied.
func (g *Game) SetName(id PlayerID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("VALIDATION_ERROR: Name cannot be empty")
	}

	g.Player(id).Name = name

	if g.Status == StatusWaiting && g.NamedPlayers() == 2 {
		g.Status = StatusSetup
	}
	return nil
}

// SetSecret records a player's secret code. A secret is immutable once
// set; it is cleared only by a rematch reset. The room advances to
// active the instant both secrets are in place.
func (g *Game) SetSecret(id PlayerID, code string) error {
	if g.Status != StatusWaiting && g.Status != StatusSetup {
		return errors.New("INVALID_STATUS: Secrets can only be set before the game starts")
	}
	if err := ValidateCode(code); err != nil {
		return err
	}

	slot := g.Player(id)
	if slot.Secret != "" {
		return errors.New("SECRET_ALREADY_SET: Secret cannot be changed until a rematch")
	}
	slot.Secret = code

	if g.P1.Secret != "" && g.P2.Secret != "" && g.NamedPlayers() == 2 {
		g.Status = StatusActive
		g.Turn = g.OwnerID
	}
	return nil
}

// SubmitGuess scores a guess against the opponent's secret and appends
// it to the opponent's slot (the secret owner's record of attacks
// received). Four bulls end the game; anything else flips the turn.
func (g *Game) SubmitGuess(id PlayerID, code string) (Guess, error) {
	if g.Status != StatusActive {
		return Guess{}, errors.New("INVALID_STATUS: Game is not active")
	}
	if g.Turn != id {
		return Guess{}, errors.New("NOT_YOUR_TURN: Wait for your opponent's move")
	}
	if err := ValidateCode(code); err != nil {
		return Guess{}, err
	}

	target := g.Player(id.Opponent())
	bulls, cows := Score(code, target.Secret)
	guess := Guess{
		Code:      code,
		Bulls:     bulls,
		Cows:      cows,
		Timestamp: time.Now().UnixMilli(),
	}
	target.Guesses = append(target.Guesses, guess)

	if bulls == 4 {
		g.Status = StatusCompleted
		g.Player(id).IsWinner = true
		g.Winner = string(id)
		g.P1.IsReady = false
		g.P2.IsReady = false
	} else {
		g.Turn = id.Opponent()
	}
	return guess, nil
}

// RequestRematch marks one player ready for a rematch. When both are
// ready the room resets in a single step: there is never an observable
// state with only part of the reset applied. Returns true when the
// reset happened.
func (g *Game) RequestRematch(id PlayerID) (bool, error) {
	if g.Status != StatusCompleted {
		return false, errors.New("INVALID_STATUS: Rematch is only available after a game ends")
	}

	g.Player(id).IsReady = true

	if g.P1.IsReady && g.P2.IsReady {
		g.reset()
		return true, nil
	}
	return false, nil
}

// RemovePlayer vacates a slot. The current game cannot survive the
// loss of a player, so secrets, guesses and the winner are cleared and
// the room falls back to waiting for a new joiner. When the owner
// leaves with an opponent still present, the opponent is promoted into
// the p1 slot and becomes the owner.
//
// Returns the promoted player's old ID (Player2) when a promotion
// happened, so the caller can rebind that player's connection.
func (g *Game) RemovePlayer(id PlayerID) (promoted bool) {
	if id == Player1 && g.P2.Name != "" {
		g.P1 = &PlayerState{ID: Player1, Name: g.P2.Name, Guesses: []Guess{}}
		g.P2 = &PlayerState{ID: Player2, Guesses: []Guess{}}
		promoted = true
	} else {
		g.Player(id).Name = ""
		g.P1 = &PlayerState{ID: Player1, Name: g.P1.Name, Guesses: []Guess{}}
		g.P2 = &PlayerState{ID: Player2, Name: g.P2.Name, Guesses: []Guess{}}
	}

	g.Status = StatusWaiting
	g.Turn = Player1
	g.OwnerID = Player1
	g.Winner = ""
	return promoted
}

// reset returns the room to setup for a fresh game between the same
// two players. Both slots keep their names; everything else is wiped.
func (g *Game) reset() {
	g.P1 = &PlayerState{ID: Player1, Name: g.P1.Name, Guesses: []Guess{}}
	g.P2 = &PlayerState{ID: Player2, Name: g.P2.Name, Guesses: []Guess{}}
	g.Winner = ""
	g.Turn = g.OwnerID

	if g.NamedPlayers() == 2 {
		g.Status = StatusSetup
	} else {
		g.Status = StatusWaiting
	}
}
