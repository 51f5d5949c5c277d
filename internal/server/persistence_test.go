package server

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bullscows-server/internal/game"
)

// testDB stays nil when no container runtime is available; the history
// tests skip themselves in that case so the rest of the package still
// runs.
var testDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Printf("Skipping match history tests, no container runtime: %v", err)
		os.Exit(m.Run())
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	testDB, err = sql.Open("pgx", connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	postgresContainer.Terminate(ctx)

	os.Exit(code)
}

func newTestHistoryManager(t *testing.T) *HistoryManager {
	t.Helper()
	if testDB == nil {
		t.Skip("no database available")
	}

	hm := NewHistoryManager(testDB)
	require.NoError(t, hm.EnsureSchema())

	_, err := testDB.Exec(`TRUNCATE matches`)
	require.NoError(t, err)

	return hm
}

// completedDuel plays a game to completion with the given winner.
func completedDuel(t *testing.T, winner game.PlayerID) *game.Game {
	t.Helper()

	g := activeDuel(t)
	code := "5678" // p2's secret
	if winner == game.Player2 {
		// Burn p1's turn so p2 gets to crack first.
		if _, err := g.SubmitGuess(game.Player1, "9012"); err != nil {
			t.Fatal(err)
		}
		code = "1234"
	}
	if _, err := g.SubmitGuess(winner, code); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestRecordMatch(t *testing.T) {
	assert := assert.New(t)
	hm := newTestHistoryManager(t)

	assert.NoError(hm.RecordMatch(completedDuel(t, game.Player1)))

	records, err := hm.RecentMatches(10)
	assert.NoError(err)
	assert.Len(records, 1)
	assert.Equal("Maximus", records[0].P1Name)
	assert.Equal("Commodus", records[0].P2Name)
	assert.Equal("Maximus", records[0].Winner)
	assert.NotEmpty(records[0].Timestamp)
}

func TestRecordMatchRejectsUnfinishedGame(t *testing.T) {
	assert := assert.New(t)
	hm := newTestHistoryManager(t)

	err := hm.RecordMatch(activeDuel(t))
	assert.ErrorContains(err, "INVALID_STATUS")
}

func TestRecordMatchResolvesWinnerName(t *testing.T) {
	assert := assert.New(t)
	hm := newTestHistoryManager(t)

	assert.NoError(hm.RecordMatch(completedDuel(t, game.Player2)))

	records, err := hm.RecentMatches(10)
	assert.NoError(err)
	assert.Len(records, 1)
	assert.Equal("Commodus", records[0].Winner)
}

func TestRecentMatchesNewestFirst(t *testing.T) {
	assert := assert.New(t)
	hm := newTestHistoryManager(t)

	_, err := testDB.Exec(`
		INSERT INTO matches (room_code, p1_name, p2_name, winner_name, played_at)
		VALUES
			('AAAAAA', 'Old1', 'Old2', 'Old1', now() - interval '2 hours'),
			('BBBBBB', 'New1', 'New2', 'New2', now())
	`)
	require.NoError(t, err)

	records, err := hm.RecentMatches(10)
	assert.NoError(err)
	assert.Len(records, 2)
	assert.Equal("New1", records[0].P1Name)
	assert.Equal("Old1", records[1].P1Name)

	// Limit caps the result.
	records, err = hm.RecentMatches(1)
	assert.NoError(err)
	assert.Len(records, 1)
}

func TestCleanupOldMatches(t *testing.T) {
	assert := assert.New(t)
	hm := newTestHistoryManager(t)

	_, err := testDB.Exec(`
		INSERT INTO matches (room_code, p1_name, p2_name, winner_name, played_at)
		VALUES
			('AAAAAA', 'Old1', 'Old2', 'Old1', now() - interval '40 days'),
			('BBBBBB', 'New1', 'New2', 'New2', now())
	`)
	require.NoError(t, err)

	removed, err := hm.CleanupOldMatches(30 * 24 * time.Hour)
	assert.NoError(err)
	assert.Equal(1, removed)

	records, err := hm.RecentMatches(10)
	assert.NoError(err)
	assert.Len(records, 1)
	assert.Equal("New1", records[0].P1Name)
}
