package server

import (
	"database/sql"
	"fmt"
	"time"

	"bullscows-server/internal/game"
)

// MatchRecord is one row of the read-only match history exposed at
// /api/games.
type MatchRecord struct {
	Timestamp string `json:"timestamp"`
	P1Name    string `json:"p1Name"`
	P2Name    string `json:"p2Name"`
	Winner    string `json:"winner"`
}

// HistoryManager persists completed matches. Recording is best-effort:
// a storage failure is logged by the caller and never blocks or fails
// the game itself.
type HistoryManager struct {
	db *sql.DB
}

func NewHistoryManager(db *sql.DB) *HistoryManager {
	return &HistoryManager{
		db: db,
	}
}

// EnsureSchema creates the matches table when it does not exist yet.
func (hm *HistoryManager) EnsureSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			room_code TEXT NOT NULL,
			p1_name TEXT NOT NULL,
			p2_name TEXT NOT NULL,
			winner_name TEXT NOT NULL,
			played_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	if _, err := hm.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// RecordMatch stores the outcome of a completed game. Only names and
// the winner are kept; secrets and guesses are not part of history.
func (hm *HistoryManager) RecordMatch(g *game.Game) error {
	if g.Status != game.StatusCompleted {
		return fmt.Errorf("INVALID_STATUS: Cannot record an unfinished game %s", g.RoomCode)
	}

	winnerName := g.P1.Name
	if g.Winner == string(game.Player2) {
		winnerName = g.P2.Name
	}

	query := `
		INSERT INTO matches (room_code, p1_name, p2_name, winner_name, played_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := hm.db.Exec(query, g.RoomCode, g.P1.Name, g.P2.Name, winnerName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record match for room %s: %w", g.RoomCode, err)
	}

	return nil
}

// RecentMatches returns up to limit completed matches, newest first.
func (hm *HistoryManager) RecentMatches(limit int) ([]MatchRecord, error) {
	query := `
		SELECT played_at, p1_name, p2_name, winner_name
		FROM matches
		ORDER BY played_at DESC
		LIMIT $1
	`

	rows, err := hm.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	records := make([]MatchRecord, 0, limit)
	for rows.Next() {
		var playedAt time.Time
		var record MatchRecord
		if err := rows.Scan(&playedAt, &record.P1Name, &record.P2Name, &record.Winner); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		record.Timestamp = playedAt.UTC().Format(time.RFC3339)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}

	return records, nil
}

// CleanupOldMatches deletes history rows older than the given age and
// returns how many were removed.
func (hm *HistoryManager) CleanupOldMatches(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := hm.db.Exec(`DELETE FROM matches WHERE played_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old matches: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check cleanup result: %w", err)
	}

	return int(rowsAffected), nil
}
