package storage

import (
	"database/sql"
	"fmt"

	"arcade/internal/server/core"
)

const recordColumns = `id, room_id, mode, winning_session_id, winning_score,
	duration_ms, end_reason, player_count_at_end, created_at`

// PlayerStats aggregates the records a session appears in as winner
type PlayerStats struct {
	SessionID       string `json:"sessionId"`
	GamesRecorded   int    `json:"gamesRecorded"`
	SharedGames     int    `json:"sharedGames"`
	CompetitiveWins int    `json:"competitiveWins"`
	BestScore       int    `json:"bestScore"`
	TotalScore      int    `json:"totalScore"`
}

// LeaderboardEntry is one ranked session
type LeaderboardEntry struct {
	SessionID string `json:"sessionId"`
	BestScore int    `json:"bestScore"`
	Games     int    `json:"games"`
}

// RecordGame asynchronously appends a game record.
// The tick loop calls this, so it never waits on the database.
func (s *Store) RecordGame(record GameRecord) error {
	if !s.healthStatus.Load() {
		return nil // Silently drop if degraded
	}

	select {
	case s.writeChan <- func(tx *sql.Tx) error {
		query := `INSERT INTO game_records (
			id, room_id, mode, winning_session_id, winning_score,
			duration_ms, end_reason, player_count_at_end, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.ID, record.RoomID, string(record.Mode), record.WinningSessionID, record.WinningScore,
			record.DurationMs, string(record.EndReason), record.PlayerCountAtEnd, record.CreatedAt,
		)
		return err
	}:
		return nil
	default:
		s.log.Warn().Str("room_id", record.RoomID).Msg("storage write queue full, dropping game record")
		return nil
	}
}

func scanRecords(rows *sql.Rows) ([]GameRecord, error) {
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var g GameRecord
		err := rows.Scan(
			&g.ID, &g.RoomID, &g.Mode, &g.WinningSessionID, &g.WinningScore,
			&g.DurationMs, &g.EndReason, &g.PlayerCountAtEnd, &g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return records, nil
}

// ListRecordsByRoom returns the latest records of a room
func (s *Store) ListRecordsByRoom(roomID string, limit int) ([]GameRecord, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+` FROM game_records
		WHERE room_id = ? ORDER BY created_at DESC LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanRecords(rows)
}

// QueryRecords retrieves records with optional filtering, "*" or "" matches all
func (s *Store) QueryRecords(roomID, sessionID string) ([]GameRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM game_records WHERE 1=1`

	var args []any

	if roomID != "" && roomID != "*" {
		query += " AND room_id = ?"
		args = append(args, roomID)
	}

	if sessionID != "" && sessionID != "*" {
		query += " AND winning_session_id = ?"
		args = append(args, sessionID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanRecords(rows)
}

// PlayerStats aggregates records won or shared by a session
func (s *Store) PlayerStats(sessionID string) (*PlayerStats, error) {
	stats := PlayerStats{SessionID: sessionID}
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN mode = 'shared' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN mode = 'competitive' THEN 1 ELSE 0 END), 0),
		COALESCE(MAX(winning_score), 0),
		COALESCE(SUM(winning_score), 0)
	FROM game_records WHERE winning_session_id = ?`

	err := s.db.QueryRow(query, sessionID).Scan(
		&stats.GamesRecorded, &stats.SharedGames, &stats.CompetitiveWins,
		&stats.BestScore, &stats.TotalScore,
	)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	return &stats, nil
}

// Leaderboard ranks sessions by best score, optionally within one mode
func (s *Store) Leaderboard(mode core.Mode, limit int) ([]LeaderboardEntry, error) {
	query := `SELECT winning_session_id, MAX(winning_score) AS best, COUNT(*) AS games
		FROM game_records WHERE winning_session_id IS NOT NULL`
	var args []any

	if mode != "" {
		query += " AND mode = ?"
		args = append(args, string(mode))
	}
	query += " GROUP BY winning_session_id ORDER BY best DESC, games DESC, winning_session_id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.SessionID, &e.BestScore, &e.Games); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return entries, nil
}
