package storage

import (
	"time"

	"arcade/internal/server/core"
)

// RoomRecord represents a row in the rooms table
type RoomRecord struct {
	ID                 string          `db:"id"`
	Code               string          `db:"code"`
	Mode               core.Mode       `db:"mode"`
	Status             core.RoomStatus `db:"status"`
	Capacity           int             `db:"capacity"` // 0 means unbounded
	CurrentPlayerCount int             `db:"current_player_count"`
	HostSessionID      string          `db:"host_session_id"`
	Settings           string          `db:"settings"` // JSON encoded core.GameSettings
	JoinSeq            int             `db:"join_seq"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
	EndedAt            *time.Time      `db:"ended_at"`
}

// PlayerRecord represents a room membership
type PlayerRecord struct {
	ID          string    `db:"id"`
	RoomID      string    `db:"room_id"`
	SessionID   string    `db:"session_id"`
	DisplayName string    `db:"display_name"`
	Color       string    `db:"color"`
	Ready       bool      `db:"ready"`
	Online      bool      `db:"online"`
	Score       int       `db:"score"`
	SnakeLength int       `db:"snake_length"`
	JoinedAt    time.Time `db:"joined_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GameRecord is the immutable summary of a terminated game
type GameRecord struct {
	ID               string         `db:"id" json:"id"`
	RoomID           string         `db:"room_id" json:"roomId"`
	Mode             core.Mode      `db:"mode" json:"mode"`
	WinningSessionID *string        `db:"winning_session_id" json:"winningSessionId"` // nil for a draw or abandon
	WinningScore     int            `db:"winning_score" json:"winningScore"`
	DurationMs       int64          `db:"duration_ms" json:"durationMs"`
	EndReason        core.EndReason `db:"end_reason" json:"endReason"`
	PlayerCountAtEnd int            `db:"player_count_at_end" json:"playerCountAtEnd"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	mode TEXT NOT NULL CHECK(mode IN ('shared', 'competitive')),
	status TEXT NOT NULL DEFAULT 'waiting' CHECK(status IN ('waiting', 'playing', 'finished')),
	capacity INTEGER NOT NULL DEFAULT 0,
	current_player_count INTEGER NOT NULL DEFAULT 0,
	host_session_id TEXT NOT NULL,
	settings TEXT NOT NULL DEFAULT '{}',
	join_seq INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ended_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_code ON rooms(code);
CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);

CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	color TEXT NOT NULL,
	ready INTEGER NOT NULL DEFAULT 0,
	online INTEGER NOT NULL DEFAULT 1,
	score INTEGER NOT NULL DEFAULT 0,
	snake_length INTEGER NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
	UNIQUE(room_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_players_room_id ON players(room_id);
CREATE INDEX IF NOT EXISTS idx_players_session_id ON players(session_id);

CREATE TABLE IF NOT EXISTS game_records (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	mode TEXT NOT NULL CHECK(mode IN ('shared', 'competitive')),
	winning_session_id TEXT,
	winning_score INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	end_reason TEXT NOT NULL CHECK(end_reason IN ('self_collision', 'wall_collision', 'competitive_finished', 'insufficient_players', 'empty', 'error')),
	player_count_at_end INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
CREATE INDEX IF NOT EXISTS idx_game_records_winner ON game_records(winning_session_id);
CREATE INDEX IF NOT EXISTS idx_game_records_score ON game_records(winning_score);
`
