package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arcade/internal/server/core"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

const roomColumns = `id, code, mode, status, capacity, current_player_count,
	host_session_id, settings, join_seq, created_at, updated_at, ended_at`

// RoomUpdate lists the mutable room columns, nil fields are left untouched
type RoomUpdate struct {
	Status             *core.RoomStatus
	HostSessionID      *string
	CurrentPlayerCount *int
	EndedAt            *time.Time
	ClearEndedAt       bool
}

// RoomFilter narrows ListActiveRooms
type RoomFilter struct {
	Mode core.Mode
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*RoomRecord, error) {
	var r RoomRecord
	err := row.Scan(
		&r.ID, &r.Code, &r.Mode, &r.Status, &r.Capacity, &r.CurrentPlayerCount,
		&r.HostSessionID, &r.Settings, &r.JoinSeq, &r.CreatedAt, &r.UpdatedAt, &r.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

func insertRoom(tx *sql.Tx, r RoomRecord) error {
	query := `INSERT INTO rooms (
		id, code, mode, status, capacity, current_player_count,
		host_session_id, settings, join_seq, created_at, updated_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.Exec(query,
		r.ID, r.Code, string(r.Mode), string(r.Status), r.Capacity, r.CurrentPlayerCount,
		r.HostSessionID, r.Settings, r.JoinSeq, r.CreatedAt, r.UpdatedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// CreateRoom inserts a room row
func (s *Store) CreateRoom(r RoomRecord) error {
	return s.withTx(func(tx *sql.Tx) error {
		return insertRoom(tx, r)
	})
}

// CreateRoomWithHost inserts a room and its first player atomically.
// The host takes join slot zero.
func (s *Store) CreateRoomWithHost(r RoomRecord, host PlayerRecord) error {
	return s.withTx(func(tx *sql.Tx) error {
		r.JoinSeq = 1
		r.CurrentPlayerCount = 1
		if err := insertRoom(tx, r); err != nil {
			return err
		}
		return insertPlayer(tx, host)
	})
}

// RoomCodeExists checks code uniqueness among live rooms
func (s *Store) RoomCodeExists(code string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM rooms WHERE code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return count > 0, nil
}

// GetRoomByCode resolves a public room code
func (s *Store) GetRoomByCode(code string) (*RoomRecord, error) {
	row := s.db.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE code = ?`, code)
	return scanRoom(row)
}

// GetRoomByID retrieves a room by internal id
func (s *Store) GetRoomByID(id string) (*RoomRecord, error) {
	row := s.db.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// UpdateRoom applies a partial update and bumps updated_at
func (s *Store) UpdateRoom(id string, u RoomUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.HostSessionID != nil {
		sets = append(sets, "host_session_id = ?")
		args = append(args, *u.HostSessionID)
	}
	if u.CurrentPlayerCount != nil {
		sets = append(sets, "current_player_count = ?")
		args = append(args, *u.CurrentPlayerCount)
	}
	if u.ClearEndedAt {
		sets = append(sets, "ended_at = NULL")
	} else if u.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, *u.EndedAt)
	}

	args = append(args, id)
	query := `UPDATE rooms SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room and all of its players in one transaction
func (s *Store) DeleteRoom(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		n, err := deleteRoomPlayers(tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.Debug().Str("room_id", id).Int64("players", n).Msg("deleted room players")
		}
		if _, err := tx.Exec(`DELETE FROM rooms WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}

// ListActiveRooms returns rooms that are waiting or playing, newest first
func (s *Store) ListActiveRooms(filter RoomFilter) ([]RoomRecord, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE status IN ('waiting', 'playing')`
	var args []any

	if filter.Mode != "" {
		query += " AND mode = ?"
		args = append(args, string(filter.Mode))
	}
	query += " ORDER BY created_at DESC"

	return s.queryRooms(query, args...)
}

// ListRoomsByStatus returns every room in one of the given states
func (s *Store) ListRoomsByStatus(statuses ...core.RoomStatus) ([]RoomRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE status IN (` + strings.Join(placeholders, ", ") + `) ORDER BY created_at DESC`
	return s.queryRooms(query, args...)
}

func (s *Store) queryRooms(query string, args ...any) ([]RoomRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var rooms []RoomRecord
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return rooms, nil
}
