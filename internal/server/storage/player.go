package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const playerColumns = `id, room_id, session_id, display_name, color, ready, online,
	score, snake_length, joined_at, updated_at`

// PlayerUpdate lists the mutable membership columns, nil fields are left untouched
type PlayerUpdate struct {
	DisplayName *string
	Ready       *bool
	Online      *bool
	Score       *int
	SnakeLength *int
}

func scanPlayer(row rowScanner) (*PlayerRecord, error) {
	var p PlayerRecord
	err := row.Scan(
		&p.ID, &p.RoomID, &p.SessionID, &p.DisplayName, &p.Color, &p.Ready, &p.Online,
		&p.Score, &p.SnakeLength, &p.JoinedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

func insertPlayer(tx *sql.Tx, p PlayerRecord) error {
	query := `INSERT INTO players (
		id, room_id, session_id, display_name, color, ready, online,
		score, snake_length, joined_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.Exec(query,
		p.ID, p.RoomID, p.SessionID, p.DisplayName, p.Color, p.Ready, p.Online,
		p.Score, p.SnakeLength, p.JoinedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// syncRoomCount refreshes the cached online count and bumps updated_at
func syncRoomCount(tx *sql.Tx, roomID string) error {
	query := `UPDATE rooms SET
		current_player_count = (SELECT COUNT(*) FROM players WHERE room_id = ? AND online = 1),
		updated_at = ?
	WHERE id = ?`
	if _, err := tx.Exec(query, roomID, time.Now().UTC(), roomID); err != nil {
		return fmt.Errorf("sync room count: %w", err)
	}
	return nil
}

// CreatePlayer inserts a membership, advances the room join sequence and refreshes its count
func (s *Store) CreatePlayer(p PlayerRecord) error {
	return s.withTx(func(tx *sql.Tx) error {
		if err := insertPlayer(tx, p); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE rooms SET join_seq = join_seq + 1 WHERE id = ?`, p.RoomID); err != nil {
			return fmt.Errorf("advance join sequence: %w", err)
		}
		return syncRoomCount(tx, p.RoomID)
	})
}

// GetPlayer finds the membership of a session in a room
func (s *Store) GetPlayer(roomID, sessionID string) (*PlayerRecord, error) {
	row := s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE room_id = ? AND session_id = ?`, roomID, sessionID)
	return scanPlayer(row)
}

// ListPlayers returns every membership of a room in join order
func (s *Store) ListPlayers(roomID string) ([]PlayerRecord, error) {
	return s.queryPlayers(`SELECT `+playerColumns+` FROM players WHERE room_id = ? ORDER BY joined_at, id`, roomID)
}

// ListOnlinePlayers returns online memberships of a room in join order
func (s *Store) ListOnlinePlayers(roomID string) ([]PlayerRecord, error) {
	return s.queryPlayers(`SELECT `+playerColumns+` FROM players WHERE room_id = ? AND online = 1 ORDER BY joined_at, id`, roomID)
}

// ListMembershipsBySession returns every room membership held by a session
func (s *Store) ListMembershipsBySession(sessionID string) ([]PlayerRecord, error) {
	return s.queryPlayers(`SELECT `+playerColumns+` FROM players WHERE session_id = ? ORDER BY joined_at, id`, sessionID)
}

// ListOnlinePlayersAll returns every online membership across rooms
func (s *Store) ListOnlinePlayersAll() ([]PlayerRecord, error) {
	return s.queryPlayers(`SELECT ` + playerColumns + ` FROM players WHERE online = 1 ORDER BY joined_at, id`)
}

// ListOfflinePlayers returns offline memberships last touched before cutoff
func (s *Store) ListOfflinePlayers(cutoff time.Time) ([]PlayerRecord, error) {
	rows, err := s.queryPlayers(`SELECT ` + playerColumns + ` FROM players WHERE online = 0 ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	var stale []PlayerRecord
	for _, p := range rows {
		if p.UpdatedAt.Before(cutoff) {
			stale = append(stale, p)
		}
	}
	return stale, nil
}

func (s *Store) queryPlayers(query string, args ...any) ([]PlayerRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var players []PlayerRecord
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return players, nil
}

// UpdatePlayer applies a partial update and refreshes the room's count and activity time
func (s *Store) UpdatePlayer(id string, u PlayerUpdate) error {
	return s.withTx(func(tx *sql.Tx) error {
		sets := []string{"updated_at = ?"}
		args := []any{time.Now().UTC()}

		if u.DisplayName != nil {
			sets = append(sets, "display_name = ?")
			args = append(args, *u.DisplayName)
		}
		if u.Ready != nil {
			sets = append(sets, "ready = ?")
			args = append(args, *u.Ready)
		}
		if u.Online != nil {
			sets = append(sets, "online = ?")
			args = append(args, *u.Online)
		}
		if u.Score != nil {
			sets = append(sets, "score = ?")
			args = append(args, *u.Score)
		}
		if u.SnakeLength != nil {
			sets = append(sets, "snake_length = ?")
			args = append(args, *u.SnakeLength)
		}

		var roomID string
		if err := tx.QueryRow(`SELECT room_id FROM players WHERE id = ?`, id).Scan(&roomID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup player: %w", err)
		}

		args = append(args, id)
		if _, err := tx.Exec(`UPDATE players SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("update player: %w", err)
		}

		return syncRoomCount(tx, roomID)
	})
}

// ResetReady clears the ready flag of every member, used when a room returns to waiting
func (s *Store) ResetReady(roomID string) error {
	_, err := s.db.Exec(`UPDATE players SET ready = 0, updated_at = ? WHERE room_id = ?`, time.Now().UTC(), roomID)
	if err != nil {
		return fmt.Errorf("reset ready: %w", err)
	}
	return nil
}

// DeletePlayerBySession removes a membership; deleting a missing row is not an error
func (s *Store) DeletePlayerBySession(roomID, sessionID string) (bool, error) {
	var deleted bool
	err := s.withTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM players WHERE room_id = ? AND session_id = ?`, roomID, sessionID)
		if err != nil {
			return fmt.Errorf("delete player: %w", err)
		}
		n, _ := result.RowsAffected()
		deleted = n > 0
		if !deleted {
			return nil
		}
		return syncRoomCount(tx, roomID)
	})
	return deleted, err
}

// deleteRoomPlayers removes every membership of a room inside tx
func deleteRoomPlayers(tx *sql.Tx, roomID string) (int64, error) {
	result, err := tx.Exec(`DELETE FROM players WHERE room_id = ?`, roomID)
	if err != nil {
		return 0, fmt.Errorf("delete room players: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// DeletePlayerByID removes a single membership row
func (s *Store) DeletePlayerByID(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var roomID string
		if err := tx.QueryRow(`SELECT room_id FROM players WHERE id = ?`, id).Scan(&roomID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("lookup player: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM players WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete player: %w", err)
		}
		return syncRoomCount(tx, roomID)
	})
}

// CountOnline returns the true online member count of a room
func (s *Store) CountOnline(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM players WHERE room_id = ? AND online = 1`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count online: %w", err)
	}
	return count, nil
}

// CountPlayers returns the member count of a room, online or not
func (s *Store) CountPlayers(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM players WHERE room_id = ?`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return count, nil
}

// MarkAllOffline flips every membership offline, used at startup when no connection can exist
func (s *Store) MarkAllOffline() (int64, error) {
	var affected int64
	err := s.withTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE players SET online = 0, updated_at = ? WHERE online = 1`, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("mark offline: %w", err)
		}
		affected, _ = result.RowsAffected()
		if _, err := tx.Exec(`UPDATE rooms SET current_player_count = 0`); err != nil {
			return fmt.Errorf("reset room counts: %w", err)
		}
		return nil
	})
	return affected, err
}
