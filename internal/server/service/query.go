package service

import (
	"arcade/internal/server/core"
	"arcade/internal/server/storage"
)

// RoomDetail is a room with its most recent game records
type RoomDetail struct {
	Room    *RoomView            `json:"room"`
	Records []storage.GameRecord `json:"records"`
}

// ListRooms returns active rooms with their rosters
func (s *Service) ListRooms(mode core.Mode) ([]RoomView, error) {
	if mode != "" && !mode.Valid() {
		return nil, core.Validation("unknown mode %q", mode)
	}

	rooms, err := s.store.ListActiveRooms(storage.RoomFilter{Mode: mode})
	if err != nil {
		return nil, err
	}

	views := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		v, err := buildRoomView(s.store, &rooms[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// RoomDetail returns a room and up to limit of its latest records
func (s *Service) RoomDetail(code string, limit int) (*RoomDetail, error) {
	view, err := s.RoomInfo(code)
	if err != nil {
		return nil, err
	}

	detail := &RoomDetail{Room: view, Records: []storage.GameRecord{}}
	if limit > 0 {
		records, err := s.store.ListRecordsByRoom(view.ID, min(limit, MaxLeaderboardSize))
		if err != nil {
			return nil, err
		}
		if records != nil {
			detail.Records = records
		}
	}
	return detail, nil
}

// PlayerStats aggregates the records of a session
func (s *Service) PlayerStats(sessionID string) (*storage.PlayerStats, error) {
	return s.store.PlayerStats(sessionID)
}

// Leaderboard ranks sessions by best score, limit is clamped to MaxLeaderboardSize
func (s *Service) Leaderboard(mode core.Mode, limit int) ([]storage.LeaderboardEntry, error) {
	if mode != "" && !mode.Valid() {
		return nil, core.Validation("unknown mode %q", mode)
	}
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	entries, err := s.store.Leaderboard(mode, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}
	return entries, nil
}
