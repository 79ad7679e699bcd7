package service

import (
	"arcade/internal/server/core"
	"arcade/internal/server/storage"
)

// Judge names the reason a room should go, or returns "" to keep it
type Judge func(room *storage.RoomRecord, online int) string

// ReapOutcome reports what Reap did to one room
type ReapOutcome struct {
	Code       string
	Reason     string
	Removed    bool
	Reconciled bool
}

// Reap re-reads a room under the lifecycle lock, fixes its cached online count
// and tears it down when judge asks for it
func (s *Service) Reap(roomID string, judge Judge) (ReapOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.store.GetRoomByID(roomID)
	if err != nil {
		return ReapOutcome{}, err
	}
	online, err := s.store.CountOnline(roomID)
	if err != nil {
		return ReapOutcome{}, err
	}

	out := ReapOutcome{Code: room.Code}
	if reason := judge(room, online); reason != "" {
		if err := s.teardownLocked(roomID, reason); err != nil {
			return out, err
		}
		out.Reason = reason
		out.Removed = true
		return out, nil
	}

	if room.CurrentPlayerCount != online {
		if err := s.store.UpdateRoom(roomID, storage.RoomUpdate{CurrentPlayerCount: &online}); err != nil {
			return out, err
		}
		out.Reconciled = true
	}
	return out, nil
}

// AnnounceRemoved tells every connection that rooms disappeared from the lobby
func (s *Service) AnnounceRemoved(codes []string) {
	if len(codes) == 0 {
		return
	}
	s.roster.NotifyAll(s.ns.Event(core.EventRoomListUpdated, RoomListUpdated{Removed: codes}))
}
