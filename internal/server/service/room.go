package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/storage"

	"github.com/google/uuid"
)

// CreateRoom opens a room with the caller as host and first player
func (s *Service) CreateRoom(sessionID string, req core.CreateRoomRequest) (*Membership, error) {
	if !req.Mode.Valid() {
		return nil, core.Validation("unknown mode %q", req.Mode)
	}

	var requested core.GameSettings
	if req.GameSettings != nil {
		requested = *req.GameSettings
	}
	settings := requested.Merge(s.defaults)
	encoded, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	capacity := 0
	if req.Mode == core.ModeCompetitive {
		capacity = CompetitiveSeats
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateRoomCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room := storage.RoomRecord{
		ID:            uuid.New().String(),
		Code:          code,
		Mode:          req.Mode,
		Status:        core.StatusWaiting,
		Capacity:      capacity,
		HostSessionID: sessionID,
		Settings:      string(encoded),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	host := storage.PlayerRecord{
		ID:          uuid.New().String(),
		RoomID:      room.ID,
		SessionID:   sessionID,
		DisplayName: req.DisplayName,
		Color:       palette[0],
		Online:      true,
		JoinedAt:    now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateRoomWithHost(room, host); err != nil {
		return nil, err
	}
	s.engine.Prepare(room.ID, settings)

	s.log.Info().Str("room_id", room.ID).Str("code", code).Str("mode", string(req.Mode)).Str("host", sessionID).Msg("room created")

	if settings.AutoStart && req.Mode == core.ModeShared {
		stored, err := s.store.GetRoomByID(room.ID)
		if err != nil {
			return nil, err
		}
		if _, err := s.startLocked(stored, sessionID); err != nil {
			s.log.Warn().Err(err).Str("room_id", room.ID).Msg("auto start failed")
		}
	}

	return s.membership(room.ID, sessionID)
}

// JoinRoom adds the caller to a room, or brings an existing membership back online
func (s *Service) JoinRoom(sessionID string, req core.JoinRoomRequest) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.lookupRoom(req.RoomCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetPlayer(room.ID, sessionID)
	switch {
	case err == nil:
		return s.reconnectLocked(room, existing, req.DisplayName)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if room.Capacity > 0 {
		total, err := s.store.CountPlayers(room.ID)
		if err != nil {
			return nil, err
		}
		if total >= room.Capacity {
			return nil, core.Capacity("room %s is full", room.Code)
		}
	}

	switch room.Status {
	case core.StatusFinished:
		return nil, core.Conflict("game in room %s has finished", room.Code)
	case core.StatusPlaying:
		if room.Mode != core.ModeShared {
			return nil, core.Conflict("game in room %s is already in progress", room.Code)
		}
	}

	now := time.Now().UTC()
	player := storage.PlayerRecord{
		ID:          uuid.New().String(),
		RoomID:      room.ID,
		SessionID:   sessionID,
		DisplayName: req.DisplayName,
		Color:       palette[room.JoinSeq%len(palette)],
		Online:      true,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePlayer(player); err != nil {
		return nil, err
	}

	s.log.Info().Str("room_id", room.ID).Str("session_id", sessionID).Msg("player joined")

	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventPlayerJoined, PlayerEvent{
		RoomID:  room.ID,
		Player:  playerView(player, room.HostSessionID),
		Players: s.members(room.ID, room.HostSessionID),
	}))

	return s.membership(room.ID, sessionID)
}

func (s *Service) reconnectLocked(room *storage.RoomRecord, p *storage.PlayerRecord, displayName string) (*Membership, error) {
	online := true
	update := storage.PlayerUpdate{Online: &online}
	if displayName != "" && displayName != p.DisplayName {
		update.DisplayName = &displayName
	}
	if err := s.store.UpdatePlayer(p.ID, update); err != nil {
		return nil, err
	}

	// a room left without an online host gets the returning player
	if room.HostSessionID != p.SessionID {
		if host, err := s.store.GetPlayer(room.ID, room.HostSessionID); err != nil || !host.Online {
			s.transferHostLocked(room, p.SessionID)
		}
	}

	updated, err := s.store.GetPlayer(room.ID, p.SessionID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("room_id", room.ID).Str("session_id", p.SessionID).Msg("player reconnected")

	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventPlayerReconnected, PlayerEvent{
		RoomID:  room.ID,
		Player:  playerView(*updated, room.HostSessionID),
		Players: s.members(room.ID, room.HostSessionID),
	}))

	return s.membership(room.ID, p.SessionID)
}

// ToggleReady flips the caller's ready flag
func (s *Service) ToggleReady(sessionID, code string) (*ReadyChanged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, p, err := s.member(sessionID, code)
	if err != nil {
		return nil, err
	}
	if room.Status == core.StatusPlaying {
		return nil, core.Conflict("cannot change ready state while playing")
	}

	ready := !p.Ready
	if err := s.store.UpdatePlayer(p.ID, storage.PlayerUpdate{Ready: &ready}); err != nil {
		return nil, err
	}

	online, err := s.store.ListOnlinePlayers(room.ID)
	if err != nil {
		return nil, err
	}
	ev := &ReadyChanged{RoomID: room.ID, SessionID: sessionID, Ready: ready, Total: len(online)}
	for _, o := range online {
		if o.Ready {
			ev.ReadyCount++
		}
	}

	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventReadyChanged, ev))
	return ev, nil
}

// LeaveRoom removes the caller's membership. Leaving twice is a no-op.
func (s *Service) LeaveRoom(sessionID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.lookupRoom(code)
	if core.IsKind(err, core.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	p, err := s.store.GetPlayer(room.ID, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := s.store.DeletePlayerBySession(room.ID, sessionID)
	if err != nil || !deleted {
		return err
	}

	online, err := s.roster.OnlineSessions(room.ID)
	if err != nil {
		return err
	}

	s.log.Info().Str("room_id", room.ID).Str("session_id", sessionID).Int("online", len(online)).Msg("player left")

	left := playerView(*p, room.HostSessionID)
	left.Online = false
	recipients := append([]string{sessionID}, online...)
	s.roster.NotifyMembers(room.ID, recipients, s.ns.Event(core.EventPlayerLeft, PlayerEvent{
		RoomID:  room.ID,
		Player:  left,
		Players: s.members(room.ID, room.HostSessionID),
	}))

	s.engine.PlayerLeft(room.ID, sessionID, online)

	if len(online) == 0 {
		s.teardownLocked(room.ID, "empty")
		s.roster.NotifyAll(s.ns.Event(core.EventRoomListUpdated, RoomListUpdated{Removed: []string{room.Code}}))
		return nil
	}
	if room.HostSessionID == sessionID {
		s.transferHostLocked(room, online[0])
	}
	return nil
}

// Disconnect marks every membership of a session offline after its transport closed.
// Rooms are left for the reaper so the session can come back.
func (s *Service) Disconnect(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memberships, err := s.store.ListMembershipsBySession(sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("list memberships on disconnect")
		return
	}
	for _, p := range memberships {
		if p.Online {
			s.markOfflineLocked(p)
		}
	}
}

// markOfflineLocked flips a membership offline and hands off what it held
func (s *Service) markOfflineLocked(p storage.PlayerRecord) {
	offline := false
	if err := s.store.UpdatePlayer(p.ID, storage.PlayerUpdate{Online: &offline}); err != nil {
		s.log.Error().Err(err).Str("room_id", p.RoomID).Msg("mark player offline")
		return
	}

	room, err := s.store.GetRoomByID(p.RoomID)
	if err != nil {
		return
	}
	online, err := s.roster.OnlineSessions(room.ID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", room.ID).Msg("read online players")
		return
	}

	s.log.Info().Str("room_id", room.ID).Str("session_id", p.SessionID).Int("online", len(online)).Msg("player offline")

	view := playerView(p, room.HostSessionID)
	view.Online = false
	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventPlayerLeft, PlayerEvent{
		RoomID:  room.ID,
		Player:  view,
		Players: s.members(room.ID, room.HostSessionID),
	}))

	s.engine.PlayerLeft(room.ID, p.SessionID, online)

	if room.HostSessionID == p.SessionID && len(online) > 0 {
		s.transferHostLocked(room, online[0])
	}
}

// transferHostLocked hands the host role to newHost and announces it
func (s *Service) transferHostLocked(room *storage.RoomRecord, newHost string) {
	if err := s.store.UpdateRoom(room.ID, storage.RoomUpdate{HostSessionID: &newHost}); err != nil {
		s.log.Error().Err(err).Str("room_id", room.ID).Msg("transfer host")
		return
	}
	room.HostSessionID = newHost

	ev := HostChanged{RoomID: room.ID, HostSessionID: newHost}
	if p, err := s.store.GetPlayer(room.ID, newHost); err == nil {
		ev.DisplayName = p.DisplayName
	}

	s.log.Info().Str("room_id", room.ID).Str("host", newHost).Msg("host changed")
	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventHostChanged, ev))
}

// StartGame starts the room's game, only the host may call it
func (s *Service) StartGame(sessionID, code string) (*GameStarted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.lookupRoom(code)
	if err != nil {
		return nil, err
	}
	return s.startLocked(room, sessionID)
}

func (s *Service) startLocked(room *storage.RoomRecord, sessionID string) (*GameStarted, error) {
	if room.HostSessionID != sessionID {
		return nil, core.Forbidden("only the host can start the game")
	}
	switch room.Status {
	case core.StatusPlaying:
		return nil, core.Conflict("game already in progress")
	case core.StatusFinished:
		return nil, core.Conflict("previous game is still finishing")
	}

	players, err := s.store.ListOnlinePlayers(room.ID)
	if err != nil {
		return nil, err
	}

	if room.Mode == core.ModeCompetitive {
		if len(players) < CompetitiveSeats {
			return nil, core.Conflict("competitive mode needs %d online players", CompetitiveSeats)
		}
		for _, p := range players {
			if !p.Ready {
				return nil, core.Conflict("all players must be ready")
			}
		}
	} else if len(players) == 0 {
		return nil, core.Conflict("no online players")
	}

	sessions := make([]string, len(players))
	for i, p := range players {
		sessions[i] = p.SessionID
	}

	playing := core.StatusPlaying
	if err := s.store.UpdateRoom(room.ID, storage.RoomUpdate{Status: &playing, ClearEndedAt: true}); err != nil {
		return nil, err
	}

	view, err := s.engine.Start(room.ID, room.Mode, s.roomSettings(room), sessions)
	if err != nil {
		waiting := core.StatusWaiting
		if rerr := s.store.UpdateRoom(room.ID, storage.RoomUpdate{Status: &waiting}); rerr != nil {
			s.log.Error().Err(rerr).Str("room_id", room.ID).Msg("revert room status")
		}
		return nil, err
	}
	room.Status = core.StatusPlaying

	started := &GameStarted{RoomID: room.ID, Code: room.Code, Mode: room.Mode, Game: view}
	s.roster.NotifyRoom(room.ID, s.ns.Event(core.EventGameStarted, started))
	return started, nil
}

// Vote forwards a shared-mode vote from an online member
func (s *Service) Vote(sessionID, code string, d core.Direction) error {
	room, err := s.onlineMember(sessionID, code)
	if err != nil {
		return err
	}
	return s.engine.Vote(room.ID, sessionID, d)
}

// Move forwards a competitive-mode turn from an online member
func (s *Service) Move(sessionID, code string, d core.Direction) error {
	room, err := s.onlineMember(sessionID, code)
	if err != nil {
		return err
	}
	return s.engine.Move(room.ID, sessionID, d)
}

func (s *Service) onlineMember(sessionID, code string) (*storage.RoomRecord, error) {
	room, p, err := s.member(sessionID, code)
	if err != nil {
		return nil, err
	}
	if !p.Online {
		return nil, core.Conflict("not online in room %s", room.Code)
	}
	return room, nil
}

// member resolves a room and the caller's membership in it
func (s *Service) member(sessionID, code string) (*storage.RoomRecord, *storage.PlayerRecord, error) {
	room, err := s.lookupRoom(code)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetPlayer(room.ID, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, core.Forbidden("not a member of room %s", room.Code)
	}
	if err != nil {
		return nil, nil, err
	}
	return room, p, nil
}

// RoomInfo returns a room's roster and, while one exists, its live game
func (s *Service) RoomInfo(code string) (*RoomView, error) {
	room, err := s.lookupRoom(code)
	if err != nil {
		return nil, err
	}
	view, err := buildRoomView(s.store, room)
	if err != nil {
		return nil, err
	}
	if snap, ok := s.engine.Snapshot(room.ID); ok {
		view.Game = snap
	}
	return view, nil
}

// Teardown deletes a room and discards its game. It is the only deletion path.
func (s *Service) Teardown(roomID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardownLocked(roomID, reason)
}

func (s *Service) teardownLocked(roomID, reason string) error {
	// timers stop before the state goes away
	s.engine.Discard(roomID)
	if err := s.store.DeleteRoom(roomID); err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("delete room")
		return err
	}
	s.log.Info().Str("room_id", roomID).Str("reason", reason).Msg("room torn down")
	return nil
}

// CleanupResult reports what an idle-player sweep changed
type CleanupResult struct {
	MarkedOffline int `json:"markedOffline"`
	Removed       int `json:"removed"`
}

// CleanupIdlePlayers marks memberships without a live connection offline
// and deletes offline memberships untouched for longer than idle
func (s *Service) CleanupIdlePlayers(idle time.Duration) (*CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &CleanupResult{}

	online, err := s.store.ListOnlinePlayersAll()
	if err != nil {
		return nil, err
	}
	for _, p := range online {
		if !s.registry.Connected(p.SessionID) {
			s.markOfflineLocked(p)
			res.MarkedOffline++
		}
	}

	stale, err := s.store.ListOfflinePlayers(time.Now().UTC().Add(-idle))
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		if err := s.store.DeletePlayerByID(p.ID); err != nil {
			return nil, err
		}
		res.Removed++
	}

	if res.MarkedOffline > 0 || res.Removed > 0 {
		s.log.Info().Int("offline", res.MarkedOffline).Int("removed", res.Removed).Msg("idle player cleanup")
	}
	return res, nil
}

// membership builds the reply for create and join
func (s *Service) membership(roomID, sessionID string) (*Membership, error) {
	room, err := s.store.GetRoomByID(roomID)
	if err != nil {
		return nil, err
	}
	view, err := buildRoomView(s.store, room)
	if err != nil {
		return nil, err
	}
	if snap, ok := s.engine.Snapshot(roomID); ok {
		view.Game = snap
	}

	m := &Membership{Room: view}
	for i := range view.Players {
		if view.Players[i].SessionID == sessionID {
			m.Player = &view.Players[i]
		}
	}
	return m, nil
}
