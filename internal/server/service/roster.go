package service

import (
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/registry"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
)

// Roster bridges the engine to the directory and the connection registry.
// It holds no lock of its own, so the engine may call it from any goroutine.
type Roster struct {
	store    *storage.Store
	registry *registry.Registry
	outbox   *Outbox
	ns       core.Namespace
	log      zerolog.Logger
}

func NewRoster(store *storage.Store, reg *registry.Registry, outbox *Outbox, ns core.Namespace, logger zerolog.Logger) *Roster {
	return &Roster{
		store:    store,
		registry: reg,
		outbox:   outbox,
		ns:       ns,
		log:      logger.With().Str("component", "roster").Logger(),
	}
}

// OnlineSessions lists the online members of a room in join order
func (r *Roster) OnlineSessions(roomID string) ([]string, error) {
	players, err := r.store.ListOnlinePlayers(roomID)
	if err != nil {
		return nil, err
	}
	sessions := make([]string, len(players))
	for i, p := range players {
		sessions[i] = p.SessionID
	}
	return sessions, nil
}

// NotifyRoom sends ev to every connected member of a room
func (r *Roster) NotifyRoom(roomID string, ev core.Event) {
	players, err := r.store.ListPlayers(roomID)
	if err != nil {
		r.log.Error().Err(err).Str("room_id", roomID).Msg("list room members for broadcast")
		return
	}
	members := make(map[string]bool, len(players))
	for _, p := range players {
		members[p.SessionID] = true
	}

	r.outbox.Post(roomID, func() {
		r.registry.Broadcast(ev, func(_, sessionID string) bool {
			return members[sessionID]
		})
	})
}

// NotifyMembers sends ev to an explicit session list, used once the room rows are gone
func (r *Roster) NotifyMembers(key string, sessions []string, ev core.Event) {
	r.outbox.Post(key, func() {
		for _, s := range sessions {
			r.registry.Send(s, ev)
		}
	})
}

// NotifyAll sends ev to every connection, used for lobby-wide events
func (r *Roster) NotifyAll(ev core.Event) {
	r.outbox.Post("", func() {
		r.registry.Broadcast(ev, nil)
	})
}

// GameFinished marks the room finished and writes the final scores back to its members
func (r *Roster) GameFinished(res game.Result) {
	now := time.Now().UTC()
	status := core.StatusFinished
	if err := r.store.UpdateRoom(res.RoomID, storage.RoomUpdate{Status: &status, EndedAt: &now}); err != nil {
		r.log.Error().Err(err).Str("room_id", res.RoomID).Msg("mark room finished")
		return
	}

	for sessionID, score := range res.Scores {
		p, err := r.store.GetPlayer(res.RoomID, sessionID)
		if err != nil {
			continue
		}
		length := res.Lengths[sessionID]
		if err := r.store.UpdatePlayer(p.ID, storage.PlayerUpdate{Score: &score, SnakeLength: &length}); err != nil {
			r.log.Error().Err(err).Str("room_id", res.RoomID).Str("session_id", sessionID).Msg("write back score")
		}
	}
}

// GameReset returns a finished room to waiting and clears ready flags
func (r *Roster) GameReset(roomID string) {
	status := core.StatusWaiting
	if err := r.store.UpdateRoom(roomID, storage.RoomUpdate{Status: &status}); err != nil {
		r.log.Debug().Err(err).Str("room_id", roomID).Msg("reset room after game")
		return
	}
	if err := r.store.ResetReady(roomID); err != nil {
		r.log.Error().Err(err).Str("room_id", roomID).Msg("reset ready flags")
	}

	room, err := r.store.GetRoomByID(roomID)
	if err != nil {
		return
	}
	view, err := buildRoomView(r.store, room)
	if err != nil {
		return
	}
	r.NotifyRoom(roomID, r.ns.Event(core.EventRoomInfo, view))
}
