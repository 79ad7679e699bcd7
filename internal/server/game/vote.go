package game

import (
	"errors"
	"fmt"
	"time"

	"arcade/internal/server/consensus"
	"arcade/internal/server/core"
)

// VoteUpdated is broadcast after each accepted vote of an open window
type VoteUpdated struct {
	RoomID string                 `json:"roomId"`
	Votes  map[core.Direction]int `json:"votes"`
	Voters int                    `json:"voters"`
	Online int                    `json:"online"`
}

// VoteProcessed is broadcast when a window resolves, Direction is empty if nothing legal won
type VoteProcessed struct {
	RoomID    string                 `json:"roomId"`
	Direction core.Direction         `json:"direction,omitempty"`
	Votes     map[core.Direction]int `json:"votes"`
	Voters    int                    `json:"voters"`
}

// Vote submits a shared-mode direction for sessionID
func (e *Engine) Vote(roomID, sessionID string, d core.Direction) error {
	if !d.Valid() {
		return core.Validation("invalid direction %q", d)
	}

	online, err := e.roster.OnlineSessions(roomID)
	if err != nil {
		return fmt.Errorf("read online players: %w", err)
	}

	r := e.get(roomID)
	if r == nil {
		return core.Conflict("no game in progress")
	}

	var events []core.Event

	r.mu.Lock()
	if r.phase != phaseRunning || r.state == nil {
		r.mu.Unlock()
		return core.Conflict("no game in progress")
	}
	if r.state.Mode != core.ModeShared {
		r.mu.Unlock()
		return core.Conflict("vote is only valid in shared mode")
	}

	sh := r.state.Shared
	if !sh.Direction.CanFollow(d) {
		r.mu.Unlock()
		return core.Conflict("cannot reverse direction")
	}

	switch {
	case sh.AwaitingFirstInput || len(online) <= 1:
		// no window: the first move of a game, or a lone voter
		sh.AwaitingFirstInput = false
		sh.Pending = d
		sh.Ballot.Reset()
		r.stopVote()
		events = append(events, e.cfg.Namespace.Event(core.EventVoteProcessed, VoteProcessed{
			RoomID:    roomID,
			Direction: d,
			Votes:     map[core.Direction]int{d: 1},
			Voters:    1,
		}))

	default:
		if err := sh.Ballot.Cast(sessionID, d); err != nil {
			r.mu.Unlock()
			if errors.Is(err, consensus.ErrAlreadyVoted) {
				return core.Conflict("already voted in this window")
			}
			return err
		}

		if sh.Ballot.Len() == 1 {
			r.window++
			gen, seq := r.gen, r.window
			r.voteTimer = time.AfterFunc(r.state.Settings.VoteWindowDuration(), func() {
				e.closeWindow(roomID, gen, seq)
			})
		}

		if sh.Ballot.Complete(online) {
			events = append(events, e.resolveWindow(r))
		} else {
			events = append(events, e.cfg.Namespace.Event(core.EventVoteUpdated, VoteUpdated{
				RoomID: roomID,
				Votes:  sh.Ballot.Tally(),
				Voters: sh.Ballot.Len(),
				Online: len(online),
			}))
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		e.notifier.NotifyRoom(roomID, ev)
	}
	return nil
}

// resolveWindow closes the open window and sets the winning direction, r.mu must be held
func (e *Engine) resolveWindow(r *room) core.Event {
	r.stopVote()
	sh := r.state.Shared

	res := VoteProcessed{
		RoomID: r.id,
		Votes:  sh.Ballot.Tally(),
		Voters: sh.Ballot.Len(),
	}
	if d, ok := sh.Ballot.Resolve(sh.Direction); ok {
		sh.Pending = d
		res.Direction = d
	}
	sh.Ballot.Reset()
	return e.cfg.Namespace.Event(core.EventVoteProcessed, res)
}

// closeWindow is the vote timer callback
func (e *Engine) closeWindow(roomID string, gen, seq uint64) {
	r := e.get(roomID)
	if r == nil {
		e.log.Debug().Str("room_id", roomID).Msg("vote window fired for discarded room")
		return
	}

	r.mu.Lock()
	if r.gen != gen || r.window != seq || r.phase != phaseRunning || r.state == nil || !r.state.Shared.Ballot.Open() {
		r.mu.Unlock()
		return
	}
	ev := e.resolveWindow(r)
	r.mu.Unlock()

	e.notifier.NotifyRoom(roomID, ev)
}

// Move queues a competitive-mode turn for the session's own snake
func (e *Engine) Move(roomID, sessionID string, d core.Direction) error {
	if !d.Valid() {
		return core.Validation("invalid direction %q", d)
	}

	r := e.get(roomID)
	if r == nil {
		return core.Conflict("no game in progress")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != phaseRunning || r.state == nil {
		return core.Conflict("no game in progress")
	}
	if r.state.Mode != core.ModeCompetitive {
		return core.Conflict("move is only valid in competitive mode")
	}

	sn, ok := r.state.Competitive.Snakes[sessionID]
	if !ok {
		return core.Conflict("not seated in this game")
	}
	if !sn.Alive {
		return core.Conflict("snake is already out")
	}
	if !sn.Direction.CanFollow(d) {
		return core.Conflict("cannot reverse direction")
	}
	sn.Pending = d
	return nil
}
