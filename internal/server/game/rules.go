package game

import (
	"math/rand/v2"
	"time"

	"arcade/internal/server/consensus"
	"arcade/internal/server/core"
)

const (
	initialLength = 3
	foodScore     = 10
)

// outcome is what a single tick decided
type outcome struct {
	ended  bool
	reason core.EndReason
	winner *string
}

// rules is the per-mode behaviour table
type rules struct {
	minPlayers int
	event      string
	init       func(settings core.GameSettings, online []string, rng *rand.Rand) *State
	tick       func(r *room, online int, now time.Time) outcome
	view       func(roomID string, s *State) any
}

var modeRules = map[core.Mode]rules{
	core.ModeShared: {
		minPlayers: 1,
		event:      core.EventGameUpdate,
		init:       initShared,
		tick:       tickShared,
		view:       func(roomID string, s *State) any { return sharedView(roomID, s) },
	},
	core.ModeCompetitive: {
		minPlayers: 2,
		event:      core.EventCompetitiveUpdate,
		init:       initCompetitive,
		tick:       tickCompetitive,
		view:       func(roomID string, s *State) any { return competitiveView(roomID, s) },
	},
}

func initShared(settings core.GameSettings, online []string, rng *rand.Rand) *State {
	w, h := settings.BoardWidth, settings.BoardHeight
	snake := line(core.Point{X: w / 2, Y: h / 2}, core.Right, initialLength, w, h)
	sh := &SharedState{
		Snake:              snake,
		Direction:          core.Right,
		AwaitingFirstInput: len(online) > 1,
		Ballot:             consensus.NewBallot(),
	}
	sh.Food = spawnFood(rng, w, h, func(p core.Point) bool { return contains(sh.Snake, p) })

	return &State{
		Mode:     core.ModeShared,
		Status:   core.StatusPlaying,
		Settings: settings,
		Shared:   sh,
	}
}

// tickShared advances the shared snake by one cell
func tickShared(r *room, online int, now time.Time) outcome {
	s := r.state
	sh := s.Shared
	w, h := s.Settings.BoardWidth, s.Settings.BoardHeight

	if sh.AwaitingFirstInput {
		if online > 1 && now.Before(r.firstInputDeadline) {
			return outcome{}
		}
		sh.AwaitingFirstInput = false
	}

	if sh.Pending != "" {
		if sh.Direction.CanFollow(sh.Pending) {
			sh.Direction = sh.Pending
		}
		sh.Pending = ""
	}

	head := step(sh.Snake[0], sh.Direction, w, h)
	if contains(sh.Snake, head) {
		return outcome{ended: true, reason: core.EndSelfCollision}
	}

	sh.Snake = append([]core.Point{head}, sh.Snake...)
	if sh.Food != nil && head == *sh.Food {
		sh.Score += foodScore
		sh.Food = spawnFood(r.rng, w, h, func(p core.Point) bool { return contains(sh.Snake, p) })
	} else {
		sh.Snake = sh.Snake[:len(sh.Snake)-1]
	}
	return outcome{}
}

func initCompetitive(settings core.GameSettings, online []string, rng *rand.Rand) *State {
	w, h := settings.BoardWidth, settings.BoardHeight
	n := len(online)
	c := &CompetitiveState{
		Order:  append([]string(nil), online...),
		Snakes: make(map[string]*Snake, n),
		Food:   make(map[string]*core.Point, n),
	}

	// seats spread evenly across the middle row, alternating heading
	for i, id := range online {
		d := core.Right
		if i%2 == 1 {
			d = core.Left
		}
		head := core.Point{X: w * (2*i + 1) / (2 * n), Y: h / 2}
		c.Snakes[id] = &Snake{
			Body:      line(head, d, initialLength, w, h),
			Direction: d,
			Alive:     true,
		}
	}
	for _, id := range online {
		c.Food[id] = spawnFood(rng, w, h, c.occupied)
	}

	return &State{
		Mode:        core.ModeCompetitive,
		Status:      core.StatusPlaying,
		Settings:    settings,
		Competitive: c,
	}
}

// occupied reports whether any snake body or food covers p
func (c *CompetitiveState) occupied(p core.Point) bool {
	for _, sn := range c.Snakes {
		if sn.Alive && contains(sn.Body, p) {
			return true
		}
	}
	for _, f := range c.Food {
		if f != nil && *f == p {
			return true
		}
	}
	return false
}

// tickCompetitive moves every living snake at once, then settles collisions
func tickCompetitive(r *room, _ int, _ time.Time) outcome {
	s := r.state
	c := s.Competitive
	w, h := s.Settings.BoardWidth, s.Settings.BoardHeight

	alive := c.alive()
	heads := make(map[string]core.Point, len(alive))
	for _, id := range alive {
		sn := c.Snakes[id]
		if sn.Pending != "" {
			if sn.Direction.CanFollow(sn.Pending) {
				sn.Direction = sn.Pending
			}
			sn.Pending = ""
		}
		heads[id] = step(sn.Body[0], sn.Direction, w, h)
	}

	dead := make(map[string]bool)
	for _, id := range alive {
		head := heads[id]
		if contains(c.Snakes[id].Body, head) {
			dead[id] = true
			continue
		}
		for _, other := range alive {
			if other == id {
				continue
			}
			if contains(c.Snakes[other].Body, head) || heads[other] == head {
				dead[id] = true
				break
			}
		}
	}

	for _, id := range alive {
		sn := c.Snakes[id]
		if dead[id] {
			sn.Alive = false
			delete(c.Food, id)
			continue
		}
		head := heads[id]
		sn.Body = append([]core.Point{head}, sn.Body...)
		if f := c.Food[id]; f != nil && *f == head {
			sn.Score += foodScore
			c.Food[id] = nil
			c.Food[id] = spawnFood(r.rng, w, h, c.occupied)
		} else {
			sn.Body = sn.Body[:len(sn.Body)-1]
		}
	}

	remaining := c.alive()
	if len(remaining) > 1 {
		return outcome{}
	}
	out := outcome{ended: true, reason: core.EndCompetitiveFinished}
	if len(remaining) == 1 {
		winner := remaining[0]
		out.winner = &winner
	}
	return out
}
