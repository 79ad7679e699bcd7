package game

import (
	"arcade/internal/server/consensus"
	"arcade/internal/server/core"
)

// State is the in-memory game of one room, tagged by Mode.
// Exactly one of Shared and Competitive is set.
type State struct {
	Mode        core.Mode
	Status      core.RoomStatus
	Settings    core.GameSettings
	Tick        int
	Shared      *SharedState
	Competitive *CompetitiveState
}

// SharedState is one snake steered by the whole room
type SharedState struct {
	Snake              []core.Point // head first
	Direction          core.Direction
	Pending            core.Direction
	Score              int
	AwaitingFirstInput bool
	Food               *core.Point
	Ballot             *consensus.Ballot
}

// Snake is one competitive player's snake
type Snake struct {
	Body      []core.Point
	Direction core.Direction
	Pending   core.Direction
	Score     int
	Alive     bool
}

// CompetitiveState holds a snake and a private food cell per session
type CompetitiveState struct {
	Order  []string // seat order
	Snakes map[string]*Snake
	Food   map[string]*core.Point
}

func (c *CompetitiveState) alive() []string {
	var out []string
	for _, id := range c.Order {
		if c.Snakes[id].Alive {
			out = append(out, id)
		}
	}
	return out
}

// Board is the grid size sent with every view
type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SharedView is the game_update payload
type SharedView struct {
	RoomID             string         `json:"roomId"`
	Mode               core.Mode      `json:"mode"`
	Tick               int            `json:"tick"`
	Board              Board          `json:"board"`
	Snake              []core.Point   `json:"snake"`
	Direction          core.Direction `json:"direction"`
	Score              int            `json:"score"`
	Length             int            `json:"length"`
	Food               *core.Point    `json:"food"`
	AwaitingFirstInput bool           `json:"awaitingFirstInput"`
}

// SnakeView is one snake inside a CompetitiveView
type SnakeView struct {
	Body      []core.Point   `json:"body"`
	Direction core.Direction `json:"direction"`
	Score     int            `json:"score"`
	Length    int            `json:"length"`
	Alive     bool           `json:"alive"`
}

// CompetitiveView is the competitive_update payload
type CompetitiveView struct {
	RoomID string                 `json:"roomId"`
	Mode   core.Mode              `json:"mode"`
	Tick   int                    `json:"tick"`
	Board  Board                  `json:"board"`
	Snakes map[string]SnakeView   `json:"snakes"`
	Food   map[string]*core.Point `json:"food"`
}

func copyPoints(ps []core.Point) []core.Point {
	out := make([]core.Point, len(ps))
	copy(out, ps)
	return out
}

func copyPoint(p *core.Point) *core.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func sharedView(roomID string, s *State) SharedView {
	sh := s.Shared
	return SharedView{
		RoomID:             roomID,
		Mode:               s.Mode,
		Tick:               s.Tick,
		Board:              Board{Width: s.Settings.BoardWidth, Height: s.Settings.BoardHeight},
		Snake:              copyPoints(sh.Snake),
		Direction:          sh.Direction,
		Score:              sh.Score,
		Length:             len(sh.Snake),
		Food:               copyPoint(sh.Food),
		AwaitingFirstInput: sh.AwaitingFirstInput,
	}
}

func competitiveView(roomID string, s *State) CompetitiveView {
	c := s.Competitive
	v := CompetitiveView{
		RoomID: roomID,
		Mode:   s.Mode,
		Tick:   s.Tick,
		Board:  Board{Width: s.Settings.BoardWidth, Height: s.Settings.BoardHeight},
		Snakes: make(map[string]SnakeView, len(c.Snakes)),
		Food:   make(map[string]*core.Point, len(c.Food)),
	}
	for id, sn := range c.Snakes {
		v.Snakes[id] = SnakeView{
			Body:      copyPoints(sn.Body),
			Direction: sn.Direction,
			Score:     sn.Score,
			Length:    len(sn.Body),
			Alive:     sn.Alive,
		}
	}
	for id, f := range c.Food {
		v.Food[id] = copyPoint(f)
	}
	return v
}

// Result summarizes a terminated game
type Result struct {
	RoomID      string         `json:"roomId"`
	Mode        core.Mode      `json:"mode"`
	Reason      core.EndReason `json:"endReason"`
	Winner      *string        `json:"winner"`
	Score       int            `json:"score"`
	Scores      map[string]int `json:"scores"`
	Lengths     map[string]int `json:"-"`
	DurationMs  int64          `json:"durationMs"`
	PlayerCount int            `json:"playerCount"`
}
