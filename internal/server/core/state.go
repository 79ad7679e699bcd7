package core

import "time"

// Mode selects the simulation rules of a room
type Mode string

const (
	ModeShared      Mode = "shared"
	ModeCompetitive Mode = "competitive"
)

func (m Mode) Valid() bool {
	return m == ModeShared || m == ModeCompetitive
}

// RoomStatus is the persisted room lifecycle state
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// EndReason explains why a game terminated
type EndReason string

const (
	EndSelfCollision       EndReason = "self_collision"
	EndWallCollision       EndReason = "wall_collision"
	EndCompetitiveFinished EndReason = "competitive_finished"
	EndInsufficientPlayers EndReason = "insufficient_players"
	EndEmpty               EndReason = "empty"
	EndError               EndReason = "error"
)

// Direction is a board heading
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists every heading in a stable order
var Directions = []Direction{Up, Down, Left, Right}

func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

func (d Direction) Reverse() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return ""
}

// Delta returns the unit step for the heading, y grows downwards
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// CanFollow reports whether next is a legal turn from d.
// A snake can never turn straight back into its own neck.
func (d Direction) CanFollow(next Direction) bool {
	return next.Valid() && next != d.Reverse()
}

// Point is a board cell
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GameSettings are the per-room tuning knobs, zero fields fall back to server defaults
type GameSettings struct {
	Speed       int  `json:"speed,omitempty" validate:"omitempty,min=50,max=2000"`        // tick interval in ms
	BoardWidth  int  `json:"boardWidth,omitempty" validate:"omitempty,min=8,max=100"`     // cells
	BoardHeight int  `json:"boardHeight,omitempty" validate:"omitempty,min=8,max=100"`    // cells
	VoteWindow  int  `json:"voteWindow,omitempty" validate:"omitempty,min=100,max=10000"` // ms
	AutoStart   bool `json:"autoStart,omitempty"`
}

// DefaultGameSettings returns the stock configuration
func DefaultGameSettings() GameSettings {
	return GameSettings{
		Speed:       150,
		BoardWidth:  20,
		BoardHeight: 20,
		VoteWindow:  600,
	}
}

// Merge fills unset fields of s from def
func (s GameSettings) Merge(def GameSettings) GameSettings {
	if s.Speed == 0 {
		s.Speed = def.Speed
	}
	if s.BoardWidth == 0 {
		s.BoardWidth = def.BoardWidth
	}
	if s.BoardHeight == 0 {
		s.BoardHeight = def.BoardHeight
	}
	if s.VoteWindow == 0 {
		s.VoteWindow = def.VoteWindow
	}
	return s
}

func (s GameSettings) TickInterval() time.Duration {
	return time.Duration(s.Speed) * time.Millisecond
}

func (s GameSettings) VoteWindowDuration() time.Duration {
	return time.Duration(s.VoteWindow) * time.Millisecond
}
