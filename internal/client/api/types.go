package api

import "encoding/json"

// Wire types mirrored from the server so the client builds without server packages.

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Time        int64  `json:"time"`
	Storage     string `json:"storage,omitempty"`
	Connections int    `json:"connections"`
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Player struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Ready       bool   `json:"ready"`
	Online      bool   `json:"online"`
	Score       int    `json:"score"`
	SnakeLength int    `json:"snakeLength"`
	IsHost      bool   `json:"isHost"`
}

type Settings struct {
	Speed       int `json:"speed"`
	BoardWidth  int `json:"boardWidth"`
	BoardHeight int `json:"boardHeight"`
	VoteWindow  int `json:"voteWindow"`
}

type Room struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Mode          string          `json:"mode"`
	Status        string          `json:"status"`
	Capacity      int             `json:"capacity"`
	OnlineCount   int             `json:"onlineCount"`
	HostSessionID string          `json:"hostSessionId"`
	Settings      Settings        `json:"settings"`
	Players       []Player        `json:"players"`
	Game          json.RawMessage `json:"game,omitempty"`
}

type RoomsResponse struct {
	Rooms []Room `json:"rooms"`
	Count int    `json:"count"`
}

type GameRecord struct {
	RoomID           string  `json:"roomId"`
	Mode             string  `json:"mode"`
	WinningSessionID *string `json:"winningSessionId"`
	WinningScore     int     `json:"winningScore"`
	EndReason        string  `json:"endReason"`
	DurationMs       int64   `json:"durationMs"`
}

type RoomDetailResponse struct {
	Room    *Room        `json:"room"`
	Records []GameRecord `json:"records"`
}

type StatsResponse struct {
	SessionID       string `json:"sessionId"`
	GamesRecorded   int    `json:"gamesRecorded"`
	SharedGames     int    `json:"sharedGames"`
	CompetitiveWins int    `json:"competitiveWins"`
	BestScore       int    `json:"bestScore"`
	TotalScore      int    `json:"totalScore"`
}

type LeaderboardEntry struct {
	SessionID string `json:"sessionId"`
	BestScore int    `json:"bestScore"`
	Games     int    `json:"games"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
	Count   int                `json:"count"`
}

type CleanupResponse struct {
	Checked    int      `json:"checked"`
	Removed    []string `json:"removed"`
	Reconciled int      `json:"reconciled"`
}

// Game views carried by game_update and competitive_update

type SharedView struct {
	Tick               int     `json:"tick"`
	Board              Board   `json:"board"`
	Snake              []Point `json:"snake"`
	Direction          string  `json:"direction"`
	Score              int     `json:"score"`
	Length             int     `json:"length"`
	Food               *Point  `json:"food"`
	AwaitingFirstInput bool    `json:"awaitingFirstInput"`
}

type SnakeView struct {
	Body      []Point `json:"body"`
	Direction string  `json:"direction"`
	Score     int     `json:"score"`
	Length    int     `json:"length"`
	Alive     bool    `json:"alive"`
}

type CompetitiveView struct {
	Tick   int                  `json:"tick"`
	Board  Board                `json:"board"`
	Snakes map[string]SnakeView `json:"snakes"`
	Food   map[string]*Point    `json:"food"`
}

// Frame is one websocket message in either direction
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event payloads the client reacts to

type Membership struct {
	Room   *Room   `json:"room"`
	Player *Player `json:"player"`
}

type PlayerEvent struct {
	RoomID  string   `json:"roomId"`
	Player  Player   `json:"player"`
	Players []Player `json:"players"`
}

type GameEnded struct {
	Mode       string         `json:"mode"`
	EndReason  string         `json:"endReason"`
	Winner     *string        `json:"winner"`
	Score      int            `json:"score"`
	Scores     map[string]int `json:"scores"`
	DurationMs int64          `json:"durationMs"`
}

type Joined struct {
	SessionID    string `json:"sessionId"`
	ConnectionID string `json:"connectionId"`
}
