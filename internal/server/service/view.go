package service

import (
	"encoding/json"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/storage"
)

// PlayerView is a membership as shown to clients
type PlayerView struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Ready       bool   `json:"ready"`
	Online      bool   `json:"online"`
	Score       int    `json:"score"`
	SnakeLength int    `json:"snakeLength"`
	IsHost      bool   `json:"isHost"`
}

// RoomView is a room with its roster
type RoomView struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	Mode          core.Mode         `json:"mode"`
	Status        core.RoomStatus   `json:"status"`
	Capacity      int               `json:"capacity"`
	OnlineCount   int               `json:"onlineCount"`
	HostSessionID string            `json:"hostSessionId"`
	Settings      core.GameSettings `json:"settings"`
	Players       []PlayerView      `json:"players"`
	CreatedAt     time.Time         `json:"createdAt"`
	EndedAt       *time.Time        `json:"endedAt,omitempty"`
	Game          any               `json:"game,omitempty"`
}

// Membership pairs a room with the caller's own player row
type Membership struct {
	Room   *RoomView   `json:"room"`
	Player *PlayerView `json:"player"`
}

func playerView(p storage.PlayerRecord, host string) PlayerView {
	return PlayerView{
		SessionID:   p.SessionID,
		DisplayName: p.DisplayName,
		Color:       p.Color,
		Ready:       p.Ready,
		Online:      p.Online,
		Score:       p.Score,
		SnakeLength: p.SnakeLength,
		IsHost:      p.SessionID == host,
	}
}

func decodeSettings(raw string) core.GameSettings {
	var gs core.GameSettings
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &gs)
	}
	return gs
}

// buildRoomView loads the roster of a room
func buildRoomView(store *storage.Store, r *storage.RoomRecord) (*RoomView, error) {
	players, err := store.ListPlayers(r.ID)
	if err != nil {
		return nil, err
	}

	v := &RoomView{
		ID:            r.ID,
		Code:          r.Code,
		Mode:          r.Mode,
		Status:        r.Status,
		Capacity:      r.Capacity,
		HostSessionID: r.HostSessionID,
		Settings:      decodeSettings(r.Settings),
		Players:       make([]PlayerView, 0, len(players)),
		CreatedAt:     r.CreatedAt,
		EndedAt:       r.EndedAt,
	}
	for _, p := range players {
		if p.Online {
			v.OnlineCount++
		}
		v.Players = append(v.Players, playerView(p, r.HostSessionID))
	}
	return v, nil
}

// Event payloads

type PlayerEvent struct {
	RoomID  string       `json:"roomId"`
	Player  PlayerView   `json:"player"`
	Players []PlayerView `json:"players"`
}

type HostChanged struct {
	RoomID        string `json:"roomId"`
	HostSessionID string `json:"hostSessionId"`
	DisplayName   string `json:"displayName"`
}

type ReadyChanged struct {
	RoomID     string `json:"roomId"`
	SessionID  string `json:"sessionId"`
	Ready      bool   `json:"ready"`
	ReadyCount int    `json:"readyCount"`
	Total      int    `json:"total"`
}

type GameStarted struct {
	RoomID string    `json:"roomId"`
	Code   string    `json:"code"`
	Mode   core.Mode `json:"mode"`
	Game   any       `json:"game"`
}

type RoomListUpdated struct {
	Removed []string `json:"removed"`
}
