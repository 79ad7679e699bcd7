package core

import (
	"encoding/json"
	"strings"
)

// Inbound message types
const (
	MsgJoin        = "join"
	MsgPing        = "ping"
	MsgCreateRoom  = "create_room"
	MsgJoinRoom    = "join_room"
	MsgToggleReady = "toggle_ready"
	MsgVote        = "vote"
	MsgMove        = "move"
	MsgLeaveRoom   = "leave_room"
	MsgRoomInfo    = "get_room_info"
	MsgStartGame   = "start_game"
)

// Outbound event names, sent with the namespace prefix
const (
	EventRoomCreated       = "room_created"
	EventRoomJoined        = "room_joined"
	EventRoomInfo          = "room_info"
	EventPlayerJoined      = "player_joined"
	EventPlayerReconnected = "player_reconnected"
	EventPlayerLeft        = "player_left"
	EventHostChanged       = "host_changed"
	EventReadyChanged      = "player_ready_changed"
	EventGameStarted       = "game_started"
	EventGameUpdate        = "game_update"
	EventCompetitiveUpdate = "competitive_update"
	EventVoteUpdated       = "vote_updated"
	EventVoteProcessed     = "vote_processed"
	EventGameEnded         = "game_ended"
	EventRoomListUpdated   = "room_list_updated"
	EventError             = "error"
)

// Transport-level replies, never prefixed
const (
	EventPong   = "pong"
	EventJoined = "joined"
)

// Envelope wraps every message in both directions
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound message
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Namespace prefixes event names so several games can share one transport
type Namespace string

const DefaultNamespace Namespace = "snake"

// Event builds a namespaced outbound event
func (n Namespace) Event(name string, data any) Event {
	if n == "" {
		return Event{Type: name, Data: data}
	}
	return Event{Type: string(n) + "_" + name, Data: data}
}

// Strip removes the namespace prefix from an inbound type, if present
func (n Namespace) Strip(msgType string) string {
	if n == "" {
		return msgType
	}
	return strings.TrimPrefix(msgType, string(n)+"_")
}

// ErrorEvent is the payload of the error event
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Request types

type JoinSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,min=1,max=128"`
}

type CreateRoomRequest struct {
	DisplayName  string        `json:"displayName" validate:"required,min=1,max=32"`
	Mode         Mode          `json:"mode" validate:"required,oneof=shared competitive"`
	GameSettings *GameSettings `json:"gameSettings,omitempty"`
}

type JoinRoomRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=32"`
	RoomCode    string `json:"roomCode" validate:"required,len=6,alphanum"`
}

// RoomRequest covers toggle_ready, leave_room, get_room_info and start_game
type RoomRequest struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,alphanum"`
}

// DirectionRequest covers vote and move
type DirectionRequest struct {
	RoomCode  string    `json:"roomCode" validate:"required,len=6,alphanum"`
	Direction Direction `json:"direction" validate:"required,oneof=up down left right"`
}

// NormalizeCode upper-cases and trims a user-typed room code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
