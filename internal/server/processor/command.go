package processor

import (
	"encoding/json"

	"arcade/internal/server/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdJoin CommandType = iota
	CmdPing
	CmdCreateRoom
	CmdJoinRoom
	CmdToggleReady
	CmdVote
	CmdMove
	CmdLeaveRoom
	CmdRoomInfo
	CmdStartGame
)

var commandTypes = map[string]CommandType{
	core.MsgJoin:        CmdJoin,
	core.MsgPing:        CmdPing,
	core.MsgCreateRoom:  CmdCreateRoom,
	core.MsgJoinRoom:    CmdJoinRoom,
	core.MsgToggleReady: CmdToggleReady,
	core.MsgVote:        CmdVote,
	core.MsgMove:        CmdMove,
	core.MsgLeaveRoom:   CmdLeaveRoom,
	core.MsgRoomInfo:    CmdRoomInfo,
	core.MsgStartGame:   CmdStartGame,
}

// Command is one decoded inbound message bound to its connection
type Command struct {
	Type      CommandType
	ConnID    string
	SessionID string // empty until the connection sent join
	Args      any    // Command-specific request
}

// decode parses an envelope into a validated command
func decode(ns core.Namespace, connID string, raw []byte) (Command, error) {
	var env core.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, core.Validation("malformed message")
	}

	cmdType, ok := commandTypes[ns.Strip(env.Type)]
	if !ok {
		return Command{}, core.Validation("unknown message type %q", env.Type)
	}
	cmd := Command{Type: cmdType, ConnID: connID}

	var args any
	switch cmdType {
	case CmdPing:
		return cmd, nil
	case CmdJoin:
		args = &core.JoinSessionRequest{}
	case CmdCreateRoom:
		args = &core.CreateRoomRequest{}
	case CmdJoinRoom:
		args = &core.JoinRoomRequest{}
	case CmdVote, CmdMove:
		args = &core.DirectionRequest{}
	default:
		args = &core.RoomRequest{}
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, args); err != nil {
			return Command{}, core.Validation("invalid %s payload", ns.Strip(env.Type))
		}
	}

	switch a := args.(type) {
	case *core.JoinRoomRequest:
		a.RoomCode = core.NormalizeCode(a.RoomCode)
	case *core.RoomRequest:
		a.RoomCode = core.NormalizeCode(a.RoomCode)
	case *core.DirectionRequest:
		a.RoomCode = core.NormalizeCode(a.RoomCode)
	}

	if err := core.Validate(args); err != nil {
		return Command{}, err
	}
	cmd.Args = args
	return cmd, nil
}
