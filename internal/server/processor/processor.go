package processor

import (
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/registry"
	"arcade/internal/server/service"

	"github.com/rs/zerolog"
)

// Response is the direct answer to one command. Room-wide effects travel as broadcasts.
type Response struct {
	Reply *core.Event
	Error *core.ErrorEvent
}

// JoinedReply is the payload of the joined event
type JoinedReply struct {
	SessionID string `json:"sessionId"`
	ConnID    string `json:"connectionId"`
}

// PongReply is the payload of the pong event
type PongReply struct {
	Timestamp int64 `json:"timestamp"`
}

// Processor decodes inbound messages and routes them to the room service
type Processor struct {
	svc      *service.Service
	registry *registry.Registry
	ns       core.Namespace
	log      zerolog.Logger
}

func New(svc *service.Service, logger zerolog.Logger) *Processor {
	return &Processor{
		svc:      svc,
		registry: svc.Registry(),
		ns:       svc.Namespace(),
		log:      logger.With().Str("component", "processor").Logger(),
	}
}

// Handle processes one raw frame from a connection and writes the direct reply back to it
func (p *Processor) Handle(connID string, raw []byte) {
	var resp Response

	cmd, err := decode(p.ns, connID, raw)
	if err != nil {
		resp = p.errorResponse(err)
	} else {
		cmd.SessionID = p.registry.SessionOf(connID)
		resp = p.Execute(cmd)
	}

	switch {
	case resp.Error != nil:
		p.registry.SendConn(connID, p.ns.Event(core.EventError, resp.Error))
	case resp.Reply != nil:
		p.registry.SendConn(connID, *resp.Reply)
	}
}

func (p *Processor) Execute(cmd Command) Response {
	switch cmd.Type {
	case CmdJoin:
		return p.handleJoin(cmd)
	case CmdPing:
		return reply(core.Event{Type: core.EventPong, Data: PongReply{Timestamp: time.Now().UnixMilli()}})
	}

	if cmd.SessionID == "" {
		return p.errorResponse(core.Forbidden("send join with a session id first"))
	}

	switch cmd.Type {
	case CmdCreateRoom:
		return p.handleCreateRoom(cmd)
	case CmdJoinRoom:
		return p.handleJoinRoom(cmd)
	case CmdToggleReady:
		args := cmd.Args.(*core.RoomRequest)
		_, err := p.svc.ToggleReady(cmd.SessionID, args.RoomCode)
		return p.result(err)
	case CmdVote:
		args := cmd.Args.(*core.DirectionRequest)
		return p.result(p.svc.Vote(cmd.SessionID, args.RoomCode, args.Direction))
	case CmdMove:
		args := cmd.Args.(*core.DirectionRequest)
		return p.result(p.svc.Move(cmd.SessionID, args.RoomCode, args.Direction))
	case CmdLeaveRoom:
		args := cmd.Args.(*core.RoomRequest)
		return p.result(p.svc.LeaveRoom(cmd.SessionID, args.RoomCode))
	case CmdRoomInfo:
		return p.handleRoomInfo(cmd)
	case CmdStartGame:
		args := cmd.Args.(*core.RoomRequest)
		_, err := p.svc.StartGame(cmd.SessionID, args.RoomCode)
		return p.result(err)
	default:
		return p.errorResponse(core.Validation("unknown command"))
	}
}

// handleJoin binds the connection to the caller's stable session id
func (p *Processor) handleJoin(cmd Command) Response {
	args := cmd.Args.(*core.JoinSessionRequest)
	if !p.registry.Associate(cmd.ConnID, args.SessionID) {
		return p.errorResponse(core.NotFound("connection %s is gone", cmd.ConnID))
	}
	p.log.Debug().Str("conn_id", cmd.ConnID).Str("session_id", args.SessionID).Msg("session joined")
	return reply(core.Event{Type: core.EventJoined, Data: JoinedReply{SessionID: args.SessionID, ConnID: cmd.ConnID}})
}

func (p *Processor) handleCreateRoom(cmd Command) Response {
	args := cmd.Args.(*core.CreateRoomRequest)
	m, err := p.svc.CreateRoom(cmd.SessionID, *args)
	if err != nil {
		return p.errorResponse(err)
	}
	return reply(p.ns.Event(core.EventRoomCreated, m))
}

func (p *Processor) handleJoinRoom(cmd Command) Response {
	args := cmd.Args.(*core.JoinRoomRequest)
	m, err := p.svc.JoinRoom(cmd.SessionID, *args)
	if err != nil {
		return p.errorResponse(err)
	}
	return reply(p.ns.Event(core.EventRoomJoined, m))
}

func (p *Processor) handleRoomInfo(cmd Command) Response {
	args := cmd.Args.(*core.RoomRequest)
	view, err := p.svc.RoomInfo(args.RoomCode)
	if err != nil {
		return p.errorResponse(err)
	}
	return reply(p.ns.Event(core.EventRoomInfo, view))
}

func reply(ev core.Event) Response {
	return Response{Reply: &ev}
}

// result answers commands whose success is visible through broadcasts only
func (p *Processor) result(err error) Response {
	if err != nil {
		return p.errorResponse(err)
	}
	return Response{}
}

// errorResponse creates error response
func (p *Processor) errorResponse(err error) Response {
	kind := core.KindOf(err)
	if kind == core.KindInternal {
		p.log.Error().Err(err).Msg("command failed")
	}
	return Response{
		Error: &core.ErrorEvent{
			Message: core.PublicMessage(err),
			Code:    kind.Code(),
		},
	}
}
