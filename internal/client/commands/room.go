package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"arcade/internal/client/api"
	"arcade/internal/client/display"
	"arcade/internal/client/session"

	"github.com/google/uuid"
)

var errNoRoom = errors.New("not in a room, use 'create' or 'join' first")

func (r *Registry) registerRoomCommands() {
	r.Register(&Command{
		Name:        "connect",
		ShortName:   "c",
		Description: "Open the websocket and bind a session",
		Usage:       "connect [sessionId]",
		Handler:     connectHandler,
	})

	r.Register(&Command{
		Name:        "create",
		ShortName:   "n",
		Description: "Create a room",
		Usage:       "create <name> <shared|competitive> [width height tickMs]",
		Handler:     createHandler,
	})

	r.Register(&Command{
		Name:        "join",
		ShortName:   "j",
		Description: "Join a room by code",
		Usage:       "join <name> <code>",
		Handler:     joinHandler,
	})

	r.Register(&Command{
		Name:        "ready",
		ShortName:   "r",
		Description: "Toggle ready in the current room",
		Usage:       "ready",
		Handler:     roomAction("toggle_ready"),
	})

	r.Register(&Command{
		Name:        "start",
		ShortName:   "s",
		Description: "Start the game (host only)",
		Usage:       "start",
		Handler:     roomAction("start_game"),
	})

	r.Register(&Command{
		Name:        "vote",
		ShortName:   "v",
		Description: "Vote a direction in a shared game",
		Usage:       "vote <up|down|left|right|w|a|s|d>",
		Handler:     directionAction("vote"),
	})

	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Steer your snake in a competitive game",
		Usage:       "move <up|down|left|right|w|a|s|d>",
		Handler:     directionAction("move"),
	})

	r.Register(&Command{
		Name:        "leave",
		ShortName:   "l",
		Description: "Leave the current room",
		Usage:       "leave",
		Handler:     leaveHandler,
	})

	r.Register(&Command{
		Name:        "info",
		ShortName:   "i",
		Description: "Request room info over the websocket",
		Usage:       "info",
		Handler:     roomAction("get_room_info"),
	})

	r.Register(&Command{
		Name:        "watch",
		ShortName:   "w",
		Description: "Toggle live board rendering",
		Usage:       "watch [on|off]",
		Handler:     watchHandler,
	})
}

func requireSocket(s *session.Session) error {
	if !s.Connected() {
		return errors.New("not connected, use 'connect' first")
	}
	return nil
}

func connectHandler(s *session.Session, args []string) error {
	sessionID := s.SessionID()
	if len(args) > 0 {
		sessionID = args[0]
	}
	if sessionID == "" {
		sessionID = "cli-" + uuid.NewString()[:8]
	}

	if !s.Connected() {
		wsURL := s.Client.WebSocketURL()
		sock, err := api.Dial(wsURL, func(f api.Frame) { HandleFrame(s, f) })
		if err != nil {
			return err
		}
		s.Socket = sock
		fmt.Printf("%sConnected to %s%s\n", display.Green, wsURL, display.Reset)

		go func() {
			err := sock.Err()
			fmt.Fprintf(s.Out, "%sDisconnected%s", display.Yellow, display.Reset)
			if err != nil {
				fmt.Fprintf(s.Out, ": %v", err)
			}
			fmt.Fprintln(s.Out)
		}()
	}

	return s.Socket.Send("join", map[string]string{"sessionId": sessionID})
}

func createHandler(s *session.Session, args []string) error {
	if err := requireSocket(s); err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: create <name> <shared|competitive> [width height tickMs]")
	}

	req := map[string]any{
		"displayName": args[0],
		"mode":        args[1],
	}

	if len(args) > 2 {
		settings := map[string]int{}
		keys := []string{"boardWidth", "boardHeight", "speed"}
		for i, raw := range args[2:] {
			if i >= len(keys) {
				break
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %s", keys[i], raw)
			}
			settings[keys[i]] = n
		}
		req["gameSettings"] = settings
	}

	s.SetDisplayName(args[0])
	return s.Socket.Send("create_room", req)
}

func joinHandler(s *session.Session, args []string) error {
	if err := requireSocket(s); err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: join <name> <code>")
	}

	s.SetDisplayName(args[0])
	return s.Socket.Send("join_room", map[string]string{
		"displayName": args[0],
		"roomCode":    strings.ToUpper(args[1]),
	})
}

// roomAction sends a message whose only field is the current room code
func roomAction(msgType string) func(*session.Session, []string) error {
	return func(s *session.Session, args []string) error {
		if err := requireSocket(s); err != nil {
			return err
		}
		code, _ := s.Room()
		if len(args) > 0 {
			code = strings.ToUpper(args[0])
		}
		if code == "" {
			return errNoRoom
		}
		return s.Socket.Send(msgType, map[string]string{"roomCode": code})
	}
}

func directionAction(msgType string) func(*session.Session, []string) error {
	return func(s *session.Session, args []string) error {
		if err := requireSocket(s); err != nil {
			return err
		}
		if len(args) == 0 {
			return fmt.Errorf("usage: %s <direction>", msgType)
		}
		dir, err := parseDirection(args[0])
		if err != nil {
			return err
		}
		code, _ := s.Room()
		if code == "" {
			return errNoRoom
		}
		return s.Socket.Send(msgType, map[string]string{
			"roomCode":  code,
			"direction": dir,
		})
	}
}

func leaveHandler(s *session.Session, args []string) error {
	if err := roomAction("leave_room")(s, args); err != nil {
		return err
	}
	s.SetRoom("", "")
	return nil
}

func watchHandler(s *session.Session, args []string) error {
	on := !s.Watching()
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			on = true
		case "off", "0", "false":
			on = false
		default:
			return fmt.Errorf("usage: watch [on|off]")
		}
	}
	s.SetWatching(on)
	fmt.Printf("Board rendering: %v\n", on)
	return nil
}

func parseDirection(in string) (string, error) {
	switch strings.ToLower(in) {
	case "up", "w", "k":
		return "up", nil
	case "down", "s", "j":
		return "down", nil
	case "left", "a", "h":
		return "left", nil
	case "right", "d", "l":
		return "right", nil
	}
	return "", fmt.Errorf("unknown direction: %s", in)
}
