package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"arcade/internal/client/api"
	"arcade/internal/client/display"
	"arcade/internal/client/session"
)

// HandleFrame prints one server message and updates the session from it.
// Called from the socket reader goroutine.
func HandleFrame(s *session.Session, f api.Frame) {
	w := s.Out
	name := strings.TrimPrefix(f.Type, s.Namespace+"_")

	switch name {
	case "joined":
		var j api.Joined
		if decode(w, f, &j) {
			s.SetSessionID(j.SessionID)
			fmt.Fprintf(w, "%sSession %s bound%s\n", display.Green, j.SessionID, display.Reset)
		}

	case "pong":
		fmt.Fprintf(w, "%spong%s\n", display.Gray, display.Reset)

	case "room_created", "room_joined":
		var m api.Membership
		if decode(w, f, &m) && m.Room != nil {
			s.SetRoom(m.Room.Code, m.Room.Mode)
			fmt.Fprintf(w, "%s%s %s%s (%s, %s)\n", display.Green, name, m.Room.Code, display.Reset, m.Room.Mode, m.Room.Status)
			printRoster(w, m.Room.Players)
		}

	case "room_info":
		var room api.Room
		if decode(w, f, &room) {
			fmt.Fprintf(w, "%sRoom %s%s %s/%s online %d/%s\n",
				display.Cyan, room.Code, display.Reset, room.Mode, room.Status, room.OnlineCount, capacity(room.Capacity))
			printRoster(w, room.Players)
		}

	case "player_left":
		var ev api.PlayerEvent
		if decode(w, f, &ev) {
			if ev.Player.SessionID == s.SessionID() {
				s.SetRoom("", "")
			}
			fmt.Fprintf(w, "%s%s left%s\n", display.Yellow, ev.Player.DisplayName, display.Reset)
		}

	case "game_update":
		var v api.SharedView
		if decode(w, f, &v) {
			s.SetLastTick(v.Tick)
			if s.Watching() {
				RenderShared(w, &v)
			}
		}

	case "competitive_update":
		var v api.CompetitiveView
		if decode(w, f, &v) {
			s.SetLastTick(v.Tick)
			if s.Watching() {
				RenderCompetitive(w, &v, s.SessionID())
			}
		}

	case "game_ended":
		var ev api.GameEnded
		if decode(w, f, &ev) {
			winner := "-"
			if ev.Winner != nil {
				winner = *ev.Winner
			}
			fmt.Fprintf(w, "%sGame over%s: %s, winner %s, score %d\n",
				display.Magenta, display.Reset, ev.EndReason, winner, ev.Score)
		}

	case "error":
		var e struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if decode(w, f, &e) {
			fmt.Fprintf(w, "%s[%s] %s%s\n", display.Red, e.Code, e.Message, display.Reset)
		}

	default:
		fmt.Fprintf(w, "%s%s%s %s\n", display.Cyan, name, display.Reset, string(f.Data))
	}
}

func decode(w io.Writer, f api.Frame, v any) bool {
	if err := json.Unmarshal(f.Data, v); err != nil {
		fmt.Fprintf(w, "%sbad %s payload: %v%s\n", display.Red, f.Type, err, display.Reset)
		return false
	}
	return true
}

func printRoster(w io.Writer, players []api.Player) {
	for _, p := range players {
		flags := ""
		if p.IsHost {
			flags += " host"
		}
		if p.Ready {
			flags += " ready"
		}
		if !p.Online {
			flags += " offline"
		}
		fmt.Fprintf(w, "  %-16s %s%s\n", p.DisplayName, p.Color, flags)
	}
}

func capacity(n int) string {
	if n == 0 {
		return "∞"
	}
	return fmt.Sprint(n)
}

// RenderShared draws the cooperative board
func RenderShared(w io.Writer, v *api.SharedView) {
	g := display.NewGrid(v.Board.Width, v.Board.Height)
	if v.Food != nil {
		g.Set(v.Food.X, v.Food.Y, display.Colorize(display.Red, "*"))
	}
	for i := len(v.Snake) - 1; i >= 0; i-- {
		glyph := "o"
		if i == 0 {
			glyph = "@"
		}
		g.Set(v.Snake[i].X, v.Snake[i].Y, display.Colorize(display.Green, glyph))
	}

	status := fmt.Sprintf("tick %d  score %d  length %d  heading %s", v.Tick, v.Score, v.Length, v.Direction)
	if v.AwaitingFirstInput {
		status += "  (waiting for first vote)"
	}
	fmt.Fprintln(w, status)
	g.Render(w)
}

// RenderCompetitive draws every snake; the local player's head is '#'
func RenderCompetitive(w io.Writer, v *api.CompetitiveView, self string) {
	g := display.NewGrid(v.Board.Width, v.Board.Height)

	ids := make([]string, 0, len(v.Snakes))
	for id := range v.Snakes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if f := v.Food[id]; f != nil {
			g.Set(f.X, f.Y, display.Colorize(display.Red, "*"))
		}
	}

	var scores []string
	for seat, id := range ids {
		sv := v.Snakes[id]
		color := display.SnakeColors[seat%len(display.SnakeColors)]
		if !sv.Alive {
			color = display.Gray
		}
		for i := len(sv.Body) - 1; i >= 0; i-- {
			glyph := "o"
			if i == 0 {
				glyph = "@"
				if id == self {
					glyph = "#"
				}
			}
			g.Set(sv.Body[i].X, sv.Body[i].Y, display.Colorize(color, glyph))
		}
		scores = append(scores, fmt.Sprintf("%s%s%s %d", color, shorten(id, 10), display.Reset, sv.Score))
	}

	fmt.Fprintf(w, "tick %d  %s\n", v.Tick, strings.Join(scores, "  "))
	g.Render(w)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
