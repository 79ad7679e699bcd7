package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arcade/internal/client/display"
	"arcade/internal/client/session"
)

func (r *Registry) registerLobbyCommands() {
	r.Register(&Command{
		Name:        "rooms",
		ShortName:   "ls",
		Description: "List active rooms",
		Usage:       "rooms [shared|competitive]",
		Handler:     roomsHandler,
	})

	r.Register(&Command{
		Name:        "room",
		ShortName:   "rm",
		Description: "Show one room with recent games",
		Usage:       "room [code] [records]",
		Handler:     roomHandler,
	})

	r.Register(&Command{
		Name:        "stats",
		ShortName:   "st",
		Description: "Show recorded results for a session",
		Usage:       "stats [sessionId]",
		Handler:     statsHandler,
	})

	r.Register(&Command{
		Name:        "top",
		ShortName:   "t",
		Description: "Show the leaderboard",
		Usage:       "top [shared|competitive] [limit]",
		Handler:     leaderboardHandler,
	})

	r.Register(&Command{
		Name:        "token",
		ShortName:   "k",
		Description: "Set or clear the admin bearer token",
		Usage:       "token [jwt]",
		Handler:     tokenHandler,
	})

	r.Register(&Command{
		Name:        "cleanup",
		ShortName:   "gc",
		Description: "Run a room sweep now (admin)",
		Usage:       "cleanup",
		Handler:     cleanupHandler,
	})
}

func roomsHandler(s *session.Session, args []string) error {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	resp, err := s.Client.ListRooms(mode)
	if err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No active rooms")
		return nil
	}
	fmt.Printf("%s%-8s %-12s %-9s %-8s %s%s\n", display.Cyan, "Code", "Mode", "Status", "Online", "Players", display.Reset)
	for _, room := range resp.Rooms {
		names := make([]string, 0, len(room.Players))
		for _, p := range room.Players {
			names = append(names, p.DisplayName)
		}
		fmt.Printf("%-8s %-12s %-9s %-8s %s\n",
			room.Code, room.Mode, room.Status,
			fmt.Sprintf("%d/%s", room.OnlineCount, capacity(room.Capacity)),
			strings.Join(names, ", "))
	}
	return nil
}

func roomHandler(s *session.Session, args []string) error {
	code, _ := s.Room()
	records := 5
	if len(args) > 0 {
		code = strings.ToUpper(args[0])
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid record count: %s", args[1])
		}
		records = n
	}
	if code == "" {
		return errNoRoom
	}

	resp, err := s.Client.GetRoom(code, records)
	if err != nil {
		return err
	}
	if resp.Room == nil {
		return errors.New("empty response")
	}

	room := resp.Room
	fmt.Printf("%sRoom %s%s\n", display.Cyan, room.Code, display.Reset)
	fmt.Printf("  Mode:     %s\n", room.Mode)
	fmt.Printf("  Status:   %s\n", room.Status)
	fmt.Printf("  Online:   %d/%s\n", room.OnlineCount, capacity(room.Capacity))
	fmt.Printf("  Board:    %dx%d @ %dms\n", room.Settings.BoardWidth, room.Settings.BoardHeight, room.Settings.Speed)
	printRoster(s.Out, room.Players)

	if len(resp.Records) > 0 {
		fmt.Printf("%sRecent games:%s\n", display.Cyan, display.Reset)
		for _, g := range resp.Records {
			winner := "-"
			if g.WinningSessionID != nil {
				winner = *g.WinningSessionID
			}
			fmt.Printf("  %-22s %-14s score %-4d %s\n",
				g.EndReason, shorten(winner, 14), g.WinningScore,
				(time.Duration(g.DurationMs) * time.Millisecond).Round(time.Second))
		}
	}
	return nil
}

func statsHandler(s *session.Session, args []string) error {
	sessionID := s.SessionID()
	if len(args) > 0 {
		sessionID = args[0]
	}
	if sessionID == "" {
		return errors.New("no session, pass a session ID or 'connect' first")
	}

	resp, err := s.Client.PlayerStats(sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("%sStats for %s%s\n", display.Cyan, resp.SessionID, display.Reset)
	fmt.Printf("  Games:            %d\n", resp.GamesRecorded)
	fmt.Printf("  Shared games:     %d\n", resp.SharedGames)
	fmt.Printf("  Competitive wins: %d\n", resp.CompetitiveWins)
	fmt.Printf("  Best score:       %d\n", resp.BestScore)
	fmt.Printf("  Total score:      %d\n", resp.TotalScore)
	return nil
}

func leaderboardHandler(s *session.Session, args []string) error {
	mode := ""
	limit := 0
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil {
			limit = n
			continue
		}
		mode = a
	}

	resp, err := s.Client.Leaderboard(mode, limit)
	if err != nil {
		return err
	}
	if resp.Count == 0 {
		fmt.Println("No recorded games")
		return nil
	}
	for i, e := range resp.Entries {
		fmt.Printf("%3d. %-24s best %-5d games %d\n", i+1, e.SessionID, e.BestScore, e.Games)
	}
	return nil
}

func tokenHandler(s *session.Session, args []string) error {
	if len(args) == 0 {
		s.Client.SetToken("")
		fmt.Println("Admin token cleared")
		return nil
	}
	s.Client.SetToken(args[0])
	fmt.Printf("Admin token set (%s...)\n", shorten(args[0], 12))
	return nil
}

func cleanupHandler(s *session.Session, args []string) error {
	resp, err := s.Client.Cleanup()
	if err != nil {
		return err
	}
	fmt.Printf("%sSweep:%s checked %d, reconciled %d, removed %d\n",
		display.Cyan, display.Reset, resp.Checked, resp.Reconciled, len(resp.Removed))
	for _, code := range resp.Removed {
		fmt.Printf("  - %s\n", code)
	}
	return nil
}
