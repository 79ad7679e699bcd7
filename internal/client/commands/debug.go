package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"arcade/internal/client/display"
	"arcade/internal/client/session"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health",
		Usage:       "health",
		Handler:     healthHandler,
	})

	r.Register(&Command{
		Name:        "url",
		ShortName:   "/",
		Description: "Set API base URL",
		Usage:       "url [apiUrl]",
		Handler:     urlHandler,
	})

	r.Register(&Command{
		Name:        "raw",
		ShortName:   ":",
		Description: "Send raw API request",
		Usage:       "raw <method> <path> [json-body]",
		Handler:     rawRequestHandler,
	})

	r.Register(&Command{
		Name:        "send",
		ShortName:   ">",
		Description: "Send a raw websocket message",
		Usage:       "send <type> [json-data]",
		Handler:     sendHandler,
	})

	r.Register(&Command{
		Name:        "ping",
		ShortName:   "p",
		Description: "Ping over the websocket",
		Usage:       "ping",
		Handler:     pingHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		ShortName:   "-",
		Description: "Clear screen",
		Usage:       "clear",
		Handler:     clearHandler,
	})
}

func healthHandler(s *session.Session, args []string) error {
	resp, err := s.Client.Health()
	if err != nil {
		return err
	}

	fmt.Printf("%sServer Health:%s\n", display.Cyan, display.Reset)
	fmt.Printf("  Status:      %s\n", resp.Status)
	fmt.Printf("  Time:        %s\n", time.Unix(resp.Time, 0).Format("2006-01-02 15:04:05"))
	if resp.Storage != "" {
		fmt.Printf("  Storage:     %s\n", resp.Storage)
	}
	fmt.Printf("  Connections: %d\n", resp.Connections)
	return nil
}

func urlHandler(s *session.Session, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Current API URL: %s\n", s.APIBaseURL)
		return nil
	}

	url := args[0]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	s.APIBaseURL = url
	s.Client.SetBaseURL(url)
	fmt.Printf("API URL set to: %s\n", url)
	if s.Connected() {
		fmt.Printf("%sWebsocket still bound to the previous server; reconnect to switch%s\n", display.Yellow, display.Reset)
	}
	return nil
}

func rawRequestHandler(s *session.Session, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: raw <method> <path> [json-body]")
	}

	method := strings.ToUpper(args[0])
	path := args[1]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	body := ""
	if len(args) > 2 {
		body = strings.Join(args[2:], " ")
	}
	return s.Client.RawRequest(method, path, body)
}

func sendHandler(s *session.Session, args []string) error {
	if err := requireSocket(s); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("usage: send <type> [json-data]")
	}

	var data any
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
	}
	return s.Socket.Send(args[0], data)
}

func pingHandler(s *session.Session, args []string) error {
	if err := requireSocket(s); err != nil {
		return err
	}
	return s.Socket.Send("ping", nil)
}

func clearHandler(s *session.Session, args []string) error {
	cmd := exec.Command("clear")
	cmd.Stdout = os.Stdout
	if err := cmd.Run(); err != nil {
		fmt.Print("\033[H\033[2J")
	}
	return nil
}
