// Package main implements an interactive debugging client for the arcade room server.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"arcade/internal/client/commands"
	"arcade/internal/client/display"
	"arcade/internal/client/session"

	"github.com/chzyer/readline"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Server base URL")
	namespace := flag.String("namespace", "snake", "Event namespace the server uses")
	flag.Parse()

	s := session.New(*apiURL)
	s.Namespace = *namespace

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("arcade"),
		HistoryFile:     ".arcade_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	// Websocket events arrive while the prompt is active
	s.Out = rl.Stdout()

	fmt.Printf("%sArcade Debug Client%s\n", display.Cyan, display.Reset)
	fmt.Printf("%sAPI: %s%s\n", display.Cyan, s.APIBaseURL, display.Reset)
	fmt.Printf("Type 'help' for commands\n\n")

	registry := commands.NewRegistry(s)

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}

	if s.Socket != nil {
		s.Socket.Close()
	}
}

func buildPrompt(s *session.Session) string {
	var parts []string

	if name := s.DisplayName(); name != "" {
		parts = append(parts, display.Colorize(display.Magenta, name))
	}
	if code, mode := s.Room(); code != "" {
		parts = append(parts, display.Colorize(display.White, code)+display.Colorize(display.Gray, "/"+mode))
	}
	if !s.Connected() {
		parts = append(parts, display.Colorize(display.Red, "offline"))
	}

	prompt := "arcade"
	if len(parts) > 0 {
		prompt += display.Yellow + " [" + display.Reset + strings.Join(parts, " ") + display.Yellow + "]"
	}
	return display.Prompt(prompt)
}
