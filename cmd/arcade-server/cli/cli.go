package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"arcade/internal/server/core"
	srvhttp "arcade/internal/server/http"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Run is the entry point for the CLI mini-app
func Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, rooms, records, token")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:])
	case "delete":
		return runDelete(args[1:])
	case "rooms":
		return runRooms(args[1:])
	case "records":
		return runRecords(args[1:])
	case "token":
		return runToken(args[1:])
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func openStore(path string) (*storage.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	store, err := storage.NewStore(path, false, zerolog.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Printf("Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return err
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Printf("Database deleted: %s\n", *path)
	return nil
}

func runRooms(args []string) error {
	fs := flag.NewFlagSet("rooms", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	mode := fs.String("mode", "", "Filter by mode (shared, competitive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	rooms, err := store.ListRoomsByStatus(core.StatusWaiting, core.StatusPlaying, core.StatusFinished)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Code\tMode\tStatus\tOnline\tPlayers\tHost\tUpdated")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	shown := 0
	for _, r := range rooms {
		if *mode != "" && string(r.Mode) != *mode {
			continue
		}
		online, err := store.CountOnline(r.ID)
		if err != nil {
			return fmt.Errorf("count online: %w", err)
		}
		total, err := store.CountPlayers(r.ID)
		if err != nil {
			return fmt.Errorf("count players: %w", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Code, r.Mode, r.Status, online, total,
			shorten(r.HostSessionID, 12),
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
		shown++
	}
	w.Flush()

	fmt.Printf("\nFound %d room(s)\n", shown)
	return nil
}

func runRecords(args []string) error {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	roomID := fs.String("room", "", "Room ID to filter (optional, * for all)")
	sessionID := fs.String("session", "", "Winning session ID to filter (optional, * for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.QueryRecords(*roomID, *sessionID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Room\tMode\tWinner\tScore\tReason\tDuration\tEnded")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, g := range records {
		winner := "-"
		if g.WinningSessionID != nil {
			winner = shorten(*g.WinningSessionID, 12)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			shorten(g.RoomID, 8),
			g.Mode,
			winner,
			g.WinningScore,
			g.EndReason,
			(time.Duration(g.DurationMs) * time.Millisecond).Round(time.Second),
			g.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nFound %d record(s)\n", len(records))
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ARCADE_ADMIN_SECRET"), "Admin secret (defaults to ARCADE_ADMIN_SECRET)")
	subject := fs.String("subject", "admin", "Token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	interactive := fs.Bool("interactive", false, "Prompt for the secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *interactive {
		fmt.Fprint(os.Stderr, "Enter admin secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		*secret = string(raw)
	}

	if len(*secret) < 32 {
		return fmt.Errorf("admin secret must be at least 32 characters")
	}

	token, err := srvhttp.IssueAdminToken([]byte(*secret), *subject, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
