// Package config loads server settings from flags, the environment and an optional .env file.
// Flags win over environment variables, which win over built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"arcade/internal/server/core"

	"github.com/joho/godotenv"
)

const envPrefix = "ARCADE_"

type Config struct {
	APIHost     string
	APIPort     int
	Dev         bool
	LogLevel    string
	StoragePath string
	PIDPath     string
	PIDLock     bool
	AdminSecret string

	Namespace      core.Namespace
	Game           core.GameSettings
	FirstInputWait time.Duration
	EndGrace       time.Duration
	OutboxWorkers  int
	MessageRate    float64
	MessageBurst   int

	ReaperInterval time.Duration
	FinishedIdle   time.Duration
	RoomIdle       time.Duration
	PlayerIdle     time.Duration
}

// Load parses args (without the program name). A missing envFile is not an error.
func Load(args []string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	def := core.DefaultGameSettings()
	cfg := &Config{}
	fs := flag.NewFlagSet("arcade-server", flag.ContinueOnError)

	fs.StringVar(&cfg.APIHost, "api-host", envString("API_HOST", "localhost"), "API server host")
	fs.IntVar(&cfg.APIPort, "api-port", envInt("API_PORT", 8080), "API server port")
	fs.BoolVar(&cfg.Dev, "dev", envBool("DEV", false), "Development mode (console logs, relaxed rate limits)")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.StoragePath, "storage-path", envString("STORAGE_PATH", "arcade.db"), "Path to SQLite database file")
	fs.StringVar(&cfg.PIDPath, "pid", envString("PID", ""), "Optional path to write PID file")
	fs.BoolVar(&cfg.PIDLock, "pid-lock", envBool("PID_LOCK", false), "Lock PID file to allow only one instance (requires -pid)")
	fs.StringVar(&cfg.AdminSecret, "admin-secret", envString("ADMIN_SECRET", ""), "HS256 secret for admin tokens (admin API disabled if empty)")

	var ns string
	fs.StringVar(&ns, "namespace", envString("NAMESPACE", string(core.DefaultNamespace)), "Event name prefix")
	fs.IntVar(&cfg.Game.Speed, "tick", envInt("TICK_MS", def.Speed), "Default tick interval in milliseconds")
	fs.IntVar(&cfg.Game.BoardWidth, "board-width", envInt("BOARD_WIDTH", def.BoardWidth), "Default board width")
	fs.IntVar(&cfg.Game.BoardHeight, "board-height", envInt("BOARD_HEIGHT", def.BoardHeight), "Default board height")
	fs.IntVar(&cfg.Game.VoteWindow, "vote-window", envInt("VOTE_WINDOW_MS", def.VoteWindow), "Default vote window in milliseconds")
	fs.DurationVar(&cfg.FirstInputWait, "first-input-wait", envDuration("FIRST_INPUT_WAIT", 10*time.Second), "How long a shared game holds for its first vote")
	fs.DurationVar(&cfg.EndGrace, "end-grace", envDuration("END_GRACE", 3*time.Second), "Delay before a finished room returns to waiting")
	fs.IntVar(&cfg.OutboxWorkers, "outbox-workers", envInt("OUTBOX_WORKERS", 4), "Event fan-out workers")
	fs.Float64Var(&cfg.MessageRate, "ws-rate", envFloat("WS_RATE", 20), "Inbound websocket messages per second per connection")
	fs.IntVar(&cfg.MessageBurst, "ws-burst", envInt("WS_BURST", 40), "Inbound websocket burst per connection")

	fs.DurationVar(&cfg.ReaperInterval, "reaper-interval", envDuration("REAPER_INTERVAL", time.Minute), "Room sweep interval")
	fs.DurationVar(&cfg.FinishedIdle, "finished-idle", envDuration("FINISHED_IDLE", 10*time.Minute), "Remove rooms idle this long after a game")
	fs.DurationVar(&cfg.RoomIdle, "room-idle", envDuration("ROOM_IDLE", 2*time.Hour), "Remove rooms without updates for this long")
	fs.DurationVar(&cfg.PlayerIdle, "player-idle", envDuration("PLAYER_IDLE", 5*time.Minute), "Remove offline players after this long")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Namespace = core.Namespace(ns)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PIDLock && c.PIDPath == "" {
		return errors.New("-pid-lock flag requires the -pid flag to be set")
	}
	if c.StoragePath == "" {
		return errors.New("storage path is required")
	}
	if c.ReaperInterval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	if c.AdminSecret != "" && len(c.AdminSecret) < 32 {
		return errors.New("admin secret must be at least 32 characters")
	}
	if err := core.Validate(c.Game); err != nil {
		return fmt.Errorf("game defaults: %w", err)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(envPrefix + key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(envPrefix+key), 64); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(envPrefix + key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(envPrefix + key)); err == nil {
		return v
	}
	return def
}
