// Package main runs the arcade room server: websocket game transport, REST lobby queries
// and the background room reaper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcade/cmd/arcade-server/cli"
	"arcade/internal/server/config"
	"arcade/internal/server/game"
	"arcade/internal/server/http"
	"arcade/internal/server/processor"
	"arcade/internal/server/reaper"
	"arcade/internal/server/registry"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	// Check for CLI database commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Dev {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.PIDPath != "" {
		cleanup, err := managePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			return fmt.Errorf("manage PID file: %w", err)
		}
		defer cleanup()
		log.Info().Str("path", cfg.PIDPath).Bool("lock", cfg.PIDLock).Msg("PID file created")
	}

	// 1. Storage
	log.Info().Str("path", cfg.StoragePath).Msg("initializing storage")
	store, err := storage.NewStore(cfg.StoragePath, cfg.Dev, log)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := store.InitDB(); err != nil {
		store.Close()
		return fmt.Errorf("initialize schema: %w", err)
	}

	// 2. Registry, fan-out and engine
	reg := registry.New(log)
	outbox := service.NewOutbox(cfg.OutboxWorkers, log)
	roster := service.NewRoster(store, reg, outbox, cfg.Namespace, log)
	engine := game.New(game.Config{
		Namespace:      cfg.Namespace,
		FirstInputWait: cfg.FirstInputWait,
		EndGrace:       cfg.EndGrace,
	}, roster, roster, store, log)

	// 3. Room lifecycle
	svc := service.New(store, reg, engine, roster, outbox, service.Config{
		Namespace: cfg.Namespace,
		Defaults:  cfg.Game,
	}, log)
	if err := svc.Recover(); err != nil {
		svc.Shutdown(gracefulShutdownTimeout)
		return fmt.Errorf("recover state: %w", err)
	}

	// 4. Reaper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := reaper.New(reaper.Config{
		Interval:     cfg.ReaperInterval,
		FinishedIdle: cfg.FinishedIdle,
		RoomIdle:     cfg.RoomIdle,
		PlayerIdle:   cfg.PlayerIdle,
	}, store, svc, log)
	if err := sweeper.Start(ctx); err != nil {
		svc.Shutdown(gracefulShutdownTimeout)
		return fmt.Errorf("start reaper: %w", err)
	}

	// 5. Transport
	proc := processor.New(svc, log)
	app := http.NewFiberApp(proc, svc, sweeper, http.Config{
		DevMode:      cfg.Dev,
		AdminSecret:  cfg.AdminSecret,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	listenErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("namespace", string(cfg.Namespace)).
			Bool("dev", cfg.Dev).
			Bool("admin", cfg.AdminSecret != "").
			Msg("arcade server listening")
		listenErr <- app.Listen(addr)
	}()

	// Wait for an interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-listenErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	if err := sweeper.Stop(); err != nil {
		log.Warn().Err(err).Msg("reaper stop")
	}

	// Stops game loops and timers, flushes events, closes storage
	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("service shutdown")
	}

	log.Info().Msg("server exited")
	return runErr
}
