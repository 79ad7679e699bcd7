package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/registry"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
)

const (
	CodeLength         = 6
	CompetitiveSeats   = 2
	MaxLeaderboardSize = 100
)

// palette is indexed by join order
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#bfef45",
}

type Config struct {
	Namespace core.Namespace
	Defaults  core.GameSettings
}

// Service is the room lifecycle manager. Every membership change goes through it,
// serialized by mu.
type Service struct {
	mu       sync.Mutex
	store    *storage.Store
	registry *registry.Registry
	engine   *game.Engine
	roster   *Roster
	outbox   *Outbox
	ns       core.Namespace
	defaults core.GameSettings
	log      zerolog.Logger
}

// New creates a service instance
func New(store *storage.Store, reg *registry.Registry, engine *game.Engine, roster *Roster, outbox *Outbox, cfg Config, logger zerolog.Logger) *Service {
	s := &Service{
		store:    store,
		registry: reg,
		engine:   engine,
		roster:   roster,
		outbox:   outbox,
		ns:       cfg.Namespace,
		defaults: cfg.Defaults,
		log:      logger.With().Str("component", "service").Logger(),
	}
	reg.OnPrune(s.transportLost)
	return s
}

// transportLost handles a session whose last connection died on a write
func (s *Service) transportLost(sessionID string) {
	if s.registry.Connected(sessionID) {
		return
	}
	s.log.Debug().Str("session_id", sessionID).Msg("transport lost")
	s.Disconnect(sessionID)
}

// Namespace returns the event prefix used by this service
func (s *Service) Namespace() core.Namespace {
	return s.ns
}

// Registry exposes the connection registry to the transport
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// Shutdown stops every game loop, flushes pending events and closes storage
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.engine.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	s.outbox.Shutdown(timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Recover resets directory state left behind by a previous process.
// No connection survives a restart and no in-memory game either.
func (s *Service) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.MarkAllOffline()
	if err != nil {
		return fmt.Errorf("mark players offline: %w", err)
	}

	rooms, err := s.store.ListRoomsByStatus(core.StatusPlaying, core.StatusFinished)
	if err != nil {
		return fmt.Errorf("list interrupted rooms: %w", err)
	}
	waiting := core.StatusWaiting
	for _, r := range rooms {
		if err := s.store.UpdateRoom(r.ID, storage.RoomUpdate{Status: &waiting}); err != nil {
			return fmt.Errorf("reset room %s: %w", r.Code, err)
		}
		if err := s.store.ResetReady(r.ID); err != nil {
			return fmt.Errorf("reset ready %s: %w", r.Code, err)
		}
	}

	s.log.Info().Int64("players_offline", n).Int("rooms_reset", len(rooms)).Msg("recovered directory state")
	return nil
}

// generateRoomCode creates a unique room code with bounded collision retry
func (s *Service) generateRoomCode() (string, error) {
	const maxAttempts = 10

	for i := 0; i < maxAttempts; i++ {
		code, err := randomCode(CodeLength)
		if err != nil {
			return "", err
		}

		exists, err := s.store.RoomCodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	// After max attempts, fail and don't risk collision
	return "", fmt.Errorf("failed to generate unique room code after %d attempts", maxAttempts)
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomCode draws n characters uniformly from codeAlphabet
func randomCode(n int) (string, error) {
	// largest multiple of the alphabet size that fits a byte
	const limit = 256 - 256%len(codeAlphabet)

	code := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == n {
				break
			}
		}
	}
	return string(code), nil
}

// lookupRoom resolves a user-supplied room code
func (s *Service) lookupRoom(code string) (*storage.RoomRecord, error) {
	room, err := s.store.GetRoomByCode(core.NormalizeCode(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFound("room %s not found", core.NormalizeCode(code))
	}
	return room, err
}

func (s *Service) roomSettings(room *storage.RoomRecord) core.GameSettings {
	return decodeSettings(room.Settings).Merge(s.defaults)
}

// members returns the current roster view of a room
func (s *Service) members(roomID string, host string) []PlayerView {
	players, err := s.store.ListPlayers(roomID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("list members")
		return nil
	}
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView(p, host))
	}
	return views
}
