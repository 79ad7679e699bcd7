package reaper

import (
	"context"
	"fmt"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Rooms lists the rooms a sweep visits
type Rooms interface {
	ListRoomsByStatus(statuses ...core.RoomStatus) ([]storage.RoomRecord, error)
}

// Lifecycle performs the removals a sweep decides on
type Lifecycle interface {
	Reap(roomID string, judge service.Judge) (service.ReapOutcome, error)
	CleanupIdlePlayers(idle time.Duration) (*service.CleanupResult, error)
	AnnounceRemoved(codes []string)
}

type Config struct {
	Interval     time.Duration
	FinishedIdle time.Duration
	RoomIdle     time.Duration
	PlayerIdle   time.Duration
}

// Result summarizes one sweep
type Result struct {
	Checked    int                   `json:"checked"`
	Removed    []string              `json:"removed"`
	Reconciled int                   `json:"reconciled"`
	Players    service.CleanupResult `json:"players"`
}

// Reaper periodically removes empty and stale rooms
type Reaper struct {
	cfg       Config
	rooms     Rooms
	lifecycle Lifecycle
	scheduler gocron.Scheduler
	now       func() time.Time
	log       zerolog.Logger
}

func New(cfg Config, rooms Rooms, lifecycle Lifecycle, logger zerolog.Logger) *Reaper {
	return &Reaper{
		cfg:       cfg,
		rooms:     rooms,
		lifecycle: lifecycle,
		now:       time.Now,
		log:       logger.With().Str("component", "reaper").Logger(),
	}
}

// Start schedules the sweep. A run that overlaps the previous one is rescheduled.
func (r *Reaper) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error().Err(err).Msg("sweep failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("room-reaper"),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.Start()
	r.scheduler = s
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("reaper started")
	return nil
}

// Stop waits for a running sweep and stops the scheduler
func (r *Reaper) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

// Sweep runs one pass over idle players and every room
func (r *Reaper) Sweep(ctx context.Context) (*Result, error) {
	res := &Result{Removed: []string{}}

	if r.cfg.PlayerIdle > 0 {
		players, err := r.lifecycle.CleanupIdlePlayers(r.cfg.PlayerIdle)
		if err != nil {
			return nil, fmt.Errorf("cleanup idle players: %w", err)
		}
		res.Players = *players
	}

	rooms, err := r.rooms.ListRoomsByStatus(core.StatusWaiting, core.StatusPlaying, core.StatusFinished)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	judge := r.judge(r.now())
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			break
		}
		res.Checked++

		out, err := r.lifecycle.Reap(room.ID, judge)
		if err != nil {
			// the room may have been removed concurrently
			r.log.Debug().Err(err).Str("room_id", room.ID).Msg("reap room")
			continue
		}
		if out.Removed {
			res.Removed = append(res.Removed, out.Code)
			r.log.Info().Str("code", out.Code).Str("reason", out.Reason).Msg("room reaped")
		}
		if out.Reconciled {
			res.Reconciled++
		}
	}

	r.lifecycle.AnnounceRemoved(res.Removed)

	r.log.Debug().Int("checked", res.Checked).Int("removed", len(res.Removed)).Int("reconciled", res.Reconciled).Msg("sweep done")
	return res, nil
}

func (r *Reaper) judge(now time.Time) service.Judge {
	return func(room *storage.RoomRecord, online int) string {
		switch {
		case online == 0:
			return "empty"
		case room.Status == core.StatusWaiting && room.EndedAt != nil &&
			r.cfg.FinishedIdle > 0 && now.Sub(lastActive(room)) > r.cfg.FinishedIdle:
			return "finished_idle"
		case room.Status != core.StatusPlaying &&
			r.cfg.RoomIdle > 0 && now.Sub(room.UpdatedAt) > r.cfg.RoomIdle:
			return "idle"
		}
		return ""
	}
}

// lastActive is the later of the game end and the last membership change
func lastActive(room *storage.RoomRecord) time.Time {
	if room.EndedAt != nil && room.EndedAt.After(room.UpdatedAt) {
		return *room.EndedAt
	}
	return room.UpdatedAt
}
