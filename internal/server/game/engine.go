package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Roster is the membership side the engine reads from and reports to
type Roster interface {
	OnlineSessions(roomID string) ([]string, error)
	GameFinished(result Result)
	GameReset(roomID string)
}

// Notifier fans an event out to every member of a room
type Notifier interface {
	NotifyRoom(roomID string, ev core.Event)
}

// Recorder persists terminal game summaries
type Recorder interface {
	RecordGame(record storage.GameRecord) error
}

type Config struct {
	Namespace      core.Namespace
	FirstInputWait time.Duration
	EndGrace       time.Duration
	Seed           uint64 // 0 seeds from the runtime source
	Manual         bool   // no tick goroutines, callers drive Step
}

type phase int

const (
	phaseInitialized phase = iota
	phaseRunning
	phaseTerminated
)

type room struct {
	mu       sync.Mutex
	id       string
	phase    phase
	settings core.GameSettings
	state    *State
	rng      *rand.Rand

	gen        uint64 // bumped on start and discard, stale timers compare against it
	window     uint64 // bumped on every vote window
	cancel     context.CancelFunc
	voteTimer  *time.Timer
	graceTimer *time.Timer

	startedAt          time.Time
	firstInputDeadline time.Time
}

func (r *room) stopLoop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *room) stopVote() {
	if r.voteTimer != nil {
		r.voteTimer.Stop()
		r.voteTimer = nil
	}
}

func (r *room) stopGrace() {
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
}

// finish carries a terminated game from under the room lock to finalize
type finish struct {
	roomID  string
	gen     uint64
	mode    core.Mode
	reason  core.EndReason
	winner  *string
	started time.Time
	shared  *SharedState
	snakes  map[string]*Snake
}

// Engine owns the in-memory game of every room and drives their tick loops
type Engine struct {
	mu    sync.Mutex
	rooms map[string]*room
	seeds atomic.Uint64

	roster   Roster
	notifier Notifier
	recorder Recorder
	cfg      Config
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, roster Roster, notifier Notifier, recorder Recorder, logger zerolog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		rooms:    make(map[string]*room),
		roster:   roster,
		notifier: notifier,
		recorder: recorder,
		cfg:      cfg,
		log:      logger.With().Str("component", "engine").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *Engine) newRNG() *rand.Rand {
	if e.cfg.Seed != 0 {
		return rand.New(rand.NewPCG(e.cfg.Seed, e.seeds.Add(1)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (e *Engine) get(roomID string) *room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[roomID]
}

func (e *Engine) getOrCreate(roomID string) *room {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rooms[roomID]
	if !ok {
		r = &room{id: roomID, rng: e.newRNG()}
		e.rooms[roomID] = r
	}
	return r
}

// Prepare registers the placeholder of a new room, holding its settings only
func (e *Engine) Prepare(roomID string, settings core.GameSettings) {
	r := e.getOrCreate(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phaseRunning {
		r.settings = settings
	}
}

// Start initializes the game for the given online sessions and starts its tick loop
func (e *Engine) Start(roomID string, mode core.Mode, settings core.GameSettings, online []string) (any, error) {
	rl, ok := modeRules[mode]
	if !ok {
		return nil, core.Validation("unknown mode %q", mode)
	}
	if len(online) < rl.minPlayers {
		return nil, core.Conflict("%s mode needs at least %d online players", mode, rl.minPlayers)
	}

	r := e.getOrCreate(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == phaseRunning {
		return nil, core.Conflict("game already in progress")
	}

	r.stopGrace()
	r.stopVote()
	r.gen++
	r.settings = settings
	r.state = rl.init(settings, online, r.rng)
	r.phase = phaseRunning
	r.startedAt = time.Now()
	r.firstInputDeadline = r.startedAt.Add(e.cfg.FirstInputWait)

	if !e.cfg.Manual {
		ctx, cancel := context.WithCancel(e.ctx)
		r.cancel = cancel
		e.wg.Add(1)
		go e.loop(ctx, roomID, settings.TickInterval())
	}

	e.log.Info().Str("room_id", roomID).Str("mode", string(mode)).Int("players", len(online)).Msg("game started")
	return rl.view(roomID, r.state), nil
}

func (e *Engine) loop(ctx context.Context, roomID string, interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.Step(roomID) {
				return
			}
		}
	}
}

// Step runs one tick of a room. It returns false once the loop should stop.
func (e *Engine) Step(roomID string) bool {
	r := e.get(roomID)
	if r == nil {
		e.log.Warn().Str("room_id", roomID).Msg("tick for discarded room")
		return false
	}

	online := -1
	if sessions, err := e.roster.OnlineSessions(roomID); err != nil {
		e.log.Error().Err(err).Str("room_id", roomID).Msg("read online players")
	} else {
		online = len(sessions)
	}

	r.mu.Lock()
	if r.phase != phaseRunning {
		r.mu.Unlock()
		return false
	}
	if r.state == nil {
		e.log.Error().Str("room_id", roomID).Msg("running room has no game state, stopping loop")
		r.phase = phaseTerminated
		r.stopLoop()
		r.mu.Unlock()
		return false
	}

	rl := modeRules[r.state.Mode]
	out := rl.tick(r, online, time.Now())
	r.state.Tick++
	update := e.cfg.Namespace.Event(rl.event, rl.view(roomID, r.state))

	var fin *finish
	if out.ended {
		fin = e.terminate(r, out.reason, out.winner)
	}
	r.mu.Unlock()

	e.notifier.NotifyRoom(roomID, update)
	if fin != nil {
		e.finalize(fin)
		return false
	}
	return true
}

// EndGame terminates a running game
func (e *Engine) EndGame(roomID string, reason core.EndReason, winner *string) error {
	r := e.get(roomID)
	if r == nil {
		return core.NotFound("room not found")
	}

	r.mu.Lock()
	if r.phase != phaseRunning || r.state == nil {
		r.mu.Unlock()
		return core.Conflict("no game in progress")
	}
	fin := e.terminate(r, reason, winner)
	r.mu.Unlock()

	e.finalize(fin)
	return nil
}

// terminate stops the room's timers and captures the final state, r.mu must be held
func (e *Engine) terminate(r *room, reason core.EndReason, winner *string) *finish {
	r.phase = phaseTerminated
	r.state.Status = core.StatusFinished
	r.stopLoop()
	r.stopVote()

	fin := &finish{
		roomID:  r.id,
		gen:     r.gen,
		mode:    r.state.Mode,
		reason:  reason,
		winner:  winner,
		started: r.startedAt,
	}
	switch r.state.Mode {
	case core.ModeShared:
		sh := *r.state.Shared
		sh.Snake = copyPoints(sh.Snake)
		fin.shared = &sh
	case core.ModeCompetitive:
		fin.snakes = make(map[string]*Snake, len(r.state.Competitive.Snakes))
		for id, sn := range r.state.Competitive.Snakes {
			c := *sn
			fin.snakes[id] = &c
		}
	}
	return fin
}

// finalize writes records, reports the result and arms the grace reset.
// Runs without the room lock.
func (e *Engine) finalize(fin *finish) {
	online, err := e.roster.OnlineSessions(fin.roomID)
	if err != nil {
		e.log.Error().Err(err).Str("room_id", fin.roomID).Msg("read online players at game end")
	}

	res := Result{
		RoomID:      fin.roomID,
		Mode:        fin.mode,
		Reason:      fin.reason,
		Winner:      fin.winner,
		Scores:      make(map[string]int),
		Lengths:     make(map[string]int),
		DurationMs:  time.Since(fin.started).Milliseconds(),
		PlayerCount: len(online),
	}

	var records []storage.GameRecord
	now := time.Now().UTC()
	newRecord := func(winner *string, score int) storage.GameRecord {
		return storage.GameRecord{
			ID:               uuid.NewString(),
			RoomID:           fin.roomID,
			Mode:             fin.mode,
			WinningSessionID: winner,
			WinningScore:     score,
			DurationMs:       res.DurationMs,
			EndReason:        fin.reason,
			PlayerCountAtEnd: len(online),
			CreatedAt:        now,
		}
	}

	switch fin.mode {
	case core.ModeShared:
		res.Score = fin.shared.Score
		for _, id := range online {
			res.Scores[id] = fin.shared.Score
			res.Lengths[id] = len(fin.shared.Snake)
			records = append(records, newRecord(&id, fin.shared.Score))
		}
		if len(records) == 0 {
			records = append(records, newRecord(nil, fin.shared.Score))
		}
	case core.ModeCompetitive:
		for id, sn := range fin.snakes {
			res.Scores[id] = sn.Score
			res.Lengths[id] = len(sn.Body)
		}
		if fin.winner != nil {
			res.Score = res.Scores[*fin.winner]
		}
		records = append(records, newRecord(fin.winner, res.Score))
	}

	for _, rec := range records {
		if err := e.recorder.RecordGame(rec); err != nil {
			e.log.Error().Err(err).Str("room_id", fin.roomID).Msg("record game")
		}
	}

	e.roster.GameFinished(res)
	e.notifier.NotifyRoom(fin.roomID, e.cfg.Namespace.Event(core.EventGameEnded, res))

	log := e.log.Info().Str("room_id", fin.roomID).Str("reason", string(fin.reason)).Int("score", res.Score)
	if fin.winner != nil {
		log = log.Str("winner", *fin.winner)
	}
	log.Msg("game ended")

	if r := e.get(fin.roomID); r != nil {
		r.mu.Lock()
		if r.gen == fin.gen && r.phase == phaseTerminated {
			r.stopGrace()
			r.graceTimer = time.AfterFunc(e.cfg.EndGrace, func() { e.reset(fin.roomID, fin.gen) })
		}
		r.mu.Unlock()
	}
}

// reset drops the finished payload so the room is ready for a rematch
func (e *Engine) reset(roomID string, gen uint64) {
	r := e.get(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	if r.gen != gen || r.phase != phaseTerminated {
		r.mu.Unlock()
		return
	}
	r.state = nil
	r.phase = phaseInitialized
	r.graceTimer = nil
	r.mu.Unlock()

	e.roster.GameReset(roomID)
}

// PlayerLeft reacts to a member going away while a game may be running.
// online is the room's online sessions after the departure.
func (e *Engine) PlayerLeft(roomID, sessionID string, online []string) {
	r := e.get(roomID)
	if r == nil {
		return
	}

	var (
		fin    *finish
		events []core.Event
	)

	r.mu.Lock()
	if r.phase != phaseRunning || r.state == nil {
		r.mu.Unlock()
		return
	}

	switch r.state.Mode {
	case core.ModeCompetitive:
		c := r.state.Competitive
		if sn, ok := c.Snakes[sessionID]; ok && sn.Alive {
			sn.Alive = false
			delete(c.Food, sessionID)
		}
		if len(online) < 2 {
			var winner *string
			for _, id := range online {
				if sn, ok := c.Snakes[id]; ok && sn.Alive {
					w := id
					winner = &w
				}
			}
			fin = e.terminate(r, core.EndInsufficientPlayers, winner)
		}
	case core.ModeShared:
		sh := r.state.Shared
		if len(online) == 0 {
			fin = e.terminate(r, core.EndEmpty, nil)
		} else if sh.Ballot.Open() && sh.Ballot.Complete(online) {
			events = append(events, e.resolveWindow(r))
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		e.notifier.NotifyRoom(roomID, ev)
	}
	if fin != nil {
		e.finalize(fin)
	}
}

// Discard stops every timer of a room and forgets its state
func (e *Engine) Discard(roomID string) {
	e.mu.Lock()
	r, ok := e.rooms[roomID]
	delete(e.rooms, roomID)
	e.mu.Unlock()

	if !ok {
		return
	}

	r.mu.Lock()
	r.gen++
	r.stopLoop()
	r.stopVote()
	r.stopGrace()
	r.state = nil
	r.phase = phaseTerminated
	r.mu.Unlock()
}

// Snapshot returns the client view of a room's game, if one exists
func (e *Engine) Snapshot(roomID string) (any, bool) {
	r := e.get(roomID)
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil, false
	}
	return modeRules[r.state.Mode].view(roomID, r.state), true
}

// Running reports whether a room has a game in progress
func (e *Engine) Running(roomID string) bool {
	r := e.get(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseRunning
}

// Rooms returns the ids of every tracked room
func (e *Engine) Rooms() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.rooms))
	for id := range e.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every tick loop and pending timer
func (e *Engine) Shutdown(timeout time.Duration) error {
	e.cancel()

	e.mu.Lock()
	for _, r := range e.rooms {
		r.mu.Lock()
		r.gen++
		r.stopVote()
		r.stopGrace()
		r.mu.Unlock()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("engine shutdown timed out after %s", timeout)
	}
}
