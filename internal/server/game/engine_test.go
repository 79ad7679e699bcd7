package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRoster struct {
	mu       sync.Mutex
	online   map[string][]string
	finished []Result
	resets   []string
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{online: make(map[string][]string)}
}

func (f *fakeRoster) set(roomID string, sessions ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[roomID] = sessions
}

func (f *fakeRoster) OnlineSessions(roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.online[roomID]...), nil
}

func (f *fakeRoster) GameFinished(res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, res)
}

func (f *fakeRoster) GameReset(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, roomID)
}

func (f *fakeRoster) results() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Result(nil), f.finished...)
}

func (f *fakeRoster) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

func (f *fakeNotifier) NotifyRoom(_ string, ev core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) ofType(name string) []core.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Event
	for _, ev := range f.events {
		if ev.Type == string(core.DefaultNamespace)+"_"+name {
			out = append(out, ev)
		}
	}
	return out
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordGame(record storage.GameRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *mockRecorder) records() []storage.GameRecord {
	var out []storage.GameRecord
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(0).(storage.GameRecord))
	}
	return out
}

type fixture struct {
	engine   *Engine
	roster   *fakeRoster
	notifier *fakeNotifier
	recorder *mockRecorder
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		Namespace:      core.DefaultNamespace,
		FirstInputWait: time.Hour,
		EndGrace:       time.Hour,
		Seed:           1,
		Manual:         true,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	f := &fixture{
		roster:   newFakeRoster(),
		notifier: &fakeNotifier{},
		recorder: &mockRecorder{},
	}
	f.recorder.On("RecordGame", mock.Anything).Return(nil).Maybe()
	f.engine = New(cfg, f.roster, f.notifier, f.recorder, zerolog.Nop())
	t.Cleanup(func() { f.engine.Shutdown(time.Second) })
	return f
}

func testSettings() core.GameSettings {
	return core.GameSettings{Speed: 20, BoardWidth: 10, BoardHeight: 10, VoteWindow: 200}
}

func (f *fixture) start(t *testing.T, roomID string, mode core.Mode, online ...string) any {
	t.Helper()
	f.roster.set(roomID, online...)
	view, err := f.engine.Start(roomID, mode, testSettings(), online)
	require.NoError(t, err)
	return view
}

func (f *fixture) shared(roomID string) *SharedState {
	return f.engine.get(roomID).state.Shared
}

func (f *fixture) competitive(roomID string) *CompetitiveState {
	return f.engine.get(roomID).state.Competitive
}

func TestLoneSharedPlayerMovesWithoutVote(t *testing.T) {
	f := newFixture(t)
	view := f.start(t, "r1", core.ModeShared, "a").(SharedView)

	assert.False(t, view.AwaitingFirstInput)
	assert.Equal(t, core.Point{X: 5, Y: 5}, view.Snake[0])
	assert.Equal(t, 3, view.Length)
	require.NotNil(t, view.Food)
	assert.NotContains(t, view.Snake, *view.Food)

	f.shared("r1").Food = &core.Point{X: 0, Y: 0}
	require.True(t, f.engine.Step("r1"))

	snap, ok := f.engine.Snapshot("r1")
	require.True(t, ok)
	assert.Equal(t, core.Point{X: 6, Y: 5}, snap.(SharedView).Snake[0])
	assert.Len(t, f.notifier.ofType(core.EventGameUpdate), 1)
}

func TestSharedHoldsUntilFirstInput(t *testing.T) {
	f := newFixture(t)
	view := f.start(t, "r1", core.ModeShared, "a", "b").(SharedView)
	require.True(t, view.AwaitingFirstInput)

	require.True(t, f.engine.Step("r1"))
	snap, _ := f.engine.Snapshot("r1")
	assert.Equal(t, view.Snake, snap.(SharedView).Snake)
	assert.True(t, snap.(SharedView).AwaitingFirstInput)

	// the bounded wait elapses
	f.engine.get("r1").firstInputDeadline = time.Now().Add(-time.Millisecond)
	f.shared("r1").Food = &core.Point{X: 0, Y: 0}
	require.True(t, f.engine.Step("r1"))
	snap, _ = f.engine.Snapshot("r1")
	assert.False(t, snap.(SharedView).AwaitingFirstInput)
	assert.Equal(t, core.Point{X: 6, Y: 5}, snap.(SharedView).Snake[0])
}

func TestFirstVoteAppliesImmediately(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a", "b")

	require.NoError(t, f.engine.Vote("r1", "a", core.Up))
	assert.False(t, f.shared("r1").AwaitingFirstInput)
	assert.Equal(t, core.Up, f.shared("r1").Pending)

	processed := f.notifier.ofType(core.EventVoteProcessed)
	require.Len(t, processed, 1)
	assert.Equal(t, core.Up, processed[0].Data.(VoteProcessed).Direction)

	f.shared("r1").Food = &core.Point{X: 0, Y: 0}
	f.engine.Step("r1")
	assert.Equal(t, core.Point{X: 5, Y: 4}, f.shared("r1").Snake[0])
}

func TestTiedVoteNeverAppliesLoserOrReverse(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a", "b")

	// leave awaitingFirstInput heading up
	require.NoError(t, f.engine.Vote("r1", "a", core.Up))
	f.shared("r1").Food = &core.Point{X: 0, Y: 0}
	f.engine.Step("r1")
	require.Equal(t, core.Up, f.shared("r1").Direction)

	require.NoError(t, f.engine.Vote("r1", "a", core.Up))
	assert.Len(t, f.notifier.ofType(core.EventVoteUpdated), 1)
	require.NoError(t, f.engine.Vote("r1", "b", core.Left))

	processed := f.notifier.ofType(core.EventVoteProcessed)
	require.Len(t, processed, 2)
	res := processed[1].Data.(VoteProcessed)
	assert.Equal(t, core.Up, res.Direction)
	assert.Equal(t, map[core.Direction]int{core.Up: 1, core.Left: 1}, res.Votes)

	f.engine.Step("r1")
	assert.Equal(t, core.Up, f.shared("r1").Direction)

	err := f.engine.Vote("r1", "b", core.Down)
	assert.True(t, core.IsKind(err, core.KindStateConflict))
	assert.Equal(t, core.Up, f.shared("r1").Direction)
}

func TestVoteWindowResolvesOnTimeout(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a", "b", "c")
	f.shared("r1").AwaitingFirstInput = false

	require.NoError(t, f.engine.Vote("r1", "a", core.Down))
	err := f.engine.Vote("r1", "a", core.Up)
	assert.True(t, core.IsKind(err, core.KindStateConflict))

	assert.Eventually(t, func() bool {
		return len(f.notifier.ofType(core.EventVoteProcessed)) == 1
	}, time.Second, 5*time.Millisecond)

	f.engine.get("r1").mu.Lock()
	pending := f.shared("r1").Pending
	open := f.shared("r1").Ballot.Open()
	f.engine.get("r1").mu.Unlock()
	assert.Equal(t, core.Down, pending)
	assert.False(t, open)
}

func TestVoteRejections(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Vote("nope", "a", core.Up)
	assert.True(t, core.IsKind(err, core.KindStateConflict))

	f.start(t, "r1", core.ModeShared, "a", "b")
	err = f.engine.Vote("r1", "a", core.Left)
	assert.True(t, core.IsKind(err, core.KindStateConflict), "reverse rejected even while awaiting first input")

	err = f.engine.Vote("r1", "a", core.Direction("sideways"))
	assert.True(t, core.IsKind(err, core.KindValidation))

	err = f.engine.Move("r1", "a", core.Up)
	assert.True(t, core.IsKind(err, core.KindStateConflict))
}

func TestToroidalWrap(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a")
	sh := f.shared("r1")
	sh.Food = &core.Point{X: 3, Y: 3}

	sh.Snake = line(core.Point{X: 9, Y: 5}, core.Right, 3, 10, 10)
	f.engine.Step("r1")
	assert.Equal(t, core.Point{X: 0, Y: 5}, sh.Snake[0])

	sh.Snake = line(core.Point{X: 4, Y: 0}, core.Up, 3, 10, 10)
	sh.Direction = core.Up
	f.engine.Step("r1")
	assert.Equal(t, core.Point{X: 4, Y: 9}, sh.Snake[0])

	for _, p := range sh.Snake {
		assert.True(t, p.X >= 0 && p.X < 10 && p.Y >= 0 && p.Y < 10)
	}
}

func TestSharedEatsFood(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a")
	sh := f.shared("r1")
	sh.Food = &core.Point{X: 6, Y: 5}

	f.engine.Step("r1")
	assert.Equal(t, 10, sh.Score)
	assert.Len(t, sh.Snake, 4)
	require.NotNil(t, sh.Food)
	assert.NotContains(t, sh.Snake, *sh.Food)
}

func TestSharedSelfCollisionEndsGame(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a", "b")
	sh := f.shared("r1")
	sh.AwaitingFirstInput = false
	sh.Score = 30
	sh.Direction = core.Up
	sh.Snake = []core.Point{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 4}, {X: 5, Y: 4}, {X: 4, Y: 4}}

	assert.False(t, f.engine.Step("r1"))
	assert.False(t, f.engine.Running("r1"))

	results := f.roster.results()
	require.Len(t, results, 1)
	assert.Equal(t, core.EndSelfCollision, results[0].Reason)
	assert.Equal(t, map[string]int{"a": 30, "b": 30}, results[0].Scores)

	records := f.recorder.records()
	require.Len(t, records, 2)
	for _, rec := range records {
		require.NotNil(t, rec.WinningSessionID)
		assert.Equal(t, 30, rec.WinningScore)
		assert.Equal(t, 2, rec.PlayerCountAtEnd)
	}

	require.Len(t, f.notifier.ofType(core.EventGameEnded), 1)
	snap, ok := f.engine.Snapshot("r1")
	require.True(t, ok, "payload survives until the grace reset")
	assert.Equal(t, 5, snap.(SharedView).Length)
}

func TestCompetitiveSelfCollisionDeclaresOtherWinner(t *testing.T) {
	f := newFixture(t)
	view := f.start(t, "r1", core.ModeCompetitive, "a", "b").(CompetitiveView)

	assert.Equal(t, core.Point{X: 2, Y: 5}, view.Snakes["a"].Body[0])
	assert.Equal(t, core.Right, view.Snakes["a"].Direction)
	assert.Equal(t, core.Point{X: 7, Y: 5}, view.Snakes["b"].Body[0])
	assert.Equal(t, core.Left, view.Snakes["b"].Direction)
	assert.Len(t, view.Food, 2)

	c := f.competitive("r1")
	c.Snakes["a"].Direction = core.Up
	c.Snakes["a"].Body = []core.Point{{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 1}}
	c.Snakes["b"].Score = 20
	c.Food["a"] = &core.Point{X: 9, Y: 9}
	c.Food["b"] = &core.Point{X: 9, Y: 0}

	assert.False(t, f.engine.Step("r1"))

	update := f.notifier.ofType(core.EventCompetitiveUpdate)
	require.Len(t, update, 1)
	final := update[0].Data.(CompetitiveView)
	assert.False(t, final.Snakes["a"].Alive)
	assert.True(t, final.Snakes["b"].Alive)

	ended := f.notifier.ofType(core.EventGameEnded)
	require.Len(t, ended, 1)
	res := ended[0].Data.(Result)
	require.NotNil(t, res.Winner)
	assert.Equal(t, "b", *res.Winner)
	assert.Equal(t, core.EndCompetitiveFinished, res.Reason)

	f.recorder.AssertNumberOfCalls(t, "RecordGame", 1)
	rec := f.recorder.records()[0]
	require.NotNil(t, rec.WinningSessionID)
	assert.Equal(t, "b", *rec.WinningSessionID)
	assert.Equal(t, 20, rec.WinningScore)
}

func TestCompetitiveHeadOnIsDraw(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeCompetitive, "a", "b")
	c := f.competitive("r1")
	c.Snakes["a"].Body = line(core.Point{X: 4, Y: 5}, core.Right, 3, 10, 10)
	c.Snakes["b"].Body = line(core.Point{X: 6, Y: 5}, core.Left, 3, 10, 10)
	c.Food["a"] = &core.Point{X: 0, Y: 0}
	c.Food["b"] = &core.Point{X: 9, Y: 9}

	assert.False(t, f.engine.Step("r1"))

	records := f.recorder.records()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].WinningSessionID)
}

func TestCompetitiveMove(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeCompetitive, "a", "b")
	c := f.competitive("r1")
	c.Food["a"] = &core.Point{X: 0, Y: 0}
	c.Food["b"] = &core.Point{X: 9, Y: 9}

	err := f.engine.Move("r1", "a", core.Left)
	assert.True(t, core.IsKind(err, core.KindStateConflict))
	err = f.engine.Move("r1", "z", core.Up)
	assert.True(t, core.IsKind(err, core.KindStateConflict))
	err = f.engine.Vote("r1", "a", core.Up)
	assert.True(t, core.IsKind(err, core.KindStateConflict))

	require.NoError(t, f.engine.Move("r1", "a", core.Down))
	require.True(t, f.engine.Step("r1"))
	assert.Equal(t, core.Point{X: 2, Y: 6}, c.Snakes["a"].Body[0])
	assert.Equal(t, core.Point{X: 6, Y: 5}, c.Snakes["b"].Body[0])
}

func TestCompetitiveNeedsTwoPlayers(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Start("r1", core.ModeCompetitive, testSettings(), []string{"a"})
	assert.True(t, core.IsKind(err, core.KindStateConflict))
}

func TestPlayerLeftEndsCompetitive(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeCompetitive, "a", "b")

	f.roster.set("r1", "b")
	f.engine.PlayerLeft("r1", "a", []string{"b"})

	results := f.roster.results()
	require.Len(t, results, 1)
	assert.Equal(t, core.EndInsufficientPlayers, results[0].Reason)
	require.NotNil(t, results[0].Winner)
	assert.Equal(t, "b", *results[0].Winner)
}

func TestPlayerLeftEmptiesShared(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a")

	f.roster.set("r1")
	f.engine.PlayerLeft("r1", "a", nil)

	results := f.roster.results()
	require.Len(t, results, 1)
	assert.Equal(t, core.EndEmpty, results[0].Reason)
	records := f.recorder.records()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].WinningSessionID)
}

func TestPlayerLeftCompletesOpenWindow(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a", "b", "c")
	f.shared("r1").AwaitingFirstInput = false

	require.NoError(t, f.engine.Vote("r1", "a", core.Up))
	require.NoError(t, f.engine.Vote("r1", "b", core.Up))

	f.roster.set("r1", "a", "b")
	f.engine.PlayerLeft("r1", "c", []string{"a", "b"})

	processed := f.notifier.ofType(core.EventVoteProcessed)
	require.Len(t, processed, 1)
	assert.Equal(t, core.Up, processed[0].Data.(VoteProcessed).Direction)
}

func TestGameUpdateRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a")
	f.engine.Step("r1")

	updates := f.notifier.ofType(core.EventGameUpdate)
	require.Len(t, updates, 1)

	raw, err := json.Marshal(updates[0])
	require.NoError(t, err)

	var decoded struct {
		Type string     `json:"type"`
		Data SharedView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "snake_game_update", decoded.Type)

	snap, ok := f.engine.Snapshot("r1")
	require.True(t, ok)
	server := snap.(SharedView)
	assert.Equal(t, server.Snake, decoded.Data.Snake)
	assert.Equal(t, server.Food, decoded.Data.Food)
}

func TestGraceResetAllowsRematch(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.EndGrace = 10 * time.Millisecond })
	f.start(t, "r1", core.ModeShared, "a")

	require.NoError(t, f.engine.EndGame("r1", core.EndError, nil))
	assert.Eventually(t, func() bool { return f.roster.resetCount() == 1 }, time.Second, 5*time.Millisecond)

	_, ok := f.engine.Snapshot("r1")
	assert.False(t, ok)

	f.start(t, "r1", core.ModeShared, "a")
	assert.True(t, f.engine.Running("r1"))

	err := f.engine.EndGame("missing", core.EndError, nil)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestStartTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	f.start(t, "r1", core.ModeShared, "a")
	_, err := f.engine.Start("r1", core.ModeShared, testSettings(), []string{"a"})
	assert.True(t, core.IsKind(err, core.KindStateConflict))
}

func TestTickLoopRunsAndDiscardStopsIt(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Manual = false })
	f.engine.Prepare("r1", testSettings())
	f.start(t, "r1", core.ModeShared, "a")

	assert.Eventually(t, func() bool {
		return len(f.notifier.ofType(core.EventGameUpdate)) >= 2
	}, time.Second, 5*time.Millisecond)

	f.engine.Discard("r1")
	assert.False(t, f.engine.Running("r1"))
	assert.False(t, f.engine.Step("r1"))
	assert.Empty(t, f.engine.Rooms())
}
