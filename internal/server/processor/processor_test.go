package processor

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/registry"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type socket struct {
	mu     sync.Mutex
	frames []frame
}

func (s *socket) Write(data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *socket) Close() error { return nil }

func (s *socket) last() frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return frame{}
	}
	return s.frames[len(s.frames)-1]
}

func (s *socket) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Type
	}
	return out
}

func newProcessor(t *testing.T) (*Processor, *registry.Registry) {
	t.Helper()
	nop := zerolog.Nop()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "arcade.db"), true, nop)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())

	reg := registry.New(nop)
	outbox := service.NewOutbox(0, nop)
	roster := service.NewRoster(store, reg, outbox, core.DefaultNamespace, nop)
	engine := game.New(game.Config{
		Namespace:      core.DefaultNamespace,
		FirstInputWait: time.Hour,
		EndGrace:       time.Hour,
		Manual:         true,
	}, roster, roster, store, nop)
	svc := service.New(store, reg, engine, roster, outbox, service.Config{
		Namespace: core.DefaultNamespace,
		Defaults:  core.DefaultGameSettings(),
	}, nop)
	t.Cleanup(func() { svc.Shutdown(time.Second) })

	return New(svc, nop), reg
}

func send(p *Processor, connID, msgType string, data any) {
	raw, _ := json.Marshal(map[string]any{"type": msgType, "data": data})
	p.Handle(connID, raw)
}

func connect(t *testing.T, p *Processor, reg *registry.Registry, connID, sessionID string) *socket {
	t.Helper()
	s := &socket{}
	reg.Register(connID, s)
	send(p, connID, "join", map[string]string{"sessionId": sessionID})
	require.Equal(t, core.EventJoined, s.last().Type)
	return s
}

func decodeError(t *testing.T, f frame) core.ErrorEvent {
	t.Helper()
	require.Equal(t, "snake_error", f.Type)
	var ev core.ErrorEvent
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	return ev
}

func TestPingAndJoinAreUnprefixed(t *testing.T) {
	p, reg := newProcessor(t)
	s := &socket{}
	reg.Register("c1", s)

	send(p, "c1", "ping", nil)
	assert.Equal(t, core.EventPong, s.last().Type)

	send(p, "c1", "snake_join", map[string]string{"sessionId": "alice"})
	assert.Equal(t, core.EventJoined, s.last().Type)
	assert.Equal(t, "alice", reg.SessionOf("c1"))
}

func TestCommandsRequireSession(t *testing.T) {
	p, reg := newProcessor(t)
	s := &socket{}
	reg.Register("c1", s)

	send(p, "c1", "create_room", map[string]string{"displayName": "a", "mode": "shared"})
	ev := decodeError(t, s.last())
	assert.Equal(t, core.ErrUnauthorized, ev.Code)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	p, reg := newProcessor(t)
	s := connect(t, p, reg, "c1", "alice")

	p.Handle("c1", []byte("{not json"))
	assert.Equal(t, core.ErrInvalidRequest, decodeError(t, s.last()).Code)

	send(p, "c1", "teleport", nil)
	assert.Equal(t, core.ErrInvalidRequest, decodeError(t, s.last()).Code)

	send(p, "c1", "create_room", map[string]string{"displayName": "a", "mode": "solo"})
	ev := decodeError(t, s.last())
	assert.Equal(t, core.ErrInvalidRequest, ev.Code)
	assert.Contains(t, ev.Message, "Mode")

	send(p, "c1", "vote", map[string]string{"roomCode": "ABC123", "direction": "sideways"})
	assert.Equal(t, core.ErrInvalidRequest, decodeError(t, s.last()).Code)
}

func TestRoomFlow(t *testing.T) {
	p, reg := newProcessor(t)
	alice := connect(t, p, reg, "c1", "alice")
	bob := connect(t, p, reg, "c2", "bob")

	send(p, "c1", "snake_create_room", map[string]string{"displayName": "Alice", "mode": "shared"})
	require.Equal(t, "snake_room_created", alice.last().Type)
	var created service.Membership
	require.NoError(t, json.Unmarshal(alice.last().Data, &created))
	code := created.Room.Code

	send(p, "c2", "join_room", map[string]string{"displayName": "Bob", "roomCode": " " + code + " "})
	require.Equal(t, "snake_room_joined", bob.last().Type)
	assert.Contains(t, alice.types(), "snake_player_joined")

	send(p, "c2", "start_game", map[string]string{"roomCode": code})
	assert.Equal(t, core.ErrUnauthorized, decodeError(t, bob.last()).Code)

	send(p, "c1", "start_game", map[string]string{"roomCode": code})
	assert.Equal(t, "snake_game_started", alice.last().Type)
	assert.Equal(t, "snake_game_started", bob.last().Type)

	send(p, "c1", "vote", map[string]string{"roomCode": code, "direction": "up"})
	assert.Equal(t, "snake_vote_processed", alice.last().Type)

	send(p, "c2", "get_room_info", map[string]string{"roomCode": code})
	require.Equal(t, "snake_room_info", bob.last().Type)
	var info service.RoomView
	require.NoError(t, json.Unmarshal(bob.last().Data, &info))
	assert.Equal(t, core.StatusPlaying, info.Status)
	assert.NotNil(t, info.Game)

	send(p, "c2", "leave_room", map[string]string{"roomCode": code})
	assert.Equal(t, "snake_player_left", bob.last().Type)
	assert.Equal(t, "snake_player_left", alice.last().Type)
}

func TestErrorCodes(t *testing.T) {
	p, reg := newProcessor(t)
	alice := connect(t, p, reg, "c1", "alice")
	bob := connect(t, p, reg, "c2", "bob")
	carol := connect(t, p, reg, "c3", "carol")

	send(p, "c1", "join_room", map[string]string{"displayName": "A", "roomCode": "ZZZZZZ"})
	assert.Equal(t, core.ErrRoomNotFound, decodeError(t, alice.last()).Code)

	send(p, "c1", "create_room", map[string]string{"displayName": "A", "mode": "competitive"})
	var created service.Membership
	require.NoError(t, json.Unmarshal(alice.last().Data, &created))
	code := created.Room.Code

	send(p, "c2", "join_room", map[string]string{"displayName": "B", "roomCode": code})
	send(p, "c3", "join_room", map[string]string{"displayName": "C", "roomCode": code})
	assert.Equal(t, core.ErrRoomFull, decodeError(t, carol.last()).Code)

	send(p, "c1", "start_game", map[string]string{"roomCode": code})
	assert.Equal(t, core.ErrStateConflict, decodeError(t, alice.last()).Code)

	send(p, "c1", "toggle_ready", map[string]string{"roomCode": code})
	send(p, "c2", "toggle_ready", map[string]string{"roomCode": code})
	assert.Equal(t, "snake_player_ready_changed", bob.last().Type)

	send(p, "c1", "start_game", map[string]string{"roomCode": code})
	assert.Equal(t, "snake_game_started", alice.last().Type)

	send(p, "c1", "vote", map[string]string{"roomCode": code, "direction": "up"})
	assert.Equal(t, core.ErrStateConflict, decodeError(t, alice.last()).Code)

	send(p, "c1", "move", map[string]string{"roomCode": code, "direction": "left"})
	assert.Equal(t, core.ErrStateConflict, decodeError(t, alice.last()).Code, "reverse of heading right")

	n := len(alice.types())
	send(p, "c1", "move", map[string]string{"roomCode": code, "direction": "up"})
	assert.Len(t, alice.types(), n, "accepted moves have no direct reply")
}
