package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"arcade/internal/client/api"
	"arcade/internal/client/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() (*session.Session, *bytes.Buffer) {
	var buf bytes.Buffer
	s := session.New("http://localhost:8080")
	s.Out = &buf
	return s, &buf
}

func frame(t *testing.T, typ string, data any) api.Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return api.Frame{Type: typ, Data: raw}
}

func TestHandleFrameTracksSessionAndRoom(t *testing.T) {
	s, out := newTestSession()

	HandleFrame(s, frame(t, "joined", map[string]string{"sessionId": "alice", "connectionId": "c1"}))
	assert.Equal(t, "alice", s.SessionID())

	HandleFrame(s, frame(t, "snake_room_created", map[string]any{
		"room": map[string]any{
			"code": "ABC123", "mode": "shared", "status": "waiting",
			"players": []map[string]any{{"sessionId": "alice", "displayName": "Alice", "isHost": true}},
		},
		"player": map[string]any{"sessionId": "alice"},
	}))
	code, mode := s.Room()
	assert.Equal(t, "ABC123", code)
	assert.Equal(t, "shared", mode)
	assert.Contains(t, out.String(), "Alice")

	HandleFrame(s, frame(t, "snake_player_left", map[string]any{
		"player": map[string]any{"sessionId": "alice", "displayName": "Alice"},
	}))
	code, _ = s.Room()
	assert.Empty(t, code)
}

func TestHandleFrameGameUpdateRespectsWatch(t *testing.T) {
	s, out := newTestSession()
	update := frame(t, "snake_game_update", map[string]any{
		"tick":  4,
		"board": map[string]int{"width": 8, "height": 8},
		"snake": []map[string]int{{"x": 3, "y": 3}, {"x": 2, "y": 3}},
		"food":  map[string]int{"x": 6, "y": 1},
		"score": 2,
	})

	HandleFrame(s, update)
	assert.Equal(t, 4, s.LastTick())
	assert.Contains(t, out.String(), "tick 4")
	assert.Contains(t, out.String(), "@")

	out.Reset()
	s.SetWatching(false)
	HandleFrame(s, update)
	assert.Empty(t, out.String())
}

func TestHandleFrameError(t *testing.T) {
	s, out := newTestSession()
	HandleFrame(s, frame(t, "snake_error", map[string]string{"message": "Room not found", "code": "ROOM_NOT_FOUND"}))
	assert.Contains(t, out.String(), "ROOM_NOT_FOUND")

	out.Reset()
	HandleFrame(s, api.Frame{Type: "snake_game_update", Data: json.RawMessage(`{"tick":"x"}`)})
	assert.Contains(t, out.String(), "bad snake_game_update payload")
}

func TestRenderCompetitiveMarksSelf(t *testing.T) {
	var buf bytes.Buffer
	RenderCompetitive(&buf, &api.CompetitiveView{
		Tick:  1,
		Board: api.Board{Width: 10, Height: 5},
		Snakes: map[string]api.SnakeView{
			"alice": {Body: []api.Point{{X: 2, Y: 2}}, Alive: true},
			"bob":   {Body: []api.Point{{X: 7, Y: 2}}, Alive: true},
		},
		Food: map[string]*api.Point{"alice": {X: 4, Y: 4}},
	}, "alice")

	assert.Contains(t, buf.String(), "#")
	assert.Contains(t, buf.String(), "@")
	assert.Contains(t, buf.String(), "*")
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]string{"w": "up", "UP": "up", "a": "left", "s": "down", "d": "right", "l": "right"} {
		got, err := parseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDirection("sideways")
	assert.Error(t, err)
}

func TestRoomCommandsRequireConnection(t *testing.T) {
	s, _ := newTestSession()
	r := NewRegistry(s)

	for _, name := range []string{"create", "join", "ready", "vote", "move", "leave", "send"} {
		cmd, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Error(t, cmd.Handler(s, []string{"a", "b"}), name)
	}
}
