package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/processor"
	"arcade/internal/server/reaper"
	"arcade/internal/server/registry"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-minimum-32-characters"

type fixture struct {
	app   *fiber.App
	svc   *service.Service
	store *storage.Store
}

func newFixture(t *testing.T, secret string) *fixture {
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

	sweeper := reaper.New(reaper.Config{Interval: time.Minute}, store, svc, nop)
	app := NewFiberApp(processor.New(svc, nop), svc, sweeper, Config{DevMode: true, AdminSecret: secret}, nop)

	return &fixture{app: app, svc: svc, store: store}
}

func (f *fixture) do(t *testing.T, method, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	status, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["storage"])
}

func TestListRooms(t *testing.T) {
	f := newFixture(t, "")

	status, body := f.do(t, "GET", "/api/v1/rooms", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])

	_, err := f.svc.CreateRoom("alice", core.CreateRoomRequest{DisplayName: "Alice", Mode: core.ModeShared})
	require.NoError(t, err)
	_, err = f.svc.CreateRoom("bob", core.CreateRoomRequest{DisplayName: "Bob", Mode: core.ModeCompetitive})
	require.NoError(t, err)

	_, body = f.do(t, "GET", "/api/v1/rooms", "")
	assert.EqualValues(t, 2, body["count"])

	_, body = f.do(t, "GET", "/api/v1/rooms?mode=competitive", "")
	assert.EqualValues(t, 1, body["count"])

	status, body = f.do(t, "GET", "/api/v1/rooms?mode=solo", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, core.ErrInvalidRequest, body["code"])
}

func TestGetRoom(t *testing.T) {
	f := newFixture(t, "")
	m, err := f.svc.CreateRoom("alice", core.CreateRoomRequest{DisplayName: "Alice", Mode: core.ModeShared})
	require.NoError(t, err)

	status, body := f.do(t, "GET", "/api/v1/rooms/"+strings.ToLower(m.Room.Code)+"?records=5", "")
	require.Equal(t, fiber.StatusOK, status)
	room := body["room"].(map[string]any)
	assert.Equal(t, m.Room.Code, room["code"])
	assert.Empty(t, body["records"])

	status, body = f.do(t, "GET", "/api/v1/rooms/ABC", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, core.ErrInvalidRequest, body["code"])

	status, body = f.do(t, "GET", "/api/v1/rooms/ZZZZZZ", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, core.ErrRoomNotFound, body["code"])

	status, _ = f.do(t, "GET", "/api/v1/rooms/"+m.Room.Code+"?records=-1", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStatsAndLeaderboard(t *testing.T) {
	f := newFixture(t, "")
	winner := "alice"
	require.NoError(t, f.store.RecordGame(storage.GameRecord{
		ID:               "r1",
		RoomID:           "room",
		Mode:             core.ModeCompetitive,
		WinningSessionID: &winner,
		WinningScore:     40,
		EndReason:        core.EndCompetitiveFinished,
		PlayerCountAtEnd: 2,
		CreatedAt:        time.Now().UTC(),
	}))

	require.Eventually(t, func() bool {
		_, body := f.do(t, "GET", "/api/v1/players/alice/stats", "")
		return body["competitiveWins"] == float64(1)
	}, time.Second, 10*time.Millisecond)

	status, body := f.do(t, "GET", "/api/v1/leaderboard?mode=competitive&limit=1000", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, _ = f.do(t, "GET", "/api/v1/leaderboard?mode=solo", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminCleanup(t *testing.T) {
	f := newFixture(t, testSecret)
	m, err := f.svc.CreateRoom("alice", core.CreateRoomRequest{DisplayName: "Alice", Mode: core.ModeShared})
	require.NoError(t, err)
	f.svc.Disconnect("alice")

	status, body := f.do(t, "POST", "/api/v1/admin/cleanup", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, core.ErrUnauthorized, body["code"])

	status, _ = f.do(t, "POST", "/api/v1/admin/cleanup", "not-a-token")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	wrongSecret, err := IssueAdminToken([]byte("another-secret-of-sufficient-length"), "ops", time.Hour)
	require.NoError(t, err)
	status, _ = f.do(t, "POST", "/api/v1/admin/cleanup", wrongSecret)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token, err := IssueAdminToken([]byte(testSecret), "ops", time.Hour)
	require.NoError(t, err)
	status, body = f.do(t, "POST", "/api/v1/admin/cleanup", token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{m.Room.Code}, body["removed"])

	_, err = f.store.GetRoomByID(m.Room.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdminCleanupDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t, "")
	token, err := IssueAdminToken([]byte(testSecret), "ops", time.Hour)
	require.NoError(t, err)

	status, _ := f.do(t, "POST", "/api/v1/admin/cleanup", token)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestRejectsNonJSONBody(t *testing.T) {
	f := newFixture(t, testSecret)
	req := httptest.NewRequest("POST", "/api/v1/admin/cleanup", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t, "")
	status, body := f.do(t, "GET", "/ws", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
	assert.Equal(t, core.ErrInvalidRequest, body["code"])
}
