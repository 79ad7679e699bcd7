package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"arcade/internal/server/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, core.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, core.DefaultGameSettings(), cfg.Game)
	assert.Equal(t, 10*time.Second, cfg.FirstInputWait)
	assert.Equal(t, 3*time.Second, cfg.EndGrace)
	assert.Equal(t, time.Minute, cfg.ReaperInterval)
	assert.Equal(t, 10*time.Minute, cfg.FinishedIdle)
	assert.Equal(t, 2*time.Hour, cfg.RoomIdle)
	assert.Equal(t, 5*time.Minute, cfg.PlayerIdle)
}

func TestEnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("ARCADE_API_PORT", "9000")
	t.Setenv("ARCADE_BOARD_WIDTH", "30")
	t.Setenv("ARCADE_END_GRACE", "5s")

	cfg, err := Load([]string{"-api-port", "9100", "-namespace", "tron"}, "")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.APIPort)
	assert.Equal(t, 30, cfg.Game.BoardWidth)
	assert.Equal(t, 5*time.Second, cfg.EndGrace)
	assert.Equal(t, core.Namespace("tron"), cfg.Namespace)
}

func TestDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARCADE_ROOM_IDLE=90m\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ARCADE_ROOM_IDLE") })

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.RoomIdle)

	_, err = Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidation(t *testing.T) {
	_, err := Load([]string{"-pid-lock"}, "")
	assert.Error(t, err)

	_, err = Load([]string{"-admin-secret", "short"}, "")
	assert.Error(t, err)

	_, err = Load([]string{"-board-width", "3"}, "")
	assert.Error(t, err)

	_, err = Load([]string{"-no-such-flag"}, "")
	assert.Error(t, err)
}
