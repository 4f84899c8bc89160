package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/bopserver/game"
)

var packs = []string{"base_gray", "base_red"}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), packs)
	require.NoError(t, err)

	assert.Equal(t, ":22222", cfg.Server.HTTPAddress)
	assert.Empty(t, cfg.Server.RPCAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Game.MaxPlayersVoice)
	assert.Equal(t, 12, cfg.Game.MaxPlayersNoVoice)
	assert.Equal(t, 30*time.Second, cfg.Game.HostGrace)
	assert.Equal(t, 5*time.Minute, cfg.Game.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Game.SweepInterval)
	assert.Equal(t, 100, cfg.Game.CodeAttempts)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "gorm", cfg.Database.Driver)

	assert.Equal(t, game.Settings{
		TimerSec:         90,
		Rounds:           3,
		PointsEasy:       1,
		PointsHard:       3,
		BopPenalty:       1,
		BopperCount:      1,
		BopperAssignment: game.AssignRotate,
		EnabledPacks:     packs,
	}, cfg.Game.Defaults)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":9000"
game:
  host_grace: 5s
  defaults:
    rounds: 1
database:
  driver: pq
  postgres:
    host: db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("GAME_MAX_PLAYERS_VOICE", "4")

	cfg, err := LoadConfig(dir, packs)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, 5*time.Second, cfg.Game.HostGrace)
	assert.Equal(t, 1, cfg.Game.Defaults.Rounds)
	assert.Equal(t, 90, cfg.Game.Defaults.TimerSec)
	assert.Equal(t, 4, cfg.Game.MaxPlayersVoice)
	assert.Equal(t, "pq", cfg.Database.Driver)
	assert.Equal(t, "host=db port=5432 user=postgres password= dbname=bop sslmode=disable", cfg.Database.Postgres.DSN())
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")

	_, err := LoadConfig(t.TempDir(), packs)
	assert.ErrorContains(t, err, "database.driver")
}

func TestLoadConfig_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := LoadConfig(dir, packs)
	assert.Error(t, err)
}
