package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8192", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 60*time.Second, cfg.ForfeitTimeout)
	assert.Equal(t, time.Hour, cfg.RoomTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.False(t, cfg.LogDev)
}

func TestOverrides(t *testing.T) {
	t.Setenv("DUEL_ADDR", ":9000")
	t.Setenv("FORFEIT_TIMEOUT", "90s")
	t.Setenv("SCRIPTS_FILE", "scripts.yaml")
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 90*time.Second, cfg.ForfeitTimeout)
	assert.Equal(t, "scripts.yaml", cfg.ScriptsFile)
	assert.True(t, cfg.LogDev)
}

func TestBadDuration(t *testing.T) {
	t.Setenv("ROOM_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
