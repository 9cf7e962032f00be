package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vision.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
scene_id = "keep-level-2"

[perception]
tick_rate = "50ms"
tolerance = 4.5
fog_commit_threshold = 3
fog_save_debounce = "500ms"

[logging]
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "keep-level-2", cfg.Server.SceneID)
	assert.Equal(t, 50*time.Millisecond, cfg.Perception.TickRate)
	assert.Equal(t, 4.5, cfg.Perception.Tolerance)
	assert.Equal(t, 3, cfg.Perception.FogCommitThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Perception.FogSaveDebounce)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, 2048, cfg.Perception.FogMaxImageSize)
	assert.True(t, cfg.Perception.FogExploration)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "[perception]\nfog_commit_threshold = 0\n"))
	assert.ErrorContains(t, err, "fog_commit_threshold")

	_, err = Load(writeConfig(t, "[server]\nscene_id = \"\"\n"))
	assert.ErrorContains(t, err, "scene_id")

	_, err = Load(writeConfig(t, "not toml ==="))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")
}
