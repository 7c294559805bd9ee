package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/story"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Store.Dialect)
	assert.Equal(t, story.GateAutoProceed, cfg.GateMode)
	assert.Equal(t, "agent-cli", cfg.Executor.Default)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero parallelism", func(c *Config) { c.MaxParallelism = 0 }},
		{"bad gate mode", func(c *Config) { c.GateMode = "sometimes" }},
		{"bad automation mode", func(c *Config) { c.AutomationMode = "manual" }},
		{"bad dialect", func(c *Config) { c.Store.Dialect = "mongodb" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.MaxParallelism = 2
	cfg.GateMode = story.GatePauseAlways
	cfg.Executor.Timeout = 5 * time.Minute
	require.NoError(t, cfg.Save(dir))
	require.True(t, IsInitialized(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.MaxParallelism)
	assert.Equal(t, story.GatePauseAlways, loaded.GateMode)
	assert.Equal(t, 5*time.Minute, loaded.Executor.Timeout)
}

func TestLoadMissingProjectConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().MaxParallelism, loaded.MaxParallelism)
}

func TestLoadRejectsInvalidProjectConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, AuraDir), 0o755))
	bad := []byte("max_parallelism: -3\n")
	require.NoError(t, os.WriteFile(Path(dir), bad, 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
