package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreComplete(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10000.0, cfg.Budget.MaxBudget)
	assert.Equal(t, 20, cfg.Budget.SampleWindow)
	assert.Equal(t, 2.0, cfg.Cache.DegradedTTLScale)
	assert.Equal(t, 2.0, cfg.Planner.YieldPerWorker)
	assert.Equal(t, 1000, cfg.TickIntervalMs)
	assert.Equal(t, "data/colony.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.APIPort)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAMLOnDefaults(t *testing.T) {
	tuning := `
budget:
  max_budget: 20000
  drain_threshold: 3
planner:
  max_builders: 6
tick_interval_ms: 250
api_port: 9090
`
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tuning), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20000.0, cfg.Budget.MaxBudget)
	assert.Equal(t, 3, cfg.Budget.DrainThreshold)
	assert.Equal(t, 6, cfg.Planner.MaxBuilders)
	assert.Equal(t, 250, cfg.TickIntervalMs)
	assert.Equal(t, 9090, cfg.APIPort)

	// Untouched knobs keep their defaults.
	assert.Equal(t, 0.5, cfg.Budget.LowWater)
	assert.Equal(t, "data/colony.db", cfg.DBPath)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
