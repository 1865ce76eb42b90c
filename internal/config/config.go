// Package config exposes every tuned constant of the colony core as policy.
// The defaults reproduce the values the system was tuned with, but nothing
// in the core treats them as load-bearing invariants.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/colony-mind/internal/budget"
	"github.com/talgya/colony-mind/internal/cache"
	"github.com/talgya/colony-mind/internal/planner"
)

// Config aggregates the tuning of all core components plus the driver.
type Config struct {
	Budget  budget.Config  `yaml:"budget"`
	Cache   cache.Config   `yaml:"cache"`
	Planner planner.Config `yaml:"planner"`

	// Driver settings.
	TickIntervalMs int    `yaml:"tick_interval_ms"`
	DiagnosticsEvery uint64 `yaml:"diagnostics_every"` // log a status line every N ticks
	DBPath         string `yaml:"db_path"`
	APIPort        int    `yaml:"api_port"`
}

// Default returns the documented default tuning for everything.
func Default() Config {
	return Config{
		Budget:           budget.DefaultConfig(),
		Cache:            cache.DefaultConfig(),
		Planner:          planner.DefaultConfig(),
		TickIntervalMs:   1000,
		DiagnosticsEvery: 50,
		DBPath:           "data/colony.db",
		APIPort:          8080,
	}
}

// Load reads a YAML tuning file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read tuning: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	return cfg, nil
}
