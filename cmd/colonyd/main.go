// Command colonyd runs the colony-management core against the built-in
// synthetic host: a deterministic, noise-driven economy that exercises the
// budget monitor, the tiered cache, and the population planner end to end.
// Core state and decisions are observable over the HTTP API.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/colony-mind/internal/api"
	"github.com/talgya/colony-mind/internal/brain"
	"github.com/talgya/colony-mind/internal/config"
	"github.com/talgya/colony-mind/internal/host"
	"github.com/talgya/colony-mind/internal/simhost"
	"github.com/talgya/colony-mind/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration: YAML tuning file over defaults, env on top.
	tuningPath := os.Getenv("COLONY_TUNING")
	cfg, err := config.Load(tuningPath)
	if err != nil {
		slog.Error("failed to load tuning", "path", tuningPath, "error", err)
		os.Exit(1)
	}
	cfg.DBPath = envOrDefault("COLONY_DB", cfg.DBPath)
	cfg.APIPort = envIntOrDefault("COLONY_API_PORT", cfg.APIPort)
	adminKey := os.Getenv("COLONY_ADMIN_KEY")
	seed := int64(envIntOrDefault("COLONY_SEED", 42))

	slog.Info("colony core starting",
		"seed", seed,
		"db", cfg.DBPath,
		"api_port", cfg.APIPort,
		"max_budget", humanize.Commaf(cfg.Budget.MaxBudget),
	)

	// ── Durable store ─────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if last, err := db.GetMeta("last_tick"); err == nil {
		slog.Info("store opened", "path", cfg.DBPath, "last_tick", last)
	} else {
		slog.Info("store opened", "path", cfg.DBPath)
	}

	// ── Synthetic host ────────────────────────────────────────────────
	simCfg := simhost.DefaultConfig()
	simCfg.Seed = seed
	simCfg.MaxBudget = cfg.Budget.MaxBudget
	sim := simhost.New(simCfg)

	// ── Core ──────────────────────────────────────────────────────────
	overrides := host.NewOverrideTable()
	core := brain.New(brain.Config{
		Budget:           cfg.Budget,
		Cache:            cfg.Cache,
		Planner:          cfg.Planner,
		DiagnosticsEvery: cfg.DiagnosticsEvery,
	}, brain.Deps{
		Gauge:     sim,
		Clock:     sim,
		Surveyor:  sim,
		Nursery:   sim,
		Hook:      sim,
		Overrides: overrides,
		Sink:      db,
		Journal:   db,
	})

	// ── HTTP API ──────────────────────────────────────────────────────
	srv := &api.Server{
		Brain:     core,
		DB:        db,
		Overrides: overrides,
		Port:      cfg.APIPort,
		AdminKey:  adminKey,
	}
	srv.Start()

	// ── Tick loop ─────────────────────────────────────────────────────
	runner := brain.NewRunner(func() {
		sim.Advance()
		core.RunTick()
		sim.FinishTick()
	})
	runner.Interval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	go runner.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("received signal, shutting down", "signal", sig)
	runner.Stop()

	st := core.Status()
	if err := db.SaveMeta("last_tick", strconv.FormatUint(st.Tick, 10)); err != nil {
		slog.Warn("failed to save last tick", "error", err)
	}
	slog.Info("colony core stopped", "tick", st.Tick, "spawns", st.SpawnsIssued)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
