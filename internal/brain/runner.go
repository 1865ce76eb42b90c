package brain

import (
	"log/slog"
	"time"
)

// Runner drives the core at a wall-clock cadence for hosts that do not call
// RunTick themselves. One Step per tick; Speed 0 pauses.
type Runner struct {
	Speed    float64       // multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // base tick interval
	Running  bool

	// Step advances the host one tick and runs the core. Wired by the
	// binary: typically host.Advance() followed by brain.RunTick().
	Step func()
}

// NewRunner creates a runner with default settings.
func NewRunner(step func()) *Runner {
	return &Runner{
		Speed:    1.0,
		Interval: time.Second,
		Step:     step,
	}
}

// Run starts the loop. Blocks until Stop is called.
func (r *Runner) Run() {
	r.Running = true
	slog.Info("tick runner started", "interval", r.Interval, "speed", r.Speed)

	for r.Running {
		if r.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		r.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(r.Interval) / r.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("tick runner stopped")
}

// Stop halts the loop after the current step.
func (r *Runner) Stop() {
	r.Running = false
}
