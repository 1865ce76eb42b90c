// Package budget watches the host's compute budget gauge, detects sustained
// drain, and throttles non-critical work while the gauge recovers.
package budget

import (
	"log/slog"
	"math"
)

// Config holds the monitor's tuning knobs. The defaults were tuned against
// one specific economy — treat them as policy, not invariants.
type Config struct {
	MaxBudget      float64 `yaml:"max_budget"`
	SampleWindow   int     `yaml:"sample_window"`   // ring buffer size
	ShortWindow    int     `yaml:"short_window"`    // samples for the fast rate estimate
	SampleInterval uint64  `yaml:"sample_interval"` // sample every Nth tick

	DrainThreshold int     `yaml:"drain_threshold"` // consecutive drains before an episode may start
	LowWater       float64 `yaml:"low_water"`       // entry requires budget below this fraction
	HighWater      float64 `yaml:"high_water"`      // exit above this fraction with non-negative rate
	MidWater       float64 `yaml:"mid_water"`       // exit above this fraction after MinEpisodeTicks

	MinEpisodeTicks uint64 `yaml:"min_episode_ticks"`
	MaxEpisodeTicks uint64 `yaml:"max_episode_ticks"` // hard ceiling, exits regardless of budget

	CheapConsumption  float64 `yaml:"cheap_consumption"` // avg spend below this opens every gate
	ConsumptionWindow int     `yaml:"consumption_window"`

	// Per-tier admission thresholds on the recovery factor, with an
	// absolute-budget escape hatch per tier. Low is the strictest.
	HighFactor       float64 `yaml:"high_factor"`
	HighBudgetFrac   float64 `yaml:"high_budget_frac"`
	MediumFactor     float64 `yaml:"medium_factor"`
	MediumBudgetFrac float64 `yaml:"medium_budget_frac"`
	LowFactor        float64 `yaml:"low_factor"`
	LowBudgetFrac    float64 `yaml:"low_budget_frac"`
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		MaxBudget:         10000,
		SampleWindow:      20,
		ShortWindow:       5,
		SampleInterval:    2,
		DrainThreshold:    5,
		LowWater:          0.50,
		HighWater:         0.75,
		MidWater:          0.35,
		MinEpisodeTicks:   50,
		MaxEpisodeTicks:   500,
		CheapConsumption:  30,
		ConsumptionWindow: 10,
		HighFactor:        0.30,
		HighBudgetFrac:    0.20,
		MediumFactor:      0.55,
		MediumBudgetFrac:  0.45,
		LowFactor:         0.85,
		LowBudgetFrac:     0.60,
	}
}

// Sample is one budget gauge reading at a sampled tick.
type Sample struct {
	Tick   uint64  `json:"tick"`
	Budget float64 `json:"budget"`
}

// Episode is a bounded recovery period. At most one is active at a time.
type Episode struct {
	Active      bool    `json:"active"`
	StartTick   uint64  `json:"start_tick"`
	StartBudget float64 `json:"start_budget"`
	Rate        float64 `json:"rate"` // blended per-tick recovery rate estimate
}

// State is the monitor's complete cross-tick state: plain data only, so the
// host can serialize it between ticks.
type State struct {
	Samples     []Sample  `json:"samples"`
	DrainCount  int       `json:"drain_count"`
	Episode     Episode   `json:"episode"`
	LastBudget  float64   `json:"last_budget"`
	HaveLast    bool      `json:"have_last"`
	Consumption []float64 `json:"consumption"`
	Tick        uint64    `json:"tick"`
	Budget      float64   `json:"budget"`
	Episodes    uint64    `json:"episodes"` // lifetime episode count, for diagnostics
}

// Monitor tracks the budget gauge and answers admission queries. It is not
// safe for concurrent use; the tick driver owns it.
type Monitor struct {
	cfg Config
	st  State
}

// New creates a Monitor with empty history.
func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Restore rebuilds a Monitor from a serialized State snapshot.
func Restore(cfg Config, st State) *Monitor {
	return &Monitor{cfg: cfg, st: st}
}

// State returns a deep copy of the monitor's cross-tick state.
func (m *Monitor) State() State {
	st := m.st
	st.Samples = append([]Sample(nil), m.st.Samples...)
	st.Consumption = append([]float64(nil), m.st.Consumption...)
	return st
}

// Update ingests the ambient readings for this tick. It samples the gauge
// on alternating ticks only (halving its own overhead), advances the drain
// counter, and transitions into or out of a recovery episode. It never
// fails: a missing or nonsensical reading is treated as "no drain".
func (m *Monitor) Update(tick uint64, reading float64, ok bool) {
	m.st.Tick = tick

	if !ok || math.IsNaN(reading) || reading < 0 {
		// Budget-signal anomaly. Under-throttling beats crashing the agent.
		m.st.DrainCount = 0
		m.maybeExit(tick)
		return
	}
	m.st.Budget = reading

	// Net spend since the previous reading feeds the rolling consumption
	// average. Replenishment makes this an underestimate, which is the
	// conservative direction for the cheap-work escape hatch.
	if m.st.HaveLast {
		spent := m.st.LastBudget - reading
		if spent < 0 {
			spent = 0
		}
		m.st.Consumption = append(m.st.Consumption, spent)
		if n := len(m.st.Consumption); n > m.cfg.ConsumptionWindow {
			m.st.Consumption = m.st.Consumption[n-m.cfg.ConsumptionWindow:]
		}
	}
	m.st.LastBudget = reading
	m.st.HaveLast = true

	if m.cfg.SampleInterval > 1 && tick%m.cfg.SampleInterval != 0 {
		return
	}

	var prev Sample
	havePrev := len(m.st.Samples) > 0
	if havePrev {
		prev = m.st.Samples[len(m.st.Samples)-1]
	}
	m.push(Sample{Tick: tick, Budget: reading})

	if havePrev {
		if reading < prev.Budget {
			m.st.DrainCount++
		} else {
			// Flat or increasing resets the streak immediately.
			m.st.DrainCount = 0
		}
	}

	if m.st.Episode.Active {
		m.st.Episode.Rate = m.recoveryRate()
		m.maybeExit(tick)
		return
	}

	// Dual entry condition: a sustained drain streak alone is not enough —
	// the gauge must also be genuinely low, so transient dips near full
	// budget never trigger an episode.
	if m.st.DrainCount >= m.cfg.DrainThreshold && reading < m.cfg.LowWater*m.cfg.MaxBudget {
		m.enter(tick, reading)
	}
}

// ShouldRun reports whether work of the given priority may run this tick.
// Outside a recovery episode everything runs. Inside one, the decision
// blends the recovery factor, the absolute budget, and the rolling
// consumption average. Critical is exempt from all of it.
func (m *Monitor) ShouldRun(p Priority) bool {
	if p == Critical {
		return true
	}
	if !m.st.Episode.Active {
		return true
	}

	// If recent work has been demonstrably cheap, throttling it buys
	// nothing — open the gate regardless of the factor.
	if avg, n := m.avgConsumption(); n > 0 && avg < m.cfg.CheapConsumption {
		return true
	}

	f := m.RecoveryFactor()
	b := m.st.Budget
	switch p {
	case High:
		return f >= m.cfg.HighFactor || b >= m.cfg.HighBudgetFrac*m.cfg.MaxBudget
	case Medium:
		return f >= m.cfg.MediumFactor || b >= m.cfg.MediumBudgetFrac*m.cfg.MaxBudget
	case Low:
		return f >= m.cfg.LowFactor && b >= m.cfg.LowBudgetFrac*m.cfg.MaxBudget
	}
	return true
}

// RecoveryFactor returns the current gate value in [0.2, 1.0]. It is 1.0
// whenever no episode is active. During an episode it follows a damped
// square-root of the budget fraction, nudged by the observed recovery rate
// and raised by a capped bonus for time already spent recovering, so a
// persistently bad rate estimate cannot stall the episode forever.
func (m *Monitor) RecoveryFactor() float64 {
	if !m.st.Episode.Active {
		return 1.0
	}
	frac := m.st.Budget / m.cfg.MaxBudget
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}

	f := 0.8 * math.Sqrt(frac)
	if m.st.Episode.Rate > 0 {
		f += 0.08
	} else if m.st.Episode.Rate < 0 {
		f -= 0.08
	}

	elapsed := float64(m.st.Tick - m.st.Episode.StartTick)
	bonus := elapsed * 0.0005
	if bonus > 0.2 {
		bonus = 0.2
	}
	f += bonus

	if f < 0.2 {
		return 0.2
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}

// Recovering reports whether a recovery episode is active.
func (m *Monitor) Recovering() bool { return m.st.Episode.Active }

// CurrentBudget returns the last accepted gauge reading.
func (m *Monitor) CurrentBudget() float64 { return m.st.Budget }

// DrainCount returns the current consecutive-drain streak length.
func (m *Monitor) DrainCount() int { return m.st.DrainCount }

// EpisodeCount returns how many recovery episodes have been entered over
// the monitor's lifetime.
func (m *Monitor) EpisodeCount() uint64 { return m.st.Episodes }

func (m *Monitor) enter(tick uint64, reading float64) {
	m.st.Episode = Episode{
		Active:      true,
		StartTick:   tick,
		StartBudget: reading,
	}
	m.st.Episodes++
	// Fresh episode, fresh history: the rate estimate should describe this
	// episode, not the drain that caused it.
	m.st.Samples = []Sample{{Tick: tick, Budget: reading}}
	m.st.DrainCount = 0
	slog.Info("budget recovery started",
		"tick", tick,
		"budget", reading,
		"low_water", m.cfg.LowWater*m.cfg.MaxBudget,
	)
}

func (m *Monitor) maybeExit(tick uint64) {
	ep := &m.st.Episode
	if !ep.Active {
		return
	}
	elapsed := tick - ep.StartTick
	b := m.st.Budget

	switch {
	case b >= m.cfg.HighWater*m.cfg.MaxBudget && ep.Rate >= 0:
	case b >= m.cfg.MidWater*m.cfg.MaxBudget && elapsed >= m.cfg.MinEpisodeTicks:
	case elapsed >= m.cfg.MaxEpisodeTicks:
	default:
		return
	}

	slog.Info("budget recovery complete",
		"tick", tick,
		"elapsed", elapsed,
		"budget", b,
		"rate", ep.Rate,
	)
	*ep = Episode{}
	m.st.DrainCount = 0
}

// recoveryRate blends a short-window rate with the full-window rate,
// favoring the short window to react quickly while damping noise.
func (m *Monitor) recoveryRate() float64 {
	n := len(m.st.Samples)
	if n < 2 {
		return 0
	}
	full := rateOver(m.st.Samples)
	short := full
	if m.cfg.ShortWindow > 1 && n > m.cfg.ShortWindow {
		short = rateOver(m.st.Samples[n-m.cfg.ShortWindow:])
	}
	return 0.7*short + 0.3*full
}

func rateOver(s []Sample) float64 {
	first, last := s[0], s[len(s)-1]
	dt := float64(last.Tick) - float64(first.Tick)
	if dt <= 0 {
		return 0
	}
	return (last.Budget - first.Budget) / dt
}

func (m *Monitor) push(s Sample) {
	m.st.Samples = append(m.st.Samples, s)
	if n := len(m.st.Samples); n > m.cfg.SampleWindow {
		m.st.Samples = m.st.Samples[n-m.cfg.SampleWindow:]
	}
}

func (m *Monitor) avgConsumption() (float64, int) {
	n := len(m.st.Consumption)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, c := range m.st.Consumption {
		sum += c
	}
	return sum / float64(n), n
}
