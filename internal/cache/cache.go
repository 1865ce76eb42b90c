// Package cache is the tiered per-area state cache: a multi-TTL memo layer
// between the colony core and the host's expensive queries, with a deferred
// once-per-tick write-back into the durable store.
//
// The cache never computes anything itself. Callers bring a compute
// function; the cache decides whether the cached value is still good,
// whether the budget monitor permits recomputation, and what to answer when
// computation fails.
package cache

import (
	"log/slog"

	"github.com/talgya/colony-mind/internal/budget"
	"github.com/talgya/colony-mind/internal/colony"
)

// Config holds the cache's tuning knobs.
type Config struct {
	// TTLs overrides the base TTL per category. Zero entries keep the
	// built-in policy value.
	TTLs map[Category]uint64 `yaml:"ttls"`

	// DegradedTTLScale multiplies structural TTLs while the budget monitor
	// is in a recovery episode.
	DegradedTTLScale float64 `yaml:"degraded_ttl_scale"`

	// FoundingTTLScale multiplies structural TTLs again during the founding
	// stage, where backlogs change rarely.
	FoundingTTLScale float64 `yaml:"founding_ttl_scale"`

	// AnomalyLogEvery rate-limits compute-failure log lines to one per this
	// many ticks.
	AnomalyLogEvery uint64 `yaml:"anomaly_log_every"`
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		DegradedTTLScale: 2.0,
		FoundingTTLScale: 2.0,
		AnomalyLogEvery:  25,
	}
}

// Status classifies a Get result.
type Status uint8

const (
	Missing Status = iota
	Stale
	Fresh
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	}
	return "unknown"
}

// Entry is one cached fact. Fresh iff tick - ComputedAt < TTL.
type Entry struct {
	Value      any    `json:"value"`
	ComputedAt uint64 `json:"computed_at"`
	TTL        uint64 `json:"ttl"`
}

// areaState holds everything cached for one area. Areas are created lazily
// on first reference and never destroyed.
type areaState struct {
	entries map[Category]Entry

	// Always-fresh mirrors, written every tick regardless of staleness.
	throughput colony.Throughput
	priorities map[string]float64 // planner's computed deficit ranks
}

// Cache is the tiered state cache. Single-threaded: the tick driver owns it
// and all consumers run sequentially within a tick.
type Cache struct {
	cfg Config

	tick     uint64
	degraded bool
	stage    colony.Stage
	gate     func(budget.Priority) bool

	areas  map[colony.AreaID]*areaState
	global map[Category]Entry

	touched       map[colony.AreaID]struct{}
	lastAnomalyAt uint64
	anomalyCount  uint64

	recomputes map[Category]uint64 // lifetime recomputation counters
}

// New creates an empty Cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:        cfg,
		areas:      make(map[colony.AreaID]*areaState),
		global:     make(map[Category]Entry),
		touched:    make(map[colony.AreaID]struct{}),
		recomputes: make(map[Category]uint64),
		gate:       func(budget.Priority) bool { return true },
	}
}

// BeginTick installs this tick's ambient inputs: the tick counter, the
// budget monitor's degradation signal and admission gate, and the colony's
// lifecycle stage. Must be called before any Get/Put/Resolve of the tick.
func (c *Cache) BeginTick(tick uint64, degraded bool, stage colony.Stage, gate func(budget.Priority) bool) {
	c.tick = tick
	c.degraded = degraded
	c.stage = stage
	if gate != nil {
		c.gate = gate
	}
}

// Get returns the cached value and its freshness for (area, category).
// The cache performs no computation; a Stale or Missing answer means the
// caller may recompute and Put.
func (c *Cache) Get(area colony.AreaID, cat Category) (any, Status) {
	e, ok := c.lookup(area, cat)
	if !ok {
		return nil, Missing
	}
	if c.fresh(e) {
		return e.Value, Fresh
	}
	return e.Value, Stale
}

// Put overwrites the entry for (area, category), stamping the current tick
// and the category's effective TTL. Same-tick readers see the new value
// immediately; the durable store sees it at the next Flush.
func (c *Cache) Put(area colony.AreaID, cat Category, value any) {
	e := Entry{Value: value, ComputedAt: c.tick, TTL: c.effectiveTTL(cat)}
	if cat.Global() {
		c.global[cat] = e
		return
	}
	c.area(area).entries[cat] = e
	c.touched[area] = struct{}{}
}

// Resolve is the gated memo: fresh value at zero cost, otherwise recompute
// when the budget gate admits the category's priority tier, otherwise the
// stale value. A failed recomputation degrades to the last known value, or
// the category's safe default when nothing was ever computed. Resolve never
// returns an error to the caller — anomalies are logged, rate-limited.
func (c *Cache) Resolve(area colony.AreaID, cat Category, compute func() (any, error)) any {
	e, ok := c.lookup(area, cat)
	if ok && c.fresh(e) {
		return e.Value
	}

	if !c.gate(cat.Priority()) {
		if ok {
			return e.Value
		}
		return defaultValue(cat)
	}

	v, err := compute()
	if err != nil {
		c.noteAnomaly(area, cat, err)
		if ok {
			return e.Value
		}
		return defaultValue(cat)
	}
	c.recomputes[cat]++
	c.Put(area, cat, v)
	return v
}

// Census resolves the global role census, computed at most once per tick
// process-wide no matter how many areas or callers ask.
func (c *Cache) Census(compute func() (colony.CountsByArea, error)) colony.CountsByArea {
	v := c.Resolve("", CatRoleCensus, func() (any, error) {
		return compute()
	})
	counts, ok := v.(colony.CountsByArea)
	if !ok {
		return colony.CountsByArea{}
	}
	return counts
}

// MirrorThroughput records the always-fresh throughput snapshot for an
// area. Cheap to read from the host, so it is written every tick.
func (c *Cache) MirrorThroughput(area colony.AreaID, t colony.Throughput) {
	c.area(area).throughput = t
	c.touched[area] = struct{}{}
}

// Throughput returns the area's mirrored throughput snapshot.
func (c *Cache) Throughput(area colony.AreaID) colony.Throughput {
	return c.area(area).throughput
}

// NotePriorities records the planner's computed deficit ranks for write-back
// visibility. Collaborators read these from the durable store; the core
// never reads them back.
func (c *Cache) NotePriorities(area colony.AreaID, ranks map[string]float64) {
	c.area(area).priorities = ranks
	c.touched[area] = struct{}{}
}

// Recomputes returns how many times the given category has actually been
// recomputed over the cache's lifetime.
func (c *Cache) Recomputes(cat Category) uint64 { return c.recomputes[cat] }

// Tick returns the tick installed by the last BeginTick.
func (c *Cache) Tick() uint64 { return c.tick }

func (c *Cache) fresh(e Entry) bool {
	return c.tick-e.ComputedAt < e.TTL
}

func (c *Cache) lookup(area colony.AreaID, cat Category) (Entry, bool) {
	if cat.Global() {
		e, ok := c.global[cat]
		return e, ok
	}
	st, ok := c.areas[area]
	if !ok {
		return Entry{}, false
	}
	e, ok := st.entries[cat]
	return e, ok
}

func (c *Cache) area(id colony.AreaID) *areaState {
	st, ok := c.areas[id]
	if !ok {
		st = &areaState{entries: make(map[Category]Entry)}
		c.areas[id] = st
	}
	return st
}

// effectiveTTL applies the degradation and lifecycle scaling to structural
// categories. Volatile categories keep their base TTL: answering with old
// threat data to save budget is a bad trade.
func (c *Cache) effectiveTTL(cat Category) uint64 {
	p := policies[cat]
	ttl := p.ttl
	if override, ok := c.cfg.TTLs[cat]; ok && override > 0 {
		ttl = override
	}
	if !p.structural {
		return ttl
	}
	scaled := float64(ttl)
	if c.degraded && c.cfg.DegradedTTLScale > 1 {
		scaled *= c.cfg.DegradedTTLScale
	}
	if c.stage == colony.StageFounding && c.cfg.FoundingTTLScale > 1 {
		scaled *= c.cfg.FoundingTTLScale
	}
	return uint64(scaled)
}

func (c *Cache) noteAnomaly(area colony.AreaID, cat Category, err error) {
	c.anomalyCount++
	if c.cfg.AnomalyLogEvery > 0 && c.tick-c.lastAnomalyAt < c.cfg.AnomalyLogEvery && c.lastAnomalyAt != 0 {
		return
	}
	c.lastAnomalyAt = c.tick
	slog.Warn("cache recompute failed, serving fallback",
		"area", area,
		"category", cat.String(),
		"tick", c.tick,
		"total_anomalies", c.anomalyCount,
		"error", err,
	)
}
