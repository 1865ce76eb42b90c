// Package brain is the top-level tick driver of the colony core. It owns
// the budget monitor, the tiered cache, and the planner policy, and wires
// them to the host through injected interfaces so every component stays
// testable in isolation — no ambient globals.
package brain

import (
	"log/slog"
	"sync"

	"github.com/talgya/colony-mind/internal/budget"
	"github.com/talgya/colony-mind/internal/cache"
	"github.com/talgya/colony-mind/internal/colony"
	"github.com/talgya/colony-mind/internal/host"
	"github.com/talgya/colony-mind/internal/planner"
)

// Config is the brain's assembled tuning.
type Config struct {
	Budget  budget.Config
	Cache   cache.Config
	Planner planner.Config

	// DiagnosticsEvery rate-limits the periodic status log line.
	DiagnosticsEvery uint64
}

// OrderJournal records submitted spawn orders for later correlation.
// Implemented by the store; optional.
type OrderJournal interface {
	RecordSpawnOrder(colony.SpawnOrder) error
}

// Deps are the host collaborators. Gauge, Clock, Surveyor, and Nursery are
// required; the rest are optional.
type Deps struct {
	Gauge    host.Gauge
	Clock    host.Clock
	Surveyor host.Surveyor
	Nursery  host.Nursery

	Hook      host.TickHook  // end-of-tick flush registration
	Overrides host.Overrides // operator role-target pins
	Sink      cache.WriteSink
	Journal   OrderJournal
}

// Status is a plain snapshot for diagnostics and the HTTP API.
type Status struct {
	Tick         uint64  `json:"tick"`
	Budget       float64 `json:"budget"`
	MaxBudget    float64 `json:"max_budget"`
	Recovering   bool    `json:"recovering"`
	Factor       float64 `json:"recovery_factor"`
	Episodes     uint64  `json:"episodes"`
	DrainCount   int     `json:"drain_count"`
	Areas        int     `json:"areas"`
	SpawnsIssued uint64  `json:"spawns_issued"`
}

// AreaPlan is the per-area planning outcome of the latest tick.
type AreaPlan struct {
	Area     colony.AreaID         `json:"area"`
	Targets  map[colony.Role]int   `json:"targets"`
	Counts   map[colony.Role]int   `json:"counts"`
	Ranks    map[string]float64    `json:"ranks"`
	Wish     *colony.Role          `json:"wish,omitempty"`
	Urgency  float64               `json:"urgency"`
	Degraded bool                  `json:"degraded"`
}

// Brain runs one decision pass per tick. RunTick is single-threaded by
// contract; the mutex only guards the status snapshot read by the API.
type Brain struct {
	cfg Config

	monitor *budget.Monitor
	cache   *cache.Cache
	deps    Deps

	// waitSince tracks, per area, the tick at which the current spawn wish
	// started waiting for resources.
	waitSince map[colony.AreaID]uint64

	spawns   uint64
	lastDiag uint64

	mu     sync.RWMutex
	status Status
	plans  map[colony.AreaID]AreaPlan
	orders []colony.SpawnOrder // most recent first, bounded
}

// New builds a Brain with fresh state.
func New(cfg Config, deps Deps) *Brain {
	return &Brain{
		cfg:       cfg,
		monitor:   budget.New(cfg.Budget),
		cache:     cache.New(cfg.Cache),
		deps:      deps,
		waitSince: make(map[colony.AreaID]uint64),
		plans:     make(map[colony.AreaID]AreaPlan),
	}
}

// Monitor exposes the budget monitor for callers that gate their own work.
func (b *Brain) Monitor() *budget.Monitor { return b.monitor }

// Cache exposes the tiered cache for same-tick consumers.
func (b *Brain) Cache() *cache.Cache { return b.cache }

// RunTick executes one full decision pass: monitor update, cache warm-up,
// per-area planning, spawn decisions, then the deferred store flush. It
// runs to completion synchronously and never panics past its boundary.
func (b *Brain) RunTick() {
	tick := b.deps.Clock.Tick()
	reading, ok := b.deps.Gauge.Budget()
	b.monitor.Update(tick, reading, ok)

	areas := b.deps.Surveyor.Areas()
	stage := b.overallStage(areas)
	b.cache.BeginTick(tick, b.monitor.Recovering(), stage, b.monitor.ShouldRun)

	census := b.cache.Census(b.deps.Surveyor.Census)

	plans := make(map[colony.AreaID]AreaPlan, len(areas))
	for _, area := range areas {
		plans[area] = b.planArea(tick, area, census, stage)
	}

	// Deferred write-back: through the host's end-of-tick hook when it has
	// one, synchronously before returning control otherwise.
	if b.deps.Sink != nil {
		if b.deps.Hook != nil {
			b.deps.Hook.OnTickEnd(func() { b.flush() })
		} else {
			b.flush()
		}
	}

	b.publish(tick, len(areas), plans)
	b.diagnostics(tick)
}

// planArea refreshes one area's facts through the gated cache and decides
// whether to order a spawn.
func (b *Brain) planArea(tick uint64, area colony.AreaID, census colony.CountsByArea, stage colony.Stage) AreaPlan {
	// Always-fresh mirror, cheap to read from the host.
	b.cache.MirrorThroughput(area, b.deps.Surveyor.Throughput(area))

	facts := b.gatherFacts(area, census, stage)
	targets := planner.ComputeTargets(b.cfg.Planner, facts)
	items := planner.RankDeficits(b.cfg.Planner, facts, targets)
	ranks := planner.PriorityRanks(items)
	b.cache.NotePriorities(area, ranks)

	plan := AreaPlan{
		Area:     area,
		Targets:  targets.PerRole,
		Counts:   facts.Counts,
		Ranks:    ranks,
		Degraded: facts.Degraded,
	}

	role, want := planner.PickNextRole(b.cfg.Planner, facts, targets)
	if !want {
		delete(b.waitSince, area)
		return plan
	}
	plan.Wish = &role

	urgency := planner.Urgency(b.cfg.Planner, facts, role, targets)
	plan.Urgency = urgency

	if _, waiting := b.waitSince[area]; !waiting {
		b.waitSince[area] = tick
	}
	waited := tick - b.waitSince[area]

	available, capacity := b.deps.Nursery.SpawnCapacity(area)
	if !planner.ShouldSpawnNow(b.cfg.Planner, urgency, available, capacity, waited) {
		return plan
	}

	order := planner.NewOrder(area, role, urgency, tick)
	if err := b.deps.Nursery.Spawn(order); err != nil {
		slog.Warn("spawn order rejected",
			"area", area, "role", role.String(), "error", err)
		return plan
	}
	delete(b.waitSince, area)
	b.spawns++
	b.recordOrder(order)

	slog.Info("spawn ordered",
		"area", area,
		"role", role.String(),
		"urgency", urgency,
		"waited", waited,
		"order", order.ID,
	)
	return plan
}

// gatherFacts resolves every cached category for the area. Each resolve is
// gated by the category's priority tier; failures degrade to last known
// values or safe defaults inside the cache. Facts are marked Degraded when
// the source status — the planner's load-bearing input — has never been
// computed at all.
func (b *Brain) gatherFacts(area colony.AreaID, census colony.CountsByArea, stage colony.Stage) planner.Facts {
	s := b.deps.Surveyor

	source, _ := b.cache.Resolve(area, cache.CatSourceStatus, func() (any, error) {
		return s.Sources(area)
	}).(colony.SourceStatus)
	threat, _ := b.cache.Resolve(area, cache.CatThreatStatus, func() (any, error) {
		return s.Threats(area)
	}).(colony.ThreatStatus)
	build, _ := b.cache.Resolve(area, cache.CatBuildBacklog, func() (any, error) {
		return s.BuildBacklog(area)
	}).(colony.BuildBacklog)
	repair, _ := b.cache.Resolve(area, cache.CatRepairBacklog, func() (any, error) {
		return s.RepairBacklog(area)
	}).(colony.RepairBacklog)
	b.cache.Resolve(area, cache.CatDroppedResources, func() (any, error) {
		return s.Dropped(area)
	})
	b.cache.Resolve(area, cache.CatDeliveryTargets, func() (any, error) {
		return s.Deliveries(area)
	})

	_, sourceStatus := b.cache.Get(area, cache.CatSourceStatus)

	facts := planner.Facts{
		Area:       area,
		Source:     source,
		Threat:     threat,
		Build:      build,
		Repair:     repair,
		Throughput: b.cache.Throughput(area),
		Stage:      stage,
		Degraded:   sourceStatus == cache.Missing,
	}

	if cen, ok := census[area]; ok {
		facts.Counts = cen.Counts
		facts.MinLifeFrac = cen.MinLifeFrac
	} else {
		facts.Counts = map[colony.Role]int{}
		facts.MinLifeFrac = map[colony.Role]float64{}
	}

	if b.deps.Overrides != nil {
		facts.Overrides = b.deps.Overrides.Overrides(area)
	}
	return facts
}

func (b *Brain) flush() {
	if err := b.cache.Flush(b.deps.Sink); err != nil {
		// Dirty set is retained; next tick's flush retries.
		slog.Warn("deferred write-back failed", "error", err)
	}
}

// overallStage is the earliest lifecycle stage among managed areas: TTL
// scaling keys off the least-developed area, where change is rarest.
func (b *Brain) overallStage(areas []colony.AreaID) colony.Stage {
	stage := colony.StageMature
	for _, a := range areas {
		if s := b.deps.Surveyor.Stage(a); s < stage {
			stage = s
		}
	}
	if len(areas) == 0 {
		return colony.StageFounding
	}
	return stage
}

func (b *Brain) recordOrder(o colony.SpawnOrder) {
	if b.deps.Journal != nil {
		if err := b.deps.Journal.RecordSpawnOrder(o); err != nil {
			slog.Warn("spawn order journal failed", "order", o.ID, "error", err)
		}
	}
	b.mu.Lock()
	b.orders = append([]colony.SpawnOrder{o}, b.orders...)
	if len(b.orders) > 50 {
		b.orders = b.orders[:50]
	}
	b.mu.Unlock()
}

func (b *Brain) publish(tick uint64, areas int, plans map[colony.AreaID]AreaPlan) {
	b.mu.Lock()
	b.status = Status{
		Tick:         tick,
		Budget:       b.monitor.CurrentBudget(),
		MaxBudget:    b.deps.Gauge.MaxBudget(),
		Recovering:   b.monitor.Recovering(),
		Factor:       b.monitor.RecoveryFactor(),
		Episodes:     b.monitor.EpisodeCount(),
		DrainCount:   b.monitor.DrainCount(),
		Areas:        areas,
		SpawnsIssued: b.spawns,
	}
	b.plans = plans
	b.mu.Unlock()
}

// Status returns the latest published snapshot.
func (b *Brain) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Plans returns the latest per-area planning outcomes.
func (b *Brain) Plans() map[colony.AreaID]AreaPlan {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[colony.AreaID]AreaPlan, len(b.plans))
	for k, v := range b.plans {
		out[k] = v
	}
	return out
}

// RecentOrders returns the most recently issued spawn orders, newest first.
func (b *Brain) RecentOrders() []colony.SpawnOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]colony.SpawnOrder(nil), b.orders...)
}

// diagnostics emits a rate-limited status line — not every tick.
func (b *Brain) diagnostics(tick uint64) {
	if b.cfg.DiagnosticsEvery == 0 {
		return
	}
	if tick-b.lastDiag < b.cfg.DiagnosticsEvery && b.lastDiag != 0 {
		return
	}
	b.lastDiag = tick
	slog.Info("colony core status",
		"tick", tick,
		"budget", b.monitor.CurrentBudget(),
		"recovering", b.monitor.Recovering(),
		"factor", b.monitor.RecoveryFactor(),
		"episodes", b.monitor.EpisodeCount(),
		"spawns", b.spawns,
		"dirty_areas", b.cache.TouchedAreas(),
	)
}
