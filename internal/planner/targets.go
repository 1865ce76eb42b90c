// Package planner turns cached economic facts into worker production
// decisions: how many of each role the colony should have, which role to
// produce next, and whether to spawn now or wait for more resources.
package planner

import (
	"log/slog"
	"math"

	"github.com/talgya/colony-mind/internal/colony"
)

// Config holds the planner's tuning knobs. Defaults were tuned against one
// specific economy — policy, not invariants.
type Config struct {
	YieldPerWorker    float64 `yaml:"yield_per_worker"`    // extraction per harvester per tick
	MaxPerNode        int     `yaml:"max_per_node"`        // harvester seats per node
	HaulerCapacity    float64 `yaml:"hauler_capacity"`     // throughput one hauler moves at reference distance
	ReferenceDistance float64 `yaml:"reference_distance"`  // distance yielding hauler multiplier 1.0
	BacklogPerBuilder int     `yaml:"backlog_per_builder"` // one extra builder per this many backlog items
	MaxBuilders       int     `yaml:"max_builders"`
	UpgraderMinimum   int     `yaml:"upgrader_minimum"`

	// Deficit weight multipliers.
	WeightHarvester       float64 `yaml:"weight_harvester"`
	WeightHauler          float64 `yaml:"weight_hauler"`
	WeightHaulerIdle      float64 `yaml:"weight_hauler_idle"` // no extraction running yet
	WeightBuilderBase     float64 `yaml:"weight_builder_base"`
	WeightBuilderZero     float64 `yaml:"weight_builder_zero"` // backlog exists, zero builders
	WeightBuilderCritical float64 `yaml:"weight_builder_critical"`
	WeightUpgraderBase    float64 `yaml:"weight_upgrader_base"`
	WeightUpgraderBacklog float64 `yaml:"weight_upgrader_backlog"` // damped while construction waits
	WeightUpgraderLate    float64 `yaml:"weight_upgrader_late"`

	// Spawn timing.
	SpawnBaseFraction    float64 `yaml:"spawn_base_fraction"`    // capacity fraction to accumulate
	SpawnUrgencyDiscount float64 `yaml:"spawn_urgency_discount"` // threshold reduction at urgency 1
	SpawnMaxWait         uint64  `yaml:"spawn_max_wait"`         // ticks
	SpawnWaitDiscount    float64 `yaml:"spawn_wait_discount"`    // wait reduction at urgency 1
	UrgencyDeficitBlend  float64 `yaml:"urgency_deficit_blend"`  // deficit vs remaining-life mix

	CriticalRepairRatio float64 `yaml:"critical_repair_ratio"` // worst hits ratio counting as critical infrastructure
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		YieldPerWorker:    2.0,
		MaxPerNode:        3,
		HaulerCapacity:    5.0,
		ReferenceDistance: 20.0,
		BacklogPerBuilder: 10,
		MaxBuilders:       4,
		UpgraderMinimum:   1,

		WeightHarvester:       1.5,
		WeightHauler:          1.2,
		WeightHaulerIdle:      0.6,
		WeightBuilderBase:     1.0,
		WeightBuilderZero:     2.0,
		WeightBuilderCritical: 1.8,
		WeightUpgraderBase:    1.0,
		WeightUpgraderBacklog: 0.5,
		WeightUpgraderLate:    1.4,

		SpawnBaseFraction:    0.8,
		SpawnUrgencyDiscount: 0.6,
		SpawnMaxWait:         150,
		SpawnWaitDiscount:    0.8,
		UrgencyDeficitBlend:  0.6,

		CriticalRepairRatio: 0.25,
	}
}

// Facts are the cached economic inputs for one area's planning pass.
// Degraded marks facts that could not be refreshed beyond recovery; the
// planner then falls back to minimal targets and the fixed priority order.
type Facts struct {
	Area        colony.AreaID
	Counts      map[colony.Role]int
	MinLifeFrac map[colony.Role]float64
	Source      colony.SourceStatus
	Throughput  colony.Throughput
	Build       colony.BuildBacklog
	Repair      colony.RepairBacklog
	Threat      colony.ThreatStatus
	Stage       colony.Stage
	Overrides   *colony.Overrides
	Degraded    bool
}

// Targets is the desired worker count per role plus the total cap.
type Targets struct {
	PerRole map[colony.Role]int
	Total   int
	Cap     int
}

// ComputeTargets derives the target count per role from current economics.
// Pure: recomputed whenever the underlying facts refresh, never cached.
func ComputeTargets(cfg Config, f Facts) Targets {
	per := make(map[colony.Role]int, colony.NumRoles)

	if f.Degraded {
		// Conservative fallback: keep the colony alive, nothing more.
		per[colony.RoleHarvester] = 1
		per[colony.RoleHauler] = 1
		per[colony.RoleUpgrader] = 0
		per[colony.RoleBuilder] = 0
	} else {
		per[colony.RoleHarvester] = harvesterTarget(cfg, f)
		per[colony.RoleHauler] = haulerTarget(cfg, f)
		per[colony.RoleBuilder] = builderTarget(cfg, f)
		per[colony.RoleUpgrader] = cfg.UpgraderMinimum
	}

	applyOverrides(f, per)

	t := Targets{PerRole: per}
	for _, n := range per {
		t.Total += n
	}
	t.Cap = t.Total
	if f.Overrides != nil && f.Overrides.TotalCap != nil {
		t.Cap = *f.Overrides.TotalCap
	}
	return t
}

// harvesterTarget sizes extraction from required throughput (node
// regeneration over per-worker yield) against what existing workers already
// realize, rounded up and capped by node seats.
func harvesterTarget(cfg Config, f Facts) int {
	if f.Source.Nodes == 0 {
		return 0
	}
	yield := cfg.YieldPerWorker
	if yield <= 0 {
		yield = 1
	}
	required := int(math.Ceil(f.Source.RegenPerTick / yield))
	realized := f.Counts[colony.RoleHarvester]
	if realized >= required && required > 0 {
		// Demand already met; hold the line rather than shrinking below it.
		required = realized
	}
	cap := f.Source.Nodes * cfg.MaxPerNode
	if required > cap {
		required = cap
	}
	if required < 1 {
		required = 1
	}
	return required
}

// haulerTarget scales transport with throughput and a distance multiplier
// normalized so the reference distance yields 1.0.
func haulerTarget(cfg Config, f Facts) int {
	if f.Source.Nodes == 0 {
		return 0
	}
	mult := 1.0
	if f.Source.HaulDistance > 0 && cfg.ReferenceDistance > 0 {
		mult = f.Source.HaulDistance / cfg.ReferenceDistance
	}
	capacity := cfg.HaulerCapacity
	if capacity <= 0 {
		capacity = 1
	}
	n := int(math.Ceil(f.Source.RegenPerTick * mult / capacity))
	if n < 1 {
		n = 1
	}
	return n
}

// builderTarget is driven by backlog presence: at least one dedicated unit
// whenever any construction or repair work exists, more when the backlog is
// large, capped.
func builderTarget(cfg Config, f Facts) int {
	backlog := f.Build.Count + f.Repair.Count
	if backlog == 0 {
		return 0
	}
	n := 1
	if cfg.BacklogPerBuilder > 0 {
		n += backlog / cfg.BacklogPerBuilder
	}
	if cfg.MaxBuilders > 0 && n > cfg.MaxBuilders {
		n = cfg.MaxBuilders
	}
	return n
}

// applyOverrides replaces individually pinned targets. An override always
// wins, but pinning below a survivable floor is logged for the operator.
func applyOverrides(f Facts, per map[colony.Role]int) {
	if f.Overrides == nil {
		return
	}
	for role, pinned := range f.Overrides.Targets {
		if pinned < per[role] && role == colony.RoleHarvester && pinned == 0 {
			slog.Warn("override pins extraction to zero",
				"area", f.Area, "computed", per[role])
		}
		per[role] = pinned
	}
}
