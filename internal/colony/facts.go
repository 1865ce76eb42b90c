package colony

// Fact records cached per area. All of these are plain data so the host can
// serialize them between ticks.

// RoleCensus counts living workers by role across the whole colony, plus
// the smallest remaining-lifetime fraction per role (0 = about to expire,
// 1 = freshly spawned). Computed at most once per tick process-wide.
type RoleCensus struct {
	Counts       map[Role]int     `json:"counts"`
	MinLifeFrac  map[Role]float64 `json:"min_life_frac"`
	TotalWorkers int              `json:"total_workers"`
}

// CountsByArea breaks the census down per area for area-scoped planning.
type CountsByArea map[AreaID]RoleCensus

// SourceStatus summarizes the harvestable nodes of one area.
type SourceStatus struct {
	Nodes        int      `json:"nodes"`
	ActiveNodes  []string `json:"active_nodes"` // node identifiers, not handles
	RegenPerTick float64  `json:"regen_per_tick"`
	HaulDistance float64  `json:"haul_distance"` // average node→depot distance
}

// ThreatStatus summarizes hostile presence in one area.
type ThreatStatus struct {
	Hostiles    int  `json:"hostiles"`
	UnderAttack bool `json:"under_attack"`
}

// DroppedResources summarizes loose resource piles worth collecting.
type DroppedResources struct {
	Piles  int `json:"piles"`
	Amount int `json:"amount"`
}

// DeliveryTargets lists structures currently wanting resource deliveries.
type DeliveryTargets struct {
	IDs    []string `json:"ids"`
	Needed int      `json:"needed"`
}

// BuildBacklog summarizes pending construction work.
type BuildBacklog struct {
	Count  int            `json:"count"`
	IDs    []string       `json:"ids"`
	ByType map[string]int `json:"by_type"`
}

// RepairBacklog summarizes structures below their repair threshold.
type RepairBacklog struct {
	Count      int      `json:"count"`
	IDs        []string `json:"ids"`
	WorstRatio float64  `json:"worst_ratio"` // lowest hits/hitsMax seen
}

// Throughput is the always-fresh energy throughput mirror, written every
// tick regardless of cache staleness.
type Throughput struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Overrides lets an operator pin individual role targets and/or the total
// cap for one area. Pinned values replace computed targets outright.
type Overrides struct {
	Targets  map[Role]int `json:"targets,omitempty"`
	TotalCap *int         `json:"total_cap,omitempty"`
}

// SpawnOrder is the planner's output: produce one worker of Role in Area.
// The ID lets the host correlate the order with the unit it eventually
// produces, across however many ticks that takes.
type SpawnOrder struct {
	ID      string  `json:"id"`
	Area    AreaID  `json:"area"`
	Role    Role    `json:"role"`
	Urgency float64 `json:"urgency"`
	Tick    uint64  `json:"tick"`
}
