// Package host declares the boundary between the colony core and the
// hosting simulation. The core consumes summarized facts through these
// interfaces and hands plans back; it never touches live host objects.
// Everything here is re-queried each tick — no implementation may assume
// its return values are held across a tick boundary.
package host

import "github.com/talgya/colony-mind/internal/colony"

// Gauge reads the ambient budget signal. ok=false marks an unreliable or
// missing reading; the monitor then assumes no drain for that tick.
type Gauge interface {
	Budget() (reading float64, ok bool)
	MaxBudget() float64
}

// Clock reads the ambient tick counter (monotonically increasing).
type Clock interface {
	Tick() uint64
}

// Surveyor answers summarized per-area questions. These calls are the
// expensive work the budget monitor gates and the cache memoizes; the
// placement, pathfinding, and behavioral logic behind them lives entirely
// on the host side.
type Surveyor interface {
	Areas() []colony.AreaID
	Stage(area colony.AreaID) colony.Stage
	Throughput(area colony.AreaID) colony.Throughput

	Census() (colony.CountsByArea, error)
	Sources(area colony.AreaID) (colony.SourceStatus, error)
	Threats(area colony.AreaID) (colony.ThreatStatus, error)
	Dropped(area colony.AreaID) (colony.DroppedResources, error)
	Deliveries(area colony.AreaID) (colony.DeliveryTargets, error)
	BuildBacklog(area colony.AreaID) (colony.BuildBacklog, error)
	RepairBacklog(area colony.AreaID) (colony.RepairBacklog, error)
}

// Nursery accepts spawn orders and reports spawn economics.
type Nursery interface {
	// SpawnCapacity returns the resource currently accumulated for
	// spawning in the area and the maximum it could hold.
	SpawnCapacity(area colony.AreaID) (available, capacity float64)
	// Spawn submits an order. The host may take several ticks to fulfil
	// it; the order ID is the correlation handle.
	Spawn(order colony.SpawnOrder) error
}

// TickHook is the optional end-of-tick registration point. Hosts that have
// one get the cache flush deferred there; others get a synchronous flush at
// the end of the core's own invocation.
type TickHook interface {
	OnTickEnd(fn func())
}

// Overrides exposes the operator's manual role-target pins, if any.
type Overrides interface {
	Overrides(area colony.AreaID) *colony.Overrides
}
