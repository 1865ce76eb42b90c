package cache

import (
	"github.com/talgya/colony-mind/internal/budget"
	"github.com/talgya/colony-mind/internal/colony"
)

// Category is the closed set of cached fact kinds. Each category carries a
// fixed TTL policy and an admission priority for its recomputation.
type Category uint8

const (
	// CatRoleCensus is the colony-wide population count, memoized globally
	// so it is computed at most once per tick across all callers.
	CatRoleCensus Category = iota
	CatDroppedResources
	CatDeliveryTargets
	CatSourceStatus
	CatThreatStatus
	CatBuildBacklog
	CatRepairBacklog

	categoryCount
)

// NumCategories is the size of the closed category set.
const NumCategories = int(categoryCount)

func (c Category) String() string {
	switch c {
	case CatRoleCensus:
		return "role_census"
	case CatDroppedResources:
		return "dropped_resources"
	case CatDeliveryTargets:
		return "delivery_targets"
	case CatSourceStatus:
		return "source_status"
	case CatThreatStatus:
		return "threat_status"
	case CatBuildBacklog:
		return "build_backlog"
	case CatRepairBacklog:
		return "repair_backlog"
	}
	return "unknown"
}

// policy is the fixed per-category caching policy. TTLs are base values;
// structural categories scale upward when the budget is degraded and again
// in the founding stage, where change is rare and scans are expensive.
type policy struct {
	ttl        uint64
	prio       budget.Priority
	structural bool
	global     bool
}

var policies = [categoryCount]policy{
	CatRoleCensus:       {ttl: 1, prio: budget.High, global: true},
	CatDroppedResources: {ttl: 3, prio: budget.Medium},
	CatDeliveryTargets:  {ttl: 3, prio: budget.Medium},
	CatSourceStatus:     {ttl: 5, prio: budget.Medium},
	CatThreatStatus:     {ttl: 5, prio: budget.High},
	CatBuildBacklog:     {ttl: 10, prio: budget.Low, structural: true},
	CatRepairBacklog:    {ttl: 25, prio: budget.Low, structural: true},
}

// Priority returns the admission tier gating this category's recomputation.
func (c Category) Priority() budget.Priority {
	if int(c) < len(policies) {
		return policies[c].prio
	}
	return budget.Low
}

// Global reports whether the category is colony-wide rather than per-area.
func (c Category) Global() bool {
	return int(c) < len(policies) && policies[c].global
}

// defaultValue is the documented safe answer when a category has never been
// computed and its recomputation failed or was throttled: zero counts and
// empty backlogs, so consumers plan conservatively instead of crashing.
func defaultValue(cat Category) any {
	switch cat {
	case CatRoleCensus:
		return colony.CountsByArea{}
	case CatDroppedResources:
		return colony.DroppedResources{}
	case CatDeliveryTargets:
		return colony.DeliveryTargets{}
	case CatSourceStatus:
		return colony.SourceStatus{}
	case CatThreatStatus:
		return colony.ThreatStatus{}
	case CatBuildBacklog:
		return colony.BuildBacklog{}
	case CatRepairBacklog:
		return colony.RepairBacklog{}
	}
	return nil
}
