package planner

import (
	"github.com/talgya/colony-mind/internal/colony"
)

// DeficitItem ranks one under-target role. Transient: recomputed for every
// spawn decision, never persisted.
type DeficitItem struct {
	Role            colony.Role
	Current         int
	Target          int
	DeficitPercent  float64 // (target - current) / target * 100
	WeightedPercent float64 // after role-specific multipliers
}

// PickNextRole returns the role most in need of a new unit, or ok=false
// when every role is at or above target (or an operator total cap is hit).
//
// A hard floor runs first: any role with a target of at least one and zero
// living units is returned immediately, in fixed priority order, so the
// colony can recover from total collapse no matter what the weighted
// deficits say. A role pinned to zero by an override never floors.
func PickNextRole(cfg Config, f Facts, targets Targets) (colony.Role, bool) {
	total := 0
	for _, n := range f.Counts {
		total += n
	}
	if targets.Cap > 0 && total >= targets.Cap {
		return 0, false
	}

	for _, r := range colony.Roles() {
		if targets.PerRole[r] >= 1 && f.Counts[r] == 0 {
			return r, true
		}
	}

	items := RankDeficits(cfg, f, targets)
	if len(items) == 0 {
		return 0, false
	}
	return items[0].Role, true
}

// RankDeficits computes the weighted deficit list, best candidate first.
// Ties break by the fixed priority order, which the stable walk below
// guarantees for free. In degraded mode weights collapse to the fixed
// order: first role below target wins.
func RankDeficits(cfg Config, f Facts, targets Targets) []DeficitItem {
	var items []DeficitItem
	for _, r := range colony.Roles() {
		target := targets.PerRole[r]
		current := f.Counts[r]
		if target <= 0 || current >= target {
			continue
		}
		pct := float64(target-current) / float64(target) * 100
		item := DeficitItem{
			Role:           r,
			Current:        current,
			Target:         target,
			DeficitPercent: pct,
		}
		if f.Degraded {
			// Fixed-order fallback: earlier roles dominate outright.
			item.WeightedPercent = pct + float64(colony.NumRoles-int(r))*1000
		} else {
			item.WeightedPercent = pct * roleWeight(cfg, f, r)
		}
		items = append(items, item)
	}

	// Insertion sort by weighted percent, stable across the fixed order.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].WeightedPercent > items[j-1].WeightedPercent; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	return items
}

// roleWeight applies the role-specific multipliers: extraction always
// weighted highest, transport up once extraction exists, construction up
// sharply with zero dedicated units or critical-infrastructure signals,
// improvement down while construction waits and up in late progression.
func roleWeight(cfg Config, f Facts, r colony.Role) float64 {
	switch r {
	case colony.RoleHarvester:
		return cfg.WeightHarvester

	case colony.RoleHauler:
		if f.Counts[colony.RoleHarvester] > 0 {
			return cfg.WeightHauler
		}
		return cfg.WeightHaulerIdle

	case colony.RoleBuilder:
		backlog := f.Build.Count + f.Repair.Count
		if backlog > 0 && f.Counts[colony.RoleBuilder] == 0 {
			return cfg.WeightBuilderZero
		}
		critical := f.Repair.WorstRatio > 0 && f.Repair.WorstRatio < cfg.CriticalRepairRatio
		if critical || f.Threat.UnderAttack {
			return cfg.WeightBuilderCritical
		}
		return cfg.WeightBuilderBase

	case colony.RoleUpgrader:
		if f.Build.Count > 0 {
			return cfg.WeightUpgraderBacklog
		}
		if f.Stage == colony.StageMature {
			return cfg.WeightUpgraderLate
		}
		return cfg.WeightUpgraderBase
	}
	return 1.0
}

// PriorityRanks flattens the deficit list into the role→weighted-percent
// map written back to the durable store for collaborators.
func PriorityRanks(items []DeficitItem) map[string]float64 {
	ranks := make(map[string]float64, len(items))
	for _, it := range items {
		ranks[it.Role.String()] = it.WeightedPercent
	}
	return ranks
}
