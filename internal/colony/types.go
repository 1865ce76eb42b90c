// Package colony defines the shared plain-data types of the colony core.
// Nothing in this package may hold a live host handle — only identifiers
// and scalar/structured data survive a tick boundary, because the host's
// object graph is rebuilt between ticks.
package colony

// AreaID identifies a managed area. Live area handles are re-resolved from
// this identifier at the top of each tick, never carried across ticks.
type AreaID string

// Role is the closed set of worker specializations the planner produces.
type Role uint8

const (
	// RoleHarvester extracts resources from nodes. The foundational role —
	// the colony collapses without it.
	RoleHarvester Role = iota
	// RoleHauler moves extracted resources to where they are consumed.
	RoleHauler
	// RoleUpgrader performs generic colony improvement work.
	RoleUpgrader
	// RoleBuilder works down the construction and repair backlogs.
	RoleBuilder

	roleCount
)

// Roles returns all roles in fixed priority order: extraction first, then
// transport, then improvement, then construction. Floor checks and tie
// breaks walk this order.
func Roles() [4]Role {
	return [4]Role{RoleHarvester, RoleHauler, RoleUpgrader, RoleBuilder}
}

// NumRoles is the size of the closed role set.
const NumRoles = int(roleCount)

func (r Role) String() string {
	switch r {
	case RoleHarvester:
		return "harvester"
	case RoleHauler:
		return "hauler"
	case RoleUpgrader:
		return "upgrader"
	case RoleBuilder:
		return "builder"
	}
	return "unknown"
}

// ParseRole maps a role name back to its enum value.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles() {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// Stage is the colony's lifecycle stage. Early stages change slowly, so
// structural cache facts may live longer before recomputation.
type Stage uint8

const (
	StageFounding Stage = iota // first workers, no infrastructure yet
	StageGrowth                // active expansion
	StageMature                // infrastructure settled
)

func (s Stage) String() string {
	switch s {
	case StageFounding:
		return "founding"
	case StageGrowth:
		return "growth"
	case StageMature:
		return "mature"
	}
	return "unknown"
}
