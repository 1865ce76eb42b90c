package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/colony-mind/internal/colony"
)

// baseFacts describes a small healthy economy: two nodes regenerating 10
// per tick at the reference haul distance, no backlog, no threat.
func baseFacts() Facts {
	return Facts{
		Area: "area-1",
		Counts: map[colony.Role]int{
			colony.RoleHarvester: 0,
			colony.RoleHauler:    0,
			colony.RoleUpgrader:  0,
			colony.RoleBuilder:   0,
		},
		MinLifeFrac: map[colony.Role]float64{},
		Source: colony.SourceStatus{
			Nodes:        2,
			RegenPerTick: 10,
			HaulDistance: 20,
		},
		Stage: colony.StageGrowth,
	}
}

func TestComputeTargetsFromEconomy(t *testing.T) {
	targets := ComputeTargets(DefaultConfig(), baseFacts())

	// ceil(10 regen / 2 yield) harvesters, ceil(10×1.0 / 5 capacity) haulers,
	// no backlog means no builders, upgrader minimum of one.
	assert.Equal(t, 5, targets.PerRole[colony.RoleHarvester])
	assert.Equal(t, 2, targets.PerRole[colony.RoleHauler])
	assert.Equal(t, 0, targets.PerRole[colony.RoleBuilder])
	assert.Equal(t, 1, targets.PerRole[colony.RoleUpgrader])
	assert.Equal(t, 8, targets.Total)
	assert.Equal(t, targets.Total, targets.Cap)
}

func TestHarvesterTargetCappedByNodeSeats(t *testing.T) {
	f := baseFacts()
	f.Source.RegenPerTick = 100 // demands 50 workers

	targets := ComputeTargets(DefaultConfig(), f)
	assert.Equal(t, 6, targets.PerRole[colony.RoleHarvester], "2 nodes × 3 seats")
}

func TestHarvesterTargetHoldsRealizedDemand(t *testing.T) {
	f := baseFacts()
	f.Source.Nodes = 3
	f.Counts[colony.RoleHarvester] = 7 // more than the computed 5

	targets := ComputeTargets(DefaultConfig(), f)
	assert.Equal(t, 7, targets.PerRole[colony.RoleHarvester],
		"met demand holds the line instead of shrinking")
}

func TestHaulerTargetScalesWithDistance(t *testing.T) {
	f := baseFacts()
	f.Source.HaulDistance = 60 // 3× the reference distance

	targets := ComputeTargets(DefaultConfig(), f)
	assert.Equal(t, 6, targets.PerRole[colony.RoleHauler], "ceil(10×3.0 / 5)")
}

func TestBuilderTargetBacklogDriven(t *testing.T) {
	cfg := DefaultConfig()

	f := baseFacts()
	f.Build.Count = 25
	assert.Equal(t, 3, ComputeTargets(cfg, f).PerRole[colony.RoleBuilder], "1 + 25/10")

	f.Build.Count = 100
	assert.Equal(t, cfg.MaxBuilders, ComputeTargets(cfg, f).PerRole[colony.RoleBuilder])

	f.Build.Count = 0
	f.Repair.Count = 5
	assert.Equal(t, 1, ComputeTargets(cfg, f).PerRole[colony.RoleBuilder],
		"repair backlog counts toward construction demand")
}

func TestDegradedFallbackTargets(t *testing.T) {
	f := baseFacts()
	f.Build.Count = 40
	f.Degraded = true

	targets := ComputeTargets(DefaultConfig(), f)
	assert.Equal(t, 1, targets.PerRole[colony.RoleHarvester])
	assert.Equal(t, 1, targets.PerRole[colony.RoleHauler])
	assert.Equal(t, 0, targets.PerRole[colony.RoleBuilder])
	assert.Equal(t, 0, targets.PerRole[colony.RoleUpgrader])
}

func TestOverridesReplaceComputedTargets(t *testing.T) {
	capTen := 10
	f := baseFacts()
	f.Overrides = &colony.Overrides{
		Targets:  map[colony.Role]int{colony.RoleUpgrader: 3},
		TotalCap: &capTen,
	}

	targets := ComputeTargets(DefaultConfig(), f)
	assert.Equal(t, 3, targets.PerRole[colony.RoleUpgrader])
	assert.Equal(t, 10, targets.Total, "total reflects the pinned target")
	assert.Equal(t, 10, targets.Cap)
}

func TestZeroUnitFloorBeatsWeightedDeficits(t *testing.T) {
	// A huge construction backlog with zero builders would dominate the
	// weighted ranking, but a colony with zero harvesters must rebuild its
	// extraction first.
	f := baseFacts()
	f.Build.Count = 100
	f.Counts[colony.RoleHauler] = 1
	f.Counts[colony.RoleUpgrader] = 1

	targets := ComputeTargets(DefaultConfig(), f)
	require.Equal(t, 0, f.Counts[colony.RoleHarvester])

	role, ok := PickNextRole(DefaultConfig(), f, targets)
	require.True(t, ok)
	assert.Equal(t, colony.RoleHarvester, role)
}

func TestOverriddenZeroRoleIsNeverPicked(t *testing.T) {
	f := baseFacts()
	f.Overrides = &colony.Overrides{
		Targets: map[colony.Role]int{colony.RoleHarvester: 0},
	}
	targets := ComputeTargets(DefaultConfig(), f)
	require.Equal(t, 0, targets.PerRole[colony.RoleHarvester])

	// Fill the remaining deficits one pick at a time; the pinned role must
	// never come up, not even via the zero-unit floor.
	for i := 0; i < targets.Total; i++ {
		role, ok := PickNextRole(DefaultConfig(), f, targets)
		require.True(t, ok, "other roles still have deficits")
		require.NotEqual(t, colony.RoleHarvester, role)
		f.Counts[role]++
	}
	_, ok := PickNextRole(DefaultConfig(), f, targets)
	assert.False(t, ok)
}

func TestPickReturnsFalseWhenAllSatisfied(t *testing.T) {
	f := baseFacts()
	targets := ComputeTargets(DefaultConfig(), f)
	for r, n := range targets.PerRole {
		f.Counts[r] = n
	}

	_, ok := PickNextRole(DefaultConfig(), f, targets)
	assert.False(t, ok)
}

func TestPickRespectsTotalCap(t *testing.T) {
	capThree := 3
	f := baseFacts()
	f.Counts[colony.RoleHarvester] = 2
	f.Counts[colony.RoleHauler] = 1
	f.Overrides = &colony.Overrides{TotalCap: &capThree}

	targets := ComputeTargets(DefaultConfig(), f)
	_, ok := PickNextRole(DefaultConfig(), f, targets)
	assert.False(t, ok, "living population at the cap blocks production")
}

func TestRankDeficitsWeightedOrdering(t *testing.T) {
	f := baseFacts()
	f.Build.Count = 10 // builder target 2
	f.Counts[colony.RoleHarvester] = 4 // 20% deficit × 1.5 = 30
	f.Counts[colony.RoleHauler] = 1    // 50% deficit × 1.2 = 60
	f.Counts[colony.RoleBuilder] = 1   // 50% deficit × 1.0 = 50
	f.Counts[colony.RoleUpgrader] = 1  // satisfied

	targets := ComputeTargets(DefaultConfig(), f)
	items := RankDeficits(DefaultConfig(), f, targets)

	require.Len(t, items, 3)
	assert.Equal(t, colony.RoleHauler, items[0].Role)
	assert.Equal(t, colony.RoleBuilder, items[1].Role)
	assert.Equal(t, colony.RoleHarvester, items[2].Role)
	assert.InDelta(t, 60.0, items[0].WeightedPercent, 1e-9)

	ranks := PriorityRanks(items)
	assert.InDelta(t, 50.0, ranks["builder"], 1e-9)
	assert.NotContains(t, ranks, "upgrader")
}

func TestRankDeficitsTieBreaksByFixedOrder(t *testing.T) {
	// Upgrader and builder both sit at a 50% deficit with weight 1.0:
	// the fixed priority order puts upgrader first.
	f := baseFacts()
	f.Repair.Count = 15 // builder target 1 + 15/10 = 2
	f.Repair.WorstRatio = 0.5 // damaged but not critical
	f.Counts[colony.RoleHarvester] = 5
	f.Counts[colony.RoleHauler] = 2
	f.Counts[colony.RoleBuilder] = 1
	f.Counts[colony.RoleUpgrader] = 1
	f.Overrides = &colony.Overrides{
		Targets: map[colony.Role]int{colony.RoleUpgrader: 2},
	}

	targets := ComputeTargets(DefaultConfig(), f)
	items := RankDeficits(DefaultConfig(), f, targets)

	require.Len(t, items, 2)
	require.InDelta(t, items[0].WeightedPercent, items[1].WeightedPercent, 1e-9)
	assert.Equal(t, colony.RoleUpgrader, items[0].Role)
	assert.Equal(t, colony.RoleBuilder, items[1].Role)
}

func TestDegradedRankingCollapsesToFixedOrder(t *testing.T) {
	f := baseFacts()
	f.Degraded = true

	targets := ComputeTargets(DefaultConfig(), f)
	items := RankDeficits(DefaultConfig(), f, targets)

	require.Len(t, items, 2)
	assert.Equal(t, colony.RoleHarvester, items[0].Role)
	assert.Equal(t, colony.RoleHauler, items[1].Role)
}

func TestUrgencyCollapseSignal(t *testing.T) {
	f := baseFacts()
	targets := ComputeTargets(DefaultConfig(), f)

	assert.Equal(t, 1.0, Urgency(DefaultConfig(), f, colony.RoleHarvester, targets),
		"zero units of a needed role is maximum urgency")
	assert.Equal(t, 0.0, Urgency(DefaultConfig(), f, colony.RoleBuilder, targets),
		"a role with no target has no urgency")
}

func TestUrgencyBlendsDeficitAndLifetime(t *testing.T) {
	f := baseFacts()
	f.Counts[colony.RoleHauler] = 1 // target 2, deficit 0.5
	f.MinLifeFrac[colony.RoleHauler] = 0.5

	targets := ComputeTargets(DefaultConfig(), f)
	u := Urgency(DefaultConfig(), f, colony.RoleHauler, targets)
	assert.InDelta(t, 0.6*0.5+0.4*0.5, u, 1e-9)

	// Unknown lifetime is treated as full lifetime.
	delete(f.MinLifeFrac, colony.RoleHauler)
	u = Urgency(DefaultConfig(), f, colony.RoleHauler, targets)
	assert.InDelta(t, 0.6*0.5, u, 1e-9)
}

func TestShouldSpawnNow(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, ShouldSpawnNow(cfg, 1.0, 0, 1000, 0),
		"maximum urgency bypasses accumulation and wait")
	assert.False(t, ShouldSpawnNow(cfg, 1.0, 0, 0, 0),
		"except when spawning is impossible outright")

	// No urgency: threshold is 80% of capacity, wait limit 150 ticks.
	assert.False(t, ShouldSpawnNow(cfg, 0, 799, 1000, 0))
	assert.True(t, ShouldSpawnNow(cfg, 0, 800, 1000, 0))
	assert.False(t, ShouldSpawnNow(cfg, 0, 0, 1000, 149))
	assert.True(t, ShouldSpawnNow(cfg, 0, 0, 1000, 150))

	// Half urgency discounts the threshold to 56% and the wait to 90 ticks.
	assert.True(t, ShouldSpawnNow(cfg, 0.5, 560, 1000, 0))
	assert.False(t, ShouldSpawnNow(cfg, 0.5, 559, 1000, 89))
	assert.True(t, ShouldSpawnNow(cfg, 0.5, 0, 1000, 90))
}

func TestNewOrderAssignsDistinctIDs(t *testing.T) {
	a := NewOrder("area-1", colony.RoleHauler, 0.4, 77)
	b := NewOrder("area-1", colony.RoleHauler, 0.4, 77)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, colony.AreaID("area-1"), a.Area)
	assert.Equal(t, colony.RoleHauler, a.Role)
	assert.Equal(t, uint64(77), a.Tick)
}
