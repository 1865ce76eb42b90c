package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/colony-mind/internal/budget"
	"github.com/talgya/colony-mind/internal/colony"
)

func allowAll(budget.Priority) bool { return true }
func denyAll(budget.Priority) bool  { return false }

func newTestCache(tick uint64) *Cache {
	c := New(DefaultConfig())
	c.BeginTick(tick, false, colony.StageGrowth, allowAll)
	return c
}

func TestPutGetRoundTripSameTick(t *testing.T) {
	c := newTestCache(100)
	want := colony.SourceStatus{Nodes: 2, RegenPerTick: 10, HaulDistance: 25}

	c.Put("area-1", CatSourceStatus, want)
	got, status := c.Get("area-1", CatSourceStatus)

	assert.Equal(t, Fresh, status)
	assert.Equal(t, want, got)
}

func TestGetUnknownAreaIsMissing(t *testing.T) {
	c := newTestCache(1)
	v, status := c.Get("nowhere", CatThreatStatus)
	assert.Equal(t, Missing, status)
	assert.Nil(t, v)
}

func TestResolveComputesAtMostOncePerTick(t *testing.T) {
	c := newTestCache(50)
	computes := 0
	compute := func() (any, error) {
		computes++
		return colony.ThreatStatus{Hostiles: 1}, nil
	}

	first := c.Resolve("area-1", CatThreatStatus, compute)
	second := c.Resolve("area-1", CatThreatStatus, compute)

	assert.Equal(t, 1, computes)
	assert.Equal(t, first, second)
}

func TestTTLWindow(t *testing.T) {
	// Build backlog has TTL 10: written at tick 100, the entry serves
	// [100, 110) and becomes eligible for recomputation at exactly 110.
	c := newTestCache(100)
	computes := 0
	compute := func() (any, error) {
		computes++
		return colony.BuildBacklog{Count: computes}, nil
	}

	v := c.Resolve("area-1", CatBuildBacklog, compute)
	require.Equal(t, 1, computes)
	require.Equal(t, colony.BuildBacklog{Count: 1}, v)

	c.BeginTick(109, false, colony.StageGrowth, allowAll)
	v = c.Resolve("area-1", CatBuildBacklog, compute)
	assert.Equal(t, 1, computes, "tick 109 is inside the TTL window")
	assert.Equal(t, colony.BuildBacklog{Count: 1}, v)

	c.BeginTick(110, false, colony.StageGrowth, allowAll)
	v = c.Resolve("area-1", CatBuildBacklog, compute)
	assert.Equal(t, 2, computes, "tick 110 must recompute")
	assert.Equal(t, colony.BuildBacklog{Count: 2}, v)
}

func TestThrottledResolveServesStaleValue(t *testing.T) {
	c := newTestCache(100)
	c.Put("area-1", CatBuildBacklog, colony.BuildBacklog{Count: 7})

	// Entry expires, but the budget gate denies recomputation.
	c.BeginTick(200, false, colony.StageGrowth, denyAll)
	v := c.Resolve("area-1", CatBuildBacklog, func() (any, error) {
		t.Fatal("compute must not run when the gate denies the tier")
		return nil, nil
	})
	assert.Equal(t, colony.BuildBacklog{Count: 7}, v)
}

func TestThrottledResolveWithoutHistoryServesDefault(t *testing.T) {
	c := New(DefaultConfig())
	c.BeginTick(1, false, colony.StageGrowth, denyAll)

	v := c.Resolve("area-1", CatDroppedResources, func() (any, error) {
		t.Fatal("compute must not run")
		return nil, nil
	})
	assert.Equal(t, colony.DroppedResources{}, v)
}

func TestComputeErrorFallsBackToLastKnown(t *testing.T) {
	c := newTestCache(10)
	c.Put("area-1", CatSourceStatus, colony.SourceStatus{Nodes: 3})

	c.BeginTick(30, false, colony.StageGrowth, allowAll)
	v := c.Resolve("area-1", CatSourceStatus, func() (any, error) {
		return nil, errors.New("host query failed")
	})
	assert.Equal(t, colony.SourceStatus{Nodes: 3}, v, "stale beats nothing")

	// No prior value at all: the documented safe default.
	v = c.Resolve("area-2", CatSourceStatus, func() (any, error) {
		return nil, errors.New("host query failed")
	})
	assert.Equal(t, colony.SourceStatus{}, v)
}

func TestCensusComputedOncePerTickProcessWide(t *testing.T) {
	c := newTestCache(5)
	computes := 0
	compute := func() (colony.CountsByArea, error) {
		computes++
		return colony.CountsByArea{
			"area-1": {Counts: map[colony.Role]int{colony.RoleHarvester: 2}},
		}, nil
	}

	a := c.Census(compute)
	b := c.Census(compute)
	require.Equal(t, 1, computes, "census is a global per-tick memo")
	assert.Equal(t, a, b)

	c.BeginTick(6, false, colony.StageGrowth, allowAll)
	c.Census(compute)
	assert.Equal(t, 2, computes, "next tick recomputes")
}

func TestStructuralTTLScalesWhenDegraded(t *testing.T) {
	c := New(DefaultConfig())

	// Degraded budget and founding stage: build backlog TTL 10 × 2 × 2 = 40.
	c.BeginTick(100, true, colony.StageFounding, allowAll)
	c.Put("area-1", CatBuildBacklog, colony.BuildBacklog{Count: 1})

	c.BeginTick(139, true, colony.StageFounding, allowAll)
	_, status := c.Get("area-1", CatBuildBacklog)
	assert.Equal(t, Fresh, status)

	c.BeginTick(140, true, colony.StageFounding, allowAll)
	_, status = c.Get("area-1", CatBuildBacklog)
	assert.Equal(t, Stale, status)
}

func TestVolatileTTLNeverScales(t *testing.T) {
	c := New(DefaultConfig())
	c.BeginTick(100, true, colony.StageFounding, allowAll)
	c.Put("area-1", CatThreatStatus, colony.ThreatStatus{Hostiles: 2})

	// Threat status keeps its base TTL of 5 even fully degraded.
	c.BeginTick(105, true, colony.StageFounding, allowAll)
	_, status := c.Get("area-1", CatThreatStatus)
	assert.Equal(t, Stale, status)
}

type countingSink struct {
	calls int
	recs  [][]AreaRecord
	err   error
}

func (s *countingSink) WriteAreaRecords(recs []AreaRecord) error {
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.recs = append(s.recs, recs)
	return nil
}

func TestFlushBatchesAllTouchedAreasOnce(t *testing.T) {
	c := newTestCache(42)
	c.Put("area-1", CatBuildBacklog, colony.BuildBacklog{Count: 1})
	c.Put("area-2", CatSourceStatus, colony.SourceStatus{Nodes: 2})
	c.MirrorThroughput("area-3", colony.Throughput{Current: 5, Max: 10})

	sink := &countingSink{}
	require.NoError(t, c.Flush(sink))

	require.Equal(t, 1, sink.calls, "one batched write per tick")
	assert.Len(t, sink.recs[0], 3)

	// Flushed clean: a second flush writes nothing.
	require.NoError(t, c.Flush(sink))
	assert.Equal(t, 1, sink.calls)
}

func TestFlushCarriesSnapshotTimestamps(t *testing.T) {
	c := newTestCache(42)
	c.Put("area-1", CatSourceStatus, colony.SourceStatus{
		Nodes:       1,
		ActiveNodes: []string{"area-1-node-0"},
	})

	c.BeginTick(44, false, colony.StageGrowth, allowAll)
	c.NotePriorities("area-1", map[string]float64{"harvester": 150})

	sink := &countingSink{}
	require.NoError(t, c.Flush(sink))
	require.Len(t, sink.recs[0], 1)

	rec := sink.recs[0][0]
	assert.Equal(t, colony.AreaID("area-1"), rec.Area)
	assert.Equal(t, uint64(44), rec.Tick)
	assert.Equal(t, uint64(42), rec.SourceTick, "snapshot keeps its computation tick")
	assert.Equal(t, []string{"area-1-node-0"}, rec.Active)
	assert.Equal(t, map[string]float64{"harvester": 150}, rec.Priorities)
}

func TestFlushFailureRetainsDirtySet(t *testing.T) {
	c := newTestCache(1)
	c.Put("area-1", CatBuildBacklog, colony.BuildBacklog{Count: 1})

	sink := &countingSink{err: errors.New("store unavailable")}
	require.Error(t, c.Flush(sink))
	assert.Equal(t, 1, c.TouchedAreas(), "dirty set retained for retry")

	sink.err = nil
	require.NoError(t, c.Flush(sink))
	assert.Equal(t, 0, c.TouchedAreas())
}
