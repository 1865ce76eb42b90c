package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/colony-mind/internal/cache"
	"github.com/talgya/colony-mind/internal/colony"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "colony.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(area colony.AreaID, tick uint64) cache.AreaRecord {
	return cache.AreaRecord{
		Area:       area,
		Tick:       tick,
		Throughput: colony.Throughput{Current: 7.5, Max: 12},
		RoleCounts: map[colony.Role]int{
			colony.RoleHarvester: 4,
			colony.RoleHauler:    2,
		},
		Priorities: map[string]float64{"hauler": 60},
		Build: colony.BuildBacklog{
			Count:  3,
			IDs:    []string{"site-1", "site-2", "site-3"},
			ByType: map[string]int{"extension": 2, "road": 1},
		},
		Repair: colony.RepairBacklog{Count: 1, IDs: []string{"wall-9"}, WorstRatio: 0.4},
		Source: colony.SourceStatus{
			Nodes:        2,
			ActiveNodes:  []string{"node-a"},
			RegenPerTick: 10,
			HaulDistance: 25,
		},
		SourceTick: tick - 3,
		Active:     []string{"node-a"},
		ActiveTick: tick - 3,
		Dropped:    colony.DroppedResources{Piles: 2, Amount: 140},
		Delivery:   colony.DeliveryTargets{IDs: []string{"spawn-1"}, Needed: 300},
		Threat:     colony.ThreatStatus{Hostiles: 1, UnderAttack: true},
	}
}

func TestAreaRecordRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := sampleRecord("area-1", 120)

	require.NoError(t, db.WriteAreaRecords([]cache.AreaRecord{want}))

	got, found, err := db.LoadAreaRecord("area-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestLoadMissingAreaIsNotAnError(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.LoadAreaRecord("nowhere")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteUpsertsByArea(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.WriteAreaRecords([]cache.AreaRecord{sampleRecord("area-1", 100)}))

	newer := sampleRecord("area-1", 200)
	newer.Build.Count = 9
	require.NoError(t, db.WriteAreaRecords([]cache.AreaRecord{newer}))

	got, found, err := db.LoadAreaRecord("area-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(200), got.Tick)
	assert.Equal(t, 9, got.Build.Count)

	ids, err := db.AreaIDs()
	require.NoError(t, err)
	assert.Equal(t, []colony.AreaID{"area-1"}, ids, "upsert must not duplicate rows")
}

func TestAreaIDsSorted(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.WriteAreaRecords([]cache.AreaRecord{
		sampleRecord("beta", 1),
		sampleRecord("alpha", 1),
	}))

	ids, err := db.AreaIDs()
	require.NoError(t, err)
	assert.Equal(t, []colony.AreaID{"alpha", "beta"}, ids)
}

func TestSpawnOrderJournal(t *testing.T) {
	db := openTestDB(t)

	orders := []colony.SpawnOrder{
		{ID: "o-1", Area: "area-1", Role: colony.RoleHarvester, Urgency: 1.0, Tick: 10},
		{ID: "o-2", Area: "area-1", Role: colony.RoleHauler, Urgency: 0.3, Tick: 20},
		{ID: "o-3", Area: "area-2", Role: colony.RoleBuilder, Urgency: 0.7, Tick: 30},
	}
	for _, o := range orders {
		require.NoError(t, db.RecordSpawnOrder(o))
	}

	recent, err := db.RecentSpawnOrders(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, orders[2], recent[0], "newest first")
	assert.Equal(t, orders[1], recent[1])
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveMeta("last_tick", "4242"))
	v, err := db.GetMeta("last_tick")
	require.NoError(t, err)
	assert.Equal(t, "4242", v)

	require.NoError(t, db.SaveMeta("last_tick", "4300"))
	v, err = db.GetMeta("last_tick")
	require.NoError(t, err)
	assert.Equal(t, "4300", v, "meta writes replace")

	_, err = db.GetMeta("never_written")
	assert.Error(t, err)
}
