package cache

import (
	"fmt"
	"log/slog"

	"github.com/talgya/colony-mind/internal/colony"
)

// AreaRecord is the durable per-area record assembled at flush time. Field
// set matches what collaborators are allowed to read from the store: the
// throughput snapshot, role counts, computed priorities, and the backlog
// and source snapshots with their computation timestamps.
type AreaRecord struct {
	Area colony.AreaID `json:"area"`
	Tick uint64        `json:"tick"`

	Throughput colony.Throughput  `json:"throughput"`
	RoleCounts map[colony.Role]int `json:"role_counts"`
	Priorities map[string]float64 `json:"priorities"`

	Build      colony.BuildBacklog     `json:"build_backlog"`
	Repair     colony.RepairBacklog    `json:"repair_backlog"`
	Source     colony.SourceStatus     `json:"source"`
	SourceTick uint64                  `json:"source_tick"`
	Active     []string                `json:"active_nodes"`
	ActiveTick uint64                  `json:"active_tick"`
	Dropped    colony.DroppedResources `json:"dropped"`
	Delivery   colony.DeliveryTargets  `json:"delivery"`
	Threat     colony.ThreatStatus     `json:"threat"`
}

// WriteSink receives one batched write per tick. Implemented by the SQLite
// store; tests substitute a counting fake.
type WriteSink interface {
	WriteAreaRecords(recs []AreaRecord) error
}

// Flush propagates every mutation accumulated this tick to the durable
// store in a single batched pass over the touched areas. Called exactly
// once per tick, after all consumers have run — via the host's end-of-tick
// hook when one exists, synchronously otherwise. Batching bounds the number
// of expensive store writes; there are no concurrent writers, so atomicity
// is not the point.
//
// On a failed write the touched set is retained so the next flush retries.
func (c *Cache) Flush(sink WriteSink) error {
	if len(c.touched) == 0 {
		return nil
	}

	census := c.censusSnapshot()
	recs := make([]AreaRecord, 0, len(c.touched))
	for area := range c.touched {
		recs = append(recs, c.record(area, census))
	}

	if err := sink.WriteAreaRecords(recs); err != nil {
		slog.Warn("cache flush failed, retaining dirty set",
			"areas", len(recs), "tick", c.tick, "error", err)
		return fmt.Errorf("flush %d areas: %w", len(recs), err)
	}

	c.touched = make(map[colony.AreaID]struct{})
	return nil
}

// TouchedAreas returns how many areas are pending write-back.
func (c *Cache) TouchedAreas() int { return len(c.touched) }

func (c *Cache) record(area colony.AreaID, census colony.CountsByArea) AreaRecord {
	st := c.area(area)
	rec := AreaRecord{
		Area:       area,
		Tick:       c.tick,
		Throughput: st.throughput,
		Priorities: st.priorities,
	}

	if cen, ok := census[area]; ok {
		rec.RoleCounts = cen.Counts
	}

	for cat, e := range st.entries {
		switch cat {
		case CatBuildBacklog:
			if v, ok := e.Value.(colony.BuildBacklog); ok {
				rec.Build = v
			}
		case CatRepairBacklog:
			if v, ok := e.Value.(colony.RepairBacklog); ok {
				rec.Repair = v
			}
		case CatSourceStatus:
			if v, ok := e.Value.(colony.SourceStatus); ok {
				rec.Source = v
				rec.SourceTick = e.ComputedAt
				rec.Active = v.ActiveNodes
				rec.ActiveTick = e.ComputedAt
			}
		case CatDroppedResources:
			if v, ok := e.Value.(colony.DroppedResources); ok {
				rec.Dropped = v
			}
		case CatDeliveryTargets:
			if v, ok := e.Value.(colony.DeliveryTargets); ok {
				rec.Delivery = v
			}
		case CatThreatStatus:
			if v, ok := e.Value.(colony.ThreatStatus); ok {
				rec.Threat = v
			}
		}
	}
	return rec
}

func (c *Cache) censusSnapshot() colony.CountsByArea {
	e, ok := c.global[CatRoleCensus]
	if !ok {
		return nil
	}
	census, ok := e.Value.(colony.CountsByArea)
	if !ok {
		return nil
	}
	return census
}
