package host

import (
	"sync"

	"github.com/talgya/colony-mind/internal/colony"
)

// OverrideTable is an in-memory Overrides implementation fed by the
// operator (the admin API in colonyd). Reads happen on the tick thread,
// writes on request handlers, hence the lock.
type OverrideTable struct {
	mu    sync.RWMutex
	areas map[colony.AreaID]*colony.Overrides
}

// NewOverrideTable creates an empty table.
func NewOverrideTable() *OverrideTable {
	return &OverrideTable{areas: make(map[colony.AreaID]*colony.Overrides)}
}

// Overrides returns the pins for an area, or nil when none are set.
func (t *OverrideTable) Overrides(area colony.AreaID) *colony.Overrides {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.areas[area]
	if !ok {
		return nil
	}
	// Copy so the tick thread never shares a map with a handler.
	cp := &colony.Overrides{TotalCap: o.TotalCap}
	if o.Targets != nil {
		cp.Targets = make(map[colony.Role]int, len(o.Targets))
		for r, n := range o.Targets {
			cp.Targets[r] = n
		}
	}
	return cp
}

// Set replaces the pins for an area. A nil value clears them.
func (t *OverrideTable) Set(area colony.AreaID, o *colony.Overrides) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o == nil {
		delete(t.areas, area)
		return
	}
	t.areas[area] = o
}
