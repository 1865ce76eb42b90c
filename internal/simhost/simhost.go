// Package simhost is a deterministic synthetic host for exercising the
// colony core end to end without a real simulation. Budget fluctuation,
// node regeneration, and backlog drift all derive from seeded noise, so a
// given seed replays the same economy every run.
package simhost

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/colony-mind/internal/colony"
)

// Config controls the synthetic economy.
type Config struct {
	Seed      int64
	Areas     int
	MaxBudget float64
	Replenish float64 // base budget replenishment per tick
	SurveyCost float64 // budget cost of one expensive survey call
	WorkerTTL uint64  // worker lifetime in ticks
	SpawnCost float64 // resource cost of one spawn
	SpawnCap  float64 // per-area spawn bank capacity
}

// DefaultConfig returns a small, lively economy.
func DefaultConfig() Config {
	return Config{
		Seed:       42,
		Areas:      3,
		MaxBudget:  10000,
		Replenish:  120,
		SurveyCost: 35,
		WorkerTTL:  1500,
		SpawnCost:  300,
		SpawnCap:   600,
	}
}

type worker struct {
	role    colony.Role
	expires uint64
}

type area struct {
	id        colony.AreaID
	nodes     int
	regen     float64
	haulDist  float64
	workers   []worker
	buildQ    int
	repairQ   int
	spawnBank float64
}

// Sim implements the host interfaces over a noise-driven economy. Not safe
// for concurrent use; the tick loop owns it.
type Sim struct {
	cfg    Config
	noise  opensimplex.Noise
	tick   uint64
	budget float64
	areas  []*area
	hooks  []func()
}

// New seeds the synthetic host.
func New(cfg Config) *Sim {
	s := &Sim{
		cfg:    cfg,
		noise:  opensimplex.NewNormalized(cfg.Seed),
		budget: cfg.MaxBudget,
	}
	shape := opensimplex.NewNormalized(cfg.Seed + 1)
	for i := 0; i < cfg.Areas; i++ {
		x := float64(i) * 7.3
		s.areas = append(s.areas, &area{
			id:       colony.AreaID(fmt.Sprintf("area-%02d", i+1)),
			nodes:    1 + int(shape.Eval2(x, 0)*3),
			regen:    4 + shape.Eval2(x, 1)*8,
			haulDist: 10 + shape.Eval2(x, 2)*40,
		})
	}
	return s
}

// Advance moves the synthetic world one tick forward: budget replenishes
// (modulated by noise, so droughts happen), workers expire, and backlogs
// drift. Call before the core's RunTick.
func (s *Sim) Advance() {
	s.tick++
	t := float64(s.tick) * 0.01

	// Replenishment wanders between 20% and 180% of base.
	mod := 0.2 + 1.6*s.noise.Eval2(t, 0.5)
	s.budget += s.cfg.Replenish * mod
	if s.budget > s.cfg.MaxBudget {
		s.budget = s.cfg.MaxBudget
	}

	for i, a := range s.areas {
		ax := float64(i) * 3.1

		a.workers = alive(a.workers, s.tick)

		// Harvest income feeds the spawn bank.
		income := float64(count(a.workers, colony.RoleHarvester)) * 3.0
		a.spawnBank += income
		if a.spawnBank > s.cfg.SpawnCap {
			a.spawnBank = s.cfg.SpawnCap
		}

		// Backlog drift: construction appears with growth, builders work
		// it down one item per builder every few ticks.
		if s.noise.Eval2(t*2, ax) > 0.82 {
			a.buildQ++
		}
		if s.noise.Eval2(t*2, ax+0.7) > 0.88 {
			a.repairQ++
		}
		if s.tick%5 == 0 {
			builders := count(a.workers, colony.RoleBuilder)
			a.buildQ = maxInt(0, a.buildQ-builders)
			a.repairQ = maxInt(0, a.repairQ-builders)
		}
	}
}

// FinishTick runs and clears the end-of-tick hooks registered during the
// core's pass.
func (s *Sim) FinishTick() {
	hooks := s.hooks
	s.hooks = nil
	for _, fn := range hooks {
		fn()
	}
}

// OnTickEnd implements host.TickHook.
func (s *Sim) OnTickEnd(fn func()) { s.hooks = append(s.hooks, fn) }

// Tick implements host.Clock.
func (s *Sim) Tick() uint64 { return s.tick }

// Budget implements host.Gauge.
func (s *Sim) Budget() (float64, bool) { return s.budget, true }

// MaxBudget implements host.Gauge.
func (s *Sim) MaxBudget() float64 { return s.cfg.MaxBudget }

// Areas implements host.Surveyor.
func (s *Sim) Areas() []colony.AreaID {
	ids := make([]colony.AreaID, len(s.areas))
	for i, a := range s.areas {
		ids[i] = a.id
	}
	return ids
}

// Stage implements host.Surveyor.
func (s *Sim) Stage(id colony.AreaID) colony.Stage {
	a := s.area(id)
	if a == nil {
		return colony.StageFounding
	}
	switch {
	case len(a.workers) < 4:
		return colony.StageFounding
	case a.buildQ > 0:
		return colony.StageGrowth
	default:
		return colony.StageMature
	}
}

// Throughput implements host.Surveyor. Cheap, no budget charge.
func (s *Sim) Throughput(id colony.AreaID) colony.Throughput {
	a := s.area(id)
	if a == nil {
		return colony.Throughput{}
	}
	cur := float64(count(a.workers, colony.RoleHarvester)) * 3.0
	return colony.Throughput{Current: cur, Max: a.regen * float64(a.nodes)}
}

// Census implements host.Surveyor. One colony-wide pass.
func (s *Sim) Census() (colony.CountsByArea, error) {
	s.charge()
	out := make(colony.CountsByArea, len(s.areas))
	for _, a := range s.areas {
		cen := colony.RoleCensus{
			Counts:      make(map[colony.Role]int, colony.NumRoles),
			MinLifeFrac: make(map[colony.Role]float64, colony.NumRoles),
		}
		for _, w := range a.workers {
			cen.Counts[w.role]++
			cen.TotalWorkers++
			frac := float64(w.expires-s.tick) / float64(s.cfg.WorkerTTL)
			if cur, ok := cen.MinLifeFrac[w.role]; !ok || frac < cur {
				cen.MinLifeFrac[w.role] = frac
			}
		}
		out[a.id] = cen
	}
	return out, nil
}

// Sources implements host.Surveyor.
func (s *Sim) Sources(id colony.AreaID) (colony.SourceStatus, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.SourceStatus{}, fmt.Errorf("unknown area %s", id)
	}
	st := colony.SourceStatus{
		Nodes:        a.nodes,
		RegenPerTick: a.regen,
		HaulDistance: a.haulDist,
	}
	for n := 0; n < a.nodes; n++ {
		st.ActiveNodes = append(st.ActiveNodes, fmt.Sprintf("%s-node-%d", id, n))
	}
	return st, nil
}

// Threats implements host.Surveyor.
func (s *Sim) Threats(id colony.AreaID) (colony.ThreatStatus, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.ThreatStatus{}, fmt.Errorf("unknown area %s", id)
	}
	// Rare raids from the noise field.
	v := s.noise.Eval2(float64(s.tick)*0.02, float64(len(a.id)))
	hostiles := 0
	if v > 0.93 {
		hostiles = 1 + int(v*3)
	}
	return colony.ThreatStatus{Hostiles: hostiles, UnderAttack: hostiles > 2}, nil
}

// Dropped implements host.Surveyor.
func (s *Sim) Dropped(id colony.AreaID) (colony.DroppedResources, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.DroppedResources{}, fmt.Errorf("unknown area %s", id)
	}
	// Spills scale with extraction that has no transport behind it.
	harvesters := count(a.workers, colony.RoleHarvester)
	haulers := count(a.workers, colony.RoleHauler)
	piles := maxInt(0, harvesters-haulers)
	return colony.DroppedResources{Piles: piles, Amount: piles * 40}, nil
}

// Deliveries implements host.Surveyor.
func (s *Sim) Deliveries(id colony.AreaID) (colony.DeliveryTargets, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.DeliveryTargets{}, fmt.Errorf("unknown area %s", id)
	}
	needed := int(s.cfg.SpawnCap - a.spawnBank)
	if needed <= 0 {
		return colony.DeliveryTargets{}, nil
	}
	return colony.DeliveryTargets{
		IDs:    []string{fmt.Sprintf("%s-depot", id)},
		Needed: needed,
	}, nil
}

// BuildBacklog implements host.Surveyor.
func (s *Sim) BuildBacklog(id colony.AreaID) (colony.BuildBacklog, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.BuildBacklog{}, fmt.Errorf("unknown area %s", id)
	}
	b := colony.BuildBacklog{Count: a.buildQ}
	if a.buildQ > 0 {
		b.ByType = map[string]int{"extension": a.buildQ}
		for n := 0; n < a.buildQ; n++ {
			b.IDs = append(b.IDs, fmt.Sprintf("%s-site-%d", id, n))
		}
	}
	return b, nil
}

// RepairBacklog implements host.Surveyor.
func (s *Sim) RepairBacklog(id colony.AreaID) (colony.RepairBacklog, error) {
	s.charge()
	a := s.area(id)
	if a == nil {
		return colony.RepairBacklog{}, fmt.Errorf("unknown area %s", id)
	}
	r := colony.RepairBacklog{Count: a.repairQ}
	if a.repairQ > 0 {
		r.WorstRatio = math.Max(0.1, 0.6-float64(a.repairQ)*0.05)
		for n := 0; n < a.repairQ; n++ {
			r.IDs = append(r.IDs, fmt.Sprintf("%s-decayed-%d", id, n))
		}
	}
	return r, nil
}

// SpawnCapacity implements host.Nursery.
func (s *Sim) SpawnCapacity(id colony.AreaID) (float64, float64) {
	a := s.area(id)
	if a == nil {
		return 0, 0
	}
	return a.spawnBank, s.cfg.SpawnCap
}

// Spawn implements host.Nursery. Fulfils immediately when the bank covers
// the cost; the core's delay logic is what keeps this honest.
func (s *Sim) Spawn(order colony.SpawnOrder) error {
	a := s.area(order.Area)
	if a == nil {
		return fmt.Errorf("unknown area %s", order.Area)
	}
	if a.spawnBank < s.cfg.SpawnCost {
		// Collapse-prevention orders arrive below threshold by design;
		// spend whatever is banked rather than refusing.
		if count(a.workers, order.Role) > 0 {
			return fmt.Errorf("insufficient spawn bank: %.0f < %.0f", a.spawnBank, s.cfg.SpawnCost)
		}
	}
	a.spawnBank = math.Max(0, a.spawnBank-s.cfg.SpawnCost)
	a.workers = append(a.workers, worker{role: order.Role, expires: s.tick + s.cfg.WorkerTTL})
	return nil
}

func (s *Sim) charge() {
	s.budget -= s.cfg.SurveyCost
	if s.budget < 0 {
		s.budget = 0
	}
}

func (s *Sim) area(id colony.AreaID) *area {
	for _, a := range s.areas {
		if a.id == id {
			return a
		}
	}
	return nil
}

func alive(ws []worker, tick uint64) []worker {
	out := ws[:0]
	for _, w := range ws {
		if w.expires > tick {
			out = append(out, w)
		}
	}
	return out
}

func count(ws []worker, r colony.Role) int {
	n := 0
	for _, w := range ws {
		if w.role == r {
			n++
		}
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
