package planner

import (
	"github.com/google/uuid"

	"github.com/talgya/colony-mind/internal/colony"
)

// Urgency scores how badly a role needs its next unit, in [0, 1].
// Zero living units of a needed role is a collapse signal and scores 1.0
// outright. Otherwise the score blends the deficit fraction with how close
// the role's existing units are to expiring, so a role about to lose its
// last workers is treated nearly as urgently as one that already has.
func Urgency(cfg Config, f Facts, role colony.Role, targets Targets) float64 {
	target := targets.PerRole[role]
	current := f.Counts[role]
	if target <= 0 {
		return 0
	}
	if current == 0 {
		return 1.0
	}

	deficit := float64(target-current) / float64(target)
	if deficit < 0 {
		deficit = 0
	}

	lifeFrac, ok := f.MinLifeFrac[role]
	if !ok {
		lifeFrac = 1.0
	}

	blend := cfg.UrgencyDeficitBlend
	u := blend*deficit + (1-blend)*(1-lifeFrac)
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	return u
}

// ShouldSpawnNow decides between spawning immediately and waiting for more
// accumulated resource. The accumulation threshold is a base fraction of
// capacity, reduced proportionally to urgency; the maximum wait shrinks
// symmetrically. Urgency 1.0 — the collapse-prevention case — bypasses all
// delay logic.
func ShouldSpawnNow(cfg Config, urgency, available, capacity float64, waited uint64) bool {
	if urgency >= 1.0 {
		return true
	}
	if capacity <= 0 {
		return false
	}

	threshold := capacity * cfg.SpawnBaseFraction * (1 - cfg.SpawnUrgencyDiscount*urgency)
	if available >= threshold {
		return true
	}

	maxWait := float64(cfg.SpawnMaxWait) * (1 - cfg.SpawnWaitDiscount*urgency)
	return float64(waited) >= maxWait
}

// NewOrder builds a spawn order with a fresh correlation ID.
func NewOrder(area colony.AreaID, role colony.Role, urgency float64, tick uint64) colony.SpawnOrder {
	return colony.SpawnOrder{
		ID:      uuid.NewString(),
		Area:    area,
		Role:    role,
		Urgency: urgency,
		Tick:    tick,
	}
}
