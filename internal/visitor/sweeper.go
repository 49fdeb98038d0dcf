package visitor

import (
	"go.uber.org/zap"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Faults    int `json:"faults"`
	Despawned int `json:"despawned"`
	Evicted   int `json:"evicted"`
}

// Sweeper enforces the rules that apply to every visitor at once: visitors
// off the walkable floor go straight back to the pool, flagged visitors are
// removed, and at the eviction hour everyone without a stay walks out.
type Sweeper struct {
	pop    *Population
	logger *zap.Logger
}

// NewSweeper creates a sweeper over pop.
func NewSweeper(pop *Population, logger *zap.Logger) *Sweeper {
	return &Sweeper{pop: pop, logger: logger}
}

// OnHourChanged implements world.HourListener so the eviction pass runs as
// soon as the hour turns, before any visitor steps. It trusts the hour it
// is given: a clock jump that already moved past closing still evicts.
func (s *Sweeper) OnHourChanged(hour, _ int) {
	if hour == s.pop.env.Tuning.EvictionHour {
		res := s.sweep(true)
		s.logger.Info("closing sweep", zap.Int("evicted", res.Evicted))
	}
}

// Sweep runs one pass over the live visitors. It evicts when the clock
// reads the eviction hour.
func (s *Sweeper) Sweep() SweepResult {
	return s.sweep(false)
}

func (s *Sweeper) sweep(closing bool) SweepResult {
	p := s.pop
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.tickLocked()
	closing = closing || t.hour() == p.env.Tuning.EvictionHour

	var res SweepResult
	for _, v := range p.live {
		switch {
		case v.pooled:
		case !v.mover.OnNavigableSurface():
			s.logger.Warn("visitor off navigable surface",
				zap.String("visitor", v.ID),
				zap.String("state", string(v.state)),
				zap.Any("position", v.mover.Pose().Position))
			v.despawn("off navigable surface")
			res.Faults++
		case v.scheduledForDespawn:
			v.despawn("removed")
			res.Despawned++
		case closing && !v.holdsStay() && v.state != StateReturningToSpawn:
			if v.evict("closing time", t) {
				res.Evicted++
			}
		}
	}
	p.stats.Faults += res.Faults
	p.stats.Evicted += res.Evicted
	p.reapLocked(t)
	return res
}
