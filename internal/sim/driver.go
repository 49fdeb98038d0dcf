package sim

import (
	"sync"

	"github.com/nidhogg/nuka-resort/internal/housekeeping"
	"github.com/nidhogg/nuka-resort/internal/movement"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// DriverStats counts what the driver has done since start.
type DriverStats struct {
	Ticks    int                 `json:"ticks"`
	Spawned  int                 `json:"spawned"`
	Sweeps   visitor.SweepResult `json:"sweeps"`
	LastTick world.SimTime       `json:"last_tick"`
}

// Driver is the tick listener that runs one simulation step: the crew
// finishes due jobs, walkers move, a visitor may arrive, every visitor
// steps and the sweeper enforces the global rules.
type Driver struct {
	crew    *housekeeping.Crew
	nav     *movement.Navigator
	spawner *Spawner
	pop     *visitor.Population
	sweeper *visitor.Sweeper
	stats   DriverStats
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewDriver creates a driver. crew and spawner may be nil.
func NewDriver(crew *housekeeping.Crew, nav *movement.Navigator, spawner *Spawner, pop *visitor.Population, sweeper *visitor.Sweeper, logger *zap.Logger) *Driver {
	return &Driver{
		crew:    crew,
		nav:     nav,
		spawner: spawner,
		pop:     pop,
		sweeper: sweeper,
		logger:  logger,
	}
}

// OnTick implements world.ClockListener.
func (d *Driver) OnTick(now world.SimTime) {
	if d.crew != nil {
		d.crew.OnTick(now)
	}
	d.nav.Step()
	spawned := d.spawner != nil && d.spawner.MaybeSpawn(now.Hour)
	d.pop.Step()
	res := d.sweeper.Sweep()

	d.mu.Lock()
	d.stats.Ticks++
	if spawned {
		d.stats.Spawned++
	}
	d.stats.Sweeps.Faults += res.Faults
	d.stats.Sweeps.Despawned += res.Despawned
	d.stats.Sweeps.Evicted += res.Evicted
	d.stats.LastTick = now
	d.mu.Unlock()

	if res.Faults > 0 {
		d.logger.Warn("visitors lost their footing", zap.Int("faults", res.Faults), zap.Stringer("at", now))
	}
}

// Stats returns the driver counters.
func (d *Driver) Stats() DriverStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
