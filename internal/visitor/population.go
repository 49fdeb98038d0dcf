package visitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

var (
	ErrVisitorNotFound = errors.New("visitor not found")
	ErrPopulationFull  = errors.New("population full")
)

var guestNames = []string{
	"Ada", "Bruno", "Chen", "Dalia", "Emeka", "Farah", "Goran", "Hana",
	"Ines", "Jonas", "Kaito", "Lena", "Mateo", "Nia", "Olek", "Priya",
}

// Stats counts population lifecycle events.
type Stats struct {
	Live      int `json:"live"`
	Pooled    int `json:"pooled"`
	Spawned   int `json:"spawned"`
	Despawned int `json:"despawned"`
	Evicted   int `json:"evicted"`
	Faults    int `json:"faults"`
}

// Population owns every visitor. Ticks, hourly signals and API calls are
// serialized by its lock; within a tick visitors step in parallel on a
// bounded worker pool and only meet each other through the registry.
type Population struct {
	env     *Env
	movers  Movers
	max     int
	workers int
	live    []*Visitor
	byID    map[string]*Visitor
	pool    []*Visitor
	stats   Stats
	started time.Time
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewPopulation creates an empty population. max caps live visitors and
// workers bounds parallel steps.
func NewPopulation(env *Env, movers Movers, max, workers int, logger *zap.Logger) *Population {
	if workers <= 0 {
		workers = 1
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	return &Population{
		env:     env,
		movers:  movers,
		max:     max,
		workers: workers,
		byID:    make(map[string]*Visitor),
		started: env.now(),
		logger:  logger,
	}
}

func (p *Population) tickLocked() tick {
	now := p.env.now()
	if p.env.Clock == nil {
		// One sim minute per real second keeps timers moving without a clock.
		return tick{sim: world.FromMinutes(int(now.Sub(p.started) / time.Second)), real: now, clockless: true}
	}
	return tick{sim: p.env.Clock.Now(), real: now}
}

// Spawn activates a visitor at the spawn point and lets it choose its first
// activity. An empty name picks one.
func (p *Population) Spawn(name string) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.max > 0 && len(p.live) >= p.max {
		return Info{}, fmt.Errorf("spawn visitor: %w (%d live)", ErrPopulationFull, len(p.live))
	}
	var v *Visitor
	if n := len(p.pool); n > 0 {
		v = p.pool[n-1]
		p.pool = p.pool[:n-1]
	} else {
		v = &Visitor{}
	}

	id := uuid.New().String()
	if name == "" {
		name = guestNames[p.env.Rand.IntN(len(guestNames))]
	}
	t := p.tickLocked()
	mover := p.movers.NewMover(id, geom.Pose{Position: p.env.Spawn})
	v.reset(id, name, mover, p.env, t.sim)

	p.live = append(p.live, v)
	p.byID[id] = v
	p.stats.Spawned++

	v.selectBehavior(t.hour(), t)
	p.logger.Info("visitor spawned",
		zap.String("visitor", id),
		zap.String("name", name),
		zap.String("state", string(v.state)))
	return v.Info(), nil
}

// Step advances every live visitor by one tick.
func (p *Population) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.tickLocked()
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, v := range p.live {
		wg.Add(1)
		sem <- struct{}{}
		go func(v *Visitor) {
			defer wg.Done()
			defer func() { <-sem }()
			defer p.recoverStep(v)
			v.step(t)
		}(v)
	}
	wg.Wait()
	p.reapLocked(t)
}

// recoverStep keeps one broken visitor from taking the simulation down.
func (p *Population) recoverStep(v *Visitor) {
	r := recover()
	if r == nil {
		return
	}
	p.logger.Error("visitor step panicked",
		zap.String("visitor", v.ID),
		zap.String("state", string(v.state)),
		zap.Any("panic", r))
	v.despawn("fault")
}

// reapLocked moves pooled visitors out of the live set.
func (p *Population) reapLocked(t tick) {
	kept := p.live[:0]
	for _, v := range p.live {
		if !v.pooled {
			kept = append(kept, v)
			continue
		}
		delete(p.byID, v.ID)
		p.movers.ReleaseMover(v.ID)
		if p.env.Board != nil {
			p.env.Board.Forget(v.ID)
		}
		if p.env.Journal != nil {
			p.env.Journal.RecordVisit(Visit{
				VisitorID:  v.ID,
				Name:       v.Name,
				SpawnedAt:  v.spawnedAt,
				LeftAt:     t.sim,
				ExitReason: v.exitReason,
				Spent:      v.spent,
			})
		}
		v.mover = nil
		p.pool = append(p.pool, v)
		p.stats.Despawned++
	}
	for i := len(kept); i < len(p.live); i++ {
		p.live[i] = nil
	}
	p.live = kept
}

// Reevaluate delivers the hourly signal to one visitor. It matches
// world.HeartbeatFunc.
func (p *Population) Reevaluate(ctx context.Context, visitorID string, hour int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reevaluate visitor %s: %w", visitorID, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.byID[visitorID]
	if !ok {
		return fmt.Errorf("reevaluate visitor %s: %w", visitorID, ErrVisitorNotFound)
	}
	v.reevaluate(hour, p.tickLocked())
	return nil
}

// IDs lists live visitors. It matches world.ListVisitorIDsFunc.
func (p *Population) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.live))
	for _, v := range p.live {
		ids = append(ids, v.ID)
	}
	return ids
}

// Evict sends a visitor back to the spawn point after releasing everything
// it holds.
func (p *Population) Evict(visitorID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.byID[visitorID]
	if !ok {
		return fmt.Errorf("evict visitor %s: %w", visitorID, ErrVisitorNotFound)
	}
	if v.evict(reason, p.tickLocked()) {
		p.stats.Evicted++
	}
	return nil
}

// Remove returns a visitor to the pool at once.
func (p *Population) Remove(visitorID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.byID[visitorID]
	if !ok {
		return fmt.Errorf("remove visitor %s: %w", visitorID, ErrVisitorNotFound)
	}
	t := p.tickLocked()
	v.despawn(reason)
	p.reapLocked(t)
	return nil
}

// ScheduleDespawn flags a visitor for removal on the next sweep.
func (p *Population) ScheduleDespawn(visitorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.byID[visitorID]
	if !ok {
		return fmt.Errorf("schedule despawn %s: %w", visitorID, ErrVisitorNotFound)
	}
	v.scheduledForDespawn = true
	return nil
}

// EvictHolders evicts every visitor holding a resource a rebuild dropped.
func (p *Population) EvictHolders(res registry.RebuildResult) int {
	if res.Empty() {
		return 0
	}
	dropped := make(map[registry.ResourceID]bool)
	for _, ids := range [][]registry.ResourceID{res.DroppedRooms, res.DroppedSeats, res.DroppedFixtures} {
		for _, id := range ids {
			dropped[id] = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.tickLocked()
	n := 0
	for _, v := range p.live {
		if (v.room != "" && dropped[v.room]) || (v.seat != "" && dropped[v.seat]) {
			if v.evict("layout changed", t) {
				p.stats.Evicted++
				n++
			}
		}
	}
	return n
}

// SetLayout updates the spawn point and exterior wander area.
func (p *Population) SetLayout(spawn geom.Point, wander geom.Bounds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.env.Spawn = spawn
	p.env.WanderArea = wander
}

// Get returns one live visitor.
func (p *Population) Get(visitorID string) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.byID[visitorID]
	if !ok {
		return Info{}, fmt.Errorf("get visitor %s: %w", visitorID, ErrVisitorNotFound)
	}
	return v.Info(), nil
}

// List returns every live visitor in spawn order.
func (p *Population) List() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Info, 0, len(p.live))
	for _, v := range p.live {
		out = append(out, v.Info())
	}
	return out
}

// Count returns the number of live visitors.
func (p *Population) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Stats returns lifecycle counters.
func (p *Population) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Live = len(p.live)
	s.Pooled = len(p.pool)
	return s
}
