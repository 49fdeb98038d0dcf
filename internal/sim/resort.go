// Package sim assembles the resort: it builds every collaborator from the
// config and the floor plan, hangs them on the world clock in the right
// order and handles layout reloads.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/config"
	"github.com/nidhogg/nuka-resort/internal/counter"
	"github.com/nidhogg/nuka-resort/internal/facility"
	"github.com/nidhogg/nuka-resort/internal/gateway"
	"github.com/nidhogg/nuka-resort/internal/housekeeping"
	"github.com/nidhogg/nuka-resort/internal/ledger"
	"github.com/nidhogg/nuka-resort/internal/movement"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// Resort owns the running simulation.
type Resort struct {
	Clock       *world.WorldClock
	Registry    *registry.Registry
	Board       *world.StateBoard
	Navigator   *movement.Navigator
	Ledger      *ledger.Ledger
	Crew        *housekeeping.Crew
	Population  *visitor.Population
	Sweeper     *visitor.Sweeper
	Heartbeat   *world.Heartbeat
	Spawner     *Spawner
	Driver      *Driver
	Gateway     *gateway.Gateway
	Broadcaster *gateway.Broadcaster
	Reporter    *gateway.Reporter

	counters map[string]*counter.Counter
	layout   *facility.Layout
	mu       sync.RWMutex
	logger   *zap.Logger
}

// Status is the summary served by the API.
type Status struct {
	Time       world.SimTime           `json:"time"`
	Paused     bool                    `json:"paused"`
	Open       bool                    `json:"open"`
	Population visitor.Stats           `json:"population"`
	Resources  registry.Stats          `json:"resources"`
	States     map[string]int          `json:"states"`
	Driver     DriverStats             `json:"driver"`
	Cleaning   int                     `json:"cleaning"`
	Cleaned    int                     `json:"cleaned"`
	Ledger     ledger.Totals           `json:"ledger"`
	LastHour   int                     `json:"last_heartbeat_hour"`
	Heartbeats int                     `json:"heartbeats"`
	Adapters   []gateway.AdapterStatus `json:"adapters"`
}

// ReloadResult describes a layout reload.
type ReloadResult struct {
	Rooms   int                    `json:"rooms"`
	Seats   int                    `json:"seats"`
	Dropped registry.RebuildResult `json:"dropped"`
	Evicted int                    `json:"evicted"`
}

// New builds a resort from cfg and layout. Nothing runs until Start.
func New(cfg *config.Config, layout *facility.Layout, logger *zap.Logger) (*Resort, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("new resort: %w", err)
	}
	s := cfg.Simulation

	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := chance.New(seed)

	r := &Resort{
		counters: make(map[string]*counter.Counter),
		layout:   layout,
		logger:   logger,
	}

	r.Clock = world.NewWorldClock(s.TickInterval(), s.MinutesPerTick,
		world.SimTime{Day: s.StartDay, Hour: s.StartHour}, logger.Named("clock"))
	r.Registry = registry.New(src, logger.Named("registry"))
	r.Registry.Rebuild(layout.RegistryRooms(), layout.RegistrySeats())
	r.Board = world.NewStateBoard(logger)
	r.Navigator = movement.NewNavigator(layout.WalkableAreas(), s.WalkSpeed, logger.Named("movement"))
	r.Ledger = ledger.New(logger.Named("ledger"))
	r.Crew = housekeeping.NewCrew(r.Registry, r.Clock, cfg.Tuning.CleanMinutes, logger.Named("housekeeping"))

	env := &visitor.Env{
		Registry:   r.Registry,
		Clock:      r.Clock,
		Payments:   r.Ledger,
		Cleaning:   r.Crew,
		Board:      r.Board,
		Journal:    r.Ledger,
		Rand:       src,
		Tuning:     cfg.Tuning,
		Spawn:      layout.Spawn,
		WanderArea: layout.WanderArea,
		Logger:     logger.Named("visitor"),
	}
	for _, fc := range layout.Counters {
		c := counter.New(fc.Name, fc.Role, fc.Position, fc.Clerks, fc.Capacity, fc.IsStaffed(), logger)
		r.counters[fc.Name] = c
		// Assigned only when present: a nil *Counter in the interface would
		// not compare equal to nil.
		switch fc.Role {
		case facility.RoleReception:
			env.Reception = c
		case facility.RoleKitchen:
			env.Kitchen = c
		}
	}
	if env.Reception == nil {
		logger.Warn("layout has no reception, visitors cannot check in")
	}
	if env.Kitchen == nil {
		logger.Warn("layout has no kitchen, nobody will dine")
	}

	r.Population = visitor.NewPopulation(env, NewNavigatorMovers(r.Navigator), s.MaxVisitors, s.Workers, logger.Named("population"))
	r.Sweeper = visitor.NewSweeper(r.Population, logger.Named("sweeper"))
	r.Heartbeat = world.NewHeartbeat(r.Population.Reevaluate, r.Population.IDs, logger.Named("heartbeat"))
	r.Spawner = NewSpawner(r.Population, src, s.SpawnChance, s.OpenHour, s.CloseHour, logger.Named("spawner"))
	r.Driver = NewDriver(r.Crew, r.Navigator, r.Spawner, r.Population, r.Sweeper, logger.Named("driver"))

	r.Gateway = gateway.NewGateway(logger.Named("gateway"))
	r.Broadcaster = gateway.NewBroadcaster(r.Gateway, logger.Named("gateway"))
	r.Reporter = gateway.NewReporter(r.Ledger, r.Registry, r.Population, r.Broadcaster, logger.Named("report"))

	// Day before hour before tick: the heartbeat and the closing sweep see
	// the new hour before any visitor steps.
	r.Clock.AddDayListener(r.Reporter)
	r.Clock.AddHourListener(r.Heartbeat)
	r.Clock.AddHourListener(r.Sweeper)
	r.Clock.AddListener(r.Driver)

	logger.Info("resort assembled",
		zap.Int("rooms", len(layout.Rooms)),
		zap.Int("seats", len(layout.Seats)),
		zap.Int("counters", len(layout.Counters)),
		zap.Uint64("seed", seed))
	return r, nil
}

// Start runs the clock.
func (r *Resort) Start() { r.Clock.Start() }

// Stop halts the clock and waits for pending reports.
func (r *Resort) Stop() {
	r.Clock.Stop()
	r.Reporter.Wait()
}

// Counters returns every counter status, reception first.
func (r *Resort) Counters() []counter.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]counter.Status, 0, len(r.counters))
	for _, role := range []string{facility.RoleReception, facility.RoleKitchen} {
		for _, c := range r.counters {
			if c.Role() == role {
				out = append(out, c.Status())
			}
		}
	}
	return out
}

// Counter looks a counter up by name.
func (r *Resort) Counter(name string) (*counter.Counter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[name]
	return c, ok
}

// Layout returns the active floor plan.
func (r *Resort) Layout() *facility.Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layout
}

// ReloadLayout swaps in a new floor plan. The walkable floor and spawn
// point change first so evicted visitors walk to the new exit; visitors
// holding a room or seat the plan removed are evicted. Counters keep their
// lines and are not rebuilt.
func (r *Resort) ReloadLayout(l *facility.Layout) (ReloadResult, error) {
	if err := l.Validate(); err != nil {
		return ReloadResult{}, fmt.Errorf("reload layout: %w", err)
	}

	r.mu.Lock()
	for _, fc := range l.Counters {
		if _, ok := r.counters[fc.Name]; !ok {
			r.logger.Warn("new counter in layout ignored until restart", zap.String("counter", fc.Name))
		}
	}
	r.layout = l
	r.mu.Unlock()

	r.Navigator.SetAreas(l.WalkableAreas())
	r.Population.SetLayout(l.Spawn, l.WanderArea)
	dropped := r.Registry.Rebuild(l.RegistryRooms(), l.RegistrySeats())
	evicted := r.Population.EvictHolders(dropped)

	res := ReloadResult{
		Rooms:   len(l.Rooms),
		Seats:   len(l.Seats),
		Dropped: dropped,
		Evicted: evicted,
	}
	r.logger.Info("layout reloaded",
		zap.Int("rooms", res.Rooms),
		zap.Int("seats", res.Seats),
		zap.Int("dropped_rooms", len(dropped.DroppedRooms)),
		zap.Int("evicted", evicted))

	go r.announce(&gateway.BroadcastMessage{
		Type:    gateway.BroadcastLayout,
		Title:   "Floor plan changed",
		Content: fmt.Sprintf("%d rooms, %d seats; %d guests moved out", res.Rooms, res.Seats, evicted),
	})
	return res, nil
}

func (r *Resort) announce(msg *gateway.BroadcastMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Broadcaster.Send(ctx, msg); err != nil {
		r.logger.Warn("announcement not delivered", zap.Error(err))
	}
}

// Status gathers the current summary.
func (r *Resort) Status() Status {
	now := r.Clock.Now()
	lastHour, beats := r.Heartbeat.Stats()
	return Status{
		Time:       now,
		Paused:     r.Clock.Paused(),
		Open:       r.Spawner.Open(now.Hour),
		Population: r.Population.Stats(),
		Resources:  r.Registry.Stats(),
		States:     r.Board.Counts(),
		Driver:     r.Driver.Stats(),
		Cleaning:   len(r.Crew.Jobs()),
		Cleaned:    r.Crew.Completed(),
		Ledger:     r.Ledger.Totals(),
		LastHour:   lastHour,
		Heartbeats: beats,
		Adapters:   r.Gateway.Statuses(),
	}
}
