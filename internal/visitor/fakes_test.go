package visitor

import (
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/config"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

type fakeMover struct {
	pose       geom.Pose
	dest       geom.Point
	arrived    bool
	pending    bool
	offSurface bool
	suspended  bool
	auto       bool
}

func (m *fakeMover) SetDestination(p geom.Point) {
	m.dest = p
	if m.auto {
		m.pose.Position = p
		m.arrived, m.pending = true, false
		return
	}
	m.arrived, m.pending = false, true
}

func (m *fakeMover) Arrived() bool            { return m.arrived }
func (m *fakeMover) Pending() bool            { return m.pending }
func (m *fakeMover) OnNavigableSurface() bool { return !m.offSurface }
func (m *fakeMover) Pose() geom.Pose          { return m.pose }
func (m *fakeMover) Warp(p geom.Pose)         { m.pose = p }
func (m *fakeMover) Suspend()                 { m.suspended = true }
func (m *fakeMover) Resume()                  { m.suspended = false }

type fakeMovers struct {
	stuck  bool
	movers map[string]*fakeMover
}

func (f *fakeMovers) NewMover(id string, at geom.Pose) Mover {
	m := &fakeMover{pose: at, auto: !f.stuck}
	f.movers[id] = m
	return m
}

func (f *fakeMovers) ReleaseMover(id string) { delete(f.movers, id) }

type fakeClock struct {
	mu  sync.Mutex
	now world.SimTime
}

func (c *fakeClock) Now() world.SimTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) CurrentHour() int   { return c.Now().Hour }
func (c *fakeClock) CurrentMinute() int { return c.Now().Minute }

func (c *fakeClock) set(day, hour, minute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = world.SimTime{Day: day, Hour: hour, Minute: minute}
}

func (c *fakeClock) advance(minutes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddMinutes(minutes)
}

type fakeCounter struct {
	mu       sync.Mutex
	staffed  bool
	refuse   bool
	notReady bool
	line     map[string]bool
	serving  map[string]bool
	served   int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{staffed: true, line: map[string]bool{}, serving: map[string]bool{}}
}

func (c *fakeCounter) TryJoinQueue(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse || !c.staffed {
		return false
	}
	c.line[id] = true
	return true
}

func (c *fakeCounter) CanReceiveService(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.notReady && c.line[id]
}

func (c *fakeCounter) StartService(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serving[id] = true
}

func (c *fakeCounter) LeaveQueue(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serving[id] {
		c.served++
	}
	delete(c.line, id)
	delete(c.serving, id)
}

func (c *fakeCounter) ServicePoint() geom.Point { return geom.Point{X: 10, Z: 6} }

func (c *fakeCounter) Staffed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staffed
}

func (c *fakeCounter) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.line)
}

type payment struct {
	visitor    string
	amount     int
	item       string
	reputation int
}

type fakePayments struct {
	mu   sync.Mutex
	list []payment
}

func (p *fakePayments) RequestPayment(visitorID string, amount int, itemID string, rep int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.list = append(p.list, payment{visitorID, amount, itemID, rep})
}

func (p *fakePayments) all() []payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment(nil), p.list...)
}

type fakeCleaning struct {
	mu    sync.Mutex
	rooms []registry.ResourceID
}

func (c *fakeCleaning) RequestCleaning(id registry.ResourceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = append(c.rooms, id)
}

type fakeJournal struct {
	visits []Visit
}

func (j *fakeJournal) RecordVisit(v Visit) { j.visits = append(j.visits, v) }

type harness struct {
	env       *Env
	reg       *registry.Registry
	clock     *fakeClock
	reception *fakeCounter
	kitchen   *fakeCounter
	pay       *fakePayments
	clean     *fakeCleaning
	journal   *fakeJournal
	movers    *fakeMovers
	real      time.Time
	pop       *Population
	sweeper   *Sweeper
}

func testRoom() registry.Room {
	return registry.Room{
		Name:     "101",
		Bounds:   geom.Bounds{Min: geom.Point{X: 0, Z: 40}, Max: geom.Point{X: 6, Y: 3, Z: 46}},
		Entrance: geom.Point{X: 3, Z: 40},
		Price:    100,
		Bed:      &registry.Fixture{Pose: geom.Pose{Position: geom.Point{X: 1, Z: 44}}},
		Sunbed:   &registry.Fixture{Pose: geom.Pose{Position: geom.Point{X: 5, Z: 44}, Yaw: 90}},
	}
}

func testSeat() registry.Seat {
	return registry.Seat{Name: "t1", Pose: geom.Pose{Position: geom.Point{X: 30, Z: 10}, Yaw: 180}}
}

func newHarness(t *testing.T, src chance.Source, hour int) *harness {
	t.Helper()
	reg := registry.New(chance.New(1), zap.NewNop())
	reg.Rebuild([]registry.Room{testRoom()}, []registry.Seat{testSeat()})

	h := &harness{
		reg:       reg,
		clock:     &fakeClock{now: world.SimTime{Day: 1, Hour: hour}},
		reception: newFakeCounter(),
		kitchen:   newFakeCounter(),
		pay:       &fakePayments{},
		clean:     &fakeCleaning{},
		journal:   &fakeJournal{},
		movers:    &fakeMovers{movers: map[string]*fakeMover{}},
		real:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	h.env = &Env{
		Registry:   reg,
		Clock:      h.clock,
		Reception:  h.reception,
		Kitchen:    h.kitchen,
		Payments:   h.pay,
		Cleaning:   h.clean,
		Journal:    h.journal,
		Rand:       src,
		Tuning:     config.DefaultTuning(),
		Now:        func() time.Time { return h.real },
		Spawn:      geom.Point{X: 1, Z: 1},
		WanderArea: geom.Bounds{Max: geom.Point{X: 60, Z: 40}},
		Logger:     zap.NewNop(),
	}
	h.pop = NewPopulation(h.env, h.movers, 0, 1, zap.NewNop())
	h.sweeper = NewSweeper(h.pop, zap.NewNop())
	return h
}

func (h *harness) spawn(t *testing.T) *Visitor {
	t.Helper()
	info, err := h.pop.Spawn("guest")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return h.pop.byID[info.ID]
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.pop.Step()
	}
}

func (h *harness) reevaluate(t *testing.T, v *Visitor, hour int) {
	t.Helper()
	if err := h.pop.Reevaluate(t.Context(), v.ID, hour); err != nil {
		t.Fatalf("reevaluate: %v", err)
	}
}

// checkIn drives a freshly spawned visitor that chose the queue until it
// stands in its room.
func (h *harness) checkIn(t *testing.T, v *Visitor) {
	t.Helper()
	if v.State() != StateMovingToQueue {
		t.Fatalf("got %s, want %s", v.State(), StateMovingToQueue)
	}
	h.step(2) // join, start service
	h.clock.advance(h.env.Tuning.ServiceMinutes)
	h.step(2) // room reserved, arrive
	if v.State() != StateRoomWandering || !v.holdsStay() {
		t.Fatalf("check-in ended in %s holding %q", v.State(), v.room)
	}
}
