package visitor

import (
	"time"

	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// charge is a payment the visitor is already entitled to make.
type charge struct {
	amount     int
	itemID     string
	reputation int
}

// tick is the time context one step runs in.
type tick struct {
	sim       world.SimTime
	real      time.Time
	clockless bool
}

func (t tick) minutes() int { return t.sim.TotalMinutes() }

// hour is the clock hour, or -1 when no clock is wired.
func (t tick) hour() int {
	if t.clockless {
		return -1
	}
	return t.sim.Hour
}

// Visitor is one simulated guest. Its fields are owned by whoever steps it;
// Population serializes every access.
type Visitor struct {
	ID        string
	Name      string
	spawnedAt world.SimTime

	state    State
	activity Activity

	room        registry.ResourceID
	purpose     Purpose
	roomEntered bool
	fixture     registry.FixtureKind
	fixturePose geom.Pose
	seat        registry.ResourceID
	seatPose    geom.Pose
	savedPose   *geom.Pose

	queue       Counter
	inQueue     bool
	beingServed bool

	owed  map[string]charge // itemID -> charge
	spent int

	phase      phase
	deadline   time.Time // real-time bound for travel/queue/ceiling
	dueMinute  int       // sim minute a pause, service or timer ends
	started    int       // sim minute the current timer began
	useUntil   int       // end of the room occupancy span, 0 when none
	leaveAfter int       // checkout sub-loop: despawn once hour >= leaveAfter, -1 when off

	destination         geom.Point
	scheduledForDespawn bool
	pooled              bool
	exitReason          string

	mover  Mover
	env    *Env
	logger *zap.Logger
}

// Info is a read-only view of a visitor for the API.
type Info struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	State       State               `json:"state"`
	Activity    Activity            `json:"activity,omitempty"`
	Room        registry.ResourceID `json:"room,omitempty"`
	Purpose     Purpose             `json:"purpose,omitempty"`
	Fixture     string              `json:"fixture,omitempty"`
	Seat        registry.ResourceID `json:"seat,omitempty"`
	InQueue     bool                `json:"in_queue"`
	BeingServed bool                `json:"being_served"`
	Position    geom.Point          `json:"position"`
	Destination geom.Point          `json:"destination"`
	Spent       int                 `json:"spent"`
	SpawnedAt   world.SimTime       `json:"spawned_at"`
}

// Info returns the current view of v.
func (v *Visitor) Info() Info {
	info := Info{
		ID:          v.ID,
		Name:        v.Name,
		State:       v.state,
		Activity:    v.activity,
		Room:        v.room,
		Purpose:     v.purpose,
		Fixture:     string(v.fixture),
		Seat:        v.seat,
		InQueue:     v.inQueue,
		BeingServed: v.beingServed,
		Destination: v.destination,
		Spent:       v.spent,
		SpawnedAt:   v.spawnedAt,
	}
	if v.mover != nil {
		info.Position = v.mover.Pose().Position
	}
	return info
}

// State returns the current behavior state.
func (v *Visitor) State() State { return v.state }

// holdsStay reports whether v legitimately occupies a room overnight.
func (v *Visitor) holdsStay() bool {
	return v.room != "" && v.purpose == PurposeStay
}

func (v *Visitor) reset(id, name string, mover Mover, env *Env, at world.SimTime) {
	*v = Visitor{
		ID:         id,
		Name:       name,
		spawnedAt:  at,
		state:      StatePooled,
		owed:       make(map[string]charge),
		leaveAfter: -1,
		mover:      mover,
		env:        env,
		logger:     env.Logger.With(zap.String("visitor", id)),
	}
}

func (v *Visitor) setState(s State, t tick) {
	if v.state == s {
		return
	}
	v.logger.Debug("state", zap.String("from", string(v.state)), zap.String("to", string(s)))
	v.state = s
	if v.env.Board != nil {
		v.env.Board.Record(v.ID, string(s), t.sim)
	}
}

// travel sends v toward dest in state s and parks it on the arrival wait.
func (v *Visitor) travel(s State, dest geom.Point, t tick) {
	v.setState(s, t)
	v.destination = dest
	v.mover.SetDestination(dest)
	v.phase = phaseTravel
	v.deadline = t.real.Add(v.env.Tuning.TravelTimeout())
}

// arrival reports whether the pending trip is over. timedOut is set when the
// travel bound expired first.
func (v *Visitor) arrival(t tick) (arrived, timedOut bool) {
	if v.mover.Arrived() && !v.mover.Pending() {
		return true, false
	}
	if !t.real.Before(v.deadline) {
		return false, true
	}
	return false, false
}

// rest warps v onto pose and freezes it there.
func (v *Visitor) rest(pose geom.Pose, a Activity) {
	if v.savedPose == nil {
		saved := v.mover.Pose()
		v.savedPose = &saved
	}
	v.mover.Warp(pose)
	v.mover.Suspend()
	v.activity = a
}

// getUp undoes rest.
func (v *Visitor) getUp() {
	if v.savedPose != nil {
		v.mover.Warp(*v.savedPose)
		v.savedPose = nil
	}
	v.mover.Resume()
	v.activity = ActivityNone
}

func (v *Visitor) owe(c charge) {
	if _, ok := v.owed[c.itemID]; ok {
		return
	}
	v.owed[c.itemID] = c
}

// settle issues an owed charge once.
func (v *Visitor) settle(itemID string) {
	c, ok := v.owed[itemID]
	if !ok {
		return
	}
	delete(v.owed, itemID)
	v.pay(c)
}

func (v *Visitor) pay(c charge) {
	v.spent += c.amount
	if v.env.Payments == nil {
		v.logger.Warn("no payment collaborator, charge dropped", zap.String("item", c.itemID), zap.Int("amount", c.amount))
		return
	}
	v.env.Payments.RequestPayment(v.ID, c.amount, c.itemID, c.reputation)
}

func (v *Visitor) randomPoint(area geom.Bounds) geom.Point {
	return area.Lerp(v.env.Rand.Float64(), v.env.Rand.Float64())
}

func roomItem(id registry.ResourceID) string   { return "room:" + string(id) }
func sunbedItem(id registry.ResourceID) string { return "sunbed:" + string(id) }
