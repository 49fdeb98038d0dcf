package visitor

import (
	"time"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/config"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// Mover is the movement executor driving one visitor. The visitor only sets
// destinations and observes the flags; path finding happens elsewhere.
type Mover interface {
	SetDestination(p geom.Point)
	Arrived() bool
	Pending() bool
	OnNavigableSurface() bool
	Pose() geom.Pose
	// Warp places the visitor without walking.
	Warp(p geom.Pose)
	// Suspend freezes movement while seated or lying down; Resume undoes it.
	Suspend()
	Resume()
}

// Movers hands out one Mover per live visitor.
type Movers interface {
	NewMover(visitorID string, at geom.Pose) Mover
	ReleaseMover(visitorID string)
}

// Clock is the simulated clock source.
type Clock interface {
	CurrentHour() int
	CurrentMinute() int
	Now() world.SimTime
}

// Queue is a staffed service line. Visitors call it only from their own step
// and never assume success.
type Queue interface {
	TryJoinQueue(visitorID string) bool
	CanReceiveService(visitorID string) bool
	StartService(visitorID string)
	LeaveQueue(visitorID string)
}

// Counter is a Queue with a place to stand and a staffing flag.
type Counter interface {
	Queue
	ServicePoint() geom.Point
	Staffed() bool
}

// Payments receives fire-and-forget charges.
type Payments interface {
	RequestPayment(visitorID string, amount int, itemID string, reputationDelta int)
}

// Cleaning receives advisory cleaning requests for vacated rooms.
type Cleaning interface {
	RequestCleaning(roomID registry.ResourceID)
}

// Visit is the journal entry written when a visitor returns to the pool.
type Visit struct {
	VisitorID  string        `json:"visitor_id"`
	Name       string        `json:"name"`
	SpawnedAt  world.SimTime `json:"spawned_at"`
	LeftAt     world.SimTime `json:"left_at"`
	ExitReason string        `json:"exit_reason"`
	Spent      int           `json:"spent"`
}

// Journal records finished visits.
type Journal interface {
	RecordVisit(v Visit)
}

// Env is everything a visitor needs from the outside world. Reception,
// Kitchen, Payments, Cleaning, Board and Journal may be nil; visitors then
// fall back to behavior that does not need them.
type Env struct {
	Registry   *registry.Registry
	Clock      Clock
	Reception  Counter
	Kitchen    Counter
	Payments   Payments
	Cleaning   Cleaning
	Board      *world.StateBoard
	Journal    Journal
	Rand       chance.Source
	Tuning     config.Tuning
	Now        func() time.Time
	Spawn      geom.Point
	WanderArea geom.Bounds
	Logger     *zap.Logger
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) receptionStaffed() bool {
	return e.Reception != nil && e.Reception.Staffed()
}
