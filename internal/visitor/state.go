package visitor

// State is the behavior state of a visitor.
type State string

const (
	// Idle and transit.
	StateWandering          State = "Wandering"
	StateMovingToQueue      State = "MovingToQueue"
	StateWaitingInQueue     State = "WaitingInQueue"
	StateReportingRoomQueue State = "ReportingRoomQueue"
	StateReturningToSpawn   State = "ReturningToSpawn"

	// Room lifecycle.
	StateMovingToRoom  State = "MovingToRoom"
	StateUsingRoom     State = "UsingRoom"
	StateUseWandering  State = "UseWandering"
	StateRoomWandering State = "RoomWandering"
	StateReportingRoom State = "ReportingRoom"

	// Rest.
	StateMovingToBed State = "MovingToBed"
	StateSleeping    State = "Sleeping"

	// Leisure.
	StateMovingToSunbed State = "MovingToSunbed"
	StateUsingSunbed    State = "UsingSunbed"

	// Dining.
	StateMovingToKitchenCounter  State = "MovingToKitchenCounter"
	StateWaitingAtKitchenCounter State = "WaitingAtKitchenCounter"
	StateMovingToChair           State = "MovingToChair"
	StateEating                  State = "Eating"

	// StatePooled marks an inactive visitor waiting for reuse.
	StatePooled State = "Pooled"
)

// critical states hold or are heading for a committed resource. The hourly
// re-evaluation leaves them alone.
func (s State) critical() bool {
	switch s {
	case StateWandering, StateUseWandering, StateRoomWandering, StatePooled:
		return false
	}
	return true
}

// wandering reports whether s roams between random points.
func (s State) wandering() bool {
	return s == StateWandering || s == StateUseWandering || s == StateRoomWandering
}

// Activity is what a visitor is doing with its body. Only one applies at a
// time.
type Activity string

const (
	ActivityNone       Activity = ""
	ActivitySleeping   Activity = "sleeping"
	ActivitySunbathing Activity = "using_sunbed"
	ActivityEating     Activity = "eating"
	ActivityWaiting    Activity = "waiting_at_counter"
)

// Purpose says why a visitor holds its room.
type Purpose string

const (
	PurposeNone   Purpose = ""
	PurposeStay   Purpose = "stay"
	PurposeSunbed Purpose = "sunbed"
)

// phase is the suspension point a visitor is parked on.
type phase int

const (
	phaseNone    phase = iota
	phaseTravel        // waiting for the mover to arrive
	phasePause         // idling until a sim minute
	phaseQueue         // in a line, waiting to be called
	phaseService       // being served until a sim minute
	phaseRetry         // backing off until a real time
	phaseTimer         // seated/reclined activity until a sim minute
)
