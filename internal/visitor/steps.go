package visitor

import (
	"time"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"go.uber.org/zap"
)

// step advances v by one tick. It only ever resumes v from the suspension
// point it is parked on.
func (v *Visitor) step(t tick) {
	if v.pooled {
		return
	}
	switch v.state {
	case StateWandering, StateUseWandering, StateRoomWandering:
		v.stepWander(t)
	case StateMovingToQueue:
		v.stepMovingToQueue(t)
	case StateWaitingInQueue:
		v.stepCheckIn(t)
	case StateReportingRoomQueue, StateReportingRoom:
		v.stepCheckout(t)
	case StateMovingToRoom:
		v.stepMovingToRoom(t)
	case StateUsingRoom:
		v.wander(StateRoomWandering, t)
	case StateMovingToBed:
		v.stepMovingToBed(t)
	case StateSleeping:
		if h := t.hour(); h >= v.env.Tuning.WakeHour && h < v.env.Tuning.EvictionHour {
			v.wake(t)
		}
	case StateMovingToSunbed:
		v.stepMovingToSunbed(t)
	case StateUsingSunbed:
		v.stepSunbed(t)
	case StateMovingToKitchenCounter:
		v.stepMovingToKitchen(t)
	case StateWaitingAtKitchenCounter:
		v.stepKitchenQueue(t)
	case StateMovingToChair:
		v.stepMovingToChair(t)
	case StateEating:
		v.stepEating(t)
	case StateReturningToSpawn:
		if arrived, timedOut := v.arrival(t); arrived || timedOut {
			v.despawn("")
		}
	}
}

func (v *Visitor) stepWander(t tick) {
	switch v.phase {
	case phaseTravel:
		arrived, timedOut := v.arrival(t)
		if timedOut {
			v.logger.Debug("wander leg timed out")
			v.legDone(t)
			return
		}
		if arrived {
			tu := v.env.Tuning
			v.phase = phasePause
			v.dueMinute = t.minutes() + chance.Between(v.env.Rand, tu.WanderPause.Min, tu.WanderPause.Max)
		}
	case phasePause:
		if t.minutes() >= v.dueMinute {
			v.legDone(t)
		}
	default:
		v.legDone(t)
	}
}

// legDone runs after one wander leg and its pause. It is the only place a
// morning checkout's wander loop ends.
func (v *Visitor) legDone(t tick) {
	if v.useUntil > 0 && v.holdsStay() {
		if t.minutes() < v.useUntil {
			v.wander(v.state, t)
			return
		}
		v.useUntil = 0
	}
	v.selectBehavior(t.hour(), t)
}

// joinQueue enters the line of v.queue in state s.
func (v *Visitor) joinQueue(s State, t tick) bool {
	if v.queue == nil || !v.queue.TryJoinQueue(v.ID) {
		return false
	}
	v.inQueue = true
	v.activity = ActivityWaiting
	v.setState(s, t)
	v.phase = phaseQueue
	v.deadline = t.real.Add(v.env.Tuning.QueueTimeout())
	return true
}

// waitService drives the queue and service phases. done is set once the
// service time has elapsed and the line was left.
func (v *Visitor) waitService(t tick) (done, timedOut bool) {
	switch v.phase {
	case phaseQueue:
		if v.queue.CanReceiveService(v.ID) {
			v.queue.StartService(v.ID)
			v.beingServed = true
			v.phase = phaseService
			v.dueMinute = t.minutes() + v.env.Tuning.ServiceMinutes
			return false, false
		}
		return false, !t.real.Before(v.deadline)
	case phaseService:
		if t.minutes() >= v.dueMinute {
			v.leaveQueue()
			return true, false
		}
	}
	return false, false
}

func (v *Visitor) leaveQueue() {
	if v.queue != nil && (v.inQueue || v.beingServed) {
		v.queue.LeaveQueue(v.ID)
	}
	if v.activity == ActivityWaiting {
		v.activity = ActivityNone
	}
	v.inQueue, v.beingServed = false, false
	v.queue = nil
}

func (v *Visitor) stepMovingToQueue(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	if !v.joinQueue(StateWaitingInQueue, t) {
		v.logger.Debug("reception refused check-in")
		v.queue = nil
		v.wander(StateWandering, t)
	}
}

func (v *Visitor) stepCheckIn(t tick) {
	done, timedOut := v.waitService(t)
	if timedOut {
		v.logger.Debug("check-in queue timed out")
		v.leaveQueue()
		v.selectBehavior(t.hour(), t)
		return
	}
	if !done {
		return
	}
	if v.room != "" {
		v.logger.Error("check-in while holding a room", zap.String("room", string(v.room)))
		v.roomSplit(t)
		return
	}
	id, ok := v.env.Registry.TryReserveRoom()
	if !ok {
		v.logger.Debug("no room free at check-in")
		v.wander(StateWandering, t)
		return
	}
	room, ok := v.env.Registry.Room(id)
	if !ok {
		v.env.Registry.Release(id)
		v.invariant("reserved room missing from catalog", t)
		return
	}
	v.room, v.purpose = id, PurposeStay
	v.logger.Info("checked in", zap.String("room", string(id)))
	v.travel(StateMovingToRoom, room.Entrance, t)
}

func (v *Visitor) stepMovingToRoom(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	tu := v.env.Tuning
	v.roomEntered = true
	v.setState(StateUsingRoom, t)
	v.useUntil = t.minutes() + chance.Between(v.env.Rand, tu.RoomUse.Min, tu.RoomUse.Max)
	v.wander(StateRoomWandering, t)
}

func (v *Visitor) stepCheckout(t tick) {
	switch v.phase {
	case phaseTravel:
		arrived, timedOut := v.arrival(t)
		if timedOut {
			v.travelTimeout(t)
			return
		}
		if arrived && !v.joinQueue(StateReportingRoomQueue, t) {
			v.retryCheckout(t)
		}
	case phaseRetry:
		if t.real.Before(v.deadline) {
			return
		}
		if !v.holdsStay() {
			v.roamOrLeave(t)
			return
		}
		v.queue = v.env.Reception
		if !v.joinQueue(StateReportingRoomQueue, t) {
			v.retryCheckout(t)
		}
	case phaseQueue, phaseService:
		done, timedOut := v.waitService(t)
		if v.beingServed {
			v.setState(StateReportingRoom, t)
		}
		if timedOut {
			v.logger.Debug("checkout queue timed out")
			v.leaveQueue()
			v.retryCheckout(t)
			return
		}
		if done {
			v.completeCheckout(t)
		}
	default:
		v.reportRoom(t)
	}
}

// retryCheckout backs off before trying the desk again, or gives up when
// the room is gone.
func (v *Visitor) retryCheckout(t tick) {
	if !v.holdsStay() {
		v.queue = nil
		v.roamOrLeave(t)
		return
	}
	tu := v.env.Tuning
	wait := chance.Between(v.env.Rand, tu.QueueRetry.Min, tu.QueueRetry.Max)
	v.queue = nil
	v.activity = ActivityNone
	v.setState(StateReportingRoomQueue, t)
	v.phase = phaseRetry
	v.deadline = t.real.Add(time.Duration(wait) * time.Second)
	v.logger.Debug("checkout retry scheduled", zap.Int("seconds", wait))
}

// completeCheckout pays for the stay, hands the room to housekeeping and
// releases it.
func (v *Visitor) completeCheckout(t tick) {
	id := v.room
	v.settle(roomItem(id))
	if v.env.Cleaning != nil {
		v.env.Cleaning.RequestCleaning(id)
	}
	v.env.Registry.Release(id)
	v.room, v.purpose, v.roomEntered, v.useUntil = "", PurposeNone, false, 0
	v.queue = nil
	v.activity = ActivityNone
	v.logger.Info("checked out", zap.String("room", string(id)))

	if h := t.hour(); h >= v.env.Tuning.WakeHour && h < v.env.Tuning.CheckoutEndHour {
		v.leaveAfter = v.env.Tuning.CheckoutEndHour
		v.wander(StateWandering, t)
		return
	}
	v.selectBehavior(t.hour(), t)
}

func (v *Visitor) stepMovingToBed(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	v.rest(v.fixturePose, ActivitySleeping)
	v.phase = phaseNone
	v.setState(StateSleeping, t)
}

func (v *Visitor) stepMovingToSunbed(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	tu := v.env.Tuning
	v.rest(v.fixturePose, ActivitySunbathing)
	v.owe(charge{amount: tu.SunbedPrice, itemID: sunbedItem(v.room), reputation: tu.SunbedReputation})
	v.setState(StateUsingSunbed, t)
	v.phase = phaseTimer
	v.started = t.minutes()
	v.deadline = t.real.Add(tu.SunbedCeiling())
	v.stepSunbed(t)
}

// stepSunbed ends the session after the configured minutes, at the cutoff
// hour or at the real-time ceiling, whichever comes first.
func (v *Visitor) stepSunbed(t tick) {
	tu := v.env.Tuning
	elapsed := t.minutes() - v.started
	if elapsed < tu.SunbedMinutes && t.hour() < tu.SunbedCutoff && t.real.Before(v.deadline) {
		return
	}
	id := v.room
	v.getUp()
	v.settle(sunbedItem(id))
	v.env.Registry.ReleaseFixture(id, registry.FixtureSunbed)
	v.env.Registry.Release(id)
	v.room, v.purpose, v.fixture = "", PurposeNone, ""
	v.logger.Debug("sunbed session over", zap.String("room", string(id)), zap.Int("minutes", elapsed))
	v.wander(StateWandering, t)
}

func (v *Visitor) stepMovingToKitchen(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	if !v.joinQueue(StateWaitingAtKitchenCounter, t) {
		v.logger.Debug("kitchen refused order")
		v.queue = nil
		v.releaseSeat()
		v.wander(StateWandering, t)
	}
}

func (v *Visitor) stepKitchenQueue(t tick) {
	done, timedOut := v.waitService(t)
	if timedOut {
		v.logger.Debug("kitchen queue timed out")
		v.leaveQueue()
		v.releaseSeat()
		v.selectBehavior(t.hour(), t)
		return
	}
	if !done {
		return
	}
	tu := v.env.Tuning
	v.pay(charge{amount: tu.OrderPrice, itemID: "order:kitchen", reputation: tu.OrderReputation})
	v.travel(StateMovingToChair, v.seatPose.Position, t)
}

func (v *Visitor) stepMovingToChair(t tick) {
	arrived, timedOut := v.arrival(t)
	if timedOut {
		v.travelTimeout(t)
		return
	}
	if !arrived {
		return
	}
	v.rest(v.seatPose, ActivityEating)
	v.setState(StateEating, t)
	v.phase = phaseTimer
	v.dueMinute = t.minutes() + v.env.Tuning.EatingMinutes
}

func (v *Visitor) stepEating(t tick) {
	if t.minutes() < v.dueMinute {
		return
	}
	v.getUp()
	v.releaseSeat()
	if v.holdsStay() {
		v.wander(StateUseWandering, t)
		return
	}
	v.wander(StateWandering, t)
}

func (v *Visitor) releaseSeat() {
	if v.seat == "" {
		return
	}
	v.env.Registry.ReleaseSeat(v.seat)
	v.seat = ""
}

// travelTimeout unwinds whatever was claimed for the trip that never
// arrived, then picks again.
func (v *Visitor) travelTimeout(t tick) {
	v.logger.Warn("travel timed out",
		zap.String("state", string(v.state)),
		zap.Any("destination", v.destination))
	switch v.state {
	case StateMovingToRoom:
		v.env.Registry.Release(v.room)
		v.room, v.purpose = "", PurposeNone
	case StateMovingToBed:
		v.env.Registry.ReleaseFixture(v.room, v.fixture)
		v.fixture = ""
	case StateMovingToSunbed:
		v.env.Registry.ReleaseFixture(v.room, v.fixture)
		v.env.Registry.Release(v.room)
		v.room, v.purpose, v.fixture = "", PurposeNone, ""
	case StateMovingToKitchenCounter, StateMovingToChair:
		v.releaseSeat()
	}
	v.queue = nil
	v.phase = phaseNone
	v.selectBehavior(t.hour(), t)
}
