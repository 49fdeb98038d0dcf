package visitor

import (
	"github.com/nidhogg/nuka-resort/internal/registry"
	"go.uber.org/zap"
)

// selectBehavior picks the next activity for the given clock hour. Every
// probabilistic choice uses exactly one draw.
func (v *Visitor) selectBehavior(hour int, t tick) {
	tu := v.env.Tuning
	stay := v.holdsStay()

	if v.leaveAfter >= 0 {
		if hour < 0 || hour >= v.leaveAfter {
			v.returnToSpawn("checked out", t)
			return
		}
		v.wander(StateWandering, t)
		return
	}
	if hour < 0 {
		// Without a clock a finished room span ends in checkout.
		if stay {
			v.reportRoom(t)
			return
		}
		v.fallback(t)
		return
	}
	if hour == tu.EvictionHour && !stay {
		v.returnToSpawn("closing time", t)
		return
	}

	switch {
	case hour < tu.WakeHour:
		if !stay {
			v.fallback(t)
			return
		}
		if v.activity == ActivitySleeping {
			return
		}
		if hour == tu.BedtimeHour && v.goToBed(t) {
			return
		}
		v.wander(StateRoomWandering, t)
	case hour < tu.CheckoutEndHour:
		if v.activity == ActivitySleeping {
			v.wake(t)
			return
		}
		if stay {
			v.reportRoom(t)
			return
		}
		v.daytime(hour, t)
	case hour < tu.EvictionHour:
		if stay {
			v.roomSplit(t)
			return
		}
		v.daytime(hour, t)
	default:
		if stay {
			v.roomSplit(t)
			return
		}
		v.fallback(t)
	}
}

// daytime is the split for visitors without a room.
func (v *Visitor) daytime(hour int, t tick) {
	tu := v.env.Tuning
	r := v.env.Rand.Float64()

	cum := tu.QueueChance
	if r < cum {
		v.checkIn(t)
		return
	}
	cum += tu.SunbedChance
	if r < cum {
		if hour >= tu.SunbedFirstHour && hour <= tu.SunbedLastHour {
			v.trySunbed(t)
			return
		}
		v.tryDining(t)
		return
	}
	cum += tu.DiningChance
	if r < cum {
		v.tryDining(t)
		return
	}
	cum += tu.WanderChance
	if r < cum {
		v.wander(StateWandering, t)
		return
	}
	v.returnToSpawn("left", t)
}

// fallback is used when no daytime rule applies.
func (v *Visitor) fallback(t tick) {
	if !v.env.receptionStaffed() {
		v.roamOrLeave(t)
		return
	}
	if v.env.Rand.Float64() < v.env.Tuning.StaffedWanderChance {
		v.wander(StateWandering, t)
		return
	}
	v.checkIn(t)
}

func (v *Visitor) roamOrLeave(t tick) {
	if v.env.Rand.Float64() < v.env.Tuning.FallbackWanderChance {
		v.wander(StateWandering, t)
		return
	}
	v.returnToSpawn("left", t)
}

func (v *Visitor) roomSplit(t tick) {
	if v.env.Rand.Float64() < v.env.Tuning.UseWanderChance {
		v.wander(StateUseWandering, t)
		return
	}
	v.wander(StateRoomWandering, t)
}

// reevaluate is the hourly signal.
func (v *Visitor) reevaluate(hour int, t tick) {
	tu := v.env.Tuning
	switch {
	case v.pooled || v.state == StateReturningToSpawn:
		return
	case v.leaveAfter >= 0:
		// Checked out in the morning: the wander legs end the visit.
		return
	case !v.state.critical():
		v.selectBehavior(hour, t)
	case v.state == StateSleeping:
		if hour >= tu.WakeHour && hour < tu.CheckoutEndHour {
			v.wake(t)
		}
	case v.state == StateUsingRoom && hour == tu.BedtimeHour:
		v.wander(StateRoomWandering, t)
	}
}

func (v *Visitor) checkIn(t tick) {
	if v.env.Reception == nil {
		v.logger.Debug("no reception, wandering instead")
		v.wander(StateWandering, t)
		return
	}
	v.queue = v.env.Reception
	v.travel(StateMovingToQueue, v.env.Reception.ServicePoint(), t)
}

// reportRoom heads for the checkout desk. From here on the room price is
// owed.
func (v *Visitor) reportRoom(t tick) {
	room, ok := v.env.Registry.Room(v.room)
	if !ok {
		v.invariant("held room missing from catalog", t)
		return
	}
	v.owe(charge{amount: room.Price, itemID: roomItem(v.room), reputation: v.env.Tuning.CheckoutReputation})
	if v.env.Reception == nil {
		v.logger.Debug("no reception, checking out unattended")
		v.completeCheckout(t)
		return
	}
	v.queue = v.env.Reception
	v.travel(StateReportingRoomQueue, v.env.Reception.ServicePoint(), t)
}

func (v *Visitor) goToBed(t tick) bool {
	bed, ok := v.env.Registry.ClaimFixture(v.room, registry.FixtureBed)
	if !ok {
		return false
	}
	v.fixture, v.fixturePose = registry.FixtureBed, bed.Pose
	v.travel(StateMovingToBed, bed.Pose.Position, t)
	return true
}

func (v *Visitor) wake(t tick) {
	v.getUp()
	if v.fixture != "" {
		v.env.Registry.ReleaseFixture(v.room, v.fixture)
		v.fixture = ""
	}
	v.logger.Debug("woke up", zap.Stringer("at", t.sim))
	if v.holdsStay() {
		v.reportRoom(t)
		return
	}
	v.selectBehavior(t.hour(), t)
}

func (v *Visitor) trySunbed(t tick) {
	id, ok := v.env.Registry.TryReserveSunbedRoom()
	if !ok {
		v.logger.Debug("no sunbed room free")
		v.wander(StateWandering, t)
		return
	}
	bed, ok := v.env.Registry.ClaimFixture(id, registry.FixtureSunbed)
	if !ok {
		v.env.Registry.Release(id)
		v.logger.Error("sunbed room without a free sunbed", zap.String("room", string(id)))
		v.wander(StateWandering, t)
		return
	}
	v.room, v.purpose = id, PurposeSunbed
	v.fixture, v.fixturePose = registry.FixtureSunbed, bed.Pose
	v.travel(StateMovingToSunbed, bed.Pose.Position, t)
}

// tryDining claims a seat before walking anywhere so no two visitors target
// the same chair.
func (v *Visitor) tryDining(t tick) {
	if v.env.Kitchen == nil {
		v.logger.Debug("no kitchen, wandering instead")
		v.wander(StateWandering, t)
		return
	}
	seat, ok := v.env.Registry.TryReserveSeat()
	if !ok {
		v.logger.Debug("no seat free")
		v.wander(StateWandering, t)
		return
	}
	v.seat, v.seatPose = seat.ID, seat.Pose
	v.queue = v.env.Kitchen
	v.travel(StateMovingToKitchenCounter, v.env.Kitchen.ServicePoint(), t)
}

// wander starts a leg in one of the wandering states.
func (v *Visitor) wander(s State, t tick) {
	area := v.env.WanderArea
	if s == StateRoomWandering {
		room, ok := v.env.Registry.Room(v.room)
		if !ok {
			v.invariant("held room missing from catalog", t)
			return
		}
		area = room.Bounds
	}
	v.travel(s, v.randomPoint(area), t)
}

func (v *Visitor) returnToSpawn(reason string, t tick) {
	v.cleanup()
	v.exitReason = reason
	v.leaveAfter = -1
	v.useUntil = 0
	v.travel(StateReturningToSpawn, v.env.Spawn, t)
}

// invariant unwinds the current activity after a catalog inconsistency and
// picks again.
func (v *Visitor) invariant(msg string, t tick) {
	v.logger.Error(msg,
		zap.String("state", string(v.state)),
		zap.String("room", string(v.room)),
		zap.String("seat", string(v.seat)))
	v.cleanup()
	v.selectBehavior(t.hour(), t)
}
