package visitor

import (
	"sort"

	"go.uber.org/zap"
)

// cleanup releases everything v holds and lifts any pose suspension. Owed
// charges are issued before anything is released. Calling it again is a
// no-op.
func (v *Visitor) cleanup() {
	if len(v.owed) > 0 {
		items := make([]string, 0, len(v.owed))
		for id := range v.owed {
			items = append(items, id)
		}
		sort.Strings(items)
		for _, id := range items {
			v.settle(id)
		}
	}

	v.leaveQueue()
	v.releaseSeat()

	if v.fixture != "" {
		if v.room != "" {
			v.env.Registry.ReleaseFixture(v.room, v.fixture)
		}
		v.fixture = ""
	}
	if v.room != "" {
		if v.roomEntered && v.purpose == PurposeStay && v.env.Cleaning != nil {
			v.env.Cleaning.RequestCleaning(v.room)
		}
		v.env.Registry.Release(v.room)
		v.room, v.purpose, v.roomEntered = "", PurposeNone, false
	}

	if v.mover != nil {
		v.getUp()
	}
	v.phase = phaseNone
	v.useUntil = 0
}

// evict walks v out of the facility.
func (v *Visitor) evict(reason string, t tick) bool {
	if v.pooled || v.state == StateReturningToSpawn {
		return false
	}
	v.logger.Info("evicted", zap.String("reason", reason), zap.String("state", string(v.state)))
	v.returnToSpawn(reason, t)
	return true
}

// despawn cleans v up and marks it for return to the pool. An empty reason
// keeps the one recorded when the visitor started leaving.
func (v *Visitor) despawn(reason string) {
	if v.pooled {
		return
	}
	v.cleanup()
	if reason != "" || v.exitReason == "" {
		v.exitReason = reason
	}
	if v.exitReason == "" {
		v.exitReason = "left"
	}
	v.scheduledForDespawn = false
	v.pooled = true
	v.state = StatePooled
	v.logger.Info("despawned", zap.String("reason", v.exitReason), zap.Int("spent", v.spent))
}
