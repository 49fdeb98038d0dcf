package visitor

import (
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
)

func TestDaytimeSplit(t *testing.T) {
	cases := []struct {
		name string
		hour int
		draw float64
		want State
	}{
		{"queue", 12, 0.05, StateMovingToQueue},
		{"sunbed", 12, 0.20, StateMovingToSunbed},
		{"sunbed outside hours falls through to dining", 10, 0.20, StateMovingToKitchenCounter},
		{"dining", 12, 0.50, StateMovingToKitchenCounter},
		{"wander", 12, 0.90, StateWandering},
		{"despawn", 12, 0.97, StateReturningToSpawn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, chance.NewScript(tc.draw), tc.hour)
			v := h.spawn(t)
			if v.State() != tc.want {
				t.Errorf("got %s, want %s", v.State(), tc.want)
			}
		})
	}
}

func TestFallbackPolicy(t *testing.T) {
	cases := []struct {
		name    string
		staffed bool
		draw    float64
		want    State
	}{
		{"unstaffed wander", false, 0.3, StateWandering},
		{"unstaffed despawn", false, 0.7, StateReturningToSpawn},
		{"staffed wander", true, 0.3, StateWandering},
		{"staffed queue", true, 0.5, StateMovingToQueue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, chance.NewScript(tc.draw), 20)
			h.reception.staffed = tc.staffed
			v := h.spawn(t)
			if v.State() != tc.want {
				t.Errorf("got %s, want %s", v.State(), tc.want)
			}
		})
	}
}

func TestMissingKitchenFallsBackToWandering(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.5), 12)
	h.env.Kitchen = nil
	v := h.spawn(t)
	if v.State() != StateWandering {
		t.Fatalf("got %s, want %s", v.State(), StateWandering)
	}
	if h.reg.Stats().OccupiedSeats != 0 {
		t.Error("seat claimed without a kitchen")
	}
}

func TestStayLifecycle(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.5), 23)
	v := h.spawn(t)
	h.checkIn(t, v)
	room := v.room

	h.clock.set(2, 0, 0)
	h.reevaluate(t, v, 0)
	if v.State() != StateMovingToBed {
		t.Fatalf("got %s at midnight, want %s", v.State(), StateMovingToBed)
	}
	h.step(1)
	mover := h.movers.movers[v.ID]
	if v.State() != StateSleeping || v.activity != ActivitySleeping || !mover.suspended {
		t.Fatalf("got %s/%q suspended=%v, want asleep", v.State(), v.activity, mover.suspended)
	}
	if got := h.reg.Stats().OccupiedFixtures; got != 1 {
		t.Errorf("got %d fixtures held, want the bed", got)
	}

	h.clock.set(2, 9, 0)
	h.reevaluate(t, v, 9)
	if v.State() != StateReportingRoomQueue {
		t.Fatalf("got %s after 9 AM, want %s", v.State(), StateReportingRoomQueue)
	}
	if mover.suspended || v.activity != ActivityNone {
		t.Error("wake should lift the suspension")
	}
	if got := h.reg.Stats().OccupiedFixtures; got != 0 {
		t.Errorf("bed still held after waking: %d", got)
	}

	h.step(2) // join, start service
	if v.State() != StateReportingRoom {
		t.Fatalf("got %s, want %s", v.State(), StateReportingRoom)
	}
	h.clock.advance(h.env.Tuning.ServiceMinutes)
	h.step(1)

	pays := h.pay.all()
	if len(pays) != 1 || pays[0].amount != 100 || pays[0].item != roomItem(room) || pays[0].reputation != 2 {
		t.Fatalf("got payments %+v, want one room charge of 100", pays)
	}
	if len(h.clean.rooms) != 1 || h.clean.rooms[0] != room {
		t.Errorf("got cleaning requests %v, want %s", h.clean.rooms, room)
	}
	if v.State() != StateWandering || v.room != "" {
		t.Fatalf("got %s holding %q after checkout", v.State(), v.room)
	}

	h.clock.set(2, 11, 0)
	h.step(1) // pause after the leg
	h.clock.advance(20)
	h.step(1)
	if v.State() != StateReturningToSpawn {
		t.Fatalf("got %s after 11 AM, want %s", v.State(), StateReturningToSpawn)
	}
	h.step(1)

	if h.pop.Count() != 0 {
		t.Fatalf("got %d live visitors, want 0", h.pop.Count())
	}
	if held := h.reg.Stats().Held(); held != 0 {
		t.Errorf("got %d held resources after despawn, want 0", held)
	}
	if len(h.journal.visits) != 1 || h.journal.visits[0].ExitReason != "checked out" || h.journal.visits[0].Spent != 100 {
		t.Errorf("got visits %+v", h.journal.visits)
	}
	if len(h.pay.all()) != 1 {
		t.Errorf("checkout paid more than once")
	}
}

func TestCheckoutPaysOnceUnderEviction(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.05), 10)
	v := h.spawn(t)
	h.checkIn(t, v)

	h.reevaluate(t, v, 10)
	if v.State() != StateReportingRoomQueue {
		t.Fatalf("got %s, want %s", v.State(), StateReportingRoomQueue)
	}
	h.reception.notReady = true
	h.step(1)
	if h.reception.waiting() != 1 {
		t.Fatalf("got %d in line, want 1", h.reception.waiting())
	}

	if err := h.pop.Evict(v.ID, "test"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if err := h.pop.Evict(v.ID, "test"); err != nil {
		t.Fatalf("second evict: %v", err)
	}
	v.cleanup()
	if err := h.pop.Remove(v.ID, "gone"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	pays := h.pay.all()
	if len(pays) != 1 || pays[0].amount != 100 {
		t.Fatalf("got payments %+v, want exactly one room charge", pays)
	}
	if h.reception.waiting() != 0 {
		t.Errorf("queue membership leaked")
	}
	if held := h.reg.Stats().Held(); held != 0 {
		t.Errorf("got %d held resources, want 0", held)
	}
	if h.pop.Stats().Evicted != 1 {
		t.Errorf("got %d evictions, want 1", h.pop.Stats().Evicted)
	}
}

func TestSunbedTimerBound(t *testing.T) {
	cases := []struct {
		name    string
		hour    int
		minute  int
		advance int
		real    time.Duration
	}{
		{"fifty minutes", 12, 0, 50, 0},
		{"cutoff hour", 15, 30, 30, 0},
		{"real-time ceiling", 12, 0, 0, 121 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, chance.NewScript(0.2), tc.hour)
			h.clock.set(1, tc.hour, tc.minute)
			v := h.spawn(t)
			if v.State() != StateMovingToSunbed {
				t.Fatalf("got %s, want %s", v.State(), StateMovingToSunbed)
			}
			h.step(1)
			if v.State() != StateUsingSunbed || !h.movers.movers[v.ID].suspended {
				t.Fatalf("got %s, want %s", v.State(), StateUsingSunbed)
			}

			if tc.advance > 0 {
				h.clock.advance(tc.advance - 1)
				h.step(1)
				if v.State() != StateUsingSunbed {
					t.Fatalf("session ended a minute early")
				}
				h.clock.advance(1)
			}
			h.real = h.real.Add(tc.real)
			h.step(1)

			if v.State() != StateWandering {
				t.Fatalf("got %s, want %s", v.State(), StateWandering)
			}
			pays := h.pay.all()
			if len(pays) != 1 || pays[0].amount != 15 || pays[0].item != sunbedItem(h.reg.Snapshot().Rooms[0].ID) {
				t.Errorf("got payments %+v, want one sunbed charge", pays)
			}
			if held := h.reg.Stats().Held(); held != 0 {
				t.Errorf("got %d held resources, want 0", held)
			}
			if h.movers.movers[v.ID].suspended {
				t.Error("mover still suspended")
			}
		})
	}
}

func TestSunbedTravelTimeoutReleasesRoom(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.2, 0.9), 12)
	h.movers.stuck = true
	v := h.spawn(t)
	if v.State() != StateMovingToSunbed {
		t.Fatalf("got %s, want %s", v.State(), StateMovingToSunbed)
	}
	if held := h.reg.Stats().Held(); held != 2 {
		t.Fatalf("got %d held, want room and sunbed", held)
	}

	h.step(1)
	if v.State() != StateMovingToSunbed {
		t.Fatalf("gave up before the timeout: %s", v.State())
	}
	h.real = h.real.Add(h.env.Tuning.TravelTimeout() + time.Second)
	h.step(1)

	if v.State() != StateWandering || v.room != "" {
		t.Fatalf("got %s holding %q, want non-room fallback", v.State(), v.room)
	}
	if held := h.reg.Stats().Held(); held != 0 {
		t.Errorf("got %d held after timeout, want 0", held)
	}
	if len(h.pay.all()) != 0 {
		t.Error("timed-out trip should not be charged")
	}
}

func TestDiningFlow(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.5), 12)
	v := h.spawn(t)
	if v.State() != StateMovingToKitchenCounter || v.seat == "" {
		t.Fatalf("got %s with seat %q", v.State(), v.seat)
	}
	h.step(1)
	if v.State() != StateWaitingAtKitchenCounter || v.activity != ActivityWaiting {
		t.Fatalf("got %s/%q", v.State(), v.activity)
	}
	h.step(1)
	h.clock.advance(h.env.Tuning.ServiceMinutes)
	h.step(1)
	if v.State() != StateMovingToChair {
		t.Fatalf("got %s, want %s", v.State(), StateMovingToChair)
	}
	h.step(1)
	mover := h.movers.movers[v.ID]
	if v.State() != StateEating || mover.pose != testSeat().Pose || !mover.suspended {
		t.Fatalf("got %s at %+v", v.State(), mover.pose)
	}
	h.clock.advance(h.env.Tuning.EatingMinutes)
	h.step(1)

	if v.State() != StateWandering {
		t.Fatalf("got %s, want %s", v.State(), StateWandering)
	}
	if h.reg.Stats().OccupiedSeats != 0 {
		t.Error("seat not released after eating")
	}
	pays := h.pay.all()
	if len(pays) != 1 || pays[0].item != "order:kitchen" || pays[0].amount != 12 || pays[0].reputation != 1 {
		t.Errorf("got payments %+v", pays)
	}
	if h.kitchen.served != 1 || h.kitchen.waiting() != 0 {
		t.Errorf("got served=%d waiting=%d", h.kitchen.served, h.kitchen.waiting())
	}
}

func TestHourlySignalLeavesCriticalStatesAlone(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.5), 12)
	h.kitchen.notReady = true
	v := h.spawn(t)
	h.step(1)
	if v.State() != StateWaitingAtKitchenCounter {
		t.Fatalf("got %s", v.State())
	}
	h.reevaluate(t, v, 13)
	if v.State() != StateWaitingAtKitchenCounter || v.seat == "" {
		t.Errorf("hourly signal abandoned a committed seat: %s", v.State())
	}
}

func TestKitchenQueueTimeoutReleasesSeat(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.5, 0.9), 12)
	h.kitchen.notReady = true
	v := h.spawn(t)
	h.step(1)
	h.real = h.real.Add(h.env.Tuning.QueueTimeout())
	h.step(1)
	if v.seat != "" || h.reg.Stats().OccupiedSeats != 0 {
		t.Fatal("seat kept after queue timeout")
	}
	if h.kitchen.waiting() != 0 {
		t.Error("still in the kitchen line")
	}
	if v.State() != StateWandering {
		t.Errorf("got %s, want %s", v.State(), StateWandering)
	}
}

func TestCheckoutRetriesWhenDeskRefuses(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.05), 10)
	v := h.spawn(t)
	h.checkIn(t, v)
	h.reevaluate(t, v, 10)

	h.reception.refuse = true
	h.step(1)
	if v.phase != phaseRetry || !v.holdsStay() {
		t.Fatalf("got phase %d holding %q, want a retry", v.phase, v.room)
	}
	h.reception.refuse = false
	h.real = h.real.Add(time.Duration(h.env.Tuning.QueueRetry.Max) * time.Second)
	h.step(1)
	if !v.inQueue {
		t.Fatal("retry did not join the line")
	}
}

func TestCheckoutWithoutReceptionStillPays(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.05), 10)
	v := h.spawn(t)
	h.checkIn(t, v)
	h.env.Reception = nil

	h.reevaluate(t, v, 10)
	if v.room != "" {
		t.Fatal("room kept")
	}
	if pays := h.pay.all(); len(pays) != 1 || pays[0].amount != 100 {
		t.Errorf("got payments %+v", pays)
	}
}

func TestMorningCheckoutLoopSurvivesHourSignal(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.05), 10)
	v := h.spawn(t)
	h.checkIn(t, v)

	h.clock.set(2, 9, 0)
	h.reevaluate(t, v, 9)
	if v.State() != StateReportingRoomQueue {
		t.Fatalf("got %s at 9 AM, want %s", v.State(), StateReportingRoomQueue)
	}
	h.step(2) // join, start service
	h.clock.advance(h.env.Tuning.ServiceMinutes)
	h.step(1)
	if v.State() != StateWandering || v.room != "" || v.leaveAfter != h.env.Tuning.CheckoutEndHour {
		t.Fatalf("got %s holding %q leaveAfter=%d after checkout", v.State(), v.room, v.leaveAfter)
	}

	// The daytime split would send a 0.05 draw back to reception.
	h.clock.set(2, 10, 0)
	h.reevaluate(t, v, 10)
	if v.State() != StateWandering {
		t.Fatalf("hour signal pulled the checked-out visitor into %s", v.State())
	}
	if h.reception.waiting() != 0 || h.reg.Stats().OccupiedRooms != 0 {
		t.Fatal("checked-out visitor started a new stay")
	}

	h.clock.set(2, 11, 0)
	h.reevaluate(t, v, 11)
	h.step(1) // pause after the leg
	h.clock.advance(20)
	h.step(1)
	if v.State() != StateReturningToSpawn {
		t.Fatalf("got %s after 11 AM, want %s", v.State(), StateReturningToSpawn)
	}
	if pays := h.pay.all(); len(pays) != 1 || pays[0].item != roomItem(h.reg.Snapshot().Rooms[0].ID) {
		t.Errorf("got payments %+v, want the one stay", pays)
	}
}

func TestClocklessStayHoldsOneRoom(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.9), 12)
	second := testRoom()
	second.Name = "102"
	second.Bounds = geom.Bounds{Min: geom.Point{X: 10, Z: 40}, Max: geom.Point{X: 16, Y: 3, Z: 46}}
	second.Entrance = geom.Point{X: 13, Z: 40}
	second.Bed, second.Sunbed = nil, nil
	h.reg.Rebuild([]registry.Room{testRoom(), second}, []registry.Seat{testSeat()})
	h.env.Clock = nil

	v := h.spawn(t)
	if v.State() != StateMovingToQueue {
		t.Fatalf("got %s, want %s from the staffed fallback", v.State(), StateMovingToQueue)
	}
	for i := 0; i < 60; i++ {
		h.real = h.real.Add(10 * time.Minute)
		h.step(1)
		rooms := h.reg.Stats().OccupiedRooms
		if rooms > 1 {
			t.Fatalf("step %d: %d rooms occupied by one visitor in %s", i, rooms, v.State())
		}
		if v.room == "" && rooms != 0 {
			t.Fatalf("step %d: room occupied with no holder, visitor in %s", i, v.State())
		}
	}

	stays := 0
	for _, p := range h.pay.all() {
		if strings.HasPrefix(p.item, "room:") {
			stays++
		}
	}
	if stays == 0 {
		t.Fatal("no stay was checked out without a clock")
	}
	if err := h.pop.Remove(v.ID, "test"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if held := h.reg.Stats().Held(); held != 0 {
		t.Errorf("got %d held resources after despawn, want 0", held)
	}
}

func TestCheckInRefusedWhileHoldingARoom(t *testing.T) {
	h := newHarness(t, chance.NewScript(0.05), 12)
	v := h.spawn(t)
	h.checkIn(t, v)
	room := v.room

	// Force a second trip to the desk.
	h.pop.mu.Lock()
	v.checkIn(h.pop.tickLocked())
	h.pop.mu.Unlock()
	h.step(2)
	h.clock.advance(h.env.Tuning.ServiceMinutes)
	h.step(1)

	if v.room != room {
		t.Fatalf("got room %q, want %q kept", v.room, room)
	}
	if got := h.reg.Stats().OccupiedRooms; got != 1 {
		t.Errorf("got %d rooms occupied, want 1", got)
	}
	if !v.State().wandering() {
		t.Errorf("got %s, want a room wander state", v.State())
	}
}
