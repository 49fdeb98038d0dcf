package movement

import (
	"testing"

	"github.com/nidhogg/nuka-resort/internal/geom"
	"go.uber.org/zap"
)

func floor() []geom.Bounds {
	return []geom.Bounds{{Max: geom.Point{X: 10, Z: 10}}}
}

func TestWalkerReachesDestination(t *testing.T) {
	nav := NewNavigator(floor(), 2, zap.NewNop())
	w := nav.Spawn("v1", geom.Pose{})

	w.SetDestination(geom.Point{X: 6})
	if !w.Pending() || w.Arrived() {
		t.Fatal("new destination should be pending")
	}
	nav.Step()
	if w.Pending() {
		t.Error("destination not picked up")
	}
	if got := w.Pose().Position.X; got != 2 {
		t.Errorf("got x=%v, want 2", got)
	}
	nav.Step()
	nav.Step()
	if !w.Arrived() || w.Pose().Position != (geom.Point{X: 6}) {
		t.Fatalf("got %+v arrived=%v", w.Pose().Position, w.Arrived())
	}
}

func TestSuspendedWalkerStays(t *testing.T) {
	nav := NewNavigator(floor(), 1, zap.NewNop())
	w := nav.Spawn("v1", geom.Pose{})
	w.SetDestination(geom.Point{X: 5})
	w.Suspend()
	nav.Step()
	if w.Pose().Position != (geom.Point{}) {
		t.Fatalf("suspended walker moved to %+v", w.Pose().Position)
	}
	w.Resume()
	nav.Step()
	if w.Pose().Position.X != 1 {
		t.Errorf("got x=%v after resume, want 1", w.Pose().Position.X)
	}
}

func TestNavigableSurface(t *testing.T) {
	nav := NewNavigator(floor(), 1, zap.NewNop())
	w := nav.Spawn("v1", geom.Pose{Position: geom.Point{X: 5, Z: 5}})
	if !w.OnNavigableSurface() {
		t.Fatal("walker inside the floor reported off surface")
	}
	w.Warp(geom.Pose{Position: geom.Point{X: 50, Z: 5}})
	if w.OnNavigableSurface() {
		t.Error("walker outside the floor reported on surface")
	}
	nav.SetAreas(append(floor(), geom.Bounds{Min: geom.Point{X: 40}, Max: geom.Point{X: 60, Z: 10}}))
	if !w.OnNavigableSurface() {
		t.Error("new area not picked up")
	}
	nav.Remove("v1")
	if nav.Count() != 0 {
		t.Errorf("got %d walkers, want 0", nav.Count())
	}
}
