package movement

import (
	"sync"

	"github.com/nidhogg/nuka-resort/internal/geom"
	"go.uber.org/zap"
)

// Walker moves one visitor in a straight line toward its destination. A new
// destination is picked up on the next Step, so Pending stays true for one
// tick after SetDestination.
type Walker struct {
	id        string
	pose      geom.Pose
	dest      geom.Point
	hasDest   bool
	pending   bool
	arrived   bool
	suspended bool
	nav       *Navigator
	mu        sync.Mutex
}

// SetDestination starts a new trip.
func (w *Walker) SetDestination(p geom.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dest = p
	w.hasDest = true
	w.pending = true
	w.arrived = false
}

// Arrived reports whether the last destination was reached.
func (w *Walker) Arrived() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.arrived
}

// Pending reports whether a destination was set but not yet picked up.
func (w *Walker) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// OnNavigableSurface reports whether the walker stands inside a walkable
// area.
func (w *Walker) OnNavigableSurface() bool {
	w.mu.Lock()
	pos := w.pose.Position
	w.mu.Unlock()
	return w.nav.walkable(pos)
}

// Pose returns the current pose.
func (w *Walker) Pose() geom.Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pose
}

// Warp places the walker without walking.
func (w *Walker) Warp(p geom.Pose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pose = p
}

// Suspend freezes the walker in place.
func (w *Walker) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = true
}

// Resume lets a suspended walker move again.
func (w *Walker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = false
}

func (w *Walker) advance(speed float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.suspended || !w.hasDest || w.arrived {
		return
	}
	w.pending = false
	delta := w.dest.Sub(w.pose.Position)
	dist := delta.Len()
	if dist <= speed {
		w.pose.Position = w.dest
		w.arrived = true
		return
	}
	w.pose.Position = w.pose.Position.Add(delta.Scale(speed / dist))
}

// Navigator owns every walker and the walkable floor they move on.
type Navigator struct {
	areas   []geom.Bounds
	speed   float64
	walkers map[string]*Walker
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewNavigator creates a navigator. speed is in floor units per tick.
func NewNavigator(areas []geom.Bounds, speed float64, logger *zap.Logger) *Navigator {
	if speed <= 0 {
		speed = 1
	}
	return &Navigator{
		areas:   areas,
		speed:   speed,
		walkers: make(map[string]*Walker),
		logger:  logger,
	}
}

// Spawn creates a walker standing at pose.
func (n *Navigator) Spawn(id string, at geom.Pose) *Walker {
	w := &Walker{id: id, pose: at, nav: n}
	n.mu.Lock()
	n.walkers[id] = w
	n.mu.Unlock()
	return w
}

// Remove forgets a walker.
func (n *Navigator) Remove(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.walkers, id)
}

// Get returns a live walker.
func (n *Navigator) Get(id string) (*Walker, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	w, ok := n.walkers[id]
	return w, ok
}

// SetAreas replaces the walkable floor after a layout change.
func (n *Navigator) SetAreas(areas []geom.Bounds) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.areas = areas
	n.logger.Info("walkable areas updated", zap.Int("areas", len(areas)))
}

// Step moves every walker one tick along its line.
func (n *Navigator) Step() {
	n.mu.RLock()
	walkers := make([]*Walker, 0, len(n.walkers))
	for _, w := range n.walkers {
		walkers = append(walkers, w)
	}
	speed := n.speed
	n.mu.RUnlock()

	for _, w := range walkers {
		w.advance(speed)
	}
}

// Count returns the number of live walkers.
func (n *Navigator) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.walkers)
}

func (n *Navigator) walkable(p geom.Point) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, a := range n.areas {
		if a.Contains(p) {
			return true
		}
	}
	return false
}
