package sim

import (
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/movement"
	"github.com/nidhogg/nuka-resort/internal/visitor"
)

// NavigatorMovers hands visitors walkers from a movement.Navigator.
type NavigatorMovers struct {
	nav *movement.Navigator
}

// NewNavigatorMovers wraps nav.
func NewNavigatorMovers(nav *movement.Navigator) *NavigatorMovers {
	return &NavigatorMovers{nav: nav}
}

func (m *NavigatorMovers) NewMover(visitorID string, at geom.Pose) visitor.Mover {
	return m.nav.Spawn(visitorID, at)
}

func (m *NavigatorMovers) ReleaseMover(visitorID string) {
	m.nav.Remove(visitorID)
}
