// Package facility loads the physical layout of the resort: rooms with their
// beds and sunbeds, dining seats, service counters, the spawn point and the
// areas visitors can walk and wander in.
package facility

import (
	"fmt"
	"os"

	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"gopkg.in/yaml.v3"
)

// Layout is the on-disk description of the facility.
type Layout struct {
	Spawn      geom.Point    `yaml:"spawn" json:"spawn"`
	WanderArea geom.Bounds   `yaml:"wander_area" json:"wander_area"`
	Walkable   []geom.Bounds `yaml:"walkable" json:"walkable"`
	Counters   []Counter     `yaml:"counters" json:"counters"`
	Rooms      []Room        `yaml:"rooms" json:"rooms"`
	Seats      []Seat        `yaml:"seats" json:"seats"`
}

// Counter is a staffed service point.
type Counter struct {
	Name     string     `yaml:"name" json:"name"`
	Role     string     `yaml:"role" json:"role"` // reception | kitchen
	Position geom.Point `yaml:"position" json:"position"`
	Clerks   int        `yaml:"clerks" json:"clerks"`
	Capacity int        `yaml:"capacity" json:"capacity"`
	Staffed  *bool      `yaml:"staffed" json:"staffed"`
}

// IsStaffed defaults to true when the flag is absent.
func (c Counter) IsStaffed() bool { return c.Staffed == nil || *c.Staffed }

const (
	RoleReception = "reception"
	RoleKitchen   = "kitchen"
)

// Room describes one room.
type Room struct {
	Name     string      `yaml:"name" json:"name"`
	Bounds   geom.Bounds `yaml:"bounds" json:"bounds"`
	Entrance geom.Point  `yaml:"entrance" json:"entrance"`
	Price    int         `yaml:"price" json:"price"`
	Bed      *geom.Pose  `yaml:"bed" json:"bed,omitempty"`
	Sunbed   *geom.Pose  `yaml:"sunbed" json:"sunbed,omitempty"`
}

// Seat describes one dining chair.
type Seat struct {
	Name string    `yaml:"name" json:"name"`
	Pose geom.Pose `yaml:"pose" json:"pose"`
}

// Load reads a layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes a YAML (or JSON) layout and validates it.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks bounds and counter roles.
func (l *Layout) Validate() error {
	if !l.WanderArea.Valid() {
		return fmt.Errorf("wander_area: inverted bounds")
	}
	for i, w := range l.Walkable {
		if !w.Valid() {
			return fmt.Errorf("walkable[%d]: inverted bounds", i)
		}
	}
	for i, r := range l.Rooms {
		if !r.Bounds.Valid() {
			return fmt.Errorf("room %d (%s): inverted bounds", i, r.Name)
		}
		if r.Price < 0 {
			return fmt.Errorf("room %d (%s): negative price", i, r.Name)
		}
	}
	seen := make(map[string]bool)
	for _, c := range l.Counters {
		if c.Role != RoleReception && c.Role != RoleKitchen {
			return fmt.Errorf("counter %s: unknown role %q", c.Name, c.Role)
		}
		if seen[c.Role] {
			return fmt.Errorf("counter %s: second %s counter", c.Name, c.Role)
		}
		seen[c.Role] = true
	}
	return nil
}

// Counter returns the counter with the given role.
func (l *Layout) Counter(role string) (Counter, bool) {
	for _, c := range l.Counters {
		if c.Role == role {
			return c, true
		}
	}
	return Counter{}, false
}

// RegistryRooms converts the rooms into registry records.
func (l *Layout) RegistryRooms() []registry.Room {
	out := make([]registry.Room, 0, len(l.Rooms))
	for _, r := range l.Rooms {
		room := registry.Room{
			ID:       registry.RoomID(r.Bounds),
			Name:     r.Name,
			Bounds:   r.Bounds,
			Entrance: r.Entrance,
			Price:    r.Price,
		}
		if room.Entrance == (geom.Point{}) {
			room.Entrance = r.Bounds.Center()
		}
		if r.Bed != nil {
			room.Bed = &registry.Fixture{Kind: registry.FixtureBed, Pose: *r.Bed}
		}
		if r.Sunbed != nil {
			room.Sunbed = &registry.Fixture{Kind: registry.FixtureSunbed, Pose: *r.Sunbed}
		}
		out = append(out, room)
	}
	return out
}

// RegistrySeats converts the seats into registry records.
func (l *Layout) RegistrySeats() []registry.Seat {
	out := make([]registry.Seat, 0, len(l.Seats))
	for _, s := range l.Seats {
		out = append(out, registry.Seat{ID: registry.SeatID(s.Pose), Name: s.Name, Pose: s.Pose})
	}
	return out
}

// WalkableAreas returns the navigable areas; an empty list means the wander
// area plus every room.
func (l *Layout) WalkableAreas() []geom.Bounds {
	if len(l.Walkable) > 0 {
		return l.Walkable
	}
	areas := []geom.Bounds{l.WanderArea}
	for _, r := range l.Rooms {
		areas = append(areas, r.Bounds)
	}
	return areas
}
