// Package registry is the catalog of allocatable facility resources: rooms,
// the bed and sunbed fixtures embedded in them, and dining seats. It is the
// single source of truth for occupancy; every check-and-set happens under one
// mutex so two visitors can never be handed the same resource.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"go.uber.org/zap"
)

// ErrUnknownResource is returned when an id is not in the current catalog.
var ErrUnknownResource = errors.New("unknown resource")

// ResourceID identifies a room or seat. It is derived from the record's
// spatial signature so it survives a Rebuild.
type ResourceID string

// FixtureKind names a sub-resource embedded in a room.
type FixtureKind string

const (
	FixtureBed    FixtureKind = "bed"
	FixtureSunbed FixtureKind = "sunbed"
)

// Fixture is a bed or sunbed inside a room.
type Fixture struct {
	ID       string      `json:"id"`
	Kind     FixtureKind `json:"kind"`
	Pose     geom.Pose   `json:"pose"`
	Occupied bool        `json:"occupied"`
}

// Room is a reservable room. A room holds at most one bed and at most one
// sunbed; a room with a sunbed is sunbed-capable.
type Room struct {
	ID           ResourceID  `json:"id"`
	Name         string      `json:"name"`
	Bounds       geom.Bounds `json:"bounds"`
	Entrance     geom.Point  `json:"entrance"`
	Price        int         `json:"price"`
	Occupied     bool        `json:"occupied"`
	BeingCleaned bool        `json:"being_cleaned"`
	Bed          *Fixture    `json:"bed,omitempty"`
	Sunbed       *Fixture    `json:"sunbed,omitempty"`
}

// Available reports whether the room may be handed out.
func (r *Room) Available() bool { return !r.Occupied && !r.BeingCleaned }

func (r *Room) fixture(kind FixtureKind) *Fixture {
	switch kind {
	case FixtureBed:
		return r.Bed
	case FixtureSunbed:
		return r.Sunbed
	}
	return nil
}

func (r Room) clone() Room {
	if r.Bed != nil {
		b := *r.Bed
		r.Bed = &b
	}
	if r.Sunbed != nil {
		s := *r.Sunbed
		r.Sunbed = &s
	}
	return r
}

// Seat is a dining chair.
type Seat struct {
	ID       ResourceID `json:"id"`
	Name     string     `json:"name"`
	Pose     geom.Pose  `json:"pose"`
	Occupied bool       `json:"occupied"`
}

// RoomID derives the stable id of a room from its bounds.
func RoomID(b geom.Bounds) ResourceID { return ResourceID("room-" + b.Signature()) }

// SeatID derives the stable id of a seat from its position.
func SeatID(p geom.Pose) ResourceID {
	pos := p.Position
	return ResourceID("seat-" + geom.Bounds{Min: pos, Max: pos}.Signature())
}

// Registry guards the catalog. Readers that only need statistics or a UI view
// use Snapshot, which never takes the lock.
type Registry struct {
	mu       sync.Mutex
	rooms    []*Room
	roomIdx  map[ResourceID]int
	seats    []*Seat
	seatIdx  map[ResourceID]int
	src      chance.Source
	snapshot atomic.Pointer[Snapshot]
	logger   *zap.Logger
}

// New creates an empty registry. Ties between eligible resources are broken
// with src.
func New(src chance.Source, logger *zap.Logger) *Registry {
	r := &Registry{
		roomIdx: make(map[ResourceID]int),
		seatIdx: make(map[ResourceID]int),
		src:     src,
		logger:  logger,
	}
	r.publishLocked()
	return r
}

// TryReserveRoom claims a random free, clean room.
func (r *Registry) TryReserveRoom() (ResourceID, bool) {
	return r.reserveRoom(func(*Room) bool { return true })
}

// TryReserveSunbedRoom claims a random free, clean room that has a sunbed.
func (r *Registry) TryReserveSunbedRoom() (ResourceID, bool) {
	return r.reserveRoom(func(room *Room) bool { return room.Sunbed != nil })
}

func (r *Registry) reserveRoom(filter func(*Room) bool) (ResourceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var eligible []*Room
	for _, room := range r.rooms {
		if room.Available() && filter(room) {
			eligible = append(eligible, room)
		}
	}
	if len(eligible) == 0 {
		return "", false
	}
	room := eligible[r.src.IntN(len(eligible))]
	room.Occupied = true
	r.publishLocked()
	r.logger.Debug("room reserved", zap.String("room", string(room.ID)))
	return room.ID, true
}

// Release frees a room and any fixture claimed inside it. Releasing a free or
// unknown room is a logged no-op.
func (r *Registry) Release(id ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.roomLocked(id)
	if room == nil {
		r.logger.Warn("release of unknown room", zap.String("room", string(id)))
		return
	}
	if !room.Occupied {
		r.logger.Debug("release of free room", zap.String("room", string(id)))
		return
	}
	room.Occupied = false
	for _, f := range []*Fixture{room.Bed, room.Sunbed} {
		if f != nil {
			f.Occupied = false
		}
	}
	r.publishLocked()
	r.logger.Debug("room released", zap.String("room", string(id)))
}

// FindEmbeddedBed looks up the bed inside a room.
func (r *Registry) FindEmbeddedBed(roomID ResourceID) (Fixture, bool) {
	return r.findFixture(roomID, FixtureBed)
}

// FindEmbeddedSunbed looks up the sunbed inside a room.
func (r *Registry) FindEmbeddedSunbed(roomID ResourceID) (Fixture, bool) {
	return r.findFixture(roomID, FixtureSunbed)
}

func (r *Registry) findFixture(roomID ResourceID, kind FixtureKind) (Fixture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.roomLocked(roomID)
	if room == nil {
		return Fixture{}, false
	}
	f := room.fixture(kind)
	if f == nil {
		return Fixture{}, false
	}
	return *f, true
}

// ClaimFixture marks the bed or sunbed of an occupied room as in use. It
// fails if the room is not held or the fixture is missing or taken.
func (r *Registry) ClaimFixture(roomID ResourceID, kind FixtureKind) (Fixture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.roomLocked(roomID)
	if room == nil || !room.Occupied {
		return Fixture{}, false
	}
	f := room.fixture(kind)
	if f == nil || f.Occupied {
		return Fixture{}, false
	}
	f.Occupied = true
	r.publishLocked()
	return *f, true
}

// ReleaseFixture frees a claimed bed or sunbed. Unknown or free fixtures are
// ignored.
func (r *Registry) ReleaseFixture(roomID ResourceID, kind FixtureKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.roomLocked(roomID)
	if room == nil {
		r.logger.Debug("fixture release on unknown room",
			zap.String("room", string(roomID)), zap.String("kind", string(kind)))
		return
	}
	if f := room.fixture(kind); f != nil && f.Occupied {
		f.Occupied = false
		r.publishLocked()
	}
}

// TryReserveSeat claims a random free dining seat.
func (r *Registry) TryReserveSeat() (Seat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var free []*Seat
	for _, s := range r.seats {
		if !s.Occupied {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return Seat{}, false
	}
	seat := free[r.src.IntN(len(free))]
	seat.Occupied = true
	r.publishLocked()
	return *seat, true
}

// ReleaseSeat frees a dining seat. Unknown or free seats are ignored.
func (r *Registry) ReleaseSeat(id ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.seatIdx[id]
	if !ok {
		r.logger.Warn("release of unknown seat", zap.String("seat", string(id)))
		return
	}
	if r.seats[i].Occupied {
		r.seats[i].Occupied = false
		r.publishLocked()
	}
}

// SetBeingCleaned toggles the cleaning flag of a room. A room under cleaning
// is not handed out.
func (r *Registry) SetBeingCleaned(id ResourceID, cleaning bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.roomLocked(id)
	if room == nil {
		return ErrUnknownResource
	}
	room.BeingCleaned = cleaning
	r.publishLocked()
	return nil
}

// Room returns a copy of a room record.
func (r *Registry) Room(id ResourceID) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.roomLocked(id)
	if room == nil {
		return Room{}, false
	}
	return room.clone(), true
}

// Seat returns a copy of a seat record.
func (r *Registry) Seat(id ResourceID) (Seat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.seatIdx[id]
	if !ok {
		return Seat{}, false
	}
	return *r.seats[i], true
}

func (r *Registry) roomLocked(id ResourceID) *Room {
	i, ok := r.roomIdx[id]
	if !ok {
		return nil
	}
	return r.rooms[i]
}
