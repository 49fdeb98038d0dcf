package registry

import (
	"go.uber.org/zap"
)

// RebuildResult lists held resources that disappeared in a Rebuild. Their
// holders must be evicted by the caller.
type RebuildResult struct {
	DroppedRooms    []ResourceID `json:"dropped_rooms,omitempty"`
	DroppedSeats    []ResourceID `json:"dropped_seats,omitempty"`
	DroppedFixtures []ResourceID `json:"dropped_fixtures,omitempty"` // room ids whose claimed fixture vanished
}

// Empty reports whether no holder is affected.
func (res RebuildResult) Empty() bool {
	return len(res.DroppedRooms) == 0 && len(res.DroppedSeats) == 0 && len(res.DroppedFixtures) == 0
}

// Rebuild replaces the catalog. Records whose id matches an existing record
// keep their occupied and cleaning flags, so in-flight reservations survive a
// change of placement elsewhere in the facility. Ids left empty are derived
// from the record's spatial signature.
func (r *Registry) Rebuild(rooms []Room, seats []Seat) RebuildResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res RebuildResult

	newRooms := make([]*Room, 0, len(rooms))
	newRoomIdx := make(map[ResourceID]int, len(rooms))
	for _, in := range rooms {
		room := in.clone()
		if room.ID == "" {
			room.ID = RoomID(room.Bounds)
		}
		if _, dup := newRoomIdx[room.ID]; dup {
			r.logger.Warn("duplicate room in rebuild", zap.String("room", string(room.ID)))
			continue
		}
		room.Occupied, room.BeingCleaned = false, false
		normalizeFixture(room.ID, room.Bed, FixtureBed)
		normalizeFixture(room.ID, room.Sunbed, FixtureSunbed)

		if old := r.roomLocked(room.ID); old != nil {
			room.Occupied = old.Occupied
			room.BeingCleaned = old.BeingCleaned
			for _, kind := range []FixtureKind{FixtureBed, FixtureSunbed} {
				of := old.fixture(kind)
				if of == nil || !of.Occupied {
					continue
				}
				if nf := room.fixture(kind); nf != nil {
					nf.Occupied = true
				} else {
					res.DroppedFixtures = append(res.DroppedFixtures, room.ID)
				}
			}
		}
		newRoomIdx[room.ID] = len(newRooms)
		newRooms = append(newRooms, &room)
	}

	newSeats := make([]*Seat, 0, len(seats))
	newSeatIdx := make(map[ResourceID]int, len(seats))
	for _, in := range seats {
		seat := in
		if seat.ID == "" {
			seat.ID = SeatID(seat.Pose)
		}
		if _, dup := newSeatIdx[seat.ID]; dup {
			r.logger.Warn("duplicate seat in rebuild", zap.String("seat", string(seat.ID)))
			continue
		}
		seat.Occupied = false
		if i, ok := r.seatIdx[seat.ID]; ok {
			seat.Occupied = r.seats[i].Occupied
		}
		newSeatIdx[seat.ID] = len(newSeats)
		newSeats = append(newSeats, &seat)
	}

	for _, old := range r.rooms {
		if _, kept := newRoomIdx[old.ID]; !kept && old.Occupied {
			res.DroppedRooms = append(res.DroppedRooms, old.ID)
		}
	}
	for _, old := range r.seats {
		if _, kept := newSeatIdx[old.ID]; !kept && old.Occupied {
			res.DroppedSeats = append(res.DroppedSeats, old.ID)
		}
	}

	r.rooms, r.roomIdx = newRooms, newRoomIdx
	r.seats, r.seatIdx = newSeats, newSeatIdx
	r.publishLocked()

	r.logger.Info("registry rebuilt",
		zap.Int("rooms", len(newRooms)),
		zap.Int("seats", len(newSeats)),
		zap.Int("dropped_rooms", len(res.DroppedRooms)),
		zap.Int("dropped_seats", len(res.DroppedSeats)))
	return res
}

func normalizeFixture(roomID ResourceID, f *Fixture, kind FixtureKind) {
	if f == nil {
		return
	}
	f.Kind = kind
	f.Occupied = false
	if f.ID == "" {
		f.ID = string(roomID) + "/" + string(kind)
	}
}
