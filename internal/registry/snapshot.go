package registry

// Snapshot is an eventually-consistent copy of the catalog for UI and
// statistics. It is republished after every mutation.
type Snapshot struct {
	Rooms []Room `json:"rooms"`
	Seats []Seat `json:"seats"`
}

// Stats summarizes a snapshot.
type Stats struct {
	Rooms            int `json:"rooms"`
	OccupiedRooms    int `json:"occupied_rooms"`
	CleaningRooms    int `json:"cleaning_rooms"`
	OccupiedFixtures int `json:"occupied_fixtures"`
	Seats            int `json:"seats"`
	OccupiedSeats    int `json:"occupied_seats"`
}

// Held is the total number of claimed records of any kind.
func (s Stats) Held() int { return s.OccupiedRooms + s.OccupiedFixtures + s.OccupiedSeats }

// Snapshot returns a copy of the latest published view without taking the
// lock.
func (r *Registry) Snapshot() *Snapshot {
	pub := r.snapshot.Load()
	snap := &Snapshot{
		Rooms: make([]Room, len(pub.Rooms)),
		Seats: make([]Seat, len(pub.Seats)),
	}
	copy(snap.Seats, pub.Seats)
	for i, room := range pub.Rooms {
		snap.Rooms[i] = room.clone()
	}
	return snap
}

// Stats counts the latest published view.
func (r *Registry) Stats() Stats {
	snap := r.snapshot.Load()
	st := Stats{Rooms: len(snap.Rooms), Seats: len(snap.Seats)}
	for _, room := range snap.Rooms {
		if room.Occupied {
			st.OccupiedRooms++
		}
		if room.BeingCleaned {
			st.CleaningRooms++
		}
		for _, f := range []*Fixture{room.Bed, room.Sunbed} {
			if f != nil && f.Occupied {
				st.OccupiedFixtures++
			}
		}
	}
	for _, seat := range snap.Seats {
		if seat.Occupied {
			st.OccupiedSeats++
		}
	}
	return st
}

// publishLocked copies the catalog into a fresh snapshot. Callers hold r.mu.
func (r *Registry) publishLocked() {
	snap := &Snapshot{
		Rooms: make([]Room, len(r.rooms)),
		Seats: make([]Seat, len(r.seats)),
	}
	for i, room := range r.rooms {
		snap.Rooms[i] = room.clone()
	}
	for i, seat := range r.seats {
		snap.Seats[i] = *seat
	}
	r.snapshot.Store(snap)
}
