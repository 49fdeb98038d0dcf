// Package chance provides the random source shared by the registry and the
// visitors. math/rand/v2 generators are not safe for concurrent use, so the
// source serializes access behind a mutex.
package chance

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the random interface the simulation consumes.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). n must be positive.
	IntN(n int) int
}

// Locked is a mutex-guarded PCG generator.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New seeds a generator. A zero seed derives one from the wall clock.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// Between returns a uniform integer in [min, max].
func Between(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.IntN(max-min+1)
}

// Script replays fixed values; tests use it to force a branch. Once the
// script runs out it keeps returning the last value.
type Script struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

// NewScript builds a scripted source.
func NewScript(values ...float64) *Script {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Script{values: values}
}

func (s *Script) next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return v
}

func (s *Script) Float64() float64 { return s.next() }

func (s *Script) IntN(n int) int {
	i := int(s.next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
