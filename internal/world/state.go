package world

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateEntry is the last reported state of a visitor.
type StateEntry struct {
	VisitorID string    `json:"visitor_id"`
	State     string    `json:"state"`
	Since     SimTime   `json:"since"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateBoard keeps an eventually-consistent view of visitor states for the
// API and daily reports. Visitors write to it on every transition; nothing
// in the behavior rules reads it back.
type StateBoard struct {
	states      map[string]StateEntry // visitorID -> entry
	transitions int
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewStateBoard creates an empty board.
func NewStateBoard(logger *zap.Logger) *StateBoard {
	return &StateBoard{
		states: make(map[string]StateEntry),
		logger: logger,
	}
}

// Record stores a transition.
func (b *StateBoard) Record(visitorID, state string, at SimTime) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.states[visitorID]
	if prev.State == state {
		return
	}
	b.states[visitorID] = StateEntry{
		VisitorID: visitorID,
		State:     state,
		Since:     at,
		UpdatedAt: time.Now(),
	}
	b.transitions++
	b.logger.Debug("visitor state changed",
		zap.String("visitor", visitorID),
		zap.String("from", prev.State),
		zap.String("to", state))
}

// Forget drops a visitor that returned to the pool.
func (b *StateBoard) Forget(visitorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, visitorID)
}

// Get returns the last reported state of a visitor.
func (b *StateBoard) Get(visitorID string) (StateEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.states[visitorID]
	return e, ok
}

// Counts tallies visitors per state.
func (b *StateBoard) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range b.states {
		out[e.State]++
	}
	return out
}

// Transitions returns the number of recorded transitions.
func (b *StateBoard) Transitions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transitions
}
