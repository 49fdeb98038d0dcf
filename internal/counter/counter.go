package counter

import (
	"slices"
	"sync"

	"github.com/nidhogg/nuka-resort/internal/geom"
	"go.uber.org/zap"
)

// Status is a snapshot of one counter for the API and reports.
type Status struct {
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	Position geom.Point `json:"position"`
	Staffed  bool       `json:"staffed"`
	Clerks   int        `json:"clerks"`
	Capacity int        `json:"capacity"`
	Waiting  int        `json:"waiting"`
	Serving  int        `json:"serving"`
	Served   int        `json:"served"`
}

// Counter is a staffed first-come-first-served line. The first Clerks
// visitors in line can be served at once; an unstaffed counter accepts
// nobody new and serves nobody.
type Counter struct {
	name     string
	role     string
	pos      geom.Point
	clerks   int
	capacity int
	staffed  bool
	line     []string // visitor ids, front first
	serving  map[string]bool
	served   int
	mu       sync.Mutex
	logger   *zap.Logger
}

// New creates a counter. capacity <= 0 means an unbounded line.
func New(name, role string, pos geom.Point, clerks, capacity int, staffed bool, logger *zap.Logger) *Counter {
	if clerks <= 0 {
		clerks = 1
	}
	return &Counter{
		name:     name,
		role:     role,
		pos:      pos,
		clerks:   clerks,
		capacity: capacity,
		staffed:  staffed,
		serving:  make(map[string]bool),
		logger:   logger.With(zap.String("counter", name)),
	}
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Role returns the counter role.
func (c *Counter) Role() string { return c.role }

// ServicePoint is where visitors stand to be served.
func (c *Counter) ServicePoint() geom.Point { return c.pos }

// TryJoinQueue appends a visitor to the line. Joining twice is a no-op that
// succeeds.
func (c *Counter) TryJoinQueue(visitorID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.staffed {
		return false
	}
	if slices.Contains(c.line, visitorID) {
		return true
	}
	if c.capacity > 0 && len(c.line) >= c.capacity {
		c.logger.Debug("line full", zap.String("visitor", visitorID))
		return false
	}
	c.line = append(c.line, visitorID)
	return true
}

// CanReceiveService reports whether a visitor is close enough to the front
// of a staffed line.
func (c *Counter) CanReceiveService(visitorID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.staffed {
		return false
	}
	i := slices.Index(c.line, visitorID)
	return i >= 0 && i < c.clerks
}

// StartService marks a visitor as being served.
func (c *Counter) StartService(visitorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.line, visitorID) {
		c.serving[visitorID] = true
	}
}

// LeaveQueue removes a visitor from the line. Leaving after service counts
// as a completed service.
func (c *Counter) LeaveQueue(visitorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(c.line, visitorID)
	if i < 0 {
		return
	}
	c.line = slices.Delete(c.line, i, i+1)
	if c.serving[visitorID] {
		delete(c.serving, visitorID)
		c.served++
	}
}

// Staffed reports whether anyone works the counter.
func (c *Counter) Staffed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staffed
}

// SetStaffed opens or closes the counter. Visitors already in line stay
// there and time out on their own.
func (c *Counter) SetStaffed(staffed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staffed = staffed
	c.logger.Info("counter staffing changed", zap.Bool("staffed", staffed), zap.Int("waiting", len(c.line)))
}

// Status returns a snapshot.
func (c *Counter) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Name:     c.name,
		Role:     c.role,
		Position: c.pos,
		Staffed:  c.staffed,
		Clerks:   c.clerks,
		Capacity: c.capacity,
		Waiting:  len(c.line) - len(c.serving),
		Serving:  len(c.serving),
		Served:   c.served,
	}
}
