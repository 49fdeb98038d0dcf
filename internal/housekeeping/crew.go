package housekeeping

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// CleaningRequest is the typed event raised when a room is vacated.
type CleaningRequest struct {
	ID          string              `json:"id"`
	RoomID      registry.ResourceID `json:"room_id"`
	RequestedAt time.Time           `json:"requested_at"`
}

// Publisher forwards cleaning requests to other processes.
type Publisher interface {
	Publish(ctx context.Context, req CleaningRequest) error
}

// Clock tells the crew the simulated time.
type Clock interface {
	Now() world.SimTime
}

// Job is a room currently being cleaned.
type Job struct {
	Request CleaningRequest `json:"request"`
	Started world.SimTime   `json:"started"`
	DoneAt  world.SimTime   `json:"done_at"`
}

// Crew is the local cleaning responder. A request marks the room as being
// cleaned right away; the flag is cleared once the configured sim minutes
// have passed.
type Crew struct {
	reg     *registry.Registry
	clock   Clock
	minutes int
	jobs    map[registry.ResourceID]*Job
	done    int
	pub     Publisher
	timeout time.Duration
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewCrew creates a crew that cleans a room in the given sim minutes.
func NewCrew(reg *registry.Registry, clock Clock, minutes int, logger *zap.Logger) *Crew {
	return &Crew{
		reg:     reg,
		clock:   clock,
		minutes: minutes,
		jobs:    make(map[registry.ResourceID]*Job),
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// SetPublisher makes the crew forward every request.
func (c *Crew) SetPublisher(p Publisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pub = p
}

// RequestCleaning implements the cleaning collaborator. It never blocks on
// the publisher.
func (c *Crew) RequestCleaning(roomID registry.ResourceID) {
	req := CleaningRequest{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		RequestedAt: time.Now(),
	}
	now := c.clock.Now()

	c.mu.Lock()
	if _, busy := c.jobs[roomID]; busy {
		c.mu.Unlock()
		c.logger.Debug("room already being cleaned", zap.String("room", string(roomID)))
		return
	}
	if err := c.reg.SetBeingCleaned(roomID, true); err != nil {
		c.mu.Unlock()
		c.logger.Warn("cleaning request for unknown room", zap.String("room", string(roomID)), zap.Error(err))
		return
	}
	c.jobs[roomID] = &Job{Request: req, Started: now, DoneAt: now.AddMinutes(c.minutes)}
	pub := c.pub
	c.mu.Unlock()

	c.logger.Info("cleaning started", zap.String("room", string(roomID)), zap.String("request", req.ID))
	if pub != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
			if err := pub.Publish(ctx, req); err != nil {
				c.logger.Warn("publish cleaning request", zap.String("room", string(roomID)), zap.Error(err))
			}
		}()
	}
}

// OnTick finishes every job that is due.
func (c *Crew) OnTick(now world.SimTime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, job := range c.jobs {
		if now.TotalMinutes() < job.DoneAt.TotalMinutes() {
			continue
		}
		if err := c.reg.SetBeingCleaned(id, false); err != nil {
			c.logger.Debug("cleaned room no longer exists", zap.String("room", string(id)))
		}
		delete(c.jobs, id)
		c.done++
		c.logger.Info("cleaning finished", zap.String("room", string(id)))
	}
}

// Jobs lists the rooms being cleaned.
func (c *Crew) Jobs() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request.RoomID < out[j].Request.RoomID })
	return out
}

// Completed returns the number of finished jobs.
func (c *Crew) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
