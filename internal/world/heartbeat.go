package world

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeartbeatFunc re-evaluates one visitor for the given hour.
type HeartbeatFunc func(ctx context.Context, visitorID string, hour int) error

// ListVisitorIDsFunc returns the ids of every live visitor.
type ListVisitorIDsFunc func() []string

// Heartbeat is an HourListener that broadcasts the hourly re-evaluation
// signal to every live visitor.
type Heartbeat struct {
	beatFn   HeartbeatFunc
	listFn   ListVisitorIDsFunc
	timeout  time.Duration
	lastHour int
	beats    int
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewHeartbeat creates a heartbeat listener.
func NewHeartbeat(beatFn HeartbeatFunc, listFn ListVisitorIDsFunc, logger *zap.Logger) *Heartbeat {
	return &Heartbeat{
		beatFn:   beatFn,
		listFn:   listFn,
		timeout:  10 * time.Second,
		lastHour: -1,
		logger:   logger,
	}
}

// OnHourChanged implements HourListener.
func (h *Heartbeat) OnHourChanged(hour, _ int) {
	h.fire(hour, false)
}

// FireNow forces a re-evaluation of every visitor for the given hour,
// bypassing the hour-change trigger. It returns how many visitors were
// re-evaluated.
func (h *Heartbeat) FireNow(hour int) int {
	return h.fire(hour, true)
}

// Stats returns the last broadcast hour and the number of broadcasts.
func (h *Heartbeat) Stats() (lastHour, beats int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastHour, h.beats
}

func (h *Heartbeat) fire(hour int, forced bool) int {
	h.mu.Lock()
	h.lastHour = hour
	h.beats++
	h.mu.Unlock()

	if h.listFn == nil {
		return 0
	}
	ids := h.listFn()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	fired := 0
	for _, id := range ids {
		if err := h.beatFn(ctx, id, hour); err != nil {
			h.logger.Warn("hourly re-evaluation failed",
				zap.String("visitor", id),
				zap.Int("hour", hour),
				zap.Error(err))
			continue
		}
		fired++
	}
	if forced {
		h.logger.Info("forced re-evaluation fired", zap.Int("hour", hour), zap.Int("visitors", fired))
	} else {
		h.logger.Debug("hourly re-evaluation fired", zap.Int("hour", hour), zap.Int("visitors", fired))
	}
	return fired
}
