package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
)

// SimTime is a point on the simulated calendar.
type SimTime struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// TotalMinutes counts minutes since day 0 00:00.
func (t SimTime) TotalMinutes() int {
	return t.Day*MinutesPerDay + t.Hour*MinutesPerHour + t.Minute
}

// AddMinutes returns t shifted by n minutes.
func (t SimTime) AddMinutes(n int) SimTime {
	return FromMinutes(t.TotalMinutes() + n)
}

func (t SimTime) String() string {
	return fmt.Sprintf("day %d %02d:%02d", t.Day, t.Hour, t.Minute)
}

// FromMinutes converts a minute count back into a SimTime.
func FromMinutes(total int) SimTime {
	if total < 0 {
		total = 0
	}
	return SimTime{
		Day:    total / MinutesPerDay,
		Hour:   (total % MinutesPerDay) / MinutesPerHour,
		Minute: total % MinutesPerHour,
	}
}

// ClockListener receives world tick events.
type ClockListener interface {
	OnTick(now SimTime)
}

// HourListener is notified when the simulated hour changes.
type HourListener interface {
	OnHourChanged(hour, minute int)
}

// DayListener is notified when the simulated day changes.
type DayListener interface {
	OnDayChanged(day int)
}

// WorldClock drives the simulation. Every tick advances the calendar by a
// fixed number of simulated minutes; day and hour notifications fire before
// the tick listeners so per-tick rules already see the new hour.
type WorldClock struct {
	interval       time.Duration
	minutesPerTick int
	now            SimTime
	listeners      []ClockListener
	hourListeners  []HourListener
	dayListeners   []DayListener
	paused         bool
	mu             sync.RWMutex
	cancel         context.CancelFunc
	logger         *zap.Logger
}

// NewWorldClock creates a clock with the given real tick interval, the
// simulated minutes each tick covers (at most one hour) and a start time.
func NewWorldClock(interval time.Duration, minutesPerTick int, start SimTime, logger *zap.Logger) *WorldClock {
	if minutesPerTick <= 0 {
		minutesPerTick = 1
	}
	if minutesPerTick > MinutesPerHour {
		minutesPerTick = MinutesPerHour
	}
	return &WorldClock{
		interval:       interval,
		minutesPerTick: minutesPerTick,
		now:            start,
		logger:         logger,
	}
}

// AddListener registers a tick listener.
func (c *WorldClock) AddListener(l ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// AddHourListener registers an hour-change listener.
func (c *WorldClock) AddHourListener(l HourListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hourListeners = append(c.hourListeners, l)
}

// AddDayListener registers a day-change listener.
func (c *WorldClock) AddDayListener(l DayListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dayListeners = append(c.dayListeners, l)
}

// Now returns the current simulated time.
func (c *WorldClock) Now() SimTime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// CurrentHour returns the simulated hour, 0-23.
func (c *WorldClock) CurrentHour() int { return c.Now().Hour }

// CurrentMinute returns the simulated minute, 0-59.
func (c *WorldClock) CurrentMinute() int { return c.Now().Minute }

// SetPaused stops or resumes calendar advance without stopping the loop.
func (c *WorldClock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// Paused reports whether the calendar is frozen.
func (c *WorldClock) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// SetTime jumps to t and fires the day and hour notifications the jump
// implies. Tick listeners are not called.
func (c *WorldClock) SetTime(t SimTime) {
	t = FromMinutes(t.TotalMinutes())
	c.mu.Lock()
	prev := c.now
	c.now = t
	c.mu.Unlock()

	c.logger.Info("world clock set", zap.Stringer("from", prev), zap.Stringer("to", t))
	c.notify(prev, t)
}

// Start begins the tick loop in a background goroutine.
func (c *WorldClock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("world clock started",
		zap.Duration("interval", c.interval),
		zap.Int("minutes_per_tick", c.minutesPerTick),
		zap.Stringer("now", c.Now()))
}

// Stop halts the tick loop.
func (c *WorldClock) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("world clock stopped")
	}
}

func (c *WorldClock) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Advance()
		}
	}
}

// Advance runs one tick. The loop calls it on every interval; tests call it
// directly.
func (c *WorldClock) Advance() {
	c.mu.Lock()
	prev := c.now
	if !c.paused {
		c.now = c.now.AddMinutes(c.minutesPerTick)
	}
	now := c.now
	listeners := make([]ClockListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	c.notify(prev, now)
	for _, l := range listeners {
		l.OnTick(now)
	}
}

// maxCatchUpHours bounds how many crossed hours one jump replays.
const maxCatchUpHours = 24

// crossedHours lists the hour boundaries passed between prev and now. A
// forward jump yields every full hour in (prev, now], at most the last
// maxCatchUpHours of them; a backward jump yields now if the hour differs.
func crossedHours(prev, now SimTime) []SimTime {
	from, to := prev.TotalMinutes(), now.TotalMinutes()
	if to <= from {
		if now.Day != prev.Day || now.Hour != prev.Hour {
			return []SimTime{now}
		}
		return nil
	}
	first := (from/MinutesPerHour + 1) * MinutesPerHour
	last := to / MinutesPerHour * MinutesPerHour
	if first > last {
		return nil
	}
	if n := (last-first)/MinutesPerHour + 1; n > maxCatchUpHours {
		first = last - (maxCatchUpHours-1)*MinutesPerHour
	}
	out := make([]SimTime, 0, (last-first)/MinutesPerHour+1)
	for m := first; m <= last; m += MinutesPerHour {
		out = append(out, FromMinutes(m))
	}
	out[len(out)-1].Minute = now.Minute
	return out
}

// notify fires day and hour listeners for every hour crossed, so a jump
// or a coarse tick never skips an hour rule.
func (c *WorldClock) notify(prev, now SimTime) {
	c.mu.RLock()
	days := make([]DayListener, len(c.dayListeners))
	copy(days, c.dayListeners)
	hours := make([]HourListener, len(c.hourListeners))
	copy(hours, c.hourListeners)
	c.mu.RUnlock()

	day := prev.Day
	for _, b := range crossedHours(prev, now) {
		if b.Day != day {
			day = b.Day
			c.logger.Info("day changed", zap.Int("day", b.Day))
			for _, l := range days {
				l.OnDayChanged(b.Day)
			}
		}
		c.logger.Debug("hour changed", zap.Int("hour", b.Hour), zap.Int("minute", b.Minute))
		for _, l := range hours {
			l.OnHourChanged(b.Hour, b.Minute)
		}
	}
}
