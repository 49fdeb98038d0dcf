package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/nuka-resort/internal/ledger"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"go.uber.org/zap"
)

// DayCloser hands out the totals of the day that just ended.
type DayCloser interface {
	CloseDay() ledger.Totals
}

// RoomStats reports the current occupancy of the catalog.
type RoomStats interface {
	Stats() registry.Stats
}

// Headcount reports population counters.
type Headcount interface {
	Stats() visitor.Stats
}

// Report summarizes one resort day.
type Report struct {
	Day           int            `json:"day"`
	Revenue       int            `json:"revenue"`
	Reputation    int            `json:"reputation"`
	Payments      int            `json:"payments"`
	Visits        int            `json:"visits"`
	ByKind        map[string]int `json:"by_kind"`
	Rooms         int            `json:"rooms"`
	OccupiedRooms int            `json:"occupied_rooms"`
	LiveVisitors  int            `json:"live_visitors"`
	Evictions     int            `json:"evictions"`
	Faults        int            `json:"faults"`
}

// Text renders the report body.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revenue: %d (%d payments)\n", r.Revenue, r.Payments)
	if len(r.ByKind) > 0 {
		kinds := make([]string, 0, len(r.ByKind))
		for k := range r.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s %d", k, r.ByKind[k]))
		}
		fmt.Fprintf(&b, "By item: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "Reputation: %+d\n", r.Reputation)
	fmt.Fprintf(&b, "Rooms occupied: %d/%d\n", r.OccupiedRooms, r.Rooms)
	fmt.Fprintf(&b, "Visitors on site: %d, finished visits: %d\n", r.LiveVisitors, r.Visits)
	fmt.Fprintf(&b, "Evictions: %d, faults: %d", r.Evictions, r.Faults)
	return b.String()
}

// Reporter is a world.DayListener that broadcasts a summary of the day
// that just ended. Sending happens off the clock goroutine.
type Reporter struct {
	ledger      DayCloser
	rooms       RoomStats
	people      Headcount
	broadcaster *Broadcaster
	timeout     time.Duration
	lastEvicted int
	lastFaults  int
	reports     []Report
	wg          sync.WaitGroup
	mu          sync.Mutex
	logger      *zap.Logger
}

// NewReporter creates a daily reporter.
func NewReporter(l DayCloser, rooms RoomStats, people Headcount, b *Broadcaster, logger *zap.Logger) *Reporter {
	return &Reporter{
		ledger:      l,
		rooms:       rooms,
		people:      people,
		broadcaster: b,
		timeout:     10 * time.Second,
		logger:      logger,
	}
}

// OnDayChanged implements world.DayListener.
func (r *Reporter) OnDayChanged(day int) {
	rep := r.Build(day - 1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		err := r.broadcaster.Send(ctx, &BroadcastMessage{
			Type:    BroadcastDailyReport,
			Title:   fmt.Sprintf("Day %d report", rep.Day),
			Content: rep.Text(),
			Day:     rep.Day,
		})
		if err != nil {
			r.logger.Warn("daily report not delivered", zap.Int("day", rep.Day), zap.Error(err))
		}
	}()
}

// Build closes the ledger day and assembles its report. Eviction and fault
// counts are the difference since the previous report.
func (r *Reporter) Build(day int) Report {
	totals := r.ledger.CloseDay()
	rooms := r.rooms.Stats()
	people := r.people.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()
	rep := Report{
		Day:           day,
		Revenue:       totals.Revenue,
		Reputation:    totals.Reputation,
		Payments:      totals.Payments,
		Visits:        totals.Visits,
		ByKind:        totals.ByKind,
		Rooms:         rooms.Rooms,
		OccupiedRooms: rooms.OccupiedRooms,
		LiveVisitors:  people.Live,
		Evictions:     people.Evicted - r.lastEvicted,
		Faults:        people.Faults - r.lastFaults,
	}
	r.lastEvicted = people.Evicted
	r.lastFaults = people.Faults
	r.reports = append(r.reports, rep)
	if len(r.reports) > historyLimit {
		r.reports = r.reports[len(r.reports)-historyLimit:]
	}
	r.logger.Info("day closed",
		zap.Int("day", day),
		zap.Int("revenue", rep.Revenue),
		zap.Int("visits", rep.Visits))
	return rep
}

// Reports returns the reports built so far, oldest first.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Wait blocks until every pending report has been sent.
func (r *Reporter) Wait() { r.wg.Wait() }
