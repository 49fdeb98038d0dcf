package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"go.uber.org/zap"
)

// Payment is one charge issued by a visitor.
type Payment struct {
	ID              string    `json:"id"`
	VisitorID       string    `json:"visitor_id"`
	Amount          int       `json:"amount"`
	ItemID          string    `json:"item_id"`
	ReputationDelta int       `json:"reputation_delta"`
	At              time.Time `json:"at"`
}

// Kind is the item category: "room", "sunbed" or "order".
func (p Payment) Kind() string {
	kind, _, _ := strings.Cut(p.ItemID, ":")
	return kind
}

// Account tracks what one visitor spent.
type Account struct {
	VisitorID  string `json:"visitor_id"`
	Spent      int    `json:"spent"`
	Reputation int    `json:"reputation"`
	Purchases  int    `json:"purchases"`
	LastItem   string `json:"last_item,omitempty"`
}

// Totals aggregates payments and finished visits.
type Totals struct {
	Revenue    int            `json:"revenue"`
	Reputation int            `json:"reputation"`
	Payments   int            `json:"payments"`
	Visits     int            `json:"visits"`
	ByKind     map[string]int `json:"by_kind"`
}

func newTotals() Totals { return Totals{ByKind: make(map[string]int)} }

func (t *Totals) add(p Payment) {
	t.Revenue += p.Amount
	t.Reputation += p.ReputationDelta
	t.Payments++
	t.ByKind[p.Kind()] += p.Amount
}

func (t Totals) clone() Totals {
	out := t
	out.ByKind = make(map[string]int, len(t.ByKind))
	for k, v := range t.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Sink persists payments and visits. The store implements it.
type Sink interface {
	SavePayment(ctx context.Context, p Payment) error
	SaveVisit(ctx context.Context, v visitor.Visit) error
}

type record struct {
	payment *Payment
	visit   *visitor.Visit
}

const recentLimit = 100

// Ledger is the payment collaborator. Charges are booked in memory at once
// and handed to the sink on a background writer, so visitors never wait on
// storage.
type Ledger struct {
	accounts map[string]*Account // visitorID -> account
	total    Totals
	day      Totals
	recent   []Payment
	sink     Sink
	queue    chan record
	done     chan struct{}
	closed   bool
	mu       sync.RWMutex
	logger   *zap.Logger
}

// New creates an in-memory ledger.
func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		accounts: make(map[string]*Account),
		total:    newTotals(),
		day:      newTotals(),
		logger:   logger,
	}
}

// Persist starts the background writer. Records that do not fit in the
// buffer are dropped with a warning.
func (l *Ledger) Persist(sink Sink, buffer int) {
	if buffer <= 0 {
		buffer = 256
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue != nil {
		return
	}
	l.sink = sink
	l.queue = make(chan record, buffer)
	l.done = make(chan struct{})
	go l.write(l.queue, l.done)
}

// Close stops the writer after draining queued records.
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed || l.queue == nil {
		l.closed = true
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	done := l.done
	l.mu.Unlock()
	<-done
}

// RequestPayment books a charge. It never blocks on persistence.
func (l *Ledger) RequestPayment(visitorID string, amount int, itemID string, reputationDelta int) {
	p := Payment{
		ID:              uuid.New().String(),
		VisitorID:       visitorID,
		Amount:          amount,
		ItemID:          itemID,
		ReputationDelta: reputationDelta,
		At:              time.Now(),
	}

	l.mu.Lock()
	acc := l.getOrCreate(visitorID)
	acc.Spent += amount
	acc.Reputation += reputationDelta
	acc.Purchases++
	acc.LastItem = itemID
	l.total.add(p)
	l.day.add(p)
	l.recent = append(l.recent, p)
	if len(l.recent) > recentLimit {
		l.recent = l.recent[len(l.recent)-recentLimit:]
	}
	l.enqueueLocked(record{payment: &p})
	l.mu.Unlock()

	l.logger.Debug("payment booked",
		zap.String("visitor", visitorID),
		zap.String("item", itemID),
		zap.Int("amount", amount))
}

// RecordVisit implements visitor.Journal.
func (l *Ledger) RecordVisit(v visitor.Visit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total.Visits++
	l.day.Visits++
	delete(l.accounts, v.VisitorID)
	l.enqueueLocked(record{visit: &v})
}

func (l *Ledger) enqueueLocked(r record) {
	if l.queue == nil || l.closed {
		return
	}
	select {
	case l.queue <- r:
	default:
		l.logger.Warn("ledger writer backlog full, record dropped")
	}
}

func (l *Ledger) write(queue <-chan record, done chan<- struct{}) {
	defer close(done)
	for r := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		switch {
		case r.payment != nil:
			err = l.sink.SavePayment(ctx, *r.payment)
		case r.visit != nil:
			err = l.sink.SaveVisit(ctx, *r.visit)
		}
		cancel()
		if err != nil {
			l.logger.Warn("persist ledger record", zap.Error(err))
		}
	}
}

// Account returns the running account of a live visitor.
func (l *Ledger) Account(visitorID string) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[visitorID]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Totals returns all-time totals.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total.clone()
}

// Recent returns up to n of the latest payments, newest last.
func (l *Ledger) Recent(n int) []Payment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]Payment, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}

// CloseDay returns the totals since the previous call and starts a new day.
func (l *Ledger) CloseDay() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	day := l.day
	l.day = newTotals()
	return day
}

// getOrCreate returns or initializes an account (caller must hold lock).
func (l *Ledger) getOrCreate(visitorID string) *Account {
	acc, ok := l.accounts[visitorID]
	if !ok {
		acc = &Account{VisitorID: visitorID}
		l.accounts[visitorID] = acc
	}
	return acc
}
