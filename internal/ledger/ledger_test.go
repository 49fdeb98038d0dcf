package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/nidhogg/nuka-resort/internal/visitor"
	"go.uber.org/zap"
)

type memSink struct {
	mu       sync.Mutex
	payments []Payment
	visits   []visitor.Visit
}

func (s *memSink) SavePayment(_ context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *memSink) SaveVisit(_ context.Context, v visitor.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, v)
	return nil
}

func TestLedgerBooksPayments(t *testing.T) {
	l := New(zap.NewNop())
	l.RequestPayment("v1", 100, "room:room-1", 2)
	l.RequestPayment("v1", 12, "order:kitchen", 1)
	l.RequestPayment("v2", 15, "sunbed:room-2", 1)

	tot := l.Totals()
	if tot.Revenue != 127 || tot.Reputation != 4 || tot.Payments != 3 {
		t.Fatalf("got %+v", tot)
	}
	if tot.ByKind["room"] != 100 || tot.ByKind["order"] != 12 || tot.ByKind["sunbed"] != 15 {
		t.Errorf("got by kind %v", tot.ByKind)
	}
	acc, ok := l.Account("v1")
	if !ok || acc.Spent != 112 || acc.Purchases != 2 || acc.LastItem != "order:kitchen" {
		t.Errorf("got account %+v", acc)
	}
	if recent := l.Recent(2); len(recent) != 2 || recent[1].VisitorID != "v2" {
		t.Errorf("got recent %+v", recent)
	}
}

func TestCloseDayResets(t *testing.T) {
	l := New(zap.NewNop())
	l.RequestPayment("v1", 10, "order:kitchen", 1)
	l.RecordVisit(visitor.Visit{VisitorID: "v1"})

	day := l.CloseDay()
	if day.Revenue != 10 || day.Visits != 1 {
		t.Fatalf("got %+v", day)
	}
	if again := l.CloseDay(); again.Revenue != 0 || again.Visits != 0 {
		t.Errorf("day not reset: %+v", again)
	}
	if l.Totals().Revenue != 10 {
		t.Error("all-time totals should survive the day close")
	}
	if _, ok := l.Account("v1"); ok {
		t.Error("account kept after the visit ended")
	}
}

func TestPersistDrainsOnClose(t *testing.T) {
	sink := &memSink{}
	l := New(zap.NewNop())
	l.Persist(sink, 16)
	l.RequestPayment("v1", 100, "room:room-1", 2)
	l.RecordVisit(visitor.Visit{VisitorID: "v1", ExitReason: "left", Spent: 100})
	l.Close()
	l.Close()

	if len(sink.payments) != 1 || len(sink.visits) != 1 {
		t.Fatalf("got %d payments, %d visits", len(sink.payments), len(sink.visits))
	}
	if sink.payments[0].ID == "" {
		t.Error("payment id not assigned")
	}
	l.RequestPayment("v2", 5, "order:kitchen", 0)
	if len(sink.payments) != 1 {
		t.Error("closed ledger still wrote")
	}
}
