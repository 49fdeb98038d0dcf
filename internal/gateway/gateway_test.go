package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/geom"
	"github.com/nidhogg/nuka-resort/internal/ledger"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"go.uber.org/zap"
)

type captureAdapter struct {
	platform   string
	connectErr error
	sendErr    error
	sent       []*BroadcastMessage
	closed     bool
	mu         sync.Mutex
}

func (c *captureAdapter) Platform() string { return c.platform }

func (c *captureAdapter) Connect(context.Context) error { return c.connectErr }

func (c *captureAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureAdapter) Close() error {
	c.closed = true
	return nil
}

func (c *captureAdapter) messages() []*BroadcastMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*BroadcastMessage(nil), c.sent...)
}

type fixedHeadcount struct{ stats visitor.Stats }

func (f *fixedHeadcount) Stats() visitor.Stats { return f.stats }

func TestConnectAllDropsFailingAdapters(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(&captureAdapter{platform: "slack"})
	gw.Register(&captureAdapter{platform: "discord", connectErr: errors.New("bad token")})

	err := gw.ConnectAll(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("got %v, want ErrConnect", err)
	}
	if got := gw.Adapters(); len(got) != 1 || got[0] != "slack" {
		t.Errorf("got adapters %v, want [slack]", got)
	}
}

func TestBroadcastTargetsPlatforms(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	slackA := &captureAdapter{platform: "slack"}
	discordA := &captureAdapter{platform: "discord"}
	gw.Register(slackA)
	gw.Register(discordA)

	b := NewBroadcaster(gw, zap.NewNop())
	if err := b.Send(context.Background(), &BroadcastMessage{Title: "no type"}); !errors.Is(err, ErrNoType) {
		t.Fatalf("got %v, want ErrNoType", err)
	}
	msg := &BroadcastMessage{Type: BroadcastAnnouncement, Title: "pool closed", Platforms: []string{"discord"}}
	if err := b.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(slackA.messages()) != 0 || len(discordA.messages()) != 1 {
		t.Errorf("got slack=%d discord=%d, want 0 and 1", len(slackA.messages()), len(discordA.messages()))
	}

	h := b.History(10)
	if len(h) != 1 || h[0].Targets[0] != "discord" {
		t.Errorf("got history %+v", h)
	}
	gw.Close()
	if !slackA.closed || !discordA.closed {
		t.Error("close should reach every adapter")
	}
}

func TestBroadcastFailureIsRecorded(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(&captureAdapter{platform: "slack", sendErr: errors.New("500")})
	b := NewBroadcaster(gw, zap.NewNop())

	if err := b.Send(context.Background(), &BroadcastMessage{Type: BroadcastAnnouncement}); err == nil {
		t.Fatal("expected an error")
	}
	if h := b.History(0); len(h) != 1 || h[0].Error == "" {
		t.Errorf("failed send should be kept with its error: %+v", h)
	}
}

func TestSlackAdapterPostsWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewSlackAdapter(srv.URL, zap.NewNop())
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	err := a.Broadcast(context.Background(), &BroadcastMessage{
		Type:    BroadcastDailyReport,
		Title:   "Day 1 report",
		Content: "Revenue: 12",
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "Day 1 report") || !strings.Contains(text, "Revenue: 12") {
		t.Errorf("got text %q", text)
	}
	if st := a.Status(); !st.Connected || st.Error != "" {
		t.Errorf("got status %+v", st)
	}
}

func TestSlackAdapterReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewSlackAdapter(srv.URL, zap.NewNop())
	if err := a.Broadcast(context.Background(), &BroadcastMessage{Type: BroadcastAnnouncement}); err == nil {
		t.Fatal("expected an error for a 403")
	}
	if a.Status().Error == "" {
		t.Error("status should carry the last error")
	}
}

func TestEmptyCredentialsRefuseToConnect(t *testing.T) {
	if err := NewSlackAdapter("", zap.NewNop()).Connect(context.Background()); err == nil {
		t.Error("slack without a webhook should not connect")
	}
	if err := NewDiscordAdapter("", "", zap.NewNop()).Connect(context.Background()); err == nil {
		t.Error("discord without a token should not connect")
	}
}

func TestReporterBroadcastsDayTotals(t *testing.T) {
	logger := zap.NewNop()
	led := ledger.New(logger)
	led.RequestPayment("v1", 100, "room:r1", 2)
	led.RequestPayment("v2", 12, "order:kitchen", 1)

	reg := registry.New(chance.New(1), logger)
	reg.Rebuild([]registry.Room{{
		Name:   "101",
		Bounds: geom.Bounds{Max: geom.Point{X: 4, Y: 3, Z: 4}},
		Price:  100,
	}}, nil)
	if _, ok := reg.TryReserveRoom(); !ok {
		t.Fatal("reserve room")
	}
	people := &fixedHeadcount{stats: visitor.Stats{Live: 3, Evicted: 2, Faults: 1}}

	gw := NewGateway(logger)
	capture := &captureAdapter{platform: "test"}
	gw.Register(capture)
	rep := NewReporter(led, reg, people, NewBroadcaster(gw, logger), logger)

	rep.OnDayChanged(2)
	rep.Wait()

	msgs := capture.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(msgs))
	}
	if msgs[0].Type != BroadcastDailyReport || msgs[0].Day != 1 {
		t.Errorf("got %+v", msgs[0])
	}
	for _, want := range []string{"Revenue: 112", "Rooms occupied: 1/1", "Reputation: +3", "Evictions: 2"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("report %q missing %q", msgs[0].Content, want)
		}
	}

	// The next day starts from zero and only counts new evictions.
	people.stats.Evicted = 5
	next := rep.Build(2)
	if next.Revenue != 0 || next.Evictions != 3 || next.Faults != 0 {
		t.Errorf("got %+v", next)
	}
	if n := len(rep.Reports()); n != 2 {
		t.Errorf("got %d reports, want 2", n)
	}
}
