package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrConnect is wrapped by ConnectAll when an adapter was dropped.
	ErrConnect = errors.New("adapter connect failed")
	// ErrNoType is returned for a broadcast without a type.
	ErrNoType = errors.New("broadcast type is required")
)

const historyLimit = 50

// BroadcastRecord tracks a sent broadcast for history.
type BroadcastRecord struct {
	Message *BroadcastMessage `json:"message"`
	SentAt  time.Time         `json:"sent_at"`
	Targets []string          `json:"targets"`
	Error   string            `json:"error,omitempty"`
}

// Broadcaster sends resort broadcasts through the Gateway and keeps a short
// history of what went out.
type Broadcaster struct {
	gateway *Gateway
	history []BroadcastRecord
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster backed by the given gateway.
func NewBroadcaster(gw *Gateway, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		gateway: gw,
		logger:  logger,
	}
}

// Send broadcasts a message to all or selected platforms via the gateway.
// Failed sends are kept in the history with their error.
func (b *Broadcaster) Send(ctx context.Context, msg *BroadcastMessage) error {
	if msg.Type == "" {
		return ErrNoType
	}

	b.logger.Info("sending broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.Int("day", msg.Day))

	targets := msg.Platforms
	if len(targets) == 0 {
		targets = b.gateway.Adapters()
	}
	rec := BroadcastRecord{Message: msg, SentAt: time.Now(), Targets: targets}

	err := b.gateway.Broadcast(ctx, msg)
	if err != nil {
		rec.Error = err.Error()
		err = fmt.Errorf("send broadcast: %w", err)
	}

	b.mu.Lock()
	b.history = append(b.history, rec)
	if len(b.history) > historyLimit {
		b.history = b.history[len(b.history)-historyLimit:]
	}
	b.mu.Unlock()
	return err
}

// History returns up to limit of the latest broadcast records, newest last.
func (b *Broadcaster) History(limit int) []BroadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]BroadcastRecord, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}
