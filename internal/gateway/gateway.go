package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Gateway manages the platform adapters reports are sent through.
type Gateway struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway with no adapters. Broadcasting through an
// empty gateway is a no-op.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter, replacing one for the same platform.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	platform := adapter.Platform()
	g.adapters[platform] = adapter
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

// ConnectAll connects every adapter. An adapter that fails to connect is
// unregistered so the resort keeps running without it; the joined error
// lists the platforms that were dropped.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var failed []string
	for platform, adapter := range g.adapters {
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Warn("adapter connect failed, dropping it",
				zap.String("platform", platform), zap.Error(err))
			delete(g.adapters, platform)
			failed = append(failed, platform)
			continue
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("connect adapters %v: %w", failed, ErrConnect)
	}
	return nil
}

// Broadcast sends a message to all matching adapters.
func (g *Gateway) Broadcast(ctx context.Context, msg *BroadcastMessage) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := g.adapters
	if len(msg.Platforms) > 0 {
		targets = make(map[string]Adapter)
		for _, p := range msg.Platforms {
			if a, ok := g.adapters[p]; ok {
				targets[p] = a
			}
		}
	}

	var errs []error
	for platform, adapter := range targets {
		if err := adapter.Broadcast(ctx, msg); err != nil {
			g.logger.Error("broadcast failed",
				zap.String("platform", platform), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("broadcast failed on %d platform(s): %w", len(errs), errs[0])
	}
	return nil
}

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for platform, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}

// Adapters returns the registered platform names, sorted.
func (g *Gateway) Adapters() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for p := range g.adapters {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Statuses returns the status of every adapter that reports one.
func (g *Gateway) Statuses() []AdapterStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AdapterStatus, 0, len(g.adapters))
	for p, a := range g.adapters {
		if sr, ok := a.(StatusReporter); ok {
			out = append(out, sr.Status())
			continue
		}
		out = append(out, AdapterStatus{Platform: p, Connected: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}
