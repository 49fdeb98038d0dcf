package gateway

import (
	"context"
	"time"
)

// Adapter delivers broadcasts to one chat platform.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Broadcast(ctx context.Context, msg *BroadcastMessage) error
	Close() error
}

// AdapterStatus describes the connection of one adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Details     string     `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StatusReporter is implemented by adapters that track their connection.
type StatusReporter interface {
	Status() AdapterStatus
}

// BroadcastType categorizes broadcast messages.
type BroadcastType string

const (
	BroadcastDailyReport  BroadcastType = "daily_report"
	BroadcastAnnouncement BroadcastType = "announcement"
	BroadcastLayout       BroadcastType = "layout"
)

// BroadcastMessage is sent to every registered platform, or to the ones
// listed in Platforms.
type BroadcastMessage struct {
	Type      BroadcastType `json:"type"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Day       int           `json:"day,omitempty"`
	Platforms []string      `json:"platforms,omitempty"`
}
