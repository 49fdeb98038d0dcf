package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAdapter posts broadcasts to a Slack incoming webhook.
type SlackAdapter struct {
	webhookURL string
	username   string
	iconEmoji  string
	client     *http.Client
	connected  bool
	lastSent   time.Time
	lastError  string
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewSlackAdapter creates a Slack adapter for an incoming webhook URL.
func NewSlackAdapter(webhookURL string, logger *zap.Logger) *SlackAdapter {
	return &SlackAdapter{
		webhookURL: webhookURL,
		username:   "Front Desk",
		iconEmoji:  ":palm_tree:",
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

// Connect only checks the configuration; webhooks have no session.
func (a *SlackAdapter) Connect(_ context.Context) error {
	if a.webhookURL == "" {
		return errors.New("slack webhook url is empty")
	}
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	a.logger.Info("slack adapter ready")
	return nil
}

// Broadcast posts the message to the webhook's channel.
func (a *SlackAdapter) Broadcast(ctx context.Context, msg *BroadcastMessage) error {
	text := fmt.Sprintf("*[%s] %s*\n%s", msg.Type, msg.Title, msg.Content)
	err := slack.PostWebhookCustomHTTPContext(ctx, a.webhookURL, a.client, &slack.WebhookMessage{
		Username:  a.username,
		IconEmoji: a.iconEmoji,
		Text:      text,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.lastError = err.Error()
		return fmt.Errorf("slack webhook: %w", err)
	}
	a.lastSent = time.Now()
	a.lastError = ""
	return nil
}

func (a *SlackAdapter) Close() error { return nil }

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "slack",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if !a.lastSent.IsZero() {
		s.Details = "last sent " + a.lastSent.Format(time.RFC3339)
	}
	return s
}
