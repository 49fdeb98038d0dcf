package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAdapter posts broadcasts to one Discord channel through the bot's
// REST session. Reports are outbound only, so no websocket is opened.
type DiscordAdapter struct {
	token       string
	channelID   string
	session     *discordgo.Session
	botName     string
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord adapter for a bot token and channel.
func NewDiscordAdapter(token, channelID string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:     token,
		channelID: channelID,
		logger:    logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

// Connect creates the session and checks the token by fetching the bot user.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	if a.token == "" || a.channelID == "" {
		return errors.New("discord bot token and channel id are required")
	}
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.fail(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	me, err := session.User("@me")
	if err != nil {
		a.fail(fmt.Sprintf("token check: %v", err))
		return fmt.Errorf("discord token check: %w", err)
	}

	a.mu.Lock()
	a.session = session
	a.botName = me.Username
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	a.logger.Info("discord adapter connected",
		zap.String("user", me.Username),
		zap.String("channel", a.channelID))
	return nil
}

func (a *DiscordAdapter) fail(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.connected = false
	a.mu.Unlock()
}

// Broadcast sends the message to the configured channel.
func (a *DiscordAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	a.mu.RLock()
	session := a.session
	a.mu.RUnlock()
	if session == nil {
		return errors.New("discord adapter not connected")
	}

	content := fmt.Sprintf("**[%s] %s**\n%s", msg.Type, msg.Title, msg.Content)
	if _, err := session.ChannelMessageSend(a.channelID, content); err != nil {
		a.mu.Lock()
		a.lastError = err.Error()
		a.mu.Unlock()
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (a *DiscordAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	a.connected = false
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("bot=%s, channel=%s", a.botName, a.channelID)
	}
	return s
}
