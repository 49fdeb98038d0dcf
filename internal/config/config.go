package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid config")

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Notify     NotifyConfig     `json:"notify"`
	Simulation SimulationConfig `json:"simulation"`
	Tuning     Tuning           `json:"tuning"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type NotifyConfig struct {
	Slack   SlackNotifyConfig   `json:"slack"`
	Discord DiscordNotifyConfig `json:"discord"`
}

type SlackNotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// SimulationConfig controls the driver loop and the population.
type SimulationConfig struct {
	LayoutPath     string  `json:"layout_path"`
	TickMillis     int     `json:"tick_millis"`
	MinutesPerTick int     `json:"minutes_per_tick"`
	StartDay       int     `json:"start_day"`
	StartHour      int     `json:"start_hour"`
	Seed           uint64  `json:"seed"`
	MaxVisitors    int     `json:"max_visitors"`
	SpawnChance    float64 `json:"spawn_chance"`
	OpenHour       int     `json:"open_hour"`
	CloseHour      int     `json:"close_hour"`
	Workers        int     `json:"workers"`
	WalkSpeed      float64 `json:"walk_speed"` // floor units per tick
}

// TickInterval returns the real duration of one tick.
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Duration(s.TickMillis) * time.Millisecond
}

// MinuteRange is an inclusive range of simulated minutes.
type MinuteRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SecondRange is an inclusive range of real seconds.
type SecondRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Tuning holds the gameplay constants of the visitor behavior. The
// probability splits are hand-tuned and kept as configuration.
type Tuning struct {
	// Daytime split for visitors without a room; one draw, cumulative.
	QueueChance   float64 `json:"queue_chance"`
	SunbedChance  float64 `json:"sunbed_chance"`
	DiningChance  float64 `json:"dining_chance"`
	WanderChance  float64 `json:"wander_chance"`
	DespawnChance float64 `json:"despawn_chance"`

	// Fallback split when no daytime rule applies.
	FallbackWanderChance float64 `json:"fallback_wander_chance"`
	// With a staffed reception the fallback becomes wander vs. queue.
	StaffedWanderChance float64 `json:"staffed_wander_chance"`
	// Room holders pick UseWandering with this chance, else RoomWandering.
	UseWanderChance float64 `json:"use_wander_chance"`

	BedtimeHour     int `json:"bedtime_hour"`
	WakeHour        int `json:"wake_hour"`
	CheckoutEndHour int `json:"checkout_end_hour"`
	EvictionHour    int `json:"eviction_hour"`
	SunbedFirstHour int `json:"sunbed_first_hour"`
	SunbedLastHour  int `json:"sunbed_last_hour"`
	SunbedCutoff    int `json:"sunbed_cutoff_hour"`

	SunbedMinutes  int         `json:"sunbed_minutes"`
	EatingMinutes  int         `json:"eating_minutes"`
	ServiceMinutes int         `json:"service_minutes"`
	CleanMinutes   int         `json:"clean_minutes"`
	RoomUse        MinuteRange `json:"room_use_minutes"`
	WanderPause    MinuteRange `json:"wander_pause_minutes"`

	TravelTimeoutSeconds int         `json:"travel_timeout_seconds"`
	QueueTimeoutSeconds  int         `json:"queue_timeout_seconds"`
	SunbedCeilingSeconds int         `json:"sunbed_ceiling_seconds"`
	QueueRetry           SecondRange `json:"queue_retry_seconds"`

	SunbedPrice        int `json:"sunbed_price"`
	OrderPrice         int `json:"order_price"`
	OrderReputation    int `json:"order_reputation"`
	SunbedReputation   int `json:"sunbed_reputation"`
	CheckoutReputation int `json:"checkout_reputation"`
}

// TravelTimeout bounds every wait for a movement arrival.
func (t Tuning) TravelTimeout() time.Duration {
	return time.Duration(t.TravelTimeoutSeconds) * time.Second
}

// QueueTimeout bounds every wait for a counter to become ready.
func (t Tuning) QueueTimeout() time.Duration {
	return time.Duration(t.QueueTimeoutSeconds) * time.Second
}

// SunbedCeiling is the real-time cap on a sunbed session if the clock stalls.
func (t Tuning) SunbedCeiling() time.Duration {
	return time.Duration(t.SunbedCeilingSeconds) * time.Second
}

// DefaultTuning returns the stock gameplay values.
func DefaultTuning() Tuning {
	return Tuning{
		QueueChance:   0.10,
		SunbedChance:  0.15,
		DiningChance:  0.60,
		WanderChance:  0.10,
		DespawnChance: 0.05,

		FallbackWanderChance: 0.5,
		StaffedWanderChance:  0.4,
		UseWanderChance:      0.5,

		BedtimeHour:     0,
		WakeHour:        9,
		CheckoutEndHour: 11,
		EvictionHour:    17,
		SunbedFirstHour: 11,
		SunbedLastHour:  15,
		SunbedCutoff:    16,

		SunbedMinutes:  50,
		EatingMinutes:  20,
		ServiceMinutes: 3,
		CleanMinutes:   30,
		RoomUse:        MinuteRange{Min: 60, Max: 180},
		WanderPause:    MinuteRange{Min: 5, Max: 20},

		TravelTimeoutSeconds: 30,
		QueueTimeoutSeconds:  60,
		SunbedCeilingSeconds: 120,
		QueueRetry:           SecondRange{Min: 5, Max: 15},

		SunbedPrice:        15,
		OrderPrice:         12,
		OrderReputation:    1,
		SunbedReputation:   1,
		CheckoutReputation: 2,
	}
}

// Default returns a complete config that runs without any external service.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, LogLevel: "development"},
		Simulation: SimulationConfig{
			LayoutPath:     "configs/facility.yaml",
			TickMillis:     250,
			MinutesPerTick: 1,
			StartDay:       1,
			StartHour:      8,
			MaxVisitors:    40,
			SpawnChance:    0.05,
			OpenHour:       8,
			CloseHour:      17,
			Workers:        8,
			WalkSpeed:      1.5,
		},
		Tuning: DefaultTuning(),
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file over the defaults and substitutes
// environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise break the behavior rules.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.TickMillis <= 0 || s.MinutesPerTick <= 0 || s.MinutesPerTick > 60 {
		return fmt.Errorf("%w: tick_millis must be positive and minutes_per_tick in 1..60", ErrInvalid)
	}
	if !validHour(s.StartHour) || !validHour(s.OpenHour) || s.CloseHour < 0 || s.CloseHour > 24 {
		return fmt.Errorf("%w: simulation hours out of range", ErrInvalid)
	}
	if s.SpawnChance < 0 || s.SpawnChance > 1 {
		return fmt.Errorf("%w: spawn_chance %v", ErrInvalid, s.SpawnChance)
	}
	return c.Tuning.Validate()
}

// Validate checks that every probability is in [0,1], that the daytime split
// sums to at most one, and that ranges are ordered.
func (t Tuning) Validate() error {
	probs := map[string]float64{
		"queue_chance":           t.QueueChance,
		"sunbed_chance":          t.SunbedChance,
		"dining_chance":          t.DiningChance,
		"wander_chance":          t.WanderChance,
		"despawn_chance":         t.DespawnChance,
		"fallback_wander_chance": t.FallbackWanderChance,
		"staffed_wander_chance":  t.StaffedWanderChance,
		"use_wander_chance":      t.UseWanderChance,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalid, name, p)
		}
	}
	sum := t.QueueChance + t.SunbedChance + t.DiningChance + t.WanderChance + t.DespawnChance
	if sum > 1.0+1e-9 {
		return fmt.Errorf("%w: daytime split sums to %v", ErrInvalid, sum)
	}
	for name, h := range map[string]int{
		"bedtime_hour":      t.BedtimeHour,
		"wake_hour":         t.WakeHour,
		"checkout_end_hour": t.CheckoutEndHour,
		"eviction_hour":     t.EvictionHour,
		"sunbed_first_hour": t.SunbedFirstHour,
		"sunbed_last_hour":  t.SunbedLastHour,
		"sunbed_cutoff":     t.SunbedCutoff,
	} {
		if !validHour(h) {
			return fmt.Errorf("%w: %s %d", ErrInvalid, name, h)
		}
	}
	if !(t.WakeHour < t.CheckoutEndHour && t.CheckoutEndHour <= t.EvictionHour) {
		return fmt.Errorf("%w: wake/checkout/eviction hours out of order", ErrInvalid)
	}
	if t.RoomUse.Min > t.RoomUse.Max || t.WanderPause.Min > t.WanderPause.Max || t.QueueRetry.Min > t.QueueRetry.Max {
		return fmt.Errorf("%w: inverted range", ErrInvalid)
	}
	if t.TravelTimeoutSeconds <= 0 || t.QueueTimeoutSeconds <= 0 || t.SunbedCeilingSeconds <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	return nil
}

func validHour(h int) bool { return h >= 0 && h < 24 }
