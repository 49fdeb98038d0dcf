package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/nuka-resort/internal/api"
	"github.com/nidhogg/nuka-resort/internal/config"
	"github.com/nidhogg/nuka-resort/internal/facility"
	"github.com/nidhogg/nuka-resort/internal/gateway"
	"github.com/nidhogg/nuka-resort/internal/housekeeping"
	"github.com/nidhogg/nuka-resort/internal/sim"
	pgstore "github.com/nidhogg/nuka-resort/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/resort.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot, _ := zap.NewDevelopment()
		boot.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("Starting resort...", zap.String("config", cfgPath))

	layout, err := facility.Load(cfg.Simulation.LayoutPath)
	if err != nil {
		logger.Fatal("failed to load floor plan", zap.String("path", cfg.Simulation.LayoutPath), zap.Error(err))
	}

	resort, err := sim.New(cfg, layout, logger)
	if err != nil {
		logger.Fatal("failed to assemble resort", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL store
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			resort.Ledger.Persist(pgStore, 1024)
		}
	} else {
		logger.Warn("no database configured, running without persistence")
	}

	// Cleaning requests also go out on a Redis stream
	var bus *housekeeping.StreamBus
	if cfg.Database.Redis.URL != "" {
		b, busErr := housekeeping.NewStreamBus(ctx, cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, cleaning requests stay local", zap.Error(busErr))
		} else {
			bus = b
			resort.Crew.SetPublisher(bus)
		}
	}

	// Report channels
	if cfg.Notify.Slack.Enabled {
		resort.Gateway.Register(gateway.NewSlackAdapter(cfg.Notify.Slack.WebhookURL, logger))
	}
	if cfg.Notify.Discord.Enabled {
		resort.Gateway.Register(gateway.NewDiscordAdapter(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger))
	}
	if err := resort.Gateway.ConnectAll(ctx); err != nil {
		logger.Warn("some report channels failed to connect", zap.Error(err))
	}

	resort.Start()
	logger.Info("Resort simulation started")

	// Build HTTP handler; a nil *Store must not become a non-nil History.
	var history api.History
	if pgStore != nil {
		history = pgStore
	}
	handler := api.NewHandler(resort, history, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Resort listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down resort...")
	resort.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
	resort.Ledger.Close()
	if bus != nil {
		bus.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
	resort.Gateway.Close()
}

// newLogger picks the zap preset named by the config.
func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
