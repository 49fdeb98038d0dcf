package housekeeping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cleaningStream = "resort:cleaning"

// StreamBus publishes cleaning requests on a Redis stream so an external
// housekeeping service can pick them up.
type StreamBus struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamBus connects to Redis.
func NewStreamBus(ctx context.Context, redisURL string, logger *zap.Logger) (*StreamBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &StreamBus{rdb: rdb, stream: cleaningStream, logger: logger}, nil
}

// Publish appends a request to the stream.
func (b *StreamBus) Publish(ctx context.Context, req CleaningRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal cleaning request: %w", err)
	}
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"room": string(req.RoomID),
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.stream, err)
	}
	b.logger.Debug("published cleaning request", zap.String("room", string(req.RoomID)))
	return nil
}

// Subscribe streams requests added after the call. Cancel ctx to stop.
func (b *StreamBus) Subscribe(ctx context.Context) <-chan CleaningRequest {
	ch := make(chan CleaningRequest, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var req CleaningRequest
					if json.Unmarshal([]byte(data), &req) != nil {
						continue
					}
					select {
					case ch <- req:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *StreamBus) Close() error {
	return b.rdb.Close()
}
