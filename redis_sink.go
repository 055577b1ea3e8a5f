package driftwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisSinkConfig configures the optional Redis publisher.
type RedisSinkConfig struct {
	// Enabled turns on the sink.
	Enabled bool `yaml:"enabled"`

	// Addr is the Redis server address. Default: localhost:6379.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`

	// Channel is the pub/sub channel classified samples are published to.
	// Default: driftwatch:stream.
	Channel string `yaml:"channel"`

	// RecentKey is the list holding the most recent flagged samples.
	// Default: driftwatch:anomalies:recent.
	RecentKey string `yaml:"recent_key"`

	// RecentLimit caps the recent-anomaly list. Default: 1000.
	RecentLimit int64 `yaml:"recent_limit"`
}

// DefaultRedisSinkConfig returns default sink configuration.
func DefaultRedisSinkConfig(addr string) RedisSinkConfig {
	if addr == "" {
		addr = "localhost:6379"
	}
	return RedisSinkConfig{
		Enabled:     true,
		Addr:        addr,
		Channel:     "driftwatch:stream",
		RecentKey:   "driftwatch:anomalies:recent",
		RecentLimit: 1000,
	}
}

// RedisSink is an event-channel consumer that publishes every classified
// sample to a Redis pub/sub channel and keeps a capped list of recent
// anomalies for dashboards that poll instead of subscribing.
type RedisSink struct {
	cfg    RedisSinkConfig
	client *redis.Client
	wg     sync.WaitGroup
}

// NewRedisSink connects to Redis, filling zero config fields with defaults.
func NewRedisSink(cfg RedisSinkConfig) (*RedisSink, error) {
	def := DefaultRedisSinkConfig(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if cfg.RecentKey == "" {
		cfg.RecentKey = def.RecentKey
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = def.RecentLimit
	}

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{cfg: cfg, client: client}, nil
}

// Publish sends one classified sample to the channel and, when flagged,
// pushes it onto the capped recent-anomaly list.
func (r *RedisSink) Publish(ctx context.Context, cs ClassifiedSample) error {
	data, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to marshal classified sample: %w", err)
	}

	if err := r.client.Publish(ctx, r.cfg.Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	if cs.IsAnomaly {
		if err := r.client.LPush(ctx, r.cfg.RecentKey, data).Err(); err != nil {
			return fmt.Errorf("failed to update recent anomalies list: %w", err)
		}
		r.client.LTrim(ctx, r.cfg.RecentKey, 0, r.cfg.RecentLimit-1)
	}
	return nil
}

// RecentAnomalies returns up to count entries from the recent-anomaly list,
// newest first. Entries that fail to decode are skipped.
func (r *RedisSink) RecentAnomalies(ctx context.Context, count int64) ([]ClassifiedSample, error) {
	items, err := r.client.LRange(ctx, r.cfg.RecentKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent anomalies: %w", err)
	}

	var out []ClassifiedSample
	for _, item := range items {
		var cs ClassifiedSample
		if err := json.Unmarshal([]byte(item), &cs); err != nil {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

// Drain consumes a subscription in the background, publishing every item
// until the subscription closes. Publish failures are dropped; the sink is
// advisory, not the pipeline's critical path.
func (r *RedisSink) Drain(ctx context.Context, sub *Subscription) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for cs := range sub.C() {
			_ = r.Publish(ctx, cs)
		}
	}()
}

// Close waits for drain goroutines and closes the connection. The draining
// subscriptions must be closed first or Close will block.
func (r *RedisSink) Close() error {
	r.wg.Wait()
	return r.client.Close()
}
