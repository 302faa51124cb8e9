package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "mcwatch:snapshot:"

// RedisOptions configure the snapshot mirror.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisMirror copies snapshots into Redis so other processes can read the latest values.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisMirror connects to Redis. It returns nil without error when no address is
// configured, and an error when the server does not answer a ping.
func NewRedisMirror(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisMirror, error) {
	if opts.Addr == "" {
		return nil, nil
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisMirror{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_mirror").Logger(),
	}, nil
}

// Mirror stores snap as JSON under the token key with the configured TTL.
func (m *RedisMirror) Mirror(ctx context.Context, tokenID string, snap TokenSnapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.client.Set(ctx, redisKeyPrefix+tokenID, value, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", tokenID, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

var _ Mirror = (*RedisMirror)(nil)
