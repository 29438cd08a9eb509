package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// DefaultKeyPrefix namespaces cache keys in a shared redis.
const DefaultKeyPrefix = "plantsage:identify:"

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
	DefaultTTL  time.Duration
}

// Redis stores results as JSON strings, shared across server instances.
type Redis struct {
	client     redisClient
	prefix     string
	defaultTTL time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	r := newRedisWithClient(client, cfg.KeyPrefix, cfg.DefaultTTL)
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return r, nil
}

func newRedisWithClient(client redisClient, prefix string, defaultTTL time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	pong, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("expected PONG, got %s", pong)
	}
	return nil
}

// Get returns the cached result; a missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) (core.PlantInfo, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return core.PlantInfo{}, false, nil
	}
	if err != nil {
		return core.PlantInfo{}, false, fmt.Errorf("redis get: %w", err)
	}

	var info core.PlantInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return core.PlantInfo{}, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return info, true, nil
}

// Set stores info with ttl (<= 0 uses the default; both zero means no expiry).
func (r *Redis) Set(ctx context.Context, key string, info core.PlantInfo, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, string(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ core.ResultCache = (*Redis)(nil)
