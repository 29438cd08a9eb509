package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int
	Redis      RedisConfig
}

// New builds the configured cache. It returns a nil cache for "none" and a
// close function that is always safe to call.
func New(ctx context.Context, opts Options) (core.ResultCache, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendNone:
		return nil, noop, nil
	case BackendMemory:
		return NewMemory(opts.MaxEntries, opts.TTL), noop, nil
	case BackendRedis:
		cfg := opts.Redis
		if cfg.DefaultTTL == 0 {
			cfg.DefaultTTL = opts.TTL
		}
		r, err := NewRedis(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
