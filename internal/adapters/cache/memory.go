// Package cache provides core.ResultCache backends.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// DefaultMaxEntries bounds the memory cache when no size is configured.
const DefaultMaxEntries = 1000

type memoryEntry struct {
	info      core.PlantInfo
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process LRU cache. The LRU expires entries after the
// default TTL; a shorter per-call TTL is checked on read.
type Memory struct {
	lru        *expirable.LRU[string, memoryEntry]
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemory creates a memory cache. maxEntries <= 0 uses DefaultMaxEntries.
// defaultTTL <= 0 disables expiry.
func NewMemory(maxEntries int, defaultTTL time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if defaultTTL < 0 {
		defaultTTL = 0
	}
	return &Memory{
		lru:        expirable.NewLRU[string, memoryEntry](maxEntries, nil, defaultTTL),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns a live entry.
func (m *Memory) Get(_ context.Context, key string) (core.PlantInfo, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return core.PlantInfo{}, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return core.PlantInfo{}, false, nil
	}
	return e.info, true, nil
}

// Set stores info under key. ttl <= 0 uses the cache default.
func (m *Memory) Set(_ context.Context, key string, info core.PlantInfo, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	e := memoryEntry{info: info}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (m *Memory) Len() int {
	return m.lru.Len()
}

var _ core.ResultCache = (*Memory)(nil)
