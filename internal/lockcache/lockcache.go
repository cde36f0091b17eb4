package lockcache

import (
	"context"
	"time"

	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Manager coordinates the two cache tiers with a cache-aside contract: L1
// hits return immediately, L1 misses check L2 and backfill on hit. A failing
// L2 degrades to local-only caching silently; the monitored database is never
// asked twice for the same key within a TTL window, and concurrent computes
// for an identical key collapse into a single in-flight call.
type Manager struct {
	local   *Local
	backend contract.CacheBackend // nil when the shared tier is disabled
	ttlFor  func(schema.DataClass) time.Duration
	log     *logrus.Logger
	group   singleflight.Group
}

// NewManager builds a manager over an L1 tier and an optional L2 backend.
func NewManager(local *Local, backend contract.CacheBackend, ttlFor func(schema.DataClass) time.Duration, log *logrus.Logger) *Manager {
	return &Manager{
		local:   local,
		backend: backend,
		ttlFor:  ttlFor,
		log:     log,
	}
}

// Get returns the cached value for key, consulting L1 then L2, or
// contract.ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := m.local.Get(key); ok {
		return value, nil
	}
	if m.backend == nil {
		return nil, contract.ErrCacheMiss
	}

	value, remaining, err := m.backend.Get(ctx, key)
	if err != nil {
		if err != contract.ErrCacheMiss {
			m.log.WithError(err).Debug("cache backend get failed, treating as miss")
		}
		return nil, contract.ErrCacheMiss
	}
	m.local.Set(key, value, remaining)
	return value, nil
}

// Set writes value through both tiers with the TTL of its data class.
func (m *Manager) Set(ctx context.Context, key string, value []byte, class schema.DataClass) {
	ttl := m.ttlFor(class)
	m.local.Set(key, value, ttl)
	if m.backend == nil {
		return
	}
	if err := m.backend.Set(ctx, key, value, ttl); err != nil {
		// Degrade to local-only caching; the backend being down is not a
		// reason to fail an orchestration.
		m.log.WithError(err).Debug("cache backend set failed, local tier only")
	}
}

// GetOrCompute implements the cache-aside pattern. forceRefresh bypasses the
// read but still writes the fresh value. Concurrent calls for the same key
// share one compute.
func (m *Manager) GetOrCompute(ctx context.Context, key string, class schema.DataClass, forceRefresh bool, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if !forceRefresh {
		if value, err := m.Get(ctx, key); err == nil {
			return value, true, nil
		}
	}

	value, err, _ := m.group.Do(key, func() (any, error) {
		fresh, cerr := compute(ctx)
		if cerr != nil {
			return nil, cerr
		}
		m.Set(ctx, key, fresh, class)
		return fresh, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value.([]byte), false, nil
}

// InvalidatePattern removes matching keys from both tiers and returns the
// total number of removals.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) int {
	removed := m.local.DeleteByPattern(pattern)
	if m.backend == nil {
		return removed
	}
	n, err := m.backend.DeleteByPattern(ctx, pattern)
	if err != nil {
		m.log.WithError(err).Debug("cache backend invalidation failed")
		return removed
	}
	return removed + n
}

// Close releases the shared tier, if any.
func (m *Manager) Close() error {
	if m.backend == nil {
		return nil
	}
	return m.backend.Close()
}
