// Package contract provides interfaces and shared configuration for the
// lockwatch internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// Collector defines the per-engine introspection operations the engine
// depends on. One collector instance is bound to one database id and one
// connection pool; all methods are independently callable concurrently on
// different pooled connections.
type Collector interface {
	// CollectCurrentLocks returns one snapshot per lock/wait event currently
	// visible in the target database. Transient failures are retried with
	// exponential backoff before an error is returned.
	CollectCurrentLocks(ctx context.Context) ([]schema.LockSnapshot, error)

	// CollectWaitChains returns the blocking relationships among sessions.
	// Engines with native recursive blocking discovery build multi-hop chains
	// server-side; engines exposing only pairwise blocker/blockee rows emit
	// minimal 2-node chains.
	CollectWaitChains(ctx context.Context) ([]schema.WaitChain, error)

	// CollectStatistics returns cycle-level lock counters over the lookback
	// window. Collection is best effort: fields whose source is unavailable
	// degrade to zero instead of failing the call.
	CollectStatistics(ctx context.Context, lookback time.Duration) (schema.LockStatistics, error)

	// HealthCheck performs one cheap round-trip query against the target.
	HealthCheck(ctx context.Context) error

	// DatabaseID returns the inventory id the collector is bound to.
	DatabaseID() int64

	// Close releases the underlying connection pool.
	Close() error
}

// CacheBackend defines the distributed cache tier: a TTL-aware string-keyed
// byte store. Any conforming store, embedded or networked, is acceptable.
type CacheBackend interface {
	// Get returns the value for key along with its remaining TTL, or
	// ErrCacheMiss when the key is absent or its entry has expired. The
	// remaining TTL lets the local tier backfill without extending lifetime.
	Get(ctx context.Context, key string) ([]byte, time.Duration, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes all keys matching a glob pattern and returns
	// how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Close releases backend resources.
	Close() error
}
