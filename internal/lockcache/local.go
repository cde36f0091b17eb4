// Package lockcache is the multi-tier cache bounding repeated expensive
// collection: a bounded in-process tier plus an optional shared TTL store.
package lockcache

import (
	"path"
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
	accesses  uint64
}

// Local is the L1 tier: a bounded in-process map with per-entry TTL and
// least-accessed eviction at capacity. Safe for concurrent use across
// simultaneous orchestration calls.
type Local struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*localEntry
}

// NewLocal returns a local tier bounded at capacity entries.
func NewLocal(capacity int) *Local {
	if capacity < 1 {
		capacity = 1
	}
	return &Local{
		capacity: capacity,
		entries:  make(map[string]*localEntry, capacity),
	}
}

// Get returns the cached value and whether it was present and fresh. Expired
// entries are removed lazily on access.
func (l *Local) Get(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(l.entries, key)
		return nil, false
	}
	e.accesses++
	return e.value, true
}

// Set stores value under key for ttl. At capacity the entry with the fewest
// accesses is evicted first.
func (l *Local) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[key]; !exists && len(l.entries) >= l.capacity {
		l.evictColdest()
	}
	l.entries[key] = &localEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// evictColdest removes the least-accessed entry, preferring already expired
// ones. Caller holds the lock.
func (l *Local) evictColdest() {
	now := time.Now()
	var victim string
	var victimAccesses uint64
	first := true
	for key, e := range l.entries {
		if now.After(e.expiresAt) {
			victim = key
			break
		}
		if first || e.accesses < victimAccesses {
			victim = key
			victimAccesses = e.accesses
			first = false
		}
	}
	delete(l.entries, victim)
}

// Delete removes a single key.
func (l *Local) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// DeleteByPattern removes all keys matching a glob pattern and returns how
// many were removed.
func (l *Local) DeleteByPattern(pattern string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, counting expired ones not yet
// lazily removed.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
