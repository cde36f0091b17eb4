package lockcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbscope/lockwatch/internal/contract"

	_ "modernc.org/sqlite" // SQLite driver
)

// createCacheTable holds one row per cache entry with a millisecond expiry.
const createCacheTable = `
	CREATE TABLE IF NOT EXISTS lockwatch_cache (
		cache_key   TEXT PRIMARY KEY,
		cache_value BLOB NOT NULL,
		expires_at  INTEGER NOT NULL
	);`

// SQLiteStore is the L2 tier: an embedded TTL-native key-value store shared
// between processes monitoring the same inventory. It implements
// contract.CacheBackend; any conforming store could replace it.
type SQLiteStore struct {
	db *sql.DB
}

var _ contract.CacheBackend = &SQLiteStore{} // Compile-time check

// NewSQLiteStore opens (or creates) the cache database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store at %q: %w. Ensure the directory is writable", dbPath, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get retrieves a fresh value and its remaining TTL. Expired rows are
// removed lazily and reported as a miss.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	var value []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_value, expires_at FROM lockwatch_cache WHERE cache_key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, contract.ErrCacheMiss
		}
		return nil, 0, err
	}

	remaining := time.Until(time.UnixMilli(expiresAt))
	if remaining <= 0 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM lockwatch_cache WHERE cache_key = ?`, key)
		return nil, 0, contract.ErrCacheMiss
	}
	return value, remaining, nil
}

// Set upserts a value with the given TTL.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	expiresAt := time.Now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lockwatch_cache (cache_key, cache_value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt)
	return err
}

// Delete removes a single key. Absent keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lockwatch_cache WHERE cache_key = ?`, key)
	return err
}

// DeleteByPattern removes all keys matching a glob pattern, translated to a
// SQL LIKE expression, and returns how many rows were removed.
func (s *SQLiteStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lockwatch_cache WHERE cache_key LIKE ? ESCAPE '\'`, globToLike(pattern))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pattern delete count unavailable: %w", err)
	}
	return int(n), nil
}

// StoreStats summarizes the shared tier contents.
type StoreStats struct {
	TotalEntries int // Rows in the store, including expired ones not yet reaped
	LiveEntries  int // Rows whose TTL has not elapsed
}

// Stats counts total and unexpired entries.
func (s *SQLiteStore) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(expires_at > ?), 0) FROM lockwatch_cache`, time.Now().UnixMilli())
	if err := row.Scan(&stats.TotalEntries, &stats.LiveEntries); err != nil {
		return StoreStats{}, err
	}
	return stats, nil
}

// Close closes the underlying DB connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// globToLike converts a glob pattern to a LIKE pattern: '*' and '?' become
// '%' and '_', and literal LIKE metacharacters are escaped.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
