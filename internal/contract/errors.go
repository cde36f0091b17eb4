package contract

import "errors"

// Sentinel errors surfaced across package boundaries. Only truly fatal
// conditions reach the caller of the engine; soft failures are logged and
// degrade to empty data.
var (
	// ErrUnsupportedEngine is returned when no collector is registered for an
	// engine-type string. It fails fast and is never retried.
	ErrUnsupportedEngine = errors.New("unsupported database engine")

	// ErrAllCollectionsFailed is returned when every concurrent collection of
	// an orchestration cycle failed, leaving nothing to analyze.
	ErrAllCollectionsFailed = errors.New("all lock collections failed")

	// ErrCacheMiss is returned by cache tiers when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)
