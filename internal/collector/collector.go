// Package collector provides per-engine adapters that inspect a live
// database's lock and transaction state and normalize it into schema types.
package collector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"
	"github.com/sirupsen/logrus"
)

// constructor builds a collector bound to one database id and pool.
type constructor func(dbID int64, dsn string, cfg *contract.Config, log *logrus.Logger) (contract.Collector, error)

// registry maps lowercase engine-type strings to constructors. Registration
// happens at startup time; there is no runtime plugin discovery.
var registry = map[schema.EngineKind]constructor{
	schema.PostgresEngine:          newPostgres,
	schema.EngineKind("postgresql"): newPostgres,
	schema.MySQLEngine:             newMySQL,
}

// New resolves an engine-type string through the registry and constructs a
// collector. Unsupported strings yield contract.ErrUnsupportedEngine, a
// distinct signal from connectivity failures.
func New(engine schema.EngineKind, dbID int64, dsn string, cfg *contract.Config, log *logrus.Logger) (contract.Collector, error) {
	ctor, ok := registry[schema.EngineKind(strings.ToLower(string(engine)))]
	if !ok {
		return nil, fmt.Errorf("engine %q: %w", engine, contract.ErrUnsupportedEngine)
	}
	return ctor(dbID, dsn, cfg, log)
}

// Supported returns the registered engine-type strings, sorted.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for kind := range registry {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}
