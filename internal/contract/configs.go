package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// Default values for configuration.
const (
	DefaultLookback      = time.Hour
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 200 * time.Millisecond
	DefaultRetryFactor   = 2.0
	DefaultChainDepth    = 10
	DefaultLocalCapacity = 256
	DefaultQueryTimeout  = 10 * time.Second
)

// Default per-class cache TTLs in seconds, overridable from configuration.
var DefaultTTLSeconds = map[schema.DataClass]int{
	schema.ClassRealtime:   10,
	schema.ClassAnalysis:   300,
	schema.ClassHistorical: 3600,
	schema.ClassStatistics: 1800,
}

// Config holds the final, validated runtime configuration.
type Config struct {
	Engine     schema.EngineKind
	DSN        string // Plaintext credentials; prefer the env var over flags
	DatabaseID int64

	Lookback     time.Duration
	ForceRefresh bool

	// Collector retry policy for transient failures.
	RetryAttempts int
	RetryDelay    time.Duration
	RetryFactor   float64
	QueryTimeout  time.Duration

	// Maximum server-side recursion depth for wait-chain discovery.
	ChainDepth int

	// Cache tiers. The local tier is always constructed; the shared tier is
	// optional and backed by an embedded store at CachePath.
	CacheEnabled  bool
	LocalCapacity int
	CachePath     string // Empty disables the shared tier
	TTLSeconds    map[schema.DataClass]int

	Output     schema.OutputMode
	OutputFile string
	Width      int // Table width override; 0 detects the terminal size
	UseColors  bool
	Verbose    bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config
// file). Viper unmarshals into this struct before validation.
type ConfigRawInput struct {
	Engine        string `mapstructure:"engine"`
	DSN           string `mapstructure:"dsn"`
	DatabaseID    int64  `mapstructure:"db-id"`
	Lookback      string `mapstructure:"lookback"`
	ForceRefresh  bool   `mapstructure:"force-refresh"`
	RetryAttempts int    `mapstructure:"retry-attempts"`
	RetryDelay    string `mapstructure:"retry-delay"`
	RetryFactor   float64 `mapstructure:"retry-factor"`
	QueryTimeout  string `mapstructure:"query-timeout"`
	NoCache       bool   `mapstructure:"no-cache"`
	LocalCapacity int    `mapstructure:"cache-capacity"`
	CachePath     string `mapstructure:"cache-path"`
	Output        string `mapstructure:"output"`
	OutputFile    string `mapstructure:"output-file"`
	Width         int    `mapstructure:"width"`
	Color         string `mapstructure:"color"`
	Verbose       bool   `mapstructure:"verbose"`

	// Per-class TTL overrides from the config file, in seconds.
	TTL map[string]int `mapstructure:"ttl"`
}

// ProcessAndValidate parses and validates the raw inputs and populates the
// final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	engine := schema.EngineKind(strings.ToLower(strings.TrimSpace(input.Engine)))
	switch engine {
	case schema.PostgresEngine, schema.EngineKind("postgresql"):
		cfg.Engine = schema.PostgresEngine
	case schema.MySQLEngine:
		cfg.Engine = schema.MySQLEngine
	case "":
		return fmt.Errorf("engine is required (postgres or mysql)")
	default:
		// Leave the unsupported string in place; the collector registry turns
		// it into ErrUnsupportedEngine so callers get a distinct signal.
		cfg.Engine = engine
	}

	if strings.TrimSpace(input.DSN) == "" {
		return fmt.Errorf("dsn is required")
	}
	cfg.DSN = input.DSN
	cfg.DatabaseID = input.DatabaseID

	var err error
	if cfg.Lookback, err = parseDurationDefault(input.Lookback, DefaultLookback); err != nil {
		return fmt.Errorf("invalid lookback: %w", err)
	}
	if cfg.RetryDelay, err = parseDurationDefault(input.RetryDelay, DefaultRetryDelay); err != nil {
		return fmt.Errorf("invalid retry-delay: %w", err)
	}
	if cfg.QueryTimeout, err = parseDurationDefault(input.QueryTimeout, DefaultQueryTimeout); err != nil {
		return fmt.Errorf("invalid query-timeout: %w", err)
	}

	cfg.ForceRefresh = input.ForceRefresh
	cfg.RetryAttempts = input.RetryAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	cfg.RetryFactor = input.RetryFactor
	if cfg.RetryFactor < 1.0 {
		cfg.RetryFactor = DefaultRetryFactor
	}
	cfg.ChainDepth = DefaultChainDepth

	cfg.CacheEnabled = !input.NoCache
	cfg.LocalCapacity = input.LocalCapacity
	if cfg.LocalCapacity <= 0 {
		cfg.LocalCapacity = DefaultLocalCapacity
	}
	cfg.CachePath = input.CachePath

	cfg.TTLSeconds = make(map[schema.DataClass]int, len(DefaultTTLSeconds))
	for class, secs := range DefaultTTLSeconds {
		cfg.TTLSeconds[class] = secs
	}
	for class, secs := range input.TTL {
		if secs <= 0 {
			return fmt.Errorf("ttl for class %q must be positive", class)
		}
		cfg.TTLSeconds[schema.DataClass(class)] = secs
	}

	out := schema.OutputMode(strings.ToLower(input.Output))
	if out == "" {
		out = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[out]; !ok {
		return fmt.Errorf("invalid output mode %q", input.Output)
	}
	cfg.Output = out
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	if cfg.Width < 0 {
		return fmt.Errorf("width must not be negative, got %d", cfg.Width)
	}
	cfg.UseColors = input.Color != "off"
	cfg.Verbose = input.Verbose

	return nil
}

// TTLFor resolves the TTL for a data class. Unknown classes fall back to the
// analysis TTL.
func (c *Config) TTLFor(class schema.DataClass) time.Duration {
	if secs, ok := c.TTLSeconds[class]; ok {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(DefaultTTLSeconds[schema.ClassAnalysis]) * time.Second
}

// DefaultCachePath returns the path of the embedded shared cache store.
func DefaultCachePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".lockwatch_cache.db"
	}
	return filepath.Join(homeDir, ".lockwatch_cache.db")
}

func parseDurationDefault(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}
