// Package cmd defines the command-line interface for lockwatch.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dbscope/lockwatch/internal/collector"
	"github.com/dbscope/lockwatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(realtimeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("engine", "e", "", fmt.Sprintf("Database engine: %s", strings.Join(collector.Supported(), " or ")))
	rootCmd.PersistentFlags().String("dsn", "", "Database connection string (prefer the LOCKWATCH_DSN environment variable)")
	rootCmd.PersistentFlags().Int64("db-id", 0, "Inventory identifier of the monitored database")
	rootCmd.PersistentFlags().String("lookback", "1h", "Statistics lookback window (e.g. 30m, 24h)")
	rootCmd.PersistentFlags().Bool("force-refresh", false, "Bypass the cache and collect fresh data")
	rootCmd.PersistentFlags().Int("retry-attempts", 0, "Retry attempts for transient collection failures (0 = default)")
	rootCmd.PersistentFlags().String("retry-delay", "", "Initial retry delay (e.g. 200ms)")
	rootCmd.PersistentFlags().Float64("retry-factor", 0, "Exponential backoff multiplier between retries")
	rootCmd.PersistentFlags().String("query-timeout", "", "Per-query timeout (e.g. 10s)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable all caching for this run")
	rootCmd.PersistentFlags().Int("cache-capacity", 0, "Local cache entry capacity (0 = default)")
	rootCmd.PersistentFlags().String("cache-path", "", "Path of the shared cache store (empty disables the shared tier)")
	rootCmd.PersistentFlags().StringP("output", "o", string(schema.TextOut), "Output format: text or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().IntP("width", "w", 0, "Override table width in columns (0 = detect terminal size)")
	rootCmd.PersistentFlags().String("color", "on", "Colored output: on or off")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding root flags: %v\n", err)
		os.Exit(1)
	}

	// Bind all flags of cacheClearCmd to Viper
	cacheClearCmd.Flags().String("pattern", "*", "Glob pattern selecting cache keys to remove")
	if err := viper.BindPFlags(cacheClearCmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding cache clear flags: %v\n", err)
		os.Exit(1)
	}
}
