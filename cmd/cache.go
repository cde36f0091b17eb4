package cmd

import (
	"fmt"

	"github.com/dbscope/lockwatch/internal/lockcache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheSetup loads the minimal configuration needed for cache operations.
// Cache commands operate on the shared store only, so they skip DSN and
// engine validation entirely.
func cacheSetup(_ *cobra.Command, _ []string) error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if viper.GetString("cache-path") == "" {
		return fmt.Errorf("cache-path is empty; the shared cache tier is disabled")
	}
	return nil
}

// openStore opens the shared cache store from the resolved cache-path.
func openStore() (*lockcache.SQLiteStore, error) {
	return lockcache.NewSQLiteStore(viper.GetString("cache-path"))
}

// cacheCmd groups cache management subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared analysis cache.",
	Long: `Manage the shared cache that bounds repeated analysis cost.

Lockwatch caches analysis results in a local embedded store so that repeated
runs within a TTL window do not re-query the monitored database. The store is
shared between processes on the same host.

Subcommands:
  status  Show entry counts for the shared store
  clear   Remove cached entries, optionally by key pattern`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// cacheStatusCmd reports entry counts for the shared store.
var cacheStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show entry counts for the shared cache store.",
	Args:    cobra.NoArgs,
	PreRunE: cacheSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stats, err := store.Stats(rootCtx)
		if err != nil {
			return err
		}
		cmd.Printf("Cache store: %s\n", viper.GetString("cache-path"))
		cmd.Printf("  Entries: %d total, %d live\n", stats.TotalEntries, stats.LiveEntries)
		return nil
	},
}

// cacheClearCmd removes cached entries matching a glob pattern.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries, optionally by key pattern.",
	Long: `Remove entries from the shared cache store.

By default every entry is removed. A glob pattern narrows the removal, e.g.
'lock_analysis:5:*' clears only database 5 without touching other databases.

Examples:
  # Clear everything
  lockwatch cache clear

  # Clear one database's entries only
  lockwatch cache clear --pattern "lock_analysis:5:*"`,
	Args:    cobra.NoArgs,
	PreRunE: cacheSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		removed, err := store.DeleteByPattern(rootCtx, viper.GetString("pattern"))
		if err != nil {
			return err
		}
		cmd.Printf("Removed %d cache entries\n", removed)
		return nil
	},
}
