package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dbscope/lockwatch/core"
	"github.com/dbscope/lockwatch/core/advisor"
	"github.com/dbscope/lockwatch/internal/collector"
	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/internal/lockcache"
	"github.com/dbscope/lockwatch/internal/report"
	"github.com/dbscope/lockwatch/schema"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by release infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env,
// flags). Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// log is the shared logger; verbosity is configured in sharedSetup.
var log = logrus.New()

// reporter renders all command output.
var reporter = report.NewReporter()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "lockwatch",
	Short:              "Diagnose lock contention and blocking chains in live databases.",
	Long:               `Lockwatch inspects a running PostgreSQL or MySQL database and reports lock contention, blocking chains, deadlocks and ranked remediation advice.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".lockwatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	// Set environment variable prefix, so LOCKWATCH_DSN supplies credentials
	// without putting them on the command line.
	viper.SetEnvPrefix("LOCKWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Set defaults in Viper
	viper.SetDefault("lookback", "1h")
	viper.SetDefault("retry-attempts", contract.DefaultRetryAttempts)
	viper.SetDefault("retry-delay", "200ms")
	viper.SetDefault("retry-factor", contract.DefaultRetryFactor)
	viper.SetDefault("query-timeout", "10s")
	viper.SetDefault("cache-capacity", contract.DefaultLocalCapacity)
	viper.SetDefault("cache-path", contract.DefaultCachePath())
	viper.SetDefault("output", string(schema.TextOut))
	viper.SetDefault("color", "on")
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(_ *cobra.Command, _ []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing. This populates the global
	// 'cfg' from 'input'.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	// 4. Configure the shared logger and color handling.
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	color.NoColor = !cfg.UseColors

	return nil
}

// newEngine builds the full diagnostic stack from the validated config: the
// engine-specific collector, the two-tier cache and the strategy registry.
func newEngine() (*core.Engine, error) {
	col, err := collector.New(cfg.Engine, cfg.DatabaseID, cfg.DSN, cfg, log)
	if err != nil {
		return nil, err
	}

	var cache *lockcache.Manager
	if cfg.CacheEnabled {
		var backend contract.CacheBackend
		if cfg.CachePath != "" {
			store, serr := lockcache.NewSQLiteStore(cfg.CachePath)
			if serr != nil {
				// The shared tier is an optimization; run local-only rather
				// than refusing to analyze.
				log.WithError(serr).Warn("shared cache unavailable, using local tier only")
			} else {
				backend = store
			}
		}
		cache = lockcache.NewManager(lockcache.NewLocal(cfg.LocalCapacity), backend, cfg.TTLFor, log)
	}

	return core.NewEngine(col, cache, advisor.DefaultRegistry(), log), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
