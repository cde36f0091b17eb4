package cmd

import (
	"github.com/spf13/cobra"
)

// analyzeCmd performs the full diagnostic cycle against one database.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full lock contention analysis and print ranked advice.",
	Long: `Run the comprehensive diagnostic cycle against the configured database.

Collects current locks, blocking chains and historical lock statistics in
parallel, then reports:
- A 0-100 lock health score with a plain-language label
- Blocking chains with severity, deadlock cycles flagged
- Per-object contention metrics classified by access pattern
- Ranked optimization advice with diagnostic scripts

Results are cached; repeated runs inside the TTL window are served from cache
unless --force-refresh is set.

Examples:
  # Analyze a Postgres database (credentials via environment)
  LOCKWATCH_DSN="host=db1 user=monitor dbname=app" lockwatch analyze --engine postgres --db-id 1

  # Bypass the cache after making a change
  lockwatch analyze --engine postgres --db-id 1 --force-refresh

  # Widen the statistics window and export JSON
  lockwatch analyze --engine mysql --db-id 2 --lookback 24h --output json --output-file report.json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		res, err := eng.AnalyzeComprehensive(rootCtx, cfg.ForceRefresh, cfg.Lookback)
		if err != nil {
			return err
		}
		return reporter.WriteAnalysis(res, cfg)
	},
}
