package cmd

import (
	"github.com/spf13/cobra"
)

// realtimeCmd prints the compact current-blocking status.
var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Show current lock and blocking counts without full analysis.",
	Long: `Collect only current locks and blocking chains and print raw counts.

This path skips statistics collection, scoring and advice generation, so it
is cheap enough to run on a tight loop or from a dashboard. Results are
cached briefly to bound the load of aggressive polling.

Examples:
  # Quick blocking check
  lockwatch realtime --engine postgres --db-id 1

  # Machine-readable status for a dashboard
  lockwatch realtime --engine mysql --db-id 2 --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		status, err := eng.AnalyzeRealtime(rootCtx)
		if err != nil {
			return err
		}
		return reporter.WriteRealtime(status, cfg)
	},
}
