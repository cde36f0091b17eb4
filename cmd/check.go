package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd verifies connectivity for monitoring probes.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database connection (non-zero exit on failure).",
	Long: `Run one cheap round-trip query against the configured database.

Exits non-zero when the database is unreachable, which makes it suitable as a
liveness probe or a pre-flight step in scheduled analysis jobs.

Examples:
  # Probe before a scheduled analysis
  lockwatch check --engine postgres --db-id 1 && lockwatch analyze --engine postgres --db-id 1`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		if err := eng.HealthCheck(rootCtx); err != nil {
			return fmt.Errorf("database %d unreachable: %w", cfg.DatabaseID, err)
		}
		cmd.Printf("Database %d reachable\n", cfg.DatabaseID)
		return nil
	},
}
