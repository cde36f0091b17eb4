package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printRealtime dispatches a realtime status on the configured output format.
func printRealtime(status *schema.RealtimeStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		})
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRealtimeText(status, w)
		})
	}
}

// writeRealtimeText renders the compact status as one headline plus a counts
// table.
func writeRealtimeText(status *schema.RealtimeStatus, w io.Writer) error {
	headline := healthyColor.Sprint("OK")
	if status.DeadlockSuspected {
		headline = criticalColor.Sprint("DEADLOCK SUSPECTED")
	} else if !status.Healthy {
		headline = strainedColor.Sprint("BLOCKED")
	}
	if _, err := fmt.Fprintf(w, "Database %d realtime status: %s (captured %s)\n",
		status.DatabaseID, headline, status.CapturedAt.Format("15:04:05")); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Active Locks", "Waiting", "Chains", "Critical Chains"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk([][]string{{
		strconv.Itoa(status.ActiveLocks),
		strconv.Itoa(status.WaitingLocks),
		strconv.Itoa(status.WaitChains),
		strconv.Itoa(status.CriticalChains),
	}}); err != nil {
		return err
	}
	return table.Render()
}
