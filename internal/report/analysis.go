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

// printAnalysis dispatches a full analysis result on the configured output
// format.
func printAnalysis(res *schema.AnalysisResult, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, res)
		})
	default:
		queryWidth := maxQueryColWidth(cfg)
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisText(res, w, queryWidth)
		})
	}
}

// writeAnalysisText renders the human-readable report: a header block, the
// chain summary, then contention and advice tables.
func writeAnalysisText(res *schema.AnalysisResult, w io.Writer, queryWidth int) error {
	source := "live"
	if res.FromCache {
		source = "cache"
	}
	if _, err := fmt.Fprintf(w, "Database %d lock health: %.2f (%s)\n",
		res.DatabaseID, res.HealthScore, colorHealthLabel(res.HealthScore)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Report %s generated at %s from %s in %v\n",
		res.ID, res.GeneratedAt.Format("2006-01-02 15:04:05"), source, res.Elapsed); err != nil {
		return err
	}
	if len(res.Degraded) > 0 {
		if _, err := fmt.Fprintf(w, "Partial data: %v failed and were substituted with empty values\n", res.Degraded); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", res.Chains.Narrative); err != nil {
		return err
	}
	for _, hint := range res.Chains.Hints {
		if _, err := fmt.Fprintf(w, "  - %s\n", hint); err != nil {
			return err
		}
	}

	if err := writeChainsTable(res.WaitChains, w, queryWidth); err != nil {
		return err
	}
	if err := writeContentionTable(res.Contentions, w); err != nil {
		return err
	}
	return writeAdviceSection(res.Advice, w)
}

// writeChainsTable renders one row per wait chain.
func writeChainsTable(chains []schema.WaitChain, w io.Writer, queryWidth int) error {
	if len(chains) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nBlocking chains (%d):\n", len(chains)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Severity", "Sessions", "Total Wait", "Cycle", "Head Blocker Query"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, chain := range chains {
		blocker := chain.Nodes[len(chain.Nodes)-1]
		cycle := ""
		if chain.IsCycle {
			cycle = "deadlock"
		}
		data = append(data, []string{
			colorSeverity(chain.Severity),
			strconv.Itoa(chain.Depth),
			fmtDuration(chain.TotalWaitTime),
			cycle,
			truncate(blocker.Query, queryWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeContentionTable renders one row per contended object, worst first.
func writeContentionTable(contentions []schema.ContentionMetrics, w io.Writer) error {
	if len(contentions) == 0 {
		if _, err := fmt.Fprintln(w, "\nNo lock contention measured this cycle."); err != nil {
			return err
		}
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nContended objects (%d):\n", len(contentions)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Object", "Pattern", "Waits", "Sessions", "Total Wait", "Avg Wait", "Max Wait"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, c := range contentions {
		data = append(data, []string{
			c.ObjectName,
			string(c.Pattern),
			strconv.Itoa(c.ContentionCount),
			strconv.Itoa(c.SessionCount),
			fmtDuration(c.TotalWaitTime),
			fmtDuration(c.AvgWaitTime),
			fmtDuration(c.MaxWaitTime),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeAdviceSection renders the ranked advice list with scripts and action
// steps under each entry.
func writeAdviceSection(advice []schema.OptimizationAdvice, w io.Writer) error {
	if len(advice) == 0 {
		if _, err := fmt.Fprintln(w, "\nNo optimization advice; nothing to remediate."); err != nil {
			return err
		}
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nOptimization advice (%d):\n", len(advice)); err != nil {
		return err
	}
	for i, adv := range advice {
		if _, err := fmt.Fprintf(w, "\n%d. [%s] %s (impact %.0f)\n", i+1, colorPriority(adv.Priority), adv.Title, adv.ImpactScore); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "   %s\n", adv.Description); err != nil {
			return err
		}
		for _, step := range adv.ActionSteps {
			if _, err := fmt.Fprintf(w, "   - %s\n", step); err != nil {
				return err
			}
		}
		for _, script := range adv.Scripts {
			if _, err := fmt.Fprintf(w, "\n%s\n", script); err != nil {
				return err
			}
		}
	}
	return nil
}
