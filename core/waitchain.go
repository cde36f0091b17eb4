package core

import (
	"fmt"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// longWaitThreshold marks chains whose accumulated wait is long enough to
// call out in the summary.
const longWaitThreshold = 10 * time.Second

// SummarizeChains aggregates wait chains into severity tallies, length/wait
// statistics, a deadlock flag and a rule-based narrative with remediation
// hints.
func SummarizeChains(chains []schema.WaitChain) schema.ChainSummary {
	summary := schema.ChainSummary{
		TotalChains: len(chains),
		BySeverity:  map[schema.Severity]int{},
	}
	if len(chains) == 0 {
		summary.Narrative = "No blocking chains observed."
		return summary
	}

	var totalLen int
	var totalWait time.Duration
	for _, chain := range chains {
		summary.BySeverity[chain.Severity]++
		totalLen += chain.Depth
		totalWait += chain.TotalWaitTime
		summary.MaxChainLength = max(summary.MaxChainLength, chain.Depth)
		summary.MaxWaitTime = max(summary.MaxWaitTime, chain.TotalWaitTime)
		if chain.IsCycle {
			summary.DeadlockDetected = true
		}
		if chain.TotalWaitTime >= longWaitThreshold {
			summary.LongWaitChains++
		}
	}
	summary.AvgChainLength = float64(totalLen) / float64(len(chains))
	summary.AvgWaitTime = totalWait / time.Duration(len(chains))

	summary.Narrative = chainNarrative(&summary)
	summary.Hints = chainHints(&summary)
	return summary
}

// chainNarrative renders the severity picture as one sentence, worst finding
// first.
func chainNarrative(s *schema.ChainSummary) string {
	switch {
	case s.DeadlockDetected:
		return fmt.Sprintf(
			"Deadlock detected: %d blocking chain(s) include a cycle of mutually waiting sessions; the database will abort a victim transaction.",
			s.BySeverity[schema.SeverityCritical])
	case s.BySeverity[schema.SeverityCritical] > 0:
		return fmt.Sprintf(
			"%d critical blocking chain(s) found, the longest spanning %d sessions with waits up to %s.",
			s.BySeverity[schema.SeverityCritical], s.MaxChainLength, s.MaxWaitTime.Round(time.Millisecond))
	case s.BySeverity[schema.SeverityHigh] > 0:
		return fmt.Sprintf(
			"%d high-severity blocking chain(s) found; sessions are queueing behind long-running work.",
			s.BySeverity[schema.SeverityHigh])
	case s.LongWaitChains > 0:
		return fmt.Sprintf("%d chain(s) have waited %s or longer.", s.LongWaitChains, longWaitThreshold)
	default:
		return fmt.Sprintf("%d minor blocking chain(s) observed; lock waits are short-lived.", s.TotalChains)
	}
}

// chainHints proposes remediation directions matching the observed shape.
func chainHints(s *schema.ChainSummary) []string {
	var hints []string
	if s.DeadlockDetected {
		hints = append(hints,
			"Align the order in which transactions touch shared tables so cycles cannot form.",
			"Keep transactions short and commit as early as possible.")
	}
	if s.MaxChainLength >= 3 {
		hints = append(hints,
			"Identify the head blocker of the longest chain; terminating or tuning it releases every waiter behind it.")
	}
	if s.LongWaitChains > 0 {
		hints = append(hints,
			"Set a lock wait timeout so stuck sessions fail fast instead of queueing indefinitely.")
	}
	if s.BySeverity[schema.SeverityMedium]+s.BySeverity[schema.SeverityLow] == s.TotalChains && s.TotalChains > 0 {
		hints = append(hints,
			"Current blocking is mild; monitor for growth before intervening.")
	}
	return hints
}
