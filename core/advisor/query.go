package advisor

import (
	"fmt"
	"math"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// Query strategy thresholds.
const (
	chainWaitThreshold = 5 * time.Second
	unhealthyScore     = 50.0
)

// QueryStrategy targets long-waiting blocking chains: it cites the query at
// the head of each chain and, when the overall score is poor, adds one
// system-wide advisory.
type QueryStrategy struct{}

// NewQueryStrategy returns the built-in query strategy.
func NewQueryStrategy() *QueryStrategy { return &QueryStrategy{} }

func (s *QueryStrategy) Name() string { return "query" }

func (s *QueryStrategy) Priority() int { return 20 }

// Applicable reports true when any wait chain has accumulated more than
// chainWaitThreshold of wait.
func (s *QueryStrategy) Applicable(res *schema.AnalysisResult) bool {
	for _, chain := range res.WaitChains {
		if chain.TotalWaitTime > chainWaitThreshold {
			return true
		}
	}
	return false
}

// Generate emits one advisory per long-waiting chain plus a system-wide
// critical advisory when the health score is below unhealthyScore.
func (s *QueryStrategy) Generate(res *schema.AnalysisResult) ([]schema.OptimizationAdvice, error) {
	var advice []schema.OptimizationAdvice
	for _, chain := range res.WaitChains {
		if chain.TotalWaitTime <= chainWaitThreshold {
			continue
		}
		advice = append(advice, s.chainAdvice(chain))
	}

	if res.HealthScore < unhealthyScore {
		advice = append(advice, schema.OptimizationAdvice{
			Type:     "query",
			Priority: schema.PriorityCritical,
			Title:    "Lock health is degraded system-wide",
			Description: fmt.Sprintf(
				"Health score %.2f is below %.0f: blocking is no longer isolated to single objects. Review transaction scope and statement tuning across the busiest workloads before adding capacity.",
				res.HealthScore, unhealthyScore),
			ImpactScore: 90,
			ActionSteps: []string{
				"Enumerate the longest-running open transactions and their client applications.",
				"Shorten or split transactions that hold locks across user think-time.",
				"Re-run the analysis after each change to confirm the score recovers.",
			},
			Strategy: s.Name(),
		})
	}
	return advice, nil
}

// chainAdvice builds the per-chain advisory, citing the blocking query at the
// tail of the chain.
func (s *QueryStrategy) chainAdvice(chain schema.WaitChain) schema.OptimizationAdvice {
	blocker := chain.Nodes[len(chain.Nodes)-1]
	blockingQuery := blocker.Query
	if blockingQuery == "" {
		blockingQuery = "(query text not visible)"
	}

	priority := schema.PriorityMedium
	switch chain.Severity {
	case schema.SeverityCritical:
		priority = schema.PriorityCritical
	case schema.SeverityHigh:
		priority = schema.PriorityHigh
	}

	impact := math.Min(95, 40+chain.TotalWaitTime.Seconds()+float64(chain.Depth)*5)

	return schema.OptimizationAdvice{
		Type:     "query",
		Priority: priority,
		Title:    fmt.Sprintf("Blocking chain of %d session(s) waiting %s", chain.Depth, chain.TotalWaitTime.Round(10*time.Millisecond)),
		Description: fmt.Sprintf(
			"Session %d heads a blocking chain holding up %d waiter(s). Blocking query: %s",
			blocker.SessionID, chain.Depth-1, blockingQuery),
		ImpactScore: math.Round(impact*100) / 100,
		Scripts: []string{
			fmt.Sprintf("-- Inspect the blocking session before intervening\n"+
				"SELECT pid, state, query_start, query FROM pg_stat_activity WHERE pid = %d;", blocker.SessionID),
			fmt.Sprintf("-- Last resort: cancel the blocking statement\nSELECT pg_cancel_backend(%d);", blocker.SessionID),
		},
		ActionSteps: []string{
			"Confirm the blocking statement is safe to tune, cancel or reschedule.",
			"Look for a missing commit: idle-in-transaction sessions hold locks indefinitely.",
			"If the blocker is batch work, move it outside peak hours or chunk its updates.",
		},
		Strategy: s.Name(),
	}
}
