package advisor

import (
	"fmt"
	"math"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// maxIndexTargets caps how many contended objects get individual advisories.
const maxIndexTargets = 3

// IndexStrategy proposes index work for objects whose contention pattern
// suggests sessions are fighting over scans or overly wide lock footprints.
// All scripts are guidance; nothing is applied automatically.
type IndexStrategy struct{}

// NewIndexStrategy returns the built-in index strategy.
func NewIndexStrategy() *IndexStrategy { return &IndexStrategy{} }

func (s *IndexStrategy) Name() string { return "index" }

func (s *IndexStrategy) Priority() int { return 10 }

// Applicable reports true when any contention is a hot spot or frequent.
func (s *IndexStrategy) Applicable(res *schema.AnalysisResult) bool {
	for _, c := range res.Contentions {
		if c.Pattern == schema.PatternHotSpot || c.Pattern == schema.PatternFrequent {
			return true
		}
	}
	return false
}

// Generate emits up to maxIndexTargets per-object advisories. Contentions
// arrive sorted worst first, so the cap keeps the hottest objects.
func (s *IndexStrategy) Generate(res *schema.AnalysisResult) ([]schema.OptimizationAdvice, error) {
	var advice []schema.OptimizationAdvice
	for _, c := range res.Contentions {
		if len(advice) == maxIndexTargets {
			break
		}
		if c.Pattern != schema.PatternHotSpot && c.Pattern != schema.PatternFrequent {
			continue
		}

		priority := schema.PriorityMedium
		impact := 35.0
		if c.Pattern == schema.PatternHotSpot {
			priority = schema.PriorityHigh
			impact = 55.0
		}
		impact = math.Min(95, impact+float64(c.ContentionCount)+c.AvgWaitTime.Seconds()*2)

		advice = append(advice, schema.OptimizationAdvice{
			Type:         "index",
			Priority:     priority,
			Title:        fmt.Sprintf("Reduce lock contention on %s", c.ObjectName),
			Description: fmt.Sprintf(
				"%d lock waits queued on %s (pattern %s, average wait %s). Narrower access paths shrink the lock footprint and shorten each wait.",
				c.ContentionCount, c.ObjectName, c.Pattern, c.AvgWaitTime.Round(10*time.Millisecond)),
			TargetObject: c.ObjectName,
			ImpactScore:  math.Round(impact*100) / 100,
			Scripts: []string{
				fmt.Sprintf("-- Diagnose which statements wait on %s\n"+
					"SELECT query, wait_event_type, wait_event, state\n"+
					"FROM pg_stat_activity\n"+
					"WHERE wait_event_type = 'Lock' AND query ILIKE '%%%s%%';", c.ObjectName, c.ObjectName),
				fmt.Sprintf("-- Candidate index; replace the column list with the contended predicate\n"+
					"CREATE INDEX CONCURRENTLY idx_%s_contention ON %s (/* column_list */);", c.ObjectName, c.ObjectName),
			},
			ActionSteps: []string{
				fmt.Sprintf("Capture the statements most often blocked on %s.", c.ObjectName),
				"Check whether they scan more rows than they return; missing indexes widen lock footprints.",
				"Create the candidate index during a low-traffic window and re-measure contention.",
			},
			Strategy: s.Name(),
		})
	}
	return advice, nil
}
