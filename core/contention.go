package core

import (
	"sort"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// Contention pattern thresholds, first match wins in declaration order.
const (
	hotSpotCount   = 10
	hotSpotAvgWait = time.Second
	burstCount     = 20
	timeoutMaxWait = 20 * time.Second
	frequentCount  = 5
)

// AnalyzeContention folds a cycle's lock snapshots into per-object contention
// metrics: filter to ungranted, group by object, drop groups with no
// measurable wait, aggregate, classify and sort worst first. It is a pure
// function; identical input yields identical output.
func AnalyzeContention(snapshots []schema.LockSnapshot) []schema.ContentionMetrics {
	type group struct {
		count    int
		total    time.Duration
		max      time.Duration
		sessions map[int64]struct{}
		modes    map[string]int
	}
	groups := make(map[string]*group)

	for _, snap := range snapshots {
		if snap.Granted {
			continue
		}
		g, ok := groups[snap.ObjectName]
		if !ok {
			g = &group{sessions: map[int64]struct{}{}, modes: map[string]int{}}
			groups[snap.ObjectName] = g
		}
		g.count++
		g.total += snap.WaitDuration
		g.max = max(g.max, snap.WaitDuration)
		g.sessions[snap.SessionID] = struct{}{}
		g.modes[snap.LockMode]++
	}

	metrics := make([]schema.ContentionMetrics, 0, len(groups))
	for object, g := range groups {
		// Groups with zero measurable wait never materialize.
		if g.total <= 0 {
			continue
		}
		avg := g.total / time.Duration(g.count)
		metrics = append(metrics, schema.ContentionMetrics{
			ObjectName:      object,
			ContentionCount: g.count,
			TotalWaitTime:   g.total,
			AvgWaitTime:     avg,
			MaxWaitTime:     g.max,
			SessionCount:    len(g.sessions),
			LockModes:       g.modes,
			Pattern:         classifyPattern(g.count, avg, g.max),
		})
	}

	// Worst offender first; downstream advisors depend on index 0 being the
	// hottest object. Name breaks ties so output stays deterministic.
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].TotalWaitTime != metrics[j].TotalWaitTime {
			return metrics[i].TotalWaitTime > metrics[j].TotalWaitTime
		}
		return metrics[i].ObjectName < metrics[j].ObjectName
	})
	return metrics
}

// classifyPattern applies the first-match-wins pattern rubric.
func classifyPattern(count int, avg, maxWait time.Duration) schema.ContentionPattern {
	switch {
	case count > hotSpotCount && avg > hotSpotAvgWait:
		return schema.PatternHotSpot
	case count > burstCount:
		return schema.PatternBurst
	case maxWait > timeoutMaxWait:
		return schema.PatternTimeoutProne
	case count > frequentCount:
		return schema.PatternFrequent
	default:
		return schema.PatternNormal
	}
}
