package core

import (
	"math"
	"time"

	"github.com/dbscope/lockwatch/schema"
)

// Sub-score weights. They sum to 1.0 so an all-healthy input scores exactly
// 100.
const (
	weightWaitTime   = 0.30
	weightContention = 0.25
	weightDeadlock   = 0.20
	weightChains     = 0.15
	weightTimeouts   = 0.10
)

// ScoreHealth computes the composite 0-100 lock health score from the
// analyzer outputs: a weighted sum of five clamped sub-scores, rounded to two
// decimals. Empty inputs yield exactly 100.0.
func ScoreHealth(contentions []schema.ContentionMetrics, summary schema.ChainSummary, stats schema.LockStatistics) float64 {
	score := weightWaitTime*waitTimeScore(meanContentionWait(contentions)) +
		weightContention*contentionScore(contentions) +
		weightDeadlock*deadlockScore(summary.DeadlockDetected, stats.DeadlockCount) +
		weightChains*chainScore(summary.BySeverity) +
		weightTimeouts*timeoutScore(stats.TimeoutCount)
	return math.Round(clamp(score)*100) / 100
}

// meanContentionWait is the wait-weighted mean over all contended requests.
func meanContentionWait(contentions []schema.ContentionMetrics) time.Duration {
	var total time.Duration
	var count int
	for _, c := range contentions {
		total += c.TotalWaitTime
		count += c.ContentionCount
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// waitTimeScore maps the mean contention wait piecewise onto 0-100:
// <100ms lands in 95-100, 100-500ms in 70-90, 500ms-2s in 50-70, 2-5s in
// 30-50 and beyond 5s in 0-30, interpolating linearly inside each band.
func waitTimeScore(mean time.Duration) float64 {
	ms := mean.Seconds() * 1000
	switch {
	case ms <= 0:
		return 100
	case ms < 100:
		return 100 - ms/100*5
	case ms < 500:
		return 90 - (ms-100)/400*20
	case ms < 2000:
		return 70 - (ms-500)/1500*20
	case ms < 5000:
		return 50 - (ms-2000)/3000*20
	default:
		return clamp(30 - (ms-5000)/5000*30)
	}
}

// contentionScore starts at 100 and subtracts tiered penalties per pattern:
// up to 40 for hot spots, 20 for bursts and 15 for frequent contention.
func contentionScore(contentions []schema.ContentionMetrics) float64 {
	var hot, burst, frequent int
	for _, c := range contentions {
		switch c.Pattern {
		case schema.PatternHotSpot:
			hot++
		case schema.PatternBurst:
			burst++
		case schema.PatternFrequent:
			frequent++
		}
	}

	penalty := 0.0
	switch {
	case hot >= 3:
		penalty += 40
	case hot == 2:
		penalty += 30
	case hot == 1:
		penalty += 20
	}
	switch {
	case burst >= 2:
		penalty += 20
	case burst == 1:
		penalty += 10
	}
	switch {
	case frequent >= 6:
		penalty += 15
	case frequent >= 3:
		penalty += 10
	case frequent >= 1:
		penalty += 5
	}
	return clamp(100 - penalty)
}

// deadlockScore forces 20 while a cycle is open; otherwise it tiers on the
// historical deadlock count.
func deadlockScore(openCycle bool, historical int64) float64 {
	if openCycle {
		return 20
	}
	switch {
	case historical == 0:
		return 100
	case historical <= 2:
		return 80
	case historical <= 5:
		return 60
	case historical <= 10:
		return 40
	default:
		return 20
	}
}

// chainScore tiers penalties on counts of critical, high and medium chains.
func chainScore(bySeverity map[schema.Severity]int) float64 {
	penalty := 0.0
	switch crit := bySeverity[schema.SeverityCritical]; {
	case crit >= 3:
		penalty += 60
	case crit == 2:
		penalty += 40
	case crit == 1:
		penalty += 25
	}
	switch high := bySeverity[schema.SeverityHigh]; {
	case high >= 3:
		penalty += 25
	case high == 2:
		penalty += 15
	case high == 1:
		penalty += 10
	}
	if med := bySeverity[schema.SeverityMedium]; med > 0 {
		penalty += math.Min(float64(med)*3, 15)
	}
	return clamp(100 - penalty)
}

// timeoutScore tiers on the lock wait timeout counter.
func timeoutScore(timeouts int64) float64 {
	switch {
	case timeouts == 0:
		return 100
	case timeouts <= 5:
		return 80
	case timeouts <= 20:
		return 60
	case timeouts <= 50:
		return 40
	default:
		return 20
	}
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
