package schema

import "time"

// Chain severity thresholds. A cycle is always critical regardless of length
// or wait time.
const (
	criticalChainLen  = 5
	criticalChainWait = 30 * time.Second
	highChainLen      = 3
	highChainWait     = 15 * time.Second
	mediumChainLen    = 2
	mediumChainWait   = 5 * time.Second
)

// ChainSeverity derives the severity of a wait chain from its depth, total
// wait time and cycle flag. It is assigned once when the chain is built.
func ChainSeverity(depth int, totalWait time.Duration, isCycle bool) Severity {
	switch {
	case isCycle:
		return SeverityCritical
	case depth >= criticalChainLen || totalWait >= criticalChainWait:
		return SeverityCritical
	case depth >= highChainLen || totalWait >= highChainWait:
		return SeverityHigh
	case depth >= mediumChainLen || totalWait >= mediumChainWait:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityRank returns the sort rank of a severity; lower is worse. Unknown
// severities sort last.
func SeverityRank(s Severity) int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return len(severityRanks)
}

// PriorityRank returns the sort rank of a priority; lower is worse. Unknown
// priorities sort last.
func PriorityRank(p Priority) int {
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return len(priorityRanks)
}

// WaitSince derives a wait duration from a wait start timestamp. A zero start
// yields zero, so granted locks never report phantom waits.
func WaitSince(waitStart, now time.Time) time.Duration {
	if waitStart.IsZero() || now.Before(waitStart) {
		return 0
	}
	return now.Sub(waitStart)
}

// NewWaitChain assembles a chain from nodes, deriving depth, total wait,
// cycle flag and severity. The cycle check looks for a repeated session id
// anywhere in the path.
func NewWaitChain(nodes []WaitNode) WaitChain {
	var total time.Duration
	seen := make(map[int64]struct{}, len(nodes))
	cycle := false
	for _, n := range nodes {
		total += n.WaitTime
		if _, dup := seen[n.SessionID]; dup {
			cycle = true
		}
		seen[n.SessionID] = struct{}{}
	}
	return WaitChain{
		Nodes:         nodes,
		Depth:         len(nodes),
		TotalWaitTime: total,
		IsCycle:       cycle,
		Severity:      ChainSeverity(len(nodes), total, cycle),
	}
}
