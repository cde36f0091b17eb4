// Package schema has models, constants and derivation helpers for all parts of lockwatch.
package schema

import "time"

// LockSnapshot represents a single lock or lock-wait event observed in the
// target database at capture time. Snapshots are produced fresh on every
// collection cycle and are never persisted; they only exist long enough to be
// folded into contention metrics and wait chains.
type LockSnapshot struct {
	DatabaseID   int64         `json:"database_id"`             // Inventory identifier of the monitored database
	SessionID    int64         `json:"session_id"`              // Backend PID (Postgres) or thread/processlist id (MySQL)
	LockType     string        `json:"lock_type"`               // e.g. relation, tuple, transactionid, RECORD, TABLE
	LockMode     string        `json:"lock_mode"`               // e.g. AccessExclusiveLock, X, S
	ObjectName   string        `json:"object_name"`             // Target relation or index name, best effort
	Granted      bool          `json:"granted"`                 // False while the session is still waiting
	Query        string        `json:"query,omitempty"`         // Current query text of the session, when visible
	WaitStart    time.Time     `json:"wait_start,omitempty"`    // When the session started waiting; zero when granted
	WaitDuration time.Duration `json:"wait_duration,omitempty"` // Derived: capture time minus WaitStart for ungranted locks
	CapturedAt   time.Time     `json:"captured_at"`             // Capture timestamp for the whole snapshot
}

// WaitNode is one session within a wait chain. The node at index i is blocked
// by the node at index i+1.
type WaitNode struct {
	SessionID int64         `json:"session_id"`
	LockType  string        `json:"lock_type,omitempty"`
	LockMode  string        `json:"lock_mode,omitempty"`
	Query     string        `json:"query,omitempty"`
	WaitTime  time.Duration `json:"wait_time,omitempty"`
}

// WaitChain is an ordered path of sessions where each session blocks on the
// next. A repeated session id in the path marks a cycle, which is the
// signature of a deadlock.
type WaitChain struct {
	Nodes         []WaitNode    `json:"nodes"`
	Depth         int           `json:"depth"`           // len(Nodes)
	TotalWaitTime time.Duration `json:"total_wait_time"` // Sum of per-node wait times
	IsCycle       bool          `json:"is_cycle"`
	Severity      Severity      `json:"severity"` // Assigned once when the chain is built
}

// ContentionMetrics aggregates the ungranted lock snapshots of one contended
// object for a single collection cycle. Empty groups never materialize, so
// ContentionCount is always positive.
type ContentionMetrics struct {
	ObjectName      string             `json:"object_name"`
	ContentionCount int                `json:"contention_count"`
	TotalWaitTime   time.Duration      `json:"total_wait_time"`
	AvgWaitTime     time.Duration      `json:"avg_wait_time"` // TotalWaitTime / ContentionCount
	MaxWaitTime     time.Duration      `json:"max_wait_time"`
	SessionCount    int                `json:"session_count"` // Distinct waiting sessions
	LockModes       map[string]int     `json:"lock_modes"`    // Requested mode histogram
	Pattern         ContentionPattern  `json:"pattern"`
}

// LockStatistics holds cycle-level lock counters for a lookback window.
// Collection is best effort; individual fields degrade to zero when the
// underlying catalog view is unavailable.
type LockStatistics struct {
	TotalLocks    int            `json:"total_locks"`
	GrantedLocks  int            `json:"granted_locks"`
	WaitingLocks  int            `json:"waiting_locks"`
	DeadlockCount int64          `json:"deadlock_count"` // Historical deadlocks over the lookback window
	TimeoutCount  int64          `json:"timeout_count"`  // Lock wait timeouts / cancels over the window
	TotalWaitTime time.Duration  `json:"total_wait_time"`
	LocksByType   map[string]int `json:"locks_by_type"`
	Lookback      time.Duration  `json:"lookback"`
	CollectedAt   time.Time      `json:"collected_at"`
}

// ChainSummary is the WaitChainAnalyzer output: severity tallies plus a
// rule-based narrative and remediation hints.
type ChainSummary struct {
	TotalChains      int              `json:"total_chains"`
	BySeverity       map[Severity]int `json:"by_severity"`
	AvgChainLength   float64          `json:"avg_chain_length"`
	MaxChainLength   int              `json:"max_chain_length"`
	AvgWaitTime      time.Duration    `json:"avg_wait_time"`
	MaxWaitTime      time.Duration    `json:"max_wait_time"`
	DeadlockDetected bool             `json:"deadlock_detected"` // Any chain with IsCycle
	LongWaitChains   int              `json:"long_wait_chains"`  // Chains waiting 10s or more
	Narrative        string           `json:"narrative"`
	Hints            []string         `json:"hints,omitempty"`
}

// OptimizationAdvice is a single ranked remediation recommendation produced
// by exactly one strategy. Advice is never mutated after creation and scripts
// are guidance only; nothing is auto-applied.
type OptimizationAdvice struct {
	Type         string   `json:"type"`     // e.g. "index", "query"
	Priority     Priority `json:"priority"` // Sort key, critical first
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	TargetObject string   `json:"target_object,omitempty"`
	ImpactScore  float64  `json:"impact_score"` // 0-100, secondary sort key
	Scripts      []string `json:"scripts,omitempty"`
	ActionSteps  []string `json:"action_steps,omitempty"`
	Strategy     string   `json:"strategy"` // Name of the generating strategy
}

// AnalysisResult is the aggregate root produced exactly once per
// orchestration call. It is immutable after assembly; the cache holds an
// independent serialized copy.
type AnalysisResult struct {
	ID          string              `json:"id"` // Unique report id
	DatabaseID  int64               `json:"database_id"`
	HealthScore float64             `json:"health_score"` // 0-100, rounded to 2 decimals
	WaitChains  []WaitChain         `json:"wait_chains"`
	Chains      ChainSummary        `json:"chain_summary"`
	Contentions []ContentionMetrics `json:"contentions"` // Sorted by total wait time, worst first
	Statistics  LockStatistics      `json:"statistics"`
	Advice      []OptimizationAdvice `json:"advice"`
	Degraded    []string            `json:"degraded,omitempty"` // Sub-collections that failed and were zero-substituted
	GeneratedAt time.Time           `json:"generated_at"`
	Elapsed     time.Duration       `json:"elapsed"`
	FromCache   bool                `json:"from_cache,omitempty"`
}

// RealtimeStatus is the compact output of the cheap realtime path: raw counts
// and a coarse health flag, with no scoring or advisory pipeline behind it.
type RealtimeStatus struct {
	DatabaseID        int64     `json:"database_id"`
	ActiveLocks       int       `json:"active_locks"`
	WaitingLocks      int       `json:"waiting_locks"`
	WaitChains        int       `json:"wait_chains"`
	CriticalChains    int       `json:"critical_chains"`
	DeadlockSuspected bool      `json:"deadlock_suspected"`
	Healthy           bool      `json:"healthy"`
	CapturedAt        time.Time `json:"captured_at"`
}
