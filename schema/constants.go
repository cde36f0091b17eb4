package schema

// Custom string types for type safety.
type (
	// Severity classifies how bad a wait chain is.
	Severity string

	// ContentionPattern classifies the access pattern behind an object's contention.
	ContentionPattern string

	// Priority ranks optimization advice.
	Priority string

	// DataClass selects a cache TTL bucket.
	DataClass string

	// EngineKind names a supported database engine.
	EngineKind string

	// OutputMode represents the format of CLI output.
	OutputMode string
)

// All chain severities, worst first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// All contention patterns. Classification is first match wins in this order.
const (
	PatternHotSpot      ContentionPattern = "hot_spot"      // count>10 and avg wait>1s
	PatternBurst        ContentionPattern = "burst"         // count>20
	PatternTimeoutProne ContentionPattern = "timeout_prone" // max wait>20s
	PatternFrequent     ContentionPattern = "frequent"      // count>5
	PatternNormal       ContentionPattern = "normal"
)

// All advice priorities, highest rank first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// All cache data classes with distinct TTL defaults.
const (
	ClassRealtime   DataClass = "realtime"   // 10s
	ClassAnalysis   DataClass = "analysis"   // 5m
	ClassHistorical DataClass = "historical" // 1h
	ClassStatistics DataClass = "statistics" // 30m
)

// All supported engines. Registry lookup is by lowercase string.
const (
	PostgresEngine EngineKind = "postgres"
	MySQLEngine    EngineKind = "mysql"
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	JSONOut: {},
}

// severityRanks orders severities for sorting; lower is worse.
var severityRanks = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// priorityRanks orders priorities for sorting; lower is worse.
var priorityRanks = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}
