package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dbscope/lockwatch/core/advisor"
	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/internal/lockcache"
	"github.com/dbscope/lockwatch/schema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State tracks where an orchestration currently is. Failed is only entered
// on unrecoverable conditions; every soft failure degrades instead.
type State string

// Orchestration states.
const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateAnalyzing  State = "analyzing"
	StateAdvising   State = "advising"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Engine orchestrates one monitored database: it owns a collector, an
// optional cache manager and the strategy registry. Engines are safe for
// concurrent use; concurrent calls for the same cache key collapse into one
// collection.
type Engine struct {
	collector  contract.Collector
	cache      *lockcache.Manager // nil disables caching entirely
	strategies *advisor.Registry
	log        *logrus.Logger

	mu    sync.Mutex
	state State
}

// NewEngine builds an engine over an already-constructed collector. The
// cache manager may be nil to disable caching.
func NewEngine(collector contract.Collector, cache *lockcache.Manager, strategies *advisor.Registry, log *logrus.Logger) *Engine {
	return &Engine{
		collector:  collector,
		cache:      cache,
		strategies: strategies,
		log:        log,
		state:      StateIdle,
	}
}

// State returns the most recent orchestration state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// comprehensiveKey builds the cache key for full analyses of one database.
func comprehensiveKey(dbID int64) string {
	return fmt.Sprintf("lock_analysis:%d:comprehensive", dbID)
}

// realtimeKey builds the cache key for the compact realtime status.
func realtimeKey(dbID int64) string {
	return fmt.Sprintf("lock_analysis:%d:realtime", dbID)
}

// AnalyzeComprehensive runs the full diagnostic cycle: cache check, 3-way
// concurrent collection with per-call degradation, analysis, scoring,
// advisory generation and write-through caching.
func (e *Engine) AnalyzeComprehensive(ctx context.Context, forceRefresh bool, lookback time.Duration) (*schema.AnalysisResult, error) {
	if e.cache == nil {
		return e.runComprehensive(ctx, lookback)
	}

	payload, cached, err := e.cache.GetOrCompute(ctx, comprehensiveKey(e.collector.DatabaseID()), schema.ClassAnalysis, forceRefresh,
		func(cctx context.Context) ([]byte, error) {
			res, rerr := e.runComprehensive(cctx, lookback)
			if rerr != nil {
				return nil, rerr
			}
			return json.Marshal(res)
		})
	if err != nil {
		return nil, err
	}

	var res schema.AnalysisResult
	if uerr := json.Unmarshal(payload, &res); uerr != nil {
		// A corrupt cache entry must not take the analysis down; recompute.
		e.log.WithError(uerr).Warn("discarding undecodable cached analysis")
		e.cache.InvalidatePattern(ctx, comprehensiveKey(e.collector.DatabaseID()))
		return e.runComprehensive(ctx, lookback)
	}
	res.FromCache = cached
	return &res, nil
}

// runComprehensive is the uncached diagnostic cycle.
func (e *Engine) runComprehensive(ctx context.Context, lookback time.Duration) (*schema.AnalysisResult, error) {
	start := time.Now()
	e.setState(StateCollecting)

	// 3-way fan-out on separate pooled connections. Each sub-call's failure
	// is caught individually and substituted with an empty value; only all
	// three failing is fatal.
	var (
		locks    []schema.LockSnapshot
		chains   []schema.WaitChain
		stats    schema.LockStatistics
		lockErr  error
		chainErr error
		statsErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() { defer wg.Done(); locks, lockErr = e.collector.CollectCurrentLocks(ctx) }()
	wg.Add(1)
	go func() { defer wg.Done(); chains, chainErr = e.collector.CollectWaitChains(ctx) }()
	wg.Add(1)
	go func() { defer wg.Done(); stats, statsErr = e.collector.CollectStatistics(ctx, lookback) }()
	wg.Wait()

	var degraded []string
	if lockErr != nil {
		e.log.WithError(lockErr).Warn("lock collection failed, continuing with empty snapshot set")
		locks, degraded = nil, append(degraded, "locks")
	}
	if chainErr != nil {
		e.log.WithError(chainErr).Warn("wait-chain collection failed, continuing with no chains")
		chains, degraded = nil, append(degraded, "wait_chains")
	}
	if statsErr != nil {
		e.log.WithError(statsErr).Warn("statistics collection failed, continuing with zeroed counters")
		stats = schema.LockStatistics{LocksByType: map[string]int{}, Lookback: lookback, CollectedAt: time.Now()}
		degraded = append(degraded, "statistics")
	}
	if lockErr != nil && chainErr != nil && statsErr != nil {
		e.setState(StateFailed)
		return nil, fmt.Errorf("database %d: %w", e.collector.DatabaseID(), contract.ErrAllCollectionsFailed)
	}

	e.setState(StateAnalyzing)
	contentions := AnalyzeContention(locks)
	summary := SummarizeChains(chains)
	health := ScoreHealth(contentions, summary, stats)

	// Provisional result with empty advice; strategies inspect it to decide
	// applicability.
	res := &schema.AnalysisResult{
		ID:          uuid.NewString(),
		DatabaseID:  e.collector.DatabaseID(),
		HealthScore: health,
		WaitChains:  chains,
		Chains:      summary,
		Contentions: contentions,
		Statistics:  stats,
		Degraded:    degraded,
		GeneratedAt: time.Now(),
	}

	e.setState(StateAdvising)
	res.Advice = e.strategies.Generate(res, e.log)

	res.Elapsed = time.Since(start)
	e.setState(StateDone)
	return res, nil
}

// AnalyzeRealtime is the cheap path: only locks and chains are collected and
// folded into a compact status, skipping the analyzer and strategy pipeline.
func (e *Engine) AnalyzeRealtime(ctx context.Context) (*schema.RealtimeStatus, error) {
	if e.cache == nil {
		return e.runRealtime(ctx)
	}

	payload, _, err := e.cache.GetOrCompute(ctx, realtimeKey(e.collector.DatabaseID()), schema.ClassRealtime, false,
		func(cctx context.Context) ([]byte, error) {
			status, rerr := e.runRealtime(cctx)
			if rerr != nil {
				return nil, rerr
			}
			return json.Marshal(status)
		})
	if err != nil {
		return nil, err
	}

	var status schema.RealtimeStatus
	if uerr := json.Unmarshal(payload, &status); uerr != nil {
		e.log.WithError(uerr).Warn("discarding undecodable cached status")
		e.cache.InvalidatePattern(ctx, realtimeKey(e.collector.DatabaseID()))
		return e.runRealtime(ctx)
	}
	return &status, nil
}

func (e *Engine) runRealtime(ctx context.Context) (*schema.RealtimeStatus, error) {
	var (
		locks    []schema.LockSnapshot
		chains   []schema.WaitChain
		lockErr  error
		chainErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() { defer wg.Done(); locks, lockErr = e.collector.CollectCurrentLocks(ctx) }()
	wg.Add(1)
	go func() { defer wg.Done(); chains, chainErr = e.collector.CollectWaitChains(ctx) }()
	wg.Wait()

	if lockErr != nil && chainErr != nil {
		return nil, fmt.Errorf("database %d: %w", e.collector.DatabaseID(), contract.ErrAllCollectionsFailed)
	}
	if lockErr != nil {
		e.log.WithError(lockErr).Warn("lock collection failed, realtime counts degrade to zero")
	}
	if chainErr != nil {
		e.log.WithError(chainErr).Warn("wait-chain collection failed, realtime counts degrade to zero")
	}

	status := &schema.RealtimeStatus{
		DatabaseID: e.collector.DatabaseID(),
		CapturedAt: time.Now(),
	}
	for _, l := range locks {
		status.ActiveLocks++
		if !l.Granted {
			status.WaitingLocks++
		}
	}
	status.WaitChains = len(chains)
	for _, c := range chains {
		if c.Severity == schema.SeverityCritical {
			status.CriticalChains++
		}
		if c.IsCycle {
			status.DeadlockSuspected = true
		}
	}
	status.Healthy = !status.DeadlockSuspected && status.CriticalChains == 0
	return status, nil
}

// HealthCheck delegates to the bound collector's cheap round-trip.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.collector.HealthCheck(ctx)
}

// InvalidateCache removes every cached entry for this engine's database.
func (e *Engine) InvalidateCache(ctx context.Context) int {
	if e.cache == nil {
		return 0
	}
	return e.cache.InvalidatePattern(ctx, fmt.Sprintf("lock_analysis:%d:*", e.collector.DatabaseID()))
}

// Close releases the collector and the cache backend.
func (e *Engine) Close() error {
	err := e.collector.Close()
	if e.cache != nil {
		if cerr := e.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
