package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// pgLocksQuery captures one row per lock or lock wait, excluding our own
// backend. Relation locks resolve to a relation name; other lock types fall
// back to the lock type as the object name.
const pgLocksQuery = `
	SELECT l.pid,
	       l.locktype,
	       l.mode,
	       l.granted,
	       COALESCE(c.relname, l.locktype) AS object_name,
	       COALESCE(a.query, '') AS query,
	       l.waitstart
	FROM pg_locks l
	LEFT JOIN pg_class c ON c.oid = l.relation
	LEFT JOIN pg_stat_activity a ON a.pid = l.pid
	WHERE l.pid IS NOT NULL
	  AND l.pid <> pg_backend_pid()`

// pgChainsQuery walks pg_blocking_pids recursively to build blocking trees
// server-side. Recursion is bounded by $1 and excludes pids already on the
// path, which keeps true cycles finite; a leaf whose blocker reappears in its
// own path is flagged as a cycle.
const pgChainsQuery = `
	WITH RECURSIVE chains AS (
	    SELECT a.pid,
	           unnest(pg_blocking_pids(a.pid)) AS blocker,
	           ARRAY[a.pid] AS path,
	           1 AS depth
	    FROM pg_stat_activity a
	    WHERE cardinality(pg_blocking_pids(a.pid)) > 0
	    UNION ALL
	    SELECT c.blocker,
	           unnest(pg_blocking_pids(c.blocker)) AS blocker,
	           c.path || c.blocker,
	           c.depth + 1
	    FROM chains c
	    WHERE c.depth < $1
	      AND NOT c.blocker = ANY(c.path)
	)
	SELECT array_to_string(path || blocker, ',') AS path,
	       (blocker = ANY(path)) AS is_cycle,
	       depth + 1 AS depth
	FROM chains
	WHERE blocker = ANY(path)
	   OR cardinality(pg_blocking_pids(blocker)) = 0
	   OR depth >= $1`

// pgSessionsQuery resolves per-session detail used to enrich chain nodes.
const pgSessionsQuery = `
	SELECT a.pid,
	       COALESCE(a.query, '') AS query,
	       MIN(l.waitstart) AS waitstart
	FROM pg_stat_activity a
	LEFT JOIN pg_locks l ON l.pid = a.pid AND NOT l.granted
	WHERE a.pid IS NOT NULL
	GROUP BY a.pid, a.query`

const pgLockCountsQuery = `
	SELECT l.locktype, l.granted, COUNT(*) AS cnt
	FROM pg_locks l
	WHERE l.pid IS NOT NULL AND l.pid <> pg_backend_pid()
	GROUP BY l.locktype, l.granted`

const pgDeadlocksQuery = `
	SELECT COALESCE(deadlocks, 0)
	FROM pg_stat_database
	WHERE datname = current_database()`

const pgWaitTimeQuery = `
	SELECT COALESCE(EXTRACT(EPOCH FROM SUM(now() - waitstart)), 0)
	FROM pg_locks
	WHERE NOT granted AND waitstart IS NOT NULL`

type pgLockRow struct {
	PID        int64      `db:"pid"`
	LockType   string     `db:"locktype"`
	Mode       string     `db:"mode"`
	Granted    bool       `db:"granted"`
	ObjectName string     `db:"object_name"`
	Query      string     `db:"query"`
	WaitStart  *time.Time `db:"waitstart"`
}

type pgChainRow struct {
	Path    string `db:"path"`
	IsCycle bool   `db:"is_cycle"`
	Depth   int    `db:"depth"`
}

type pgSessionRow struct {
	PID       int64      `db:"pid"`
	Query     string     `db:"query"`
	WaitStart *time.Time `db:"waitstart"`
}

// postgresCollector implements contract.Collector against pg_locks,
// pg_stat_activity and pg_stat_database.
type postgresCollector struct {
	dbID       int64
	exec       *executor
	log        *logrus.Logger
	chainDepth int
}

func newPostgres(dbID int64, dsn string, cfg *contract.Config, log *logrus.Logger) (contract.Collector, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	// Collection fans out three ways; keep enough pooled connections to
	// serve all sub-calls without queueing.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &postgresCollector{
		dbID:       dbID,
		exec:       newExecutor(db, log, cfg.RetryAttempts, cfg.RetryDelay, cfg.RetryFactor, cfg.QueryTimeout),
		log:        log,
		chainDepth: cfg.ChainDepth,
	}, nil
}

// CollectCurrentLocks returns one snapshot per visible lock/wait event.
func (p *postgresCollector) CollectCurrentLocks(ctx context.Context) ([]schema.LockSnapshot, error) {
	var rows []pgLockRow
	if err := p.exec.selectRetry(ctx, &rows, pgLocksQuery); err != nil {
		return nil, fmt.Errorf("collect postgres locks: %w", err)
	}

	now := time.Now()
	snapshots := make([]schema.LockSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := schema.LockSnapshot{
			DatabaseID: p.dbID,
			SessionID:  r.PID,
			LockType:   r.LockType,
			LockMode:   r.Mode,
			ObjectName: r.ObjectName,
			Granted:    r.Granted,
			Query:      r.Query,
			CapturedAt: now,
		}
		if !r.Granted && r.WaitStart != nil {
			snap.WaitStart = *r.WaitStart
			snap.WaitDuration = schema.WaitSince(*r.WaitStart, now)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// CollectWaitChains builds multi-hop blocking chains from the recursive
// blocking tree, then enriches each node with session detail.
func (p *postgresCollector) CollectWaitChains(ctx context.Context) ([]schema.WaitChain, error) {
	var chainRows []pgChainRow
	if err := p.exec.selectRetry(ctx, &chainRows, pgChainsQuery, p.chainDepth); err != nil {
		return nil, fmt.Errorf("collect postgres wait chains: %w", err)
	}
	if len(chainRows) == 0 {
		return nil, nil
	}

	sessions, err := p.sessionDetails(ctx)
	if err != nil {
		// Chains without queries are still actionable; log and continue.
		p.log.WithError(err).Warn("session detail lookup failed, chains will lack query text")
		sessions = map[int64]pgSessionRow{}
	}

	now := time.Now()
	chains := make([]schema.WaitChain, 0, len(chainRows))
	for _, row := range chainRows {
		pids, perr := parsePidPath(row.Path)
		if perr != nil {
			p.log.WithError(perr).WithField("path", row.Path).Warn("skipping malformed chain path")
			continue
		}
		nodes := make([]schema.WaitNode, 0, len(pids))
		for _, pid := range pids {
			node := schema.WaitNode{SessionID: pid}
			if s, ok := sessions[pid]; ok {
				node.Query = s.Query
				if s.WaitStart != nil {
					node.WaitTime = schema.WaitSince(*s.WaitStart, now)
				}
			}
			nodes = append(nodes, node)
		}
		chains = append(chains, schema.NewWaitChain(nodes))
	}
	return chains, nil
}

// CollectStatistics gathers cycle-level counters. Collection is best effort:
// each sub-query failure zeroes its fields, and the call errors only when
// every sub-query failed.
func (p *postgresCollector) CollectStatistics(ctx context.Context, lookback time.Duration) (schema.LockStatistics, error) {
	stats := schema.LockStatistics{
		LocksByType: map[string]int{},
		Lookback:    lookback,
		CollectedAt: time.Now(),
	}
	failures := 0

	type countRow struct {
		LockType string `db:"locktype"`
		Granted  bool   `db:"granted"`
		Count    int    `db:"cnt"`
	}
	var counts []countRow
	if err := p.exec.selectRetry(ctx, &counts, pgLockCountsQuery); err != nil {
		p.log.WithError(err).Warn("lock counts unavailable, degrading to zero")
		failures++
	} else {
		for _, c := range counts {
			stats.TotalLocks += c.Count
			stats.LocksByType[c.LockType] += c.Count
			if c.Granted {
				stats.GrantedLocks += c.Count
			} else {
				stats.WaitingLocks += c.Count
			}
		}
	}

	var deadlocks int64
	if err := p.exec.getRetry(ctx, &deadlocks, pgDeadlocksQuery); err != nil {
		p.log.WithError(err).Warn("deadlock counter unavailable, degrading to zero")
		failures++
	} else {
		stats.DeadlockCount = deadlocks
	}

	var waitSeconds float64
	if err := p.exec.getRetry(ctx, &waitSeconds, pgWaitTimeQuery); err != nil {
		p.log.WithError(err).Warn("wait time unavailable, degrading to zero")
		failures++
	} else {
		stats.TotalWaitTime = time.Duration(waitSeconds * float64(time.Second))
	}

	// Postgres does not expose a lock-timeout counter in pg_stat_database;
	// TimeoutCount stays zero on this engine.

	if failures == 3 {
		return stats, fmt.Errorf("collect postgres statistics: all statistic queries failed")
	}
	return stats, nil
}

// HealthCheck performs one cheap round-trip.
func (p *postgresCollector) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.exec.getRetry(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

func (p *postgresCollector) DatabaseID() int64 { return p.dbID }

func (p *postgresCollector) Close() error { return p.exec.close() }

func (p *postgresCollector) sessionDetails(ctx context.Context) (map[int64]pgSessionRow, error) {
	var rows []pgSessionRow
	if err := p.exec.selectRetry(ctx, &rows, pgSessionsQuery); err != nil {
		return nil, err
	}
	sessions := make(map[int64]pgSessionRow, len(rows))
	for _, r := range rows {
		sessions[r.PID] = r
	}
	return sessions, nil
}

// parsePidPath splits the comma-joined pid path emitted by the chain query.
func parsePidPath(path string) ([]int64, error) {
	parts := strings.Split(path, ",")
	pids := make([]int64, 0, len(parts))
	for _, part := range parts {
		pid, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse pid %q: %w", part, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
