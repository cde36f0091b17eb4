package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// mysqlLocks80Query reads performance_schema.data_locks on MySQL 8.0+.
// Requires parseTime=true in the DSN so trx_wait_started scans as time.Time.
const mysqlLocks80Query = `
	SELECT t.processlist_id AS session_id,
	       dl.lock_type AS lock_type,
	       dl.lock_mode AS lock_mode,
	       COALESCE(dl.object_name, '') AS object_name,
	       (dl.lock_status = 'GRANTED') AS granted,
	       COALESCE(p.info, '') AS query,
	       trx.trx_wait_started AS wait_start
	FROM performance_schema.data_locks dl
	JOIN performance_schema.threads t ON t.thread_id = dl.thread_id
	LEFT JOIN information_schema.processlist p ON p.id = t.processlist_id
	LEFT JOIN information_schema.innodb_trx trx ON trx.trx_mysql_thread_id = t.processlist_id`

// mysqlLocks57Query falls back to information_schema on 5.7, where
// performance_schema.data_locks does not exist.
const mysqlLocks57Query = `
	SELECT trx.trx_mysql_thread_id AS session_id,
	       l.lock_type AS lock_type,
	       l.lock_mode AS lock_mode,
	       COALESCE(l.lock_table, '') AS object_name,
	       (trx.trx_state <> 'LOCK WAIT') AS granted,
	       COALESCE(trx.trx_query, '') AS query,
	       trx.trx_wait_started AS wait_start
	FROM information_schema.innodb_locks l
	JOIN information_schema.innodb_trx trx ON trx.trx_id = l.lock_trx_id`

// mysqlWaits80Query exposes pairwise blocker/blockee rows on 8.0+. InnoDB has
// no recursive blocking view, so chains stay 2 nodes deep on this engine.
const mysqlWaits80Query = `
	SELECT rt.trx_mysql_thread_id AS waiter_id,
	       COALESCE(rt.trx_query, '') AS waiter_query,
	       rt.trx_wait_started AS wait_start,
	       bt.trx_mysql_thread_id AS blocker_id,
	       COALESCE(bt.trx_query, '') AS blocker_query
	FROM performance_schema.data_lock_waits w
	JOIN information_schema.innodb_trx rt ON rt.trx_id = w.requesting_engine_transaction_id
	JOIN information_schema.innodb_trx bt ON bt.trx_id = w.blocking_engine_transaction_id`

const mysqlWaits57Query = `
	SELECT rt.trx_mysql_thread_id AS waiter_id,
	       COALESCE(rt.trx_query, '') AS waiter_query,
	       rt.trx_wait_started AS wait_start,
	       bt.trx_mysql_thread_id AS blocker_id,
	       COALESCE(bt.trx_query, '') AS blocker_query
	FROM information_schema.innodb_lock_waits w
	JOIN information_schema.innodb_trx rt ON rt.trx_id = w.requesting_trx_id
	JOIN information_schema.innodb_trx bt ON bt.trx_id = w.blocking_trx_id`

const mysqlLockCounts80Query = `
	SELECT dl.lock_type AS lock_type,
	       (dl.lock_status = 'GRANTED') AS granted,
	       COUNT(*) AS cnt
	FROM performance_schema.data_locks dl
	GROUP BY dl.lock_type, dl.lock_status`

const mysqlLockCounts57Query = `
	SELECT l.lock_type AS lock_type,
	       (trx.trx_state <> 'LOCK WAIT') AS granted,
	       COUNT(*) AS cnt
	FROM information_schema.innodb_locks l
	JOIN information_schema.innodb_trx trx ON trx.trx_id = l.lock_trx_id
	GROUP BY l.lock_type, granted`

// mysqlRowLockStatusQuery reads the InnoDB row-lock counters. Deadlock and
// timeout counters are only present on some builds; absent rows degrade to
// zero.
const mysqlRowLockStatusQuery = `SHOW GLOBAL STATUS LIKE 'Innodb_%'`

type mysqlLockRow struct {
	SessionID  int64      `db:"session_id"`
	LockType   string     `db:"lock_type"`
	LockMode   string     `db:"lock_mode"`
	ObjectName string     `db:"object_name"`
	Granted    bool       `db:"granted"`
	Query      string     `db:"query"`
	WaitStart  *time.Time `db:"wait_start"`
}

type mysqlWaitRow struct {
	WaiterID     int64      `db:"waiter_id"`
	WaiterQuery  string     `db:"waiter_query"`
	WaitStart    *time.Time `db:"wait_start"`
	BlockerID    int64      `db:"blocker_id"`
	BlockerQuery string     `db:"blocker_query"`
}

// mysqlCollector implements contract.Collector against performance_schema on
// 8.0+ and information_schema on 5.7, selected via a one-time version probe
// cached for the collector's lifetime.
type mysqlCollector struct {
	dbID int64
	exec *executor
	log  *logrus.Logger

	probeMu sync.Mutex
	probed  bool
	modern  bool // true when performance_schema.data_locks is available
}

func newMySQL(dbID int64, dsn string, cfg *contract.Config, log *logrus.Logger) (contract.Collector, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql pool: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &mysqlCollector{
		dbID: dbID,
		exec: newExecutor(db, log, cfg.RetryAttempts, cfg.RetryDelay, cfg.RetryFactor, cfg.QueryTimeout),
		log:  log,
	}, nil
}

// isModern probes SELECT VERSION() once and caches the answer for the
// collector's lifetime. A failed probe is not cached, so the next call tries
// again.
func (m *mysqlCollector) isModern(ctx context.Context) (bool, error) {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()
	if m.probed {
		return m.modern, nil
	}

	var version string
	if err := m.exec.getRetry(ctx, &version, "SELECT VERSION()"); err != nil {
		return false, fmt.Errorf("probe mysql version: %w", err)
	}
	m.modern = mysqlMajorVersion(version) >= 8
	m.probed = true
	m.log.WithFields(logrus.Fields{"version": version, "modern": m.modern}).Debug("mysql version probed")
	return m.modern, nil
}

// mysqlMajorVersion parses the leading major out of strings like
// "8.0.36-debian" or "5.7.44-log". Unparseable versions count as legacy.
func mysqlMajorVersion(version string) int {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0
	}
	return major
}

// CollectCurrentLocks returns one snapshot per InnoDB lock.
func (m *mysqlCollector) CollectCurrentLocks(ctx context.Context) ([]schema.LockSnapshot, error) {
	modern, err := m.isModern(ctx)
	if err != nil {
		return nil, err
	}
	query := mysqlLocks57Query
	if modern {
		query = mysqlLocks80Query
	}

	var rows []mysqlLockRow
	if err := m.exec.selectRetry(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("collect mysql locks: %w", err)
	}

	now := time.Now()
	snapshots := make([]schema.LockSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := schema.LockSnapshot{
			DatabaseID: m.dbID,
			SessionID:  r.SessionID,
			LockType:   r.LockType,
			LockMode:   r.LockMode,
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

// CollectWaitChains emits minimal 2-node chains from pairwise blocker rows.
// Multi-hop assembly is deliberately absent on this engine; see the query
// comments above.
func (m *mysqlCollector) CollectWaitChains(ctx context.Context) ([]schema.WaitChain, error) {
	modern, err := m.isModern(ctx)
	if err != nil {
		return nil, err
	}
	query := mysqlWaits57Query
	if modern {
		query = mysqlWaits80Query
	}

	var rows []mysqlWaitRow
	if err := m.exec.selectRetry(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("collect mysql wait chains: %w", err)
	}

	now := time.Now()
	chains := make([]schema.WaitChain, 0, len(rows))
	for _, r := range rows {
		var wait time.Duration
		if r.WaitStart != nil {
			wait = schema.WaitSince(*r.WaitStart, now)
		}
		chains = append(chains, schema.NewWaitChain([]schema.WaitNode{
			{SessionID: r.WaiterID, Query: r.WaiterQuery, WaitTime: wait},
			{SessionID: r.BlockerID, Query: r.BlockerQuery},
		}))
	}
	return chains, nil
}

// CollectStatistics gathers counters from the lock views and the InnoDB
// status variables. Best effort throughout.
func (m *mysqlCollector) CollectStatistics(ctx context.Context, lookback time.Duration) (schema.LockStatistics, error) {
	stats := schema.LockStatistics{
		LocksByType: map[string]int{},
		Lookback:    lookback,
		CollectedAt: time.Now(),
	}
	failures := 0

	modern, err := m.isModern(ctx)
	if err != nil {
		return stats, err
	}
	countsQuery := mysqlLockCounts57Query
	if modern {
		countsQuery = mysqlLockCounts80Query
	}

	type countRow struct {
		LockType string `db:"lock_type"`
		Granted  bool   `db:"granted"`
		Count    int    `db:"cnt"`
	}
	var counts []countRow
	if err := m.exec.selectRetry(ctx, &counts, countsQuery); err != nil {
		m.log.WithError(err).Warn("lock counts unavailable, degrading to zero")
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

	type statusRow struct {
		Name  string `db:"Variable_name"`
		Value string `db:"Value"`
	}
	var status []statusRow
	if err := m.exec.selectRetry(ctx, &status, mysqlRowLockStatusQuery); err != nil {
		m.log.WithError(err).Warn("innodb status unavailable, degrading to zero")
		failures++
	} else {
		for _, row := range status {
			v, perr := strconv.ParseInt(row.Value, 10, 64)
			if perr != nil {
				continue
			}
			switch row.Name {
			case "Innodb_row_lock_time":
				stats.TotalWaitTime = time.Duration(v) * time.Millisecond
			case "Innodb_deadlocks":
				stats.DeadlockCount = v
			case "Innodb_row_lock_timeouts", "Innodb_lock_wait_timeouts":
				stats.TimeoutCount += v
			}
		}
	}

	if failures == 2 {
		return stats, fmt.Errorf("collect mysql statistics: all statistic queries failed")
	}
	return stats, nil
}

// HealthCheck performs one cheap round-trip.
func (m *mysqlCollector) HealthCheck(ctx context.Context) error {
	var one int
	if err := m.exec.getRetry(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("mysql health check: %w", err)
	}
	return nil
}

func (m *mysqlCollector) DatabaseID() int64 { return m.dbID }

func (m *mysqlCollector) Close() error { return m.exec.close() }
