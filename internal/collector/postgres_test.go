package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dbscope/lockwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgres(t *testing.T) (*postgresCollector, sqlmock.Sqlmock) {
	t.Helper()
	exec, mock := newMockExecutor(t)
	return &postgresCollector{dbID: 5, exec: exec, log: testLogger(), chainDepth: 10}, mock
}

// TestPostgresCollectCurrentLocks verifies snapshot mapping, including wait
// duration derivation for ungranted locks.
func TestPostgresCollectCurrentLocks(t *testing.T) {
	pg, mock := newTestPostgres(t)
	waitStart := time.Now().Add(-42 * time.Second)

	mock.ExpectQuery("FROM pg_locks").WillReturnRows(
		sqlmock.NewRows([]string{"pid", "locktype", "mode", "granted", "object_name", "query", "waitstart"}).
			AddRow(101, "relation", "AccessExclusiveLock", false, "orders", "UPDATE orders SET ...", waitStart).
			AddRow(102, "relation", "AccessShareLock", true, "orders", "SELECT ...", nil),
	)

	snaps, err := pg.CollectCurrentLocks(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, int64(5), snaps[0].DatabaseID)
	assert.Equal(t, int64(101), snaps[0].SessionID)
	assert.False(t, snaps[0].Granted)
	assert.Equal(t, "orders", snaps[0].ObjectName)
	assert.InDelta(t, 42, snaps[0].WaitDuration.Seconds(), 5)

	assert.True(t, snaps[1].Granted)
	assert.Zero(t, snaps[1].WaitDuration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresCollectWaitChains verifies multi-hop assembly and cycle
// flagging from the recursive query output.
func TestPostgresCollectWaitChains(t *testing.T) {
	pg, mock := newTestPostgres(t)
	waitStart := time.Now().Add(-20 * time.Second)

	mock.ExpectQuery("WITH RECURSIVE chains").WillReturnRows(
		sqlmock.NewRows([]string{"path", "is_cycle", "depth"}).
			AddRow("101,102,103", false, 3).
			AddRow("201,202,201", true, 3),
	)
	mock.ExpectQuery("FROM pg_stat_activity a").WillReturnRows(
		sqlmock.NewRows([]string{"pid", "query", "waitstart"}).
			AddRow(101, "UPDATE orders ...", waitStart).
			AddRow(102, "UPDATE customers ...", waitStart).
			AddRow(103, "idle in transaction", nil).
			AddRow(201, "SELECT ... FOR UPDATE", waitStart).
			AddRow(202, "SELECT ... FOR UPDATE", waitStart),
	)

	chains, err := pg.CollectWaitChains(context.Background())
	require.NoError(t, err)
	require.Len(t, chains, 2)

	assert.Equal(t, 3, chains[0].Depth)
	assert.False(t, chains[0].IsCycle)
	assert.Equal(t, "UPDATE orders ...", chains[0].Nodes[0].Query)
	assert.InDelta(t, 20, chains[0].Nodes[0].WaitTime.Seconds(), 5)

	assert.True(t, chains[1].IsCycle)
	assert.Equal(t, schema.SeverityCritical, chains[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresCollectWaitChainsEmpty verifies no session lookup happens when
// nothing is blocked.
func TestPostgresCollectWaitChainsEmpty(t *testing.T) {
	pg, mock := newTestPostgres(t)
	mock.ExpectQuery("WITH RECURSIVE chains").WillReturnRows(
		sqlmock.NewRows([]string{"path", "is_cycle", "depth"}),
	)

	chains, err := pg.CollectWaitChains(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chains)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresCollectStatistics verifies counter aggregation.
func TestPostgresCollectStatistics(t *testing.T) {
	pg, mock := newTestPostgres(t)

	mock.ExpectQuery("GROUP BY l.locktype").WillReturnRows(
		sqlmock.NewRows([]string{"locktype", "granted", "cnt"}).
			AddRow("relation", true, 12).
			AddRow("relation", false, 3).
			AddRow("tuple", false, 2),
	)
	mock.ExpectQuery("FROM pg_stat_database").WillReturnRows(
		sqlmock.NewRows([]string{"coalesce"}).AddRow(4),
	)
	mock.ExpectQuery("FROM pg_locks").WillReturnRows(
		sqlmock.NewRows([]string{"coalesce"}).AddRow(12.5),
	)

	stats, err := pg.CollectStatistics(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 17, stats.TotalLocks)
	assert.Equal(t, 12, stats.GrantedLocks)
	assert.Equal(t, 5, stats.WaitingLocks)
	assert.Equal(t, 15, stats.LocksByType["relation"])
	assert.Equal(t, int64(4), stats.DeadlockCount)
	assert.Equal(t, 12500*time.Millisecond, stats.TotalWaitTime)
	assert.Equal(t, time.Hour, stats.Lookback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresCollectStatisticsDegrades verifies per-field zero substitution
// when one sub-query fails, and a hard error only when all of them fail.
func TestPostgresCollectStatisticsDegrades(t *testing.T) {
	t.Run("partial failure degrades to zeros", func(t *testing.T) {
		pg, mock := newTestPostgres(t)
		mock.ExpectQuery("GROUP BY l.locktype").WillReturnError(fmt.Errorf("permission denied"))
		mock.ExpectQuery("FROM pg_stat_database").WillReturnRows(
			sqlmock.NewRows([]string{"coalesce"}).AddRow(1),
		)
		mock.ExpectQuery("FROM pg_locks").WillReturnRows(
			sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0),
		)

		stats, err := pg.CollectStatistics(context.Background(), time.Hour)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalLocks)
		assert.Equal(t, int64(1), stats.DeadlockCount)
	})

	t.Run("total failure errors", func(t *testing.T) {
		pg, mock := newTestPostgres(t)
		mock.ExpectQuery("GROUP BY l.locktype").WillReturnError(fmt.Errorf("down"))
		mock.ExpectQuery("FROM pg_stat_database").WillReturnError(fmt.Errorf("down"))
		mock.ExpectQuery("FROM pg_locks").WillReturnError(fmt.Errorf("down"))

		_, err := pg.CollectStatistics(context.Background(), time.Hour)
		assert.Error(t, err)
	})
}

// TestPostgresHealthCheck verifies the cheap round-trip.
func TestPostgresHealthCheck(t *testing.T) {
	pg, mock := newTestPostgres(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, pg.HealthCheck(context.Background()))

	mock.ExpectQuery("SELECT 1").WillReturnError(fmt.Errorf("connection refused"))
	assert.Error(t, pg.HealthCheck(context.Background()))
}

// TestParsePidPath covers the chain path parser.
func TestParsePidPath(t *testing.T) {
	pids, err := parsePidPath("101, 102,103")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102, 103}, pids)

	_, err = parsePidPath("101,abc")
	assert.Error(t, err)
}
