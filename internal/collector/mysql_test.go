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

func newTestMySQL(t *testing.T) (*mysqlCollector, sqlmock.Sqlmock) {
	t.Helper()
	exec, mock := newMockExecutor(t)
	return &mysqlCollector{dbID: 6, exec: exec, log: testLogger()}, mock
}

func expectVersion(mock sqlmock.Sqlmock, version string) {
	mock.ExpectQuery("SELECT VERSION").WillReturnRows(
		sqlmock.NewRows([]string{"VERSION()"}).AddRow(version),
	)
}

// TestMySQLMajorVersion covers the version probe parser.
func TestMySQLMajorVersion(t *testing.T) {
	tests := []struct {
		version  string
		expected int
	}{
		{"8.0.36-debian", 8},
		{"5.7.44-log", 5},
		{"10.11.6-MariaDB", 10},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, mysqlMajorVersion(tt.version), tt.version)
	}
}

// TestMySQLCollectCurrentLocksModern verifies the 8.0 path uses
// performance_schema and maps rows into snapshots.
func TestMySQLCollectCurrentLocksModern(t *testing.T) {
	my, mock := newTestMySQL(t)
	waitStart := time.Now().Add(-7 * time.Second)

	expectVersion(mock, "8.0.36")
	mock.ExpectQuery("performance_schema.data_locks").WillReturnRows(
		sqlmock.NewRows([]string{"session_id", "lock_type", "lock_mode", "object_name", "granted", "query", "wait_start"}).
			AddRow(11, "RECORD", "X", "orders", false, "UPDATE orders ...", waitStart).
			AddRow(12, "TABLE", "IX", "orders", true, "", nil),
	)

	snaps, err := my.CollectCurrentLocks(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(6), snaps[0].DatabaseID)
	assert.Equal(t, "RECORD", snaps[0].LockType)
	assert.False(t, snaps[0].Granted)
	assert.InDelta(t, 7, snaps[0].WaitDuration.Seconds(), 5)
	assert.True(t, snaps[1].Granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMySQLCollectCurrentLocksLegacy verifies the 5.7 fallback path and that
// the version probe runs only once per collector.
func TestMySQLCollectCurrentLocksLegacy(t *testing.T) {
	my, mock := newTestMySQL(t)

	expectVersion(mock, "5.7.44-log")
	mock.ExpectQuery("information_schema.innodb_locks").WillReturnRows(
		sqlmock.NewRows([]string{"session_id", "lock_type", "lock_mode", "object_name", "granted", "query", "wait_start"}).
			AddRow(21, "RECORD", "X", "`app`.`orders`", false, "UPDATE orders ...", nil),
	)
	// Second collection: no version probe expected.
	mock.ExpectQuery("information_schema.innodb_locks").WillReturnRows(
		sqlmock.NewRows([]string{"session_id", "lock_type", "lock_mode", "object_name", "granted", "query", "wait_start"}),
	)

	snaps, err := my.CollectCurrentLocks(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "`app`.`orders`", snaps[0].ObjectName)

	_, err = my.CollectCurrentLocks(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMySQLCollectWaitChains verifies pairwise rows become 2-node chains and
// that a self-wait is flagged as a cycle.
func TestMySQLCollectWaitChains(t *testing.T) {
	my, mock := newTestMySQL(t)
	waitStart := time.Now().Add(-6 * time.Second)

	expectVersion(mock, "8.0.36")
	mock.ExpectQuery("performance_schema.data_lock_waits").WillReturnRows(
		sqlmock.NewRows([]string{"waiter_id", "waiter_query", "wait_start", "blocker_id", "blocker_query"}).
			AddRow(31, "UPDATE orders ...", waitStart, 32, "SELECT ... FOR UPDATE").
			AddRow(41, "UPDATE stock ...", waitStart, 41, "UPDATE stock ..."),
	)

	chains, err := my.CollectWaitChains(context.Background())
	require.NoError(t, err)
	require.Len(t, chains, 2)

	assert.Equal(t, 2, chains[0].Depth)
	assert.False(t, chains[0].IsCycle)
	assert.Equal(t, int64(32), chains[0].Nodes[1].SessionID)
	assert.InDelta(t, 6, chains[0].TotalWaitTime.Seconds(), 5)

	assert.True(t, chains[1].IsCycle)
	assert.Equal(t, schema.SeverityCritical, chains[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMySQLCollectStatistics verifies counter parsing from the lock views and
// the InnoDB status variables.
func TestMySQLCollectStatistics(t *testing.T) {
	my, mock := newTestMySQL(t)

	expectVersion(mock, "8.0.36")
	mock.ExpectQuery("GROUP BY dl.lock_type").WillReturnRows(
		sqlmock.NewRows([]string{"lock_type", "granted", "cnt"}).
			AddRow("RECORD", true, 9).
			AddRow("RECORD", false, 4).
			AddRow("TABLE", true, 2),
	)
	mock.ExpectQuery("SHOW GLOBAL STATUS").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).
			AddRow("Innodb_row_lock_time", "8400").
			AddRow("Innodb_row_lock_waits", "57").
			AddRow("Innodb_deadlocks", "2").
			AddRow("Innodb_row_lock_timeouts", "3").
			AddRow("Innodb_buffer_pool_reads", "not-a-counter-we-want"),
	)

	stats, err := my.CollectStatistics(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 15, stats.TotalLocks)
	assert.Equal(t, 11, stats.GrantedLocks)
	assert.Equal(t, 4, stats.WaitingLocks)
	assert.Equal(t, 13, stats.LocksByType["RECORD"])
	assert.Equal(t, 8400*time.Millisecond, stats.TotalWaitTime)
	assert.Equal(t, int64(2), stats.DeadlockCount)
	assert.Equal(t, int64(3), stats.TimeoutCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMySQLCollectStatisticsDegrades verifies zero substitution on partial
// failure.
func TestMySQLCollectStatisticsDegrades(t *testing.T) {
	my, mock := newTestMySQL(t)

	expectVersion(mock, "8.0.36")
	mock.ExpectQuery("GROUP BY dl.lock_type").WillReturnError(fmt.Errorf("denied"))
	mock.ExpectQuery("SHOW GLOBAL STATUS").WillReturnRows(
		sqlmock.NewRows([]string{"Variable_name", "Value"}).
			AddRow("Innodb_row_lock_time", "100"),
	)

	stats, err := my.CollectStatistics(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalLocks)
	assert.Equal(t, 100*time.Millisecond, stats.TotalWaitTime)
}

// TestMySQLProbeFailureNotCached verifies a failed version probe is retried
// on the next call instead of pinning the collector to a bad state.
func TestMySQLProbeFailureNotCached(t *testing.T) {
	my, mock := newTestMySQL(t)

	mock.ExpectQuery("SELECT VERSION").WillReturnError(fmt.Errorf("connection refused"))
	_, err := my.CollectCurrentLocks(context.Background())
	require.Error(t, err)

	expectVersion(mock, "8.0.36")
	mock.ExpectQuery("performance_schema.data_locks").WillReturnRows(
		sqlmock.NewRows([]string{"session_id", "lock_type", "lock_mode", "object_name", "granted", "query", "wait_start"}),
	)
	_, err = my.CollectCurrentLocks(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
