package core

import (
	"testing"
	"time"

	"github.com/dbscope/lockwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitingLock(object string, session int64, wait time.Duration) schema.LockSnapshot {
	return schema.LockSnapshot{
		DatabaseID:   1,
		SessionID:    session,
		LockType:     "relation",
		LockMode:     "RowExclusiveLock",
		ObjectName:   object,
		Granted:      false,
		WaitDuration: wait,
	}
}

func TestAnalyzeContentionEmpty(t *testing.T) {
	assert.Empty(t, AnalyzeContention(nil))
	assert.Empty(t, AnalyzeContention([]schema.LockSnapshot{}))
}

func TestAnalyzeContentionIgnoresGranted(t *testing.T) {
	snaps := []schema.LockSnapshot{
		{ObjectName: "orders", Granted: true, SessionID: 1},
		{ObjectName: "orders", Granted: true, SessionID: 2},
	}
	assert.Empty(t, AnalyzeContention(snaps))
}

func TestAnalyzeContentionDropsZeroWaitGroups(t *testing.T) {
	snaps := []schema.LockSnapshot{
		waitingLock("orders", 1, 0),
		waitingLock("orders", 2, 0),
		waitingLock("invoices", 3, 2*time.Second),
	}
	metrics := AnalyzeContention(snaps)
	require.Len(t, metrics, 1)
	assert.Equal(t, "invoices", metrics[0].ObjectName)
}

func TestAnalyzeContentionAggregation(t *testing.T) {
	snaps := []schema.LockSnapshot{
		waitingLock("orders", 10, 1*time.Second),
		waitingLock("orders", 11, 3*time.Second),
		waitingLock("orders", 10, 2*time.Second),
	}
	snaps[2].LockMode = "ShareLock"

	metrics := AnalyzeContention(snaps)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, "orders", m.ObjectName)
	assert.Equal(t, 3, m.ContentionCount)
	assert.Equal(t, 6*time.Second, m.TotalWaitTime)
	assert.Equal(t, 2*time.Second, m.AvgWaitTime)
	assert.Equal(t, 3*time.Second, m.MaxWaitTime)
	assert.Equal(t, 2, m.SessionCount)
	assert.Equal(t, map[string]int{"RowExclusiveLock": 2, "ShareLock": 1}, m.LockModes)
}

func TestAnalyzeContentionSortsWorstFirst(t *testing.T) {
	snaps := []schema.LockSnapshot{
		waitingLock("mild", 1, time.Second),
		waitingLock("severe", 2, 10*time.Second),
		waitingLock("severe", 3, 10*time.Second),
		waitingLock("moderate", 4, 5*time.Second),
	}
	metrics := AnalyzeContention(snaps)
	require.Len(t, metrics, 3)
	assert.Equal(t, "severe", metrics[0].ObjectName)
	assert.Equal(t, "moderate", metrics[1].ObjectName)
	assert.Equal(t, "mild", metrics[2].ObjectName)
}

func TestAnalyzeContentionIsPure(t *testing.T) {
	snaps := []schema.LockSnapshot{
		waitingLock("orders", 1, time.Second),
		waitingLock("invoices", 2, 2*time.Second),
	}
	first := AnalyzeContention(snaps)
	second := AnalyzeContention(snaps)
	assert.Equal(t, first, second)
}

func TestClassifyPattern(t *testing.T) {
	tests := []struct {
		name  string
		count int
		avg   time.Duration
		max   time.Duration
		want  schema.ContentionPattern
	}{
		{"hot spot", 25, 4800 * time.Millisecond, 6 * time.Second, schema.PatternHotSpot},
		{"hot spot boundary misses on avg", 11, time.Second, time.Second, schema.PatternFrequent},
		{"burst when waits are short", 25, 500 * time.Millisecond, 900 * time.Millisecond, schema.PatternBurst},
		{"timeout prone on one long wait", 3, 8 * time.Second, 21 * time.Second, schema.PatternTimeoutProne},
		{"timeout boundary not crossed", 3, 8 * time.Second, 20 * time.Second, schema.PatternNormal},
		{"frequent", 6, 100 * time.Millisecond, 300 * time.Millisecond, schema.PatternFrequent},
		{"normal", 5, 100 * time.Millisecond, 300 * time.Millisecond, schema.PatternNormal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyPattern(tc.count, tc.avg, tc.max))
		})
	}
}
