package advisor

import (
	"fmt"
	"testing"
	"time"

	"github.com/dbscope/lockwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockingChain(wait time.Duration, depth int) schema.WaitChain {
	nodes := make([]schema.WaitNode, depth)
	per := wait / time.Duration(depth)
	for i := 0; i < depth; i++ {
		nodes[i] = schema.WaitNode{
			SessionID: int64(200 + i),
			Query:     fmt.Sprintf("UPDATE orders SET state = 'x' WHERE id = %d", i),
			WaitTime:  per,
		}
	}
	return schema.NewWaitChain(nodes)
}

func TestQueryStrategyApplicable(t *testing.T) {
	s := NewQueryStrategy()

	assert.False(t, s.Applicable(&schema.AnalysisResult{HealthScore: 100}))
	assert.False(t, s.Applicable(&schema.AnalysisResult{
		WaitChains: []schema.WaitChain{blockingChain(4*time.Second, 2)},
	}))
	assert.True(t, s.Applicable(&schema.AnalysisResult{
		WaitChains: []schema.WaitChain{blockingChain(6*time.Second, 2)},
	}))
}

func TestQueryStrategyChainAdvice(t *testing.T) {
	chain := blockingChain(10*time.Second, 2)
	res := &schema.AnalysisResult{HealthScore: 80, WaitChains: []schema.WaitChain{chain}}

	advice, err := NewQueryStrategy().Generate(res)
	require.NoError(t, err)
	require.Len(t, advice, 1)

	adv := advice[0]
	assert.Equal(t, "query", adv.Type)
	assert.Equal(t, schema.PriorityMedium, adv.Priority)
	// Blocker is the tail node of the chain.
	blocker := chain.Nodes[len(chain.Nodes)-1]
	assert.Contains(t, adv.Description, fmt.Sprintf("Session %d", blocker.SessionID))
	assert.Contains(t, adv.Description, blocker.Query)
	// 40 base + 10 seconds of wait + depth 2 at 5 points each.
	assert.Equal(t, 60.0, adv.ImpactScore)
	require.Len(t, adv.Scripts, 2)
	assert.Contains(t, adv.Scripts[1], fmt.Sprintf("pg_cancel_backend(%d)", blocker.SessionID))
}

func TestQueryStrategyPriorityTracksSeverity(t *testing.T) {
	critical := blockingChain(35*time.Second, 2)
	high := blockingChain(16*time.Second, 2)
	res := &schema.AnalysisResult{HealthScore: 80, WaitChains: []schema.WaitChain{critical, high}}

	advice, err := NewQueryStrategy().Generate(res)
	require.NoError(t, err)
	require.Len(t, advice, 2)
	assert.Equal(t, schema.PriorityCritical, advice[0].Priority)
	assert.Equal(t, schema.PriorityHigh, advice[1].Priority)
}

func TestQueryStrategySkipsShortChains(t *testing.T) {
	res := &schema.AnalysisResult{
		HealthScore: 80,
		WaitChains: []schema.WaitChain{
			blockingChain(2*time.Second, 2),
			blockingChain(8*time.Second, 2),
		},
	}

	advice, err := NewQueryStrategy().Generate(res)
	require.NoError(t, err)
	assert.Len(t, advice, 1)
}

func TestQueryStrategySystemWideAdvisory(t *testing.T) {
	res := &schema.AnalysisResult{
		HealthScore: 42.5,
		WaitChains:  []schema.WaitChain{blockingChain(6*time.Second, 2)},
	}

	advice, err := NewQueryStrategy().Generate(res)
	require.NoError(t, err)
	require.Len(t, advice, 2)

	system := advice[1]
	assert.Equal(t, schema.PriorityCritical, system.Priority)
	assert.Equal(t, 90.0, system.ImpactScore)
	assert.Contains(t, system.Description, "42.50")
	assert.Empty(t, system.TargetObject)
}

func TestQueryStrategyBlankQueryPlaceholder(t *testing.T) {
	chain := schema.NewWaitChain([]schema.WaitNode{
		{SessionID: 1, WaitTime: 6 * time.Second},
		{SessionID: 2},
	})
	res := &schema.AnalysisResult{HealthScore: 80, WaitChains: []schema.WaitChain{chain}}

	advice, err := NewQueryStrategy().Generate(res)
	require.NoError(t, err)
	require.Len(t, advice, 1)
	assert.Contains(t, advice[0].Description, "(query text not visible)")
}
