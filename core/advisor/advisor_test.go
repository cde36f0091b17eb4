package advisor

import (
	"errors"
	"io"
	"testing"

	"github.com/dbscope/lockwatch/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeStrategy scripts every Strategy method for registry tests.
type fakeStrategy struct {
	name       string
	priority   int
	applicable bool
	advice     []schema.OptimizationAdvice
	err        error
	panicking  bool
	ran        bool
}

func (f *fakeStrategy) Name() string  { return f.name }
func (f *fakeStrategy) Priority() int { return f.priority }

func (f *fakeStrategy) Applicable(*schema.AnalysisResult) bool { return f.applicable }

func (f *fakeStrategy) Generate(*schema.AnalysisResult) ([]schema.OptimizationAdvice, error) {
	f.ran = true
	if f.panicking {
		panic("strategy bug")
	}
	return f.advice, f.err
}

func TestRegistryOrdersByPriority(t *testing.T) {
	var order []string
	a := &fakeStrategy{name: "late", priority: 20, applicable: true}
	b := &fakeStrategy{name: "early", priority: 10, applicable: true}
	a.advice = []schema.OptimizationAdvice{{Title: "late", Priority: schema.PriorityLow, Strategy: "late"}}
	b.advice = []schema.OptimizationAdvice{{Title: "early", Priority: schema.PriorityLow, Strategy: "early"}}

	reg := NewRegistry(a, b)
	advice := reg.Generate(&schema.AnalysisResult{}, testLogger())

	for _, adv := range advice {
		order = append(order, adv.Strategy)
	}
	// Same priority and impact on the advice itself, so the stable sort keeps
	// execution order: the priority-10 strategy ran and appended first.
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestRegistrySkipsInapplicable(t *testing.T) {
	s := &fakeStrategy{name: "idle", priority: 10, applicable: false}
	NewRegistry(s).Generate(&schema.AnalysisResult{}, testLogger())
	assert.False(t, s.ran)
}

func TestRegistryIsolatesFailure(t *testing.T) {
	failing := &fakeStrategy{name: "broken", priority: 10, applicable: true, err: errors.New("boom")}
	healthy := &fakeStrategy{
		name: "healthy", priority: 20, applicable: true,
		advice: []schema.OptimizationAdvice{{Title: "ok", Priority: schema.PriorityLow}},
	}

	advice := NewRegistry(failing, healthy).Generate(&schema.AnalysisResult{}, testLogger())
	require.Len(t, advice, 1)
	assert.Equal(t, "ok", advice[0].Title)
}

func TestRegistryIsolatesPanic(t *testing.T) {
	panicking := &fakeStrategy{name: "panics", priority: 10, applicable: true, panicking: true}
	healthy := &fakeStrategy{
		name: "healthy", priority: 20, applicable: true,
		advice: []schema.OptimizationAdvice{{Title: "ok", Priority: schema.PriorityLow}},
	}

	advice := NewRegistry(panicking, healthy).Generate(&schema.AnalysisResult{}, testLogger())
	require.Len(t, advice, 1)
	assert.Equal(t, "ok", advice[0].Title)
}

func TestSortAdvicePriorityBeforeImpact(t *testing.T) {
	advice := []schema.OptimizationAdvice{
		{Title: "high impact but lower rank", Priority: schema.PriorityHigh, ImpactScore: 95},
		{Title: "critical modest impact", Priority: schema.PriorityCritical, ImpactScore: 50},
	}
	SortAdvice(advice)

	assert.Equal(t, "critical modest impact", advice[0].Title)
	assert.Equal(t, "high impact but lower rank", advice[1].Title)
}

func TestSortAdviceImpactDescWithinPriority(t *testing.T) {
	advice := []schema.OptimizationAdvice{
		{Title: "low", Priority: schema.PriorityHigh, ImpactScore: 40},
		{Title: "high", Priority: schema.PriorityHigh, ImpactScore: 90},
		{Title: "mid", Priority: schema.PriorityHigh, ImpactScore: 60},
	}
	SortAdvice(advice)

	assert.Equal(t, []string{"high", "mid", "low"}, []string{advice[0].Title, advice[1].Title, advice[2].Title})
}

func TestSortAdviceIsStableOnTies(t *testing.T) {
	advice := []schema.OptimizationAdvice{
		{Title: "first", Priority: schema.PriorityMedium, ImpactScore: 50},
		{Title: "second", Priority: schema.PriorityMedium, ImpactScore: 50},
	}
	SortAdvice(advice)

	assert.Equal(t, "first", advice[0].Title)
	assert.Equal(t, "second", advice[1].Title)
}

func TestDefaultRegistryStrategies(t *testing.T) {
	reg := DefaultRegistry()
	require.Len(t, reg.strategies, 2)
	assert.Equal(t, "index", reg.strategies[0].Name())
	assert.Equal(t, "query", reg.strategies[1].Name())
}
