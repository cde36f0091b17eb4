// Package advisor turns an analysis result into ranked remediation advice
// through pluggable strategies.
package advisor

import (
	"fmt"
	"sort"

	"github.com/dbscope/lockwatch/schema"
	"github.com/sirupsen/logrus"
)

// Strategy is one pluggable advisory rule. Strategies are registered at
// startup time; there is no runtime plugin discovery.
type Strategy interface {
	// Name identifies the strategy in logs and generated advice.
	Name() string

	// Priority orders strategy execution; lower runs first.
	Priority() int

	// Applicable reports whether the strategy has anything to say about the
	// result.
	Applicable(res *schema.AnalysisResult) bool

	// Generate produces zero or more advisories. A failing strategy is
	// logged and skipped; it never aborts the others.
	Generate(res *schema.AnalysisResult) ([]schema.OptimizationAdvice, error)
}

// Registry holds the configured strategies in priority order.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds a registry, ordering strategies by priority.
func NewRegistry(strategies ...Strategy) *Registry {
	ordered := make([]Strategy, len(strategies))
	copy(ordered, strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return &Registry{strategies: ordered}
}

// DefaultRegistry returns the built-in strategy set.
func DefaultRegistry() *Registry {
	return NewRegistry(NewIndexStrategy(), NewQueryStrategy())
}

// Generate runs every applicable strategy against the result, isolating
// per-strategy failures, and returns the merged advice sorted by rank.
func (r *Registry) Generate(res *schema.AnalysisResult, log *logrus.Logger) []schema.OptimizationAdvice {
	var all []schema.OptimizationAdvice
	for _, s := range r.strategies {
		if !s.Applicable(res) {
			continue
		}
		advice, err := runStrategy(s, res)
		if err != nil {
			log.WithError(err).WithField("strategy", s.Name()).Warn("strategy failed, skipping")
			continue
		}
		all = append(all, advice...)
	}
	SortAdvice(all)
	return all
}

// runStrategy isolates a single strategy call, converting panics into errors
// so one misbehaving rule cannot take down the advisory pass.
func runStrategy(s Strategy, res *schema.AnalysisResult) (advice []schema.OptimizationAdvice, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			advice = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	return s.Generate(res)
}

// SortAdvice stable-sorts advice by priority rank (critical first), then by
// impact score descending.
func SortAdvice(advice []schema.OptimizationAdvice) {
	sort.SliceStable(advice, func(i, j int) bool {
		ri, rj := schema.PriorityRank(advice[i].Priority), schema.PriorityRank(advice[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return advice[i].ImpactScore > advice[j].ImpactScore
	})
}
