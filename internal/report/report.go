// Package report renders analysis output for the console in table or JSON
// form.
package report

import (
	"github.com/dbscope/lockwatch/internal/contract"
	"github.com/dbscope/lockwatch/schema"
)

// Reporter provides a unified interface for all output operations. It
// dispatches on the configured output mode and target file.
type Reporter struct{}

// NewReporter creates a new instance of the reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// WriteAnalysis prints a full analysis result using the configured output
// format.
func (r *Reporter) WriteAnalysis(res *schema.AnalysisResult, cfg *contract.Config) error {
	return printAnalysis(res, cfg)
}

// WriteRealtime prints a realtime status using the configured output format.
func (r *Reporter) WriteRealtime(status *schema.RealtimeStatus, cfg *contract.Config) error {
	return printRealtime(status, cfg)
}
