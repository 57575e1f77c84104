// Package scanner discovers Python sources under a target path and runs the
// registered analyzers over them on a bounded worker pool.
package scanner

import "context"

// Report is what an analyzer produced for one file.
type Report struct {
	Findings    []Finding
	Diagnostics []Diagnostic
}

// Analyzer is the interface that all analysis engines must implement.
// File-local problems belong in Report.Diagnostics; a returned error means
// the analysis was interrupted (cancellation) and the file is incomplete.
type Analyzer interface {
	Name() string
	Supports(target *Target) bool
	Analyze(ctx context.Context, target *Target) (Report, error)
}
