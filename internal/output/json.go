package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/types"
)

// Tool identifies the producer of a document.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SeverityCounts has one field per severity so every level is always present.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Document is the JSON report.
type Document struct {
	RunID         string             `json:"run_id"`
	GeneratedAt   string             `json:"generated_at"`
	Target        string             `json:"target"`
	Tool          Tool               `json:"tool"`
	MinSeverity   types.Severity     `json:"min_severity"`
	Partial       bool               `json:"partial"`
	FilesScanned  int                `json:"files_scanned"`
	RulesLoaded   int                `json:"rules_loaded"`
	Suppressed    int                `json:"suppressed"`
	DurationMS    int64              `json:"duration_ms"`
	Summary       SeverityCounts     `json:"summary"`
	SummaryByRule map[string]int     `json:"summary_by_rule"`
	Findings      []types.Finding    `json:"findings"`
	Diagnostics   []types.Diagnostic `json:"diagnostics"`
}

// NewDocument builds the report for a result. Empty collections are
// rendered as [] and {} rather than null.
func NewDocument(result *scanner.ScanResult) Document {
	sum := meta.Summarize(result.Findings)
	doc := Document{
		RunID:        result.RunID,
		GeneratedAt:  result.GeneratedAt.UTC().Format(time.RFC3339),
		Target:       result.Target,
		Tool:         Tool{Name: ToolName, Version: ToolVersion},
		MinSeverity:  result.MinSeverity,
		Partial:      result.Partial,
		FilesScanned: result.FilesScanned,
		RulesLoaded:  result.RulesLoaded,
		Suppressed:   result.Suppressed,
		DurationMS:   result.Duration.Milliseconds(),
		Summary: SeverityCounts{
			Critical: sum.BySeverity[types.SeverityCritical],
			High:     sum.BySeverity[types.SeverityHigh],
			Medium:   sum.BySeverity[types.SeverityMedium],
			Low:      sum.BySeverity[types.SeverityLow],
			Info:     sum.BySeverity[types.SeverityInfo],
		},
		SummaryByRule: sum.ByRule,
		Findings:      result.Findings,
		Diagnostics:   result.Diagnostics,
	}
	if doc.Findings == nil {
		doc.Findings = []types.Finding{}
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []types.Diagnostic{}
	}
	return doc
}

// JSONFormatter outputs the report document.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, result *scanner.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(result))
}
