// Package types defines shared data structures (Finding, Diagnostic, Severity,
// ScanResult) used across the scanner, engine, and output packages to prevent
// import cycles.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents the severity level of a finding. Higher values are
// more severe, so "at least high" is sev >= SeverityHigh.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists every level from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	case SeverityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// Label is the lowercase name used in documents and summaries.
func (s Severity) Label() string {
	return strings.ToLower(s.String())
}

// MarshalText serializes the severity as its lowercase label.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityInfo || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.Label()), nil
}

// UnmarshalText accepts any casing of a severity label.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// ParseSeverity converts a string to a Severity level.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical, nil
	case "HIGH":
		return SeverityHigh, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "LOW":
		return SeverityLow, nil
	case "INFO":
		return SeverityInfo, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity: %q", s)
	}
}

// DowngradeSeverity drops severity by one level, flooring at LOW.
// INFO is left unchanged (it's a different class, not part of the severity ladder).
func DowngradeSeverity(sev Severity) Severity {
	switch sev {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	case SeverityMedium:
		return SeverityLow
	default:
		return sev
	}
}

// Confidence describes how reliably a rule identified its target.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Finding represents a single security finding.
type Finding struct {
	RuleID      string     `json:"rule_id"`
	RuleName    string     `json:"-"`
	Severity    Severity   `json:"severity"`
	Category    string     `json:"category"`
	Message     string     `json:"message"`
	FilePath    string     `json:"file"`
	Line        int        `json:"line"`
	Column      int        `json:"col"`
	Snippet     string     `json:"snippet"`
	CWE         *string    `json:"cwe"`
	Confidence  Confidence `json:"confidence"`
	InCodeBlock bool       `json:"in_code_block"`
}

// DiagnosticKind classifies a non-fatal problem encountered during a scan.
type DiagnosticKind string

const (
	DiagRead     DiagnosticKind = "read"
	DiagEncoding DiagnosticKind = "encoding"
	DiagBinary   DiagnosticKind = "binary"
	DiagSyntax   DiagnosticKind = "syntax"
	DiagSubtree  DiagnosticKind = "subtree"
	DiagRule     DiagnosticKind = "rule"
)

// Diagnostic records a file-local fault. Diagnostics are reported next to
// findings, never mixed into them.
type Diagnostic struct {
	FilePath string         `json:"file"`
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
	RuleID   string         `json:"rule_id,omitempty"`
	Line     int            `json:"line,omitempty"`
	Column   int            `json:"col,omitempty"`
}

// ScanResult holds the complete results of a scan run.
type ScanResult struct {
	RunID        string
	GeneratedAt  time.Time
	Target       string
	MinSeverity  Severity
	Findings     []Finding
	Diagnostics  []Diagnostic
	FilesScanned int
	RulesLoaded  int
	Suppressed   int
	Duration     time.Duration
	// Partial is set when the run was interrupted; Findings then hold the
	// results of every file that completed.
	Partial bool
}

// CWE returns a pointer to tag, or nil when tag is empty.
func CWE(tag string) *string {
	if tag == "" {
		return nil
	}
	return &tag
}
