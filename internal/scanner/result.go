package scanner

// This package re-exports types from internal/types for convenience.
// The canonical types live in internal/types to avoid import cycles.

import "github.com/altantutar/pyguard/internal/types"

type (
	Severity   = types.Severity
	Finding    = types.Finding
	Diagnostic = types.Diagnostic
	ScanResult = types.ScanResult
)

const (
	SeverityInfo     = types.SeverityInfo
	SeverityLow      = types.SeverityLow
	SeverityMedium   = types.SeverityMedium
	SeverityHigh     = types.SeverityHigh
	SeverityCritical = types.SeverityCritical
)

var ParseSeverity = types.ParseSeverity

// Severities lists every level, most severe first.
var Severities = types.Severities
