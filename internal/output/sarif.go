package output

import (
	"encoding/json"
	"io"

	"github.com/altantutar/pyguard/internal/scanner"
)

// SARIFFormatter outputs findings in SARIF 2.1.0 format for GitHub Code Scanning.
type SARIFFormatter struct{}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations"`
	Results     []sarifResult     `json:"results"`
	Properties  map[string]any    `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags             []string `json:"tags,omitempty"`
	SecuritySeverity string   `json:"security-severity,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	RuleIndex  int             `json:"ruleIndex"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int           `json:"startLine"`
	StartColumn int           `json:"startColumn,omitempty"`
	Snippet     *sarifMessage `json:"snippet,omitempty"`
}

func (f *SARIFFormatter) Format(w io.Writer, result *scanner.ScanResult) error {
	// Collect unique rules in order
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	for _, finding := range result.Findings {
		if _, ok := ruleIndex[finding.RuleID]; ok {
			continue
		}
		ruleIndex[finding.RuleID] = len(rules)
		tags := []string{"security"}
		if finding.Category != "" {
			tags = append(tags, finding.Category)
		}
		if finding.CWE != nil {
			tags = append(tags, "external/cwe/"+*finding.CWE)
		}
		name := finding.RuleName
		if name == "" {
			name = finding.RuleID
		}
		rules = append(rules, sarifRule{
			ID:               finding.RuleID,
			Name:             name,
			ShortDescription: sarifMessage{Text: name},
			DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(finding.Severity)},
			Properties: sarifRuleProperties{
				Tags:             tags,
				SecuritySeverity: securitySeverity(finding.Severity),
			},
		})
	}

	results := []sarifResult{}
	for _, finding := range result.Findings {
		region := &sarifRegion{
			StartLine:   max(finding.Line, 1),
			StartColumn: finding.Column + 1,
		}
		if finding.Snippet != "" {
			region.Snippet = &sarifMessage{Text: finding.Snippet}
		}
		r := sarifResult{
			RuleID:    finding.RuleID,
			RuleIndex: ruleIndex[finding.RuleID],
			Level:     severityToLevel(finding.Severity),
			Message:   sarifMessage{Text: finding.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: finding.FilePath},
					Region:           region,
				},
			}},
			Properties: map[string]any{"confidence": finding.Confidence},
		}
		if finding.InCodeBlock {
			r.Properties["in_code_block"] = true
		}
		results = append(results, r)
	}

	var notes []sarifNotification
	for _, d := range result.Diagnostics {
		loc := sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: d.FilePath}}
		if d.Line > 0 {
			loc.Region = &sarifRegion{StartLine: d.Line, StartColumn: d.Column + 1}
		}
		notes = append(notes, sarifNotification{
			Level:     "warning",
			Message:   sarifMessage{Text: string(d.Kind) + ": " + d.Message},
			Locations: []sarifLocation{{PhysicalLocation: loc}},
		})
	}

	log := sarifLog{
		Schema:  "https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   rules,
					},
				},
				Invocations: []sarifInvocation{{
					ExecutionSuccessful: !result.Partial,
					Notifications:       notes,
				}},
				Results: results,
				Properties: map[string]any{
					"run_id":      result.RunID,
					"duration_ms": result.Duration.Milliseconds(),
					"partial":     result.Partial,
				},
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func severityToLevel(sev scanner.Severity) string {
	switch sev {
	case scanner.SeverityCritical, scanner.SeverityHigh:
		return "error"
	case scanner.SeverityMedium:
		return "warning"
	case scanner.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

// securitySeverity maps to the numeric scale GitHub code scanning uses to
// bucket alerts.
func securitySeverity(sev scanner.Severity) string {
	switch sev {
	case scanner.SeverityCritical:
		return "9.5"
	case scanner.SeverityHigh:
		return "8.0"
	case scanner.SeverityMedium:
		return "5.5"
	case scanner.SeverityLow:
		return "3.0"
	default:
		return "0.0"
	}
}
