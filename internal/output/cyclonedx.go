package output

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/types"
)

// CycloneDXFormatter writes a CycloneDX 1.6 vulnerability report: one file
// component per affected source file and one vulnerability per finding.
type CycloneDXFormatter struct{}

func (f *CycloneDXFormatter) Format(w io.Writer, result *scanner.ScanResult) error {
	bom := NewBOM(result)
	return cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(bom)
}

// NewBOM builds the CycloneDX document for a result.
func NewBOM(result *scanner.ScanResult) *cdx.BOM {
	// The schema rejects null arrays.
	components := []cdx.Component{}
	vulns := []cdx.Vulnerability{}

	seen := make(map[string]bool)
	for _, finding := range result.Findings {
		if !seen[finding.FilePath] {
			seen[finding.FilePath] = true
			components = append(components, cdx.Component{
				BOMRef: fileRef(finding.FilePath),
				Type:   cdx.ComponentTypeFile,
				Name:   finding.FilePath,
			})
		}
		vulns = append(vulns, vulnerability(finding))
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	tool := cdx.Component{
		Type:    cdx.ComponentTypeApplication,
		Name:    ToolName,
		Version: ToolVersion,
	}
	bom := &cdx.BOM{
		JSONSchema:  "https://cyclonedx.org/schema/bom-1.6.schema.json",
		BOMFormat:   "CycloneDX",
		SpecVersion: cdx.SpecVersion1_6,
		Version:     1,
		Metadata: &cdx.Metadata{
			Timestamp: result.GeneratedAt.UTC().Format(time.RFC3339),
			Tools: &cdx.ToolsChoice{
				Components: &[]cdx.Component{tool},
			},
			Component: &cdx.Component{
				BOMRef: "target",
				Type:   cdx.ComponentTypeApplication,
				Name:   targetName(result.Target),
			},
			Properties: &[]cdx.Property{
				{Name: "pyguard:files_scanned", Value: strconv.Itoa(result.FilesScanned)},
				{Name: "pyguard:partial", Value: strconv.FormatBool(result.Partial)},
				{Name: "pyguard:diagnostics", Value: strconv.Itoa(len(result.Diagnostics))},
			},
		},
		Components:      &components,
		Vulnerabilities: &vulns,
	}
	if result.RunID != "" {
		bom.SerialNumber = "urn:uuid:" + result.RunID
	}
	return bom
}

func vulnerability(f types.Finding) cdx.Vulnerability {
	v := cdx.Vulnerability{
		ID:          f.RuleID,
		Source:      &cdx.Source{Name: ToolName},
		Description: f.Message,
		Detail:      strings.TrimSpace(f.Snippet),
		Ratings: &[]cdx.VulnerabilityRating{
			{Severity: cdxSeverity(f.Severity), Method: cdx.ScoringMethodOther},
		},
		Affects: &[]cdx.Affects{{Ref: fileRef(f.FilePath)}},
		Properties: &[]cdx.Property{
			{Name: "pyguard:line", Value: strconv.Itoa(f.Line)},
			{Name: "pyguard:col", Value: strconv.Itoa(f.Column)},
			{Name: "pyguard:confidence", Value: string(f.Confidence)},
			{Name: "pyguard:category", Value: f.Category},
		},
	}
	if f.CWE != nil {
		if n, ok := cweNumber(*f.CWE); ok {
			v.CWEs = &[]int{n}
		}
	}
	if f.InCodeBlock {
		*v.Properties = append(*v.Properties, cdx.Property{Name: "pyguard:in_code_block", Value: "true"})
	}
	return v
}

func cdxSeverity(sev types.Severity) cdx.Severity {
	switch sev {
	case types.SeverityCritical:
		return cdx.SeverityCritical
	case types.SeverityHigh:
		return cdx.SeverityHigh
	case types.SeverityMedium:
		return cdx.SeverityMedium
	case types.SeverityLow:
		return cdx.SeverityLow
	default:
		return cdx.SeverityInfo
	}
}

// cweNumber parses "CWE-95" into 95.
func cweNumber(tag string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(tag), "CWE-"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func fileRef(path string) string {
	return "file:" + path
}

func targetName(target string) string {
	if target == "" {
		return "."
	}
	return target
}
