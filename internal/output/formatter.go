// Package output renders scan results as JSON documents, SARIF, Markdown
// job summaries, CycloneDX vulnerability reports and terminal reports.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/altantutar/pyguard/internal/scanner"
)

// ToolName is the tool name reported in documents.
const ToolName = "pyguard"

// ToolVersion is the version reported in documents. It is set at startup.
var ToolVersion = "dev"

// Formatter is the interface for outputting scan results.
type Formatter interface {
	Format(w io.Writer, result *scanner.ScanResult) error
}

// Formats lists the accepted --format values.
var Formats = []string{"terminal", "json", "sarif", "markdown", "cyclonedx"}

// ForName returns the formatter for a --format value.
func ForName(name string, noColor, verbose bool) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "terminal":
		return &TerminalFormatter{NoColor: noColor, Verbose: verbose}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "sarif":
		return &SARIFFormatter{}, nil
	case "markdown", "md":
		return &MarkdownFormatter{}, nil
	case "cyclonedx", "cdx":
		return &CycloneDXFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s)", name, strings.Join(Formats, ", "))
	}
}
