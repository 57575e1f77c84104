// Package source loads Python source files: it decodes bytes to UTF-8,
// splits lines for snippet extraction, and parses units into syntax trees.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/types"
)

// MaxFileSize is the largest file the loader reads.
const MaxFileSize = 10 * 1024 * 1024

// Unit is one decoded source file.
type Unit struct {
	Path     string
	RelPath  string
	Encoding string
	Text     []byte
	Lines    []string
}

// ParseError is returned for any file that cannot be turned into a syntax
// tree: unreadable, binary, undecodable or syntactically invalid.
type ParseError struct {
	Path   string
	Kind   types.DiagnosticKind
	Line   int
	Col    int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Diagnostic converts the error into a scan diagnostic.
func (e *ParseError) Diagnostic() types.Diagnostic {
	return types.Diagnostic{
		FilePath: e.Path,
		Kind:     e.Kind,
		Message:  e.Reason,
		Line:     e.Line,
		Column:   e.Col,
	}
}

// Load reads and decodes a file from disk.
func Load(path, relPath string) (*Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Path: relPath, Kind: types.DiagRead, Reason: err.Error(), Err: err}
	}
	if info.Size() > MaxFileSize {
		return nil, &ParseError{
			Path:   relPath,
			Kind:   types.DiagRead,
			Reason: fmt.Sprintf("file too large (%d bytes, max %d)", info.Size(), MaxFileSize),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: relPath, Kind: types.DiagRead, Reason: err.Error(), Err: err}
	}
	u, err := FromBytes(relPath, data)
	if err != nil {
		return nil, err
	}
	u.Path = path
	return u, nil
}

// FromBytes decodes data that was read elsewhere.
func FromBytes(relPath string, data []byte) (*Unit, error) {
	text, enc, err := Decode(data)
	if err != nil {
		kind := types.DiagEncoding
		if errors.Is(err, ErrBinary) {
			kind = types.DiagBinary
		}
		return nil, &ParseError{Path: relPath, Kind: kind, Reason: err.Error(), Err: err}
	}
	return &Unit{
		Path:     relPath,
		RelPath:  relPath,
		Encoding: enc,
		Text:     text,
		Lines:    SplitLines(text),
	}, nil
}

// SplitLines splits on \n and drops a trailing \r from each line.
func SplitLines(text []byte) []string {
	if len(text) == 0 {
		return nil
	}
	lines := strings.Split(string(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Snippet returns the trimmed source line, or "" when line is out of range.
func (u *Unit) Snippet(line int) string {
	if line < 1 || line > len(u.Lines) {
		return ""
	}
	return strings.TrimSpace(u.Lines[line-1])
}

// Parse builds the syntax tree for the unit.
func (u *Unit) Parse(ctx context.Context, tolerant bool) (*pyast.Tree, error) {
	tree, err := pyast.Parse(ctx, u.Text, tolerant)
	if err != nil {
		var se *pyast.SyntaxError
		if errors.As(err, &se) {
			return nil, &ParseError{
				Path:   u.RelPath,
				Kind:   types.DiagSyntax,
				Line:   se.Line,
				Col:    se.Col,
				Reason: "syntax error: " + se.Reason,
				Err:    err,
			}
		}
		return nil, err
	}
	return tree, nil
}
