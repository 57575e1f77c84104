package pyast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var language = python.GetLanguage()

// Tree is a lowered syntax tree.
type Tree struct {
	Root *Module
	// Faults lists subtrees that were skipped during lowering.
	Faults []Fault
}

// Fault describes a subtree that could not be lowered.
type Fault struct {
	Pos    Position
	Reason string
}

// SyntaxError reports the first syntax error in a source file.
type SyntaxError struct {
	Line   int
	Col    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Reason)
}

// Parse parses src as Python 3. A tree with syntax errors is rejected with a
// *SyntaxError unless tolerant is set; tolerant parsing drops erroneous
// subtrees and records them as faults.
//
// A tree-sitter parser is not safe for concurrent use, so each call builds
// its own.
func Parse(ctx context.Context, src []byte, tolerant bool) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language)

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer st.Close()

	root := st.RootNode()
	if root.HasError() && !tolerant {
		return nil, firstSyntaxError(root, src)
	}

	l := &lowerer{src: string(src)}
	mod := &Module{base: l.base(root, l.namedChildren(root))}
	return &Tree{Root: mod, Faults: l.faults}, nil
}

// firstSyntaxError descends into erroneous children only and reports the
// earliest ERROR or MISSING node.
func firstSyntaxError(n *sitter.Node, src []byte) *SyntaxError {
	if n.IsMissing() {
		return &SyntaxError{
			Line:   int(n.StartPoint().Row) + 1,
			Col:    int(n.StartPoint().Column),
			Reason: "missing " + n.Type(),
		}
	}
	if n.Type() == "ERROR" {
		return &SyntaxError{
			Line:   int(n.StartPoint().Row) + 1,
			Col:    int(n.StartPoint().Column),
			Reason: "unexpected " + excerpt(n.Content(src)),
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if se := firstSyntaxError(c, src); se != nil {
			return se
		}
	}
	// HasError was set but no child owns the error.
	return &SyntaxError{
		Line:   int(n.StartPoint().Row) + 1,
		Col:    int(n.StartPoint().Column),
		Reason: "invalid syntax",
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	if s == "" {
		return "token"
	}
	return fmt.Sprintf("%q", s)
}
