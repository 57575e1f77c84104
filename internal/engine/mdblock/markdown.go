// Package mdblock analyzes fenced Python code blocks embedded in Markdown
// documents. Each block is parsed on its own and run through the same rule
// traversal as a .py file, with positions mapped back into the document.
package mdblock

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Block is one fenced Python code block.
type Block struct {
	Code []byte
	// Line is the 1-based document line of the first code line.
	Line int
	// Indent is the byte column where code lines start (container indent).
	Indent int
}

var pythonInfo = map[string]bool{
	"python":  true,
	"py":      true,
	"python3": true,
	"py3":     true,
}

// ExtractPython returns the Python fenced code blocks of a Markdown document
// in document order. Empty blocks are skipped.
func ExtractPython(source []byte) []Block {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []Block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !pythonInfo[strings.ToLower(string(fenced.Language(source)))] {
			return ast.WalkSkipChildren, nil
		}
		lines := fenced.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		for i := range lines.Len() {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		start := lines.At(0).Start
		blocks = append(blocks, Block{
			Code:   buf.Bytes(),
			Line:   lineAt(source, start),
			Indent: start - lineStart(source, start),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// lineAt converts a byte offset to a 1-based line number.
func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}

func lineStart(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.LastIndexByte(source[:offset], '\n') + 1
}
