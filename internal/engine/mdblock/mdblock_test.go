package mdblock_test

import (
	"context"
	"testing"

	"github.com/altantutar/pyguard/internal/engine/astmatch"
	"github.com/altantutar/pyguard/internal/engine/mdblock"
	"github.com/altantutar/pyguard/internal/rules"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/source"
	"github.com/altantutar/pyguard/internal/types"
	"github.com/stretchr/testify/require"
)

const doc = "# Usage\n" +
	"\n" +
	"Run it like this:\n" +
	"\n" +
	"```python\n" +
	"import pickle\n" +
	"data = pickle.loads(blob)\n" +
	"```\n" +
	"\n" +
	"```bash\n" +
	"eval \"$x\"\n" +
	"```\n" +
	"\n" +
	"```py\n" +
	"def broken(:\n" +
	"```\n" +
	"\n" +
	"- item\n" +
	"\n" +
	"  ```python\n" +
	"  eval(expr)\n" +
	"  ```\n"

func TestExtractPython(t *testing.T) {
	blocks := mdblock.ExtractPython([]byte(doc))
	require.Len(t, blocks, 3)

	require.Equal(t, 6, blocks[0].Line)
	require.Equal(t, 0, blocks[0].Indent)
	require.Equal(t, "import pickle\ndata = pickle.loads(blob)\n", string(blocks[0].Code))

	require.Equal(t, 15, blocks[1].Line)

	require.Equal(t, 21, blocks[2].Line)
	require.Equal(t, 2, blocks[2].Indent)
	require.Equal(t, "eval(expr)\n", string(blocks[2].Code))
}

func TestAnalyzerMapsPositions(t *testing.T) {
	compiled, err := rules.LoadBuiltin()
	require.NoError(t, err)
	cat, err := rules.NewCatalog(compiled)
	require.NoError(t, err)

	unit, err := source.FromBytes("README.md", []byte(doc))
	require.NoError(t, err)
	target := &scanner.Target{RelPath: "README.md", Lang: scanner.LangMarkdown, Unit: unit}

	a := mdblock.New(astmatch.New(cat), false)
	require.True(t, a.Supports(target))
	require.False(t, a.Supports(&scanner.Target{Lang: scanner.LangPython}))

	report, err := a.Analyze(context.Background(), target)
	require.NoError(t, err)

	require.Len(t, report.Findings, 2)
	pickle := report.Findings[0]
	require.Equal(t, "SEC002", pickle.RuleID)
	require.Equal(t, 7, pickle.Line)
	require.Equal(t, 7, pickle.Column)
	require.Equal(t, "data = pickle.loads(blob)", pickle.Snippet)
	require.True(t, pickle.InCodeBlock)
	require.Equal(t, types.SeverityHigh, pickle.Severity)

	eval := report.Findings[1]
	require.Equal(t, "SEC001", eval.RuleID)
	require.Equal(t, 21, eval.Line)
	require.Equal(t, 2, eval.Column)
	require.Equal(t, "eval(expr)", eval.Snippet)

	require.Len(t, report.Diagnostics, 1)
	require.Equal(t, types.DiagSyntax, report.Diagnostics[0].Kind)
	require.Equal(t, 15, report.Diagnostics[0].Line)
}
