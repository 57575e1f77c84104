package rules

import (
	"strings"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/types"
)

// MatcherKind selects the predicate a rule compiles into.
type MatcherKind string

const (
	MatchCall         MatcherKind = "call"
	MatchCallKeyword  MatcherKind = "call_keyword"
	MatchSQLFormat    MatcherKind = "sql_format"
	MatchSecretAssign MatcherKind = "secret_assign"
	MatchWeakHash     MatcherKind = "weak_hash"
)

// RawExamples contains test examples for rule self-testing.
type RawExamples struct {
	TruePositive  []string `yaml:"true_positive"`
	FalsePositive []string `yaml:"false_positive"`
}

// RawKeywordRequirement names an argument that must carry a safe value for
// the call to be accepted.
type RawKeywordRequirement struct {
	Name string `yaml:"name"`
	// Position is the 1-based positional slot that may carry the same value.
	Position   int      `yaml:"position"`
	SafeValues []string `yaml:"safe_values"`
}

// RawMatch holds the matcher kind and its parameters. Which fields apply
// depends on Kind.
type RawMatch struct {
	Kind               MatcherKind            `yaml:"kind"`
	Callees            []string               `yaml:"callees"`
	Unconditional      []string               `yaml:"unconditional"`
	RequireKeyword     *RawKeywordRequirement `yaml:"require_keyword"`
	SafeKeywords       map[string]string      `yaml:"safe_keywords"`
	Keyword            string                 `yaml:"keyword"`
	Literal            string                 `yaml:"literal"`
	Verbs              []string               `yaml:"verbs"`
	NamePattern        string                 `yaml:"name_pattern"`
	ExcludeNamePattern string                 `yaml:"exclude_name_pattern"`
	MinLength          int                    `yaml:"min_length"`
	MinEntropy         float64                `yaml:"min_entropy"`
	AlgorithmCallees   []string               `yaml:"algorithm_callees"`
	WeakAlgorithms     []string               `yaml:"weak_algorithms"`
	ContextPattern     string                 `yaml:"context_pattern"`
}

// RawRule is the YAML representation of a detection rule.
type RawRule struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Severity    string      `yaml:"severity"`
	Category    string      `yaml:"category"`
	CWE         string      `yaml:"cwe"`
	Message     string      `yaml:"message"`
	Match       RawMatch    `yaml:"match"`
	Examples    RawExamples `yaml:"examples"`
}

// MatchContext is what a predicate may know beyond the node itself.
type MatchContext struct {
	Scope *pyast.Scope
	// Ancestors runs from the module down to the parent of the current node.
	Ancestors []pyast.Node
}

// EnclosingDef returns the innermost function or class around the node.
func (mc *MatchContext) EnclosingDef() *pyast.Def {
	for i := len(mc.Ancestors) - 1; i >= 0; i-- {
		if d, ok := mc.Ancestors[i].(*pyast.Def); ok {
			return d
		}
	}
	return nil
}

// EnclosingAssign returns the assignment the node is part of, stopping at
// the nearest statement boundary (a def or the module).
func (mc *MatchContext) EnclosingAssign() *pyast.Assign {
	for i := len(mc.Ancestors) - 1; i >= 0; i-- {
		switch a := mc.Ancestors[i].(type) {
		case *pyast.Assign:
			return a
		case *pyast.Def, *pyast.Module:
			return nil
		}
	}
	return nil
}

// Match is a successful predicate evaluation.
type Match struct {
	Vars       map[string]string
	Confidence types.Confidence
}

// Predicate decides whether a node violates a rule. Predicates are pure.
type Predicate func(n pyast.Node, mc *MatchContext) (Match, bool)

// Rule is a rule compiled and ready for execution.
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    types.Severity
	Category    string
	CWE         string
	Message     string
	Kind        MatcherKind
	Shapes      []pyast.Kind
	Predicate   Predicate
	Params      RawMatch
	Examples    RawExamples
}

// Render fills the message template placeholders from the match.
func (r *Rule) Render(m Match) string {
	msg := r.Message
	if msg == "" {
		msg = r.Name
	}
	if len(m.Vars) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	pairs := make([]string, 0, 2*len(m.Vars))
	for k, v := range m.Vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
