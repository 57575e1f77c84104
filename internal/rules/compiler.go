package rules

import (
	"fmt"
	"strings"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/types"
)

type builder func(m RawMatch) (Predicate, error)

var builders = map[MatcherKind]struct {
	shapes []pyast.Kind
	build  builder
}{
	MatchCall:         {[]pyast.Kind{pyast.KindCall}, buildCall},
	MatchCallKeyword:  {[]pyast.Kind{pyast.KindCall}, buildCallKeyword},
	MatchSQLFormat:    {[]pyast.Kind{pyast.KindString, pyast.KindBinOp, pyast.KindCall}, buildSQLFormat},
	MatchSecretAssign: {[]pyast.Kind{pyast.KindAssign, pyast.KindKeyword, pyast.KindPair}, buildSecretAssign},
	MatchWeakHash:     {[]pyast.Kind{pyast.KindCall}, buildWeakHash},
}

// MatcherKinds lists the supported matcher kinds.
func MatcherKinds() []MatcherKind {
	return []MatcherKind{MatchCall, MatchCallKeyword, MatchSQLFormat, MatchSecretAssign, MatchWeakHash}
}

// Compile converts a RawRule into a Rule ready for execution.
func Compile(raw RawRule) (*Rule, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("rule missing ID")
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("rule %s: missing name", raw.ID)
	}

	sev, err := types.ParseSeverity(raw.Severity)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", raw.ID, err)
	}

	kind := MatcherKind(strings.ToLower(string(raw.Match.Kind)))
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("rule %s: unknown matcher kind %q", raw.ID, raw.Match.Kind)
	}
	pred, err := b.build(raw.Match)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", raw.ID, err)
	}

	return &Rule{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: strings.TrimSpace(raw.Description),
		Severity:    sev,
		Category:    raw.Category,
		CWE:         raw.CWE,
		Message:     raw.Message,
		Kind:        kind,
		Shapes:      b.shapes,
		Predicate:   pred,
		Params:      raw.Match,
		Examples:    raw.Examples,
	}, nil
}

// CompileAll compiles a slice of raw rules, returning compiled rules and any errors.
func CompileAll(raws []RawRule) ([]*Rule, []error) {
	var rules []*Rule
	var errs []error
	for _, raw := range raws {
		r, err := Compile(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

// RuleOverride allows per-rule severity change or disable from config.
type RuleOverride struct {
	Severity string
	Disabled bool
}

// ApplyOverrides applies config-based rule overrides to compiled rules.
// Disabled rules are removed. Severity overrides update the rule's severity.
// Invalid severity values produce an error but keep the original rule.
func ApplyOverrides(compiled []*Rule, overrides map[string]RuleOverride) ([]*Rule, []error) {
	var result []*Rule
	var errs []error
	for _, rule := range compiled {
		ovr, ok := overrides[rule.ID]
		if !ok {
			result = append(result, rule)
			continue
		}
		if ovr.Disabled {
			continue
		}
		if ovr.Severity != "" {
			sev, err := types.ParseSeverity(ovr.Severity)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %s override: %w", rule.ID, err))
				result = append(result, rule)
				continue
			}
			// Copy so the shared built-in rule is left untouched.
			cp := *rule
			cp.Severity = sev
			rule = &cp
		}
		result = append(result, rule)
	}
	return result, errs
}

// FilterByIDs removes rules whose IDs are in the disabled set.
func FilterByIDs(compiled []*Rule, disabled map[string]bool) []*Rule {
	var result []*Rule
	for _, rule := range compiled {
		if !disabled[rule.ID] {
			result = append(result, rule)
		}
	}
	return result
}

// ConfidencePolicy decides what happens to low-confidence matches.
type ConfidencePolicy string

const (
	// PolicyDowngrade lowers severity by one step.
	PolicyDowngrade ConfidencePolicy = "downgrade"
	PolicyKeep      ConfidencePolicy = "keep"
	PolicyDrop      ConfidencePolicy = "drop"
)

// ParseConfidencePolicy accepts downgrade, keep or drop. Empty means downgrade.
func ParseConfidencePolicy(s string) (ConfidencePolicy, error) {
	switch p := ConfidencePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyDowngrade, nil
	case PolicyDowngrade, PolicyKeep, PolicyDrop:
		return p, nil
	default:
		return PolicyDowngrade, fmt.Errorf("unknown low-confidence policy %q (want downgrade, keep or drop)", s)
	}
}
