package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/types"
)

// nameSet holds qualified callee names. Entries without a dot are builtins.
type nameSet map[string]bool

func newNameSet(names []string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !strings.Contains(n, ".") {
			n = "builtins." + n
		}
		s[n] = true
	}
	return s
}

func (s nameSet) lookup(res pyast.Resolution) (string, bool) {
	for _, n := range res.Names {
		if s[n] {
			return n, true
		}
	}
	return "", false
}

// resolveCallee returns the callee as written and its resolution.
func resolveCallee(c *pyast.Call, mc *MatchContext) (string, pyast.Resolution, bool) {
	text, ok := pyast.DottedName(c.Func)
	if !ok {
		return "", pyast.Resolution{}, false
	}
	if mc == nil || mc.Scope == nil {
		return text, pyast.Resolution{Names: []string{text}, Confidence: types.ConfidenceLow}, true
	}
	res := mc.Scope.Resolve(text)
	if res.Local || len(res.Names) == 0 {
		return "", res, false
	}
	return text, res, true
}

func callMatch(text, qualified string, conf types.Confidence) Match {
	return Match{
		Vars:       map[string]string{"callee": text, "qualified": qualified},
		Confidence: conf,
	}
}

// literalText returns the literal a value node spells, for comparisons
// against YAML parameters: constants verbatim, plain strings by body and
// names by their last dotted segment.
func literalText(n pyast.Node) string {
	switch v := n.(type) {
	case *pyast.Constant:
		return v.Value
	case *pyast.String:
		if !v.Interpolated() {
			return v.Body
		}
	}
	if name, ok := pyast.DottedName(n); ok {
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			return name[i+1:]
		}
		return name
	}
	return ""
}

func hasSafeKeyword(c *pyast.Call, safe map[string]string) bool {
	for name, lit := range safe {
		if kw := c.Keyword(name); kw != nil && literalText(kw.Value) == lit {
			return true
		}
	}
	return false
}

func requirementMet(c *pyast.Call, req *RawKeywordRequirement) bool {
	var v pyast.Node
	if kw := c.Keyword(req.Name); kw != nil {
		v = kw.Value
	} else if req.Position > 0 && len(c.Args) >= req.Position {
		v = c.Args[req.Position-1]
	}
	if v == nil {
		return false
	}
	lit := literalText(v)
	for _, s := range req.SafeValues {
		if lit == s {
			return true
		}
	}
	return false
}

func buildCall(m RawMatch) (Predicate, error) {
	if len(m.Callees) == 0 && len(m.Unconditional) == 0 {
		return nil, fmt.Errorf("call matcher needs callees")
	}
	if m.RequireKeyword != nil && m.RequireKeyword.Name == "" {
		return nil, fmt.Errorf("require_keyword needs a name")
	}
	callees := newNameSet(m.Callees)
	unconditional := newNameSet(m.Unconditional)
	req, safe := m.RequireKeyword, m.SafeKeywords

	return func(n pyast.Node, mc *MatchContext) (Match, bool) {
		c, ok := n.(*pyast.Call)
		if !ok {
			return Match{}, false
		}
		text, res, ok := resolveCallee(c, mc)
		if !ok {
			return Match{}, false
		}
		if q, hit := unconditional.lookup(res); hit {
			return callMatch(text, q, res.Confidence), true
		}
		q, hit := callees.lookup(res)
		if !hit || hasSafeKeyword(c, safe) {
			return Match{}, false
		}
		if req != nil && requirementMet(c, req) {
			return Match{}, false
		}
		return callMatch(text, q, res.Confidence), true
	}, nil
}

func buildCallKeyword(m RawMatch) (Predicate, error) {
	if len(m.Callees) == 0 || m.Keyword == "" || m.Literal == "" {
		return nil, fmt.Errorf("call_keyword matcher needs callees, keyword and literal")
	}
	callees := newNameSet(m.Callees)
	keyword, literal := m.Keyword, m.Literal

	return func(n pyast.Node, mc *MatchContext) (Match, bool) {
		c, ok := n.(*pyast.Call)
		if !ok {
			return Match{}, false
		}
		kw := c.Keyword(keyword)
		if kw == nil {
			return Match{}, false
		}
		// Only a literal counts; shell=use_shell is not flagged.
		if v, ok := kw.Value.(*pyast.Constant); !ok || v.Value != literal {
			return Match{}, false
		}
		text, res, ok := resolveCallee(c, mc)
		if !ok {
			return Match{}, false
		}
		q, hit := callees.lookup(res)
		if !hit {
			return Match{}, false
		}
		match := callMatch(text, q, res.Confidence)
		match.Vars["keyword"] = keyword + "=" + literal
		return match, true
	}, nil
}

var defaultSQLVerbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE"}

// percentPlaceholder matches printf-style conversions such as %s or %(id)d.
var percentPlaceholder = regexp.MustCompile(`%(\([^)]*\))?[-#0 +]*\d*(\.\d+)?[sdrifx]`)

func buildSQLFormat(m RawMatch) (Predicate, error) {
	verbs := m.Verbs
	if len(verbs) == 0 {
		verbs = defaultSQLVerbs
	}
	quoted := make([]string, len(verbs))
	for i, v := range verbs {
		quoted[i] = regexp.QuoteMeta(v)
	}
	verbRe, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("compiling verbs: %w", err)
	}
	sqlLiteral := func(n pyast.Node) (string, bool) {
		body, ok := literalBody(n)
		return body, ok && verbRe.MatchString(body)
	}

	return func(n pyast.Node, mc *MatchContext) (Match, bool) {
		switch v := n.(type) {
		case *pyast.String:
			if v.Interpolated() && verbRe.MatchString(v.Body) {
				return sqlMatch("f-string"), true
			}
		case *pyast.BinOp:
			switch v.Op {
			case "%":
				if body, ok := sqlLiteral(v.Left); ok && percentPlaceholder.MatchString(body) {
					return sqlMatch("%-formatting"), true
				}
			case "+":
				// Evaluate each concatenation chain once, at its outermost node.
				if p, ok := parent(mc).(*pyast.BinOp); ok && p.Op == "+" {
					return Match{}, false
				}
				var hasSQL, hasDynamic bool
				for _, operand := range concatOperands(v) {
					_, isSQL := sqlLiteral(operand)
					switch {
					case isSQL:
						hasSQL = true
					case !isLiteral(operand):
						hasDynamic = true
					}
				}
				if hasSQL && hasDynamic {
					return sqlMatch("concatenation"), true
				}
			}
		case *pyast.Call:
			attr, ok := v.Func.(*pyast.Attribute)
			if ok && attr.Attr == "format" {
				if body, ok := sqlLiteral(attr.Value); ok && strings.Contains(body, "{") {
					return sqlMatch(".format()"), true
				}
			}
		}
		return Match{}, false
	}, nil
}

func sqlMatch(shape string) Match {
	return Match{Vars: map[string]string{"shape": shape}, Confidence: types.ConfidenceHigh}
}

func parent(mc *MatchContext) pyast.Node {
	if mc == nil || len(mc.Ancestors) == 0 {
		return nil
	}
	return mc.Ancestors[len(mc.Ancestors)-1]
}

func concatOperands(n pyast.Node) []pyast.Node {
	b, ok := n.(*pyast.BinOp)
	if !ok || b.Op != "+" {
		return []pyast.Node{n}
	}
	return append(concatOperands(b.Left), concatOperands(b.Right)...)
}

func isLiteral(n pyast.Node) bool {
	if _, ok := n.(*pyast.Constant); ok {
		return true
	}
	_, ok := literalBody(n)
	return ok
}

// literalBody returns the text of a plain string literal. Parentheses are
// unwrapped and implicitly concatenated literals ("a" "b") are joined. Any
// interpolated part makes the whole expression non-literal.
func literalBody(n pyast.Node) (string, bool) {
	switch v := n.(type) {
	case *pyast.String:
		if v.Interpolated() {
			return "", false
		}
		return v.Body, true
	case *pyast.Generic:
		children := v.Children()
		switch v.Type {
		case "parenthesized_expression":
			if len(children) == 1 {
				return literalBody(children[0])
			}
		case "concatenated_string":
			var b strings.Builder
			for _, c := range children {
				part, ok := literalBody(c)
				if !ok {
					return "", false
				}
				b.WriteString(part)
			}
			return b.String(), len(children) > 0
		}
	}
	return "", false
}

var (
	// Values that are obviously not credentials: environment variable names
	// and template placeholders.
	envVarName  = regexp.MustCompile(`^[A-Z0-9_]+$`)
	placeholder = regexp.MustCompile(`^(\$\{.*\}|<.*>|\{\{.*\}\}|%\(.*\)s|\*+|x+|X+)$`)
)

func buildSecretAssign(m RawMatch) (Predicate, error) {
	if m.NamePattern == "" {
		return nil, fmt.Errorf("secret_assign matcher needs name_pattern")
	}
	nameRe, err := regexp.Compile(m.NamePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid name_pattern: %w", err)
	}
	var excludeRe *regexp.Regexp
	if m.ExcludeNamePattern != "" {
		if excludeRe, err = regexp.Compile(m.ExcludeNamePattern); err != nil {
			return nil, fmt.Errorf("invalid exclude_name_pattern: %w", err)
		}
	}
	minLen, minEntropy := m.MinLength, m.MinEntropy
	if minLen <= 0 {
		minLen = 8
	}
	if minEntropy <= 0 {
		minEntropy = 3.0
	}

	secretName := func(name string) bool {
		return name != "" && nameRe.MatchString(name) && (excludeRe == nil || !excludeRe.MatchString(name))
	}
	secretValue := func(n pyast.Node) bool {
		s, ok := n.(*pyast.String)
		if !ok || s.Interpolated() {
			return false
		}
		v := s.Body
		return len(v) >= minLen &&
			!strings.ContainsAny(v, " \t\n") &&
			!envVarName.MatchString(v) &&
			!placeholder.MatchString(v) &&
			ShannonEntropy(v) >= minEntropy
	}
	hit := func(name string) (Match, bool) {
		return Match{Vars: map[string]string{"name": name}, Confidence: types.ConfidenceHigh}, true
	}

	return func(n pyast.Node, _ *MatchContext) (Match, bool) {
		switch v := n.(type) {
		case *pyast.Assign:
			if v.Op != "=" || !secretValue(v.Value) {
				return Match{}, false
			}
			for _, t := range v.Targets {
				if name := targetName(t); secretName(name) {
					return hit(name)
				}
			}
		case *pyast.Keyword:
			if secretName(v.Name) && secretValue(v.Value) {
				return hit(v.Name)
			}
		case *pyast.Pair:
			key, ok := v.Key.(*pyast.String)
			if ok && !key.Interpolated() && secretName(key.Body) && secretValue(v.Value) {
				return hit(key.Body)
			}
		}
		return Match{}, false
	}, nil
}

func targetName(n pyast.Node) string {
	switch v := n.(type) {
	case *pyast.Name:
		return v.ID
	case *pyast.Attribute:
		return v.Attr
	}
	return ""
}

func buildWeakHash(m RawMatch) (Predicate, error) {
	if len(m.Callees) == 0 && len(m.AlgorithmCallees) == 0 {
		return nil, fmt.Errorf("weak_hash matcher needs callees or algorithm_callees")
	}
	if m.ContextPattern == "" {
		return nil, fmt.Errorf("weak_hash matcher needs context_pattern")
	}
	ctxRe, err := regexp.Compile(m.ContextPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid context_pattern: %w", err)
	}
	callees := newNameSet(m.Callees)
	algCallees := newNameSet(m.AlgorithmCallees)
	weak := make(map[string]bool, len(m.WeakAlgorithms))
	for _, a := range m.WeakAlgorithms {
		weak[strings.ToLower(a)] = true
	}
	safe := m.SafeKeywords

	return func(n pyast.Node, mc *MatchContext) (Match, bool) {
		c, ok := n.(*pyast.Call)
		if !ok {
			return Match{}, false
		}
		text, res, ok := resolveCallee(c, mc)
		if !ok {
			return Match{}, false
		}
		var alg string
		q, hit := callees.lookup(res)
		if hit {
			alg = algorithmIn(q, weak)
		} else if q, hit = algCallees.lookup(res); hit {
			name := strings.ToLower(algorithmArg(c))
			if !weak[name] {
				return Match{}, false
			}
			alg = name
		} else {
			return Match{}, false
		}
		if hasSafeKeyword(c, safe) || !credentialContext(c, mc, ctxRe) {
			return Match{}, false
		}
		match := callMatch(text, q, res.Confidence)
		match.Vars["algorithm"] = alg
		return match, true
	}, nil
}

// algorithmIn picks the weak algorithm named in a qualified callee such as
// Crypto.Hash.MD5.new.
func algorithmIn(qualified string, weak map[string]bool) string {
	parts := strings.Split(qualified, ".")
	for _, p := range parts {
		if weak[strings.ToLower(p)] {
			return strings.ToLower(p)
		}
	}
	return strings.ToLower(parts[len(parts)-1])
}

// algorithmArg returns the algorithm passed to hashlib.new style calls.
func algorithmArg(c *pyast.Call) string {
	if kw := c.Keyword("name"); kw != nil {
		return literalText(kw.Value)
	}
	if len(c.Args) > 0 {
		if s, ok := c.Args[0].(*pyast.String); ok && !s.Interpolated() {
			return s.Body
		}
	}
	return ""
}

// credentialContext looks for credential terms in the call arguments, the
// enclosing assignment targets and the enclosing function name.
func credentialContext(c *pyast.Call, mc *MatchContext, re *regexp.Regexp) bool {
	for _, a := range c.Args {
		if re.MatchString(a.Text()) {
			return true
		}
	}
	for _, kw := range c.Keywords {
		if kw.Value != nil && re.MatchString(kw.Value.Text()) {
			return true
		}
	}
	if mc == nil {
		return false
	}
	if a := mc.EnclosingAssign(); a != nil {
		for _, t := range a.Targets {
			if re.MatchString(t.Text()) {
				return true
			}
		}
	}
	if d := mc.EnclosingDef(); d != nil && re.MatchString(d.Name) {
		return true
	}
	return false
}
