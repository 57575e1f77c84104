package pyast

import (
	"strings"

	"github.com/altantutar/pyguard/internal/types"
)

// builtins are the bare names resolved to the builtins module.
var builtins = map[string]bool{
	"eval":       true,
	"exec":       true,
	"compile":    true,
	"execfile":   true,
	"__import__": true,
	"open":       true,
	"input":      true,
}

// Scope holds the module-level name bindings used to qualify callees.
// Imports are collected from every block of the file, since the engine does
// not track control flow. Local definitions only count at module level: a
// method or nested function named eval does not hide the builtin elsewhere.
type Scope struct {
	aliases  map[string]string
	wildcard []string
	locals   map[string]bool
}

// Resolution is the outcome of resolving a dotted callee.
type Resolution struct {
	// Names are the candidate qualified names.
	Names      []string
	Confidence types.Confidence
	// Local is set when the root name is defined in the file itself.
	Local bool
}

// NewScope collects imports and local definitions from the tree.
func NewScope(root Node) *Scope {
	s := &Scope{aliases: map[string]string{}, locals: map[string]bool{}}
	if root != nil {
		s.collect(root, false)
	}
	return s
}

// collect walks n; nested is set once the walk is inside a def or class body.
func (s *Scope) collect(n Node, nested bool) {
	switch v := n.(type) {
	case *Import:
		s.addImport(v)
		return
	case *Def:
		if !nested {
			s.locals[v.Name] = true
		}
		nested = true
	}
	for _, c := range n.Children() {
		if c != nil {
			s.collect(c, nested)
		}
	}
}

func (s *Scope) addImport(imp *Import) {
	if imp.Module != "" {
		if imp.Wildcard {
			s.wildcard = append(s.wildcard, imp.Module)
		}
		for _, n := range imp.Names {
			bound := n.Alias
			if bound == "" {
				bound = n.Name
			}
			s.aliases[bound] = imp.Module + "." + n.Name
		}
		return
	}
	for _, n := range imp.Names {
		if n.Alias != "" {
			s.aliases[n.Alias] = n.Name
			continue
		}
		// import a.b binds a.
		root, _, _ := strings.Cut(n.Name, ".")
		s.aliases[root] = root
	}
}

// Resolve qualifies a dotted callee such as "sp.run" or "eval".
// Imports win over local definitions of the same name.
func (s *Scope) Resolve(dotted string) Resolution {
	root, rest, dottedName := strings.Cut(dotted, ".")
	if q, ok := s.aliases[root]; ok {
		if dottedName {
			q += "." + rest
		}
		return Resolution{Names: []string{q}, Confidence: types.ConfidenceHigh}
	}
	if s.locals[root] {
		return Resolution{Local: true}
	}
	if dottedName {
		return Resolution{Names: []string{dotted}, Confidence: types.ConfidenceLow}
	}
	if builtins[root] {
		return Resolution{Names: []string{"builtins." + root}, Confidence: types.ConfidenceHigh}
	}
	if len(s.wildcard) > 0 {
		names := make([]string, len(s.wildcard))
		for i, m := range s.wildcard {
			names[i] = m + "." + root
		}
		return Resolution{Names: names, Confidence: types.ConfidenceLow}
	}
	return Resolution{}
}

// Imported reports whether name is bound by an import.
func (s *Scope) Imported(name string) bool {
	_, ok := s.aliases[name]
	return ok
}
