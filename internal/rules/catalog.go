package rules

import (
	"fmt"
	"sort"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/rules/builtin"
)

// Catalog is the immutable, id-ordered rule set with a dispatch table from
// node kind to the rules that apply to it.
type Catalog struct {
	rules  []*Rule
	byID   map[string]*Rule
	byKind [pyast.NumKinds][]*Rule
}

// NewCatalog orders rules by id and builds the dispatch table. Duplicate ids
// are rejected.
func NewCatalog(rules []*Rule) (*Catalog, error) {
	c := &Catalog{
		rules: make([]*Rule, len(rules)),
		byID:  make(map[string]*Rule, len(rules)),
	}
	copy(c.rules, rules)
	sort.SliceStable(c.rules, func(i, j int) bool { return c.rules[i].ID < c.rules[j].ID })

	for _, r := range c.rules {
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		c.byID[r.ID] = r
		for _, k := range r.Shapes {
			c.byKind[k] = append(c.byKind[k], r)
		}
	}
	return c, nil
}

// ForKind returns the rules registered for a node kind, in id order.
func (c *Catalog) ForKind(k pyast.Kind) []*Rule {
	if k >= pyast.NumKinds {
		return nil
	}
	return c.byKind[k]
}

// Rules returns every rule in id order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Get looks up a rule by id.
func (c *Catalog) Get(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// LoadBuiltin compiles the embedded rule set.
func LoadBuiltin() ([]*Rule, error) {
	raws, err := ReadFS(builtin.FS())
	if err != nil {
		return nil, fmt.Errorf("loading built-in rules: %w", err)
	}
	compiled, errs := CompileAll(raws)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compiling built-in rules: %w", errs[0])
	}
	return compiled, nil
}

// LoadOptions selects the rule sources for Load.
type LoadOptions struct {
	// CustomDir holds extra YAML rules. Empty means built-ins only.
	CustomDir string
	// Skipped receives each custom rule that fails to compile.
	Skipped func(error)
}

// Load compiles the built-in rules followed by the custom rules in
// opts.CustomDir. A broken custom rule is skipped; a custom directory that
// cannot be read fails the load.
func Load(opts LoadOptions) ([]*Rule, error) {
	compiled, err := LoadBuiltin()
	if err != nil || opts.CustomDir == "" {
		return compiled, err
	}

	raws, err := ReadDir(opts.CustomDir)
	if err != nil {
		return nil, fmt.Errorf("loading custom rules from %s: %w", opts.CustomDir, err)
	}
	custom, errs := CompileAll(raws)
	if opts.Skipped != nil {
		for _, e := range errs {
			opts.Skipped(e)
		}
	}
	return append(compiled, custom...), nil
}
