// Package pyast parses Python source with tree-sitter and lowers the concrete
// syntax tree into a small tagged-variant node model. Rules dispatch on
// Kind and type-switch on the concrete node structs.
package pyast

// Kind tags the shape of a lowered node.
type Kind uint8

const (
	KindOther Kind = iota
	KindModule
	KindCall
	KindKeyword
	KindString
	KindAssign
	KindBinOp
	KindPair
	KindName
	KindAttribute
	KindConstant
	KindImport
	KindDef

	// NumKinds is the number of kinds; usable as an array length.
	NumKinds
)

var kindNames = [NumKinds]string{
	KindOther:     "other",
	KindModule:    "module",
	KindCall:      "call",
	KindKeyword:   "keyword",
	KindString:    "string",
	KindAssign:    "assign",
	KindBinOp:     "binop",
	KindPair:      "pair",
	KindName:      "name",
	KindAttribute: "attribute",
	KindConstant:  "constant",
	KindImport:    "import",
	KindDef:       "def",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Position is a 1-based line and 0-based byte column.
type Position struct {
	Line int
	Col  int
}

// Node is a lowered syntax node.
type Node interface {
	Kind() Kind
	Pos() Position
	// Text is the exact source text covered by the node.
	Text() string
	// Children are the lowered child nodes in source order.
	Children() []Node
}

type base struct {
	pos      Position
	text     string
	children []Node
}

func (b *base) Pos() Position    { return b.pos }
func (b *base) Text() string     { return b.text }
func (b *base) Children() []Node { return b.children }

// Module is the root of a file.
type Module struct{ base }

func (*Module) Kind() Kind { return KindModule }

// Generic covers every grammar node without a dedicated variant.
type Generic struct {
	base
	Type string
}

func (*Generic) Kind() Kind { return KindOther }

// Call is a call expression.
type Call struct {
	base
	Func     Node
	Args     []Node
	Keywords []*Keyword
}

func (*Call) Kind() Kind { return KindCall }

// Keyword returns the keyword argument with the given name, or nil.
func (c *Call) Keyword(name string) *Keyword {
	for _, kw := range c.Keywords {
		if kw.Name == name {
			return kw
		}
	}
	return nil
}

// Keyword is a name=value argument inside a call, or a parameter with a
// default value in a def.
type Keyword struct {
	base
	Name  string
	Value Node
}

func (*Keyword) Kind() Kind { return KindKeyword }

// Name is a bare identifier.
type Name struct {
	base
	ID string
}

func (*Name) Kind() Kind { return KindName }

// Attribute is value.attr.
type Attribute struct {
	base
	Value Node
	Attr  string
}

func (*Attribute) Kind() Kind { return KindAttribute }

// String is a single string literal, including f-strings.
type String struct {
	base
	// Prefix holds the literal prefix letters (r, b, f, rb, ...).
	Prefix string
	// Body is the raw text between the quotes; escapes are not processed.
	Body string
	// Interpolations holds one entry per {...} field of an f-string.
	Interpolations []Node
}

func (*String) Kind() Kind { return KindString }

// Formatted reports whether the literal carries an f prefix.
func (s *String) Formatted() bool {
	for _, r := range s.Prefix {
		if r == 'f' || r == 'F' {
			return true
		}
	}
	return false
}

// Interpolated reports whether the literal embeds runtime values.
func (s *String) Interpolated() bool {
	return s.Formatted() && len(s.Interpolations) > 0
}

// Constant is True, False, None or a number.
type Constant struct {
	base
	Value string
}

func (*Constant) Kind() Kind { return KindConstant }

// Assign is a plain, annotated or augmented assignment. Chained assignments
// (a = b = v) are flattened into one node with several targets.
type Assign struct {
	base
	Targets []Node
	Value   Node
	// Op is "=" for plain assignments and the operator (e.g. "+=") otherwise.
	Op string
}

func (*Assign) Kind() Kind { return KindAssign }

// BinOp is a binary operator expression.
type BinOp struct {
	base
	Op    string
	Left  Node
	Right Node
}

func (*BinOp) Kind() Kind { return KindBinOp }

// Pair is a key: value entry of a dict literal.
type Pair struct {
	base
	Key   Node
	Value Node
}

func (*Pair) Kind() Kind { return KindPair }

// ImportName is one imported name and its optional alias.
type ImportName struct {
	Name  string
	Alias string
}

// Import is an import or from-import statement.
type Import struct {
	base
	// Module is set for from-imports.
	Module   string
	Names    []ImportName
	Wildcard bool
}

func (*Import) Kind() Kind { return KindImport }

// Def is a function or class definition.
type Def struct {
	base
	Name  string
	Class bool
}

func (*Def) Kind() Kind { return KindDef }

// DottedName flattens a Name/Attribute chain into "a.b.c". It fails for any
// other expression (calls, subscripts, literals).
func DottedName(n Node) (string, bool) {
	switch v := n.(type) {
	case *Name:
		return v.ID, true
	case *Attribute:
		root, ok := DottedName(v.Value)
		if !ok {
			return "", false
		}
		return root + "." + v.Attr, true
	case *Generic:
		// (a.b)(...) parses as a parenthesized expression.
		if v.Type == "parenthesized_expression" && len(v.children) == 1 {
			return DottedName(v.children[0])
		}
	}
	return "", false
}

// Inspect walks the tree in pre-order. Returning false from fn skips the
// children of that node.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, fn)
	}
}
