package pyast

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// lowerer converts tree-sitter nodes into Node values. Node text is sliced
// from a single string copy of the source, so lowering does not copy text.
type lowerer struct {
	src    string
	faults []Fault
}

func position(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Line: int(p.Row) + 1, Col: int(p.Column)}
}

func (l *lowerer) base(n *sitter.Node, children []Node) base {
	start, end := int(n.StartByte()), int(n.EndByte())
	if end > len(l.src) {
		end = len(l.src)
	}
	if start > end {
		start = end
	}
	return base{pos: position(n), text: l.src[start:end], children: children}
}

func (l *lowerer) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := int(n.StartByte()), int(n.EndByte())
	if end > len(l.src) || start > end {
		return ""
	}
	return l.src[start:end]
}

func (l *lowerer) fault(n *sitter.Node, reason string) {
	l.faults = append(l.faults, Fault{Pos: position(n), Reason: reason})
}

func (l *lowerer) namedChildren(n *sitter.Node) []Node {
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil
	}
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := l.node(n.NamedChild(i)); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// node lowers one subtree. A panic while lowering drops the subtree and
// records a fault; the caller keeps going with its siblings.
func (l *lowerer) node(n *sitter.Node) (out Node) {
	if n == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			l.fault(n, fmt.Sprintf("lowering %s: %v", n.Type(), r))
			out = nil
		}
	}()

	if n.IsMissing() {
		l.fault(n, "missing "+n.Type())
		return nil
	}

	switch n.Type() {
	case "ERROR":
		l.fault(n, "syntax error near "+excerpt(l.content(n)))
		return nil
	case "comment":
		return nil
	case "call":
		return l.call(n)
	case "keyword_argument":
		value := l.node(n.ChildByFieldName("value"))
		return &Keyword{
			base:  l.base(n, nonNil(value)),
			Name:  l.content(n.ChildByFieldName("name")),
			Value: value,
		}
	case "default_parameter", "typed_default_parameter":
		// A default is bound like a keyword argument: def f(password="...").
		value := l.node(n.ChildByFieldName("value"))
		return &Keyword{
			base:  l.base(n, nonNil(value)),
			Name:  l.content(n.ChildByFieldName("name")),
			Value: value,
		}
	case "identifier":
		return &Name{base: l.base(n, nil), ID: l.content(n)}
	case "attribute":
		value := l.node(n.ChildByFieldName("object"))
		return &Attribute{
			base:  l.base(n, nonNil(value)),
			Value: value,
			Attr:  l.content(n.ChildByFieldName("attribute")),
		}
	case "string":
		return l.str(n)
	case "true", "false", "none", "integer", "float":
		return &Constant{base: l.base(n, nil), Value: l.content(n)}
	case "assignment", "augmented_assignment":
		return l.assign(n)
	case "binary_operator":
		left := l.node(n.ChildByFieldName("left"))
		right := l.node(n.ChildByFieldName("right"))
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		return &BinOp{base: l.base(n, nonNil(left, right)), Op: op, Left: left, Right: right}
	case "pair":
		key := l.node(n.ChildByFieldName("key"))
		value := l.node(n.ChildByFieldName("value"))
		return &Pair{base: l.base(n, nonNil(key, value)), Key: key, Value: value}
	case "import_statement", "import_from_statement", "future_import_statement":
		return l.imports(n)
	case "function_definition":
		return &Def{base: l.base(n, l.namedChildren(n)), Name: l.content(n.ChildByFieldName("name"))}
	case "class_definition":
		return &Def{base: l.base(n, l.namedChildren(n)), Name: l.content(n.ChildByFieldName("name")), Class: true}
	default:
		return &Generic{base: l.base(n, l.namedChildren(n)), Type: n.Type()}
	}
}

func (l *lowerer) call(n *sitter.Node) Node {
	c := &Call{}
	var children []Node
	if fn := l.node(n.ChildByFieldName("function")); fn != nil {
		c.Func = fn
		children = append(children, fn)
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		if args.Type() == "argument_list" {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				a := l.node(args.NamedChild(i))
				if a == nil {
					continue
				}
				children = append(children, a)
				if kw, ok := a.(*Keyword); ok {
					c.Keywords = append(c.Keywords, kw)
				} else {
					c.Args = append(c.Args, a)
				}
			}
		} else if a := l.node(args); a != nil {
			// f(x for x in y)
			children = append(children, a)
			c.Args = append(c.Args, a)
		}
	}
	c.base = l.base(n, children)
	return c
}

func (l *lowerer) str(n *sitter.Node) Node {
	text := l.content(n)
	s := &String{}
	if i := strings.IndexAny(text, `'"`); i >= 0 {
		s.Prefix = text[:i]
		s.Body = stripQuotes(text[i:])
	}
	var children []Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() != "interpolation" {
			continue
		}
		expr := l.namedChildren(c)
		field := &Generic{base: l.base(c, expr), Type: "interpolation"}
		s.Interpolations = append(s.Interpolations, field)
		children = append(children, field)
	}
	s.base = l.base(n, children)
	return s
}

func stripQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func (l *lowerer) assign(n *sitter.Node) Node {
	a := &Assign{Op: "="}
	if n.Type() == "augmented_assignment" {
		if o := n.ChildByFieldName("operator"); o != nil {
			a.Op = o.Type()
		}
	}
	var children []Node
	cur := n
	for {
		if t := l.node(cur.ChildByFieldName("left")); t != nil {
			a.Targets = append(a.Targets, t)
			children = append(children, t)
		}
		if ann := cur.ChildByFieldName("type"); ann != nil {
			if t := l.node(ann); t != nil {
				children = append(children, t)
			}
		}
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" && a.Op == "=" {
			cur = right
			continue
		}
		if v := l.node(right); v != nil {
			a.Value = v
			children = append(children, v)
		}
		break
	}
	a.base = l.base(n, children)
	return a
}

func (l *lowerer) imports(n *sitter.Node) Node {
	imp := &Import{}
	module := n.ChildByFieldName("module_name")
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
	} else if module != nil {
		imp.Module = l.content(module)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || (module != nil && c.StartByte() == module.StartByte() && c.EndByte() == module.EndByte()) {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			imp.Names = append(imp.Names, ImportName{Name: l.content(c)})
		case "aliased_import":
			imp.Names = append(imp.Names, ImportName{
				Name:  l.content(c.ChildByFieldName("name")),
				Alias: l.content(c.ChildByFieldName("alias")),
			})
		case "wildcard_import":
			imp.Wildcard = true
		}
	}
	return &Import{base: l.base(n, nil), Module: imp.Module, Names: imp.Names, Wildcard: imp.Wildcard}
}

func nonNil(nodes ...Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
