package expr

import "sort"

// Node is one vertex of the canonical expression tree. Nodes are immutable:
// every transformation produces new nodes, never mutates existing ones.
type Node interface {
	isNode()
}

// Number is a numeric literal. The literal text is preserved verbatim so
// round-tripping through the canonical form is lossless.
type Number struct {
	Literal string
}

// Symbol is a named free variable or known constant.
type Symbol struct {
	Name string
}

// Call is a function application, e.g. exp(-k*t).
type Call struct {
	Fn   string
	Args []Node
}

// Unary is a prefix operation; only negation exists.
type Unary struct {
	Op string // "-"
	X  Node
}

// Binary is an infix operation: "+", "-", "*", "/", "**".
type Binary struct {
	Op   string
	L, R Node
}

// Equation relates two expressions, e.g. "v = d/t".
type Equation struct {
	L, R Node
}

func (Number) isNode()   {}
func (Symbol) isNode()   {}
func (Call) isNode()     {}
func (Unary) isNode()    {}
func (Binary) isNode()   {}
func (Equation) isNode() {}

// knownConstants are symbol names excluded from the free-variable set.
var knownConstants = map[string]bool{
	"pi": true,
	"e":  true,
	"oo": true,
}

// EqualNodes reports structural equality of two trees.
func EqualNodes(a, b Node) bool {
	switch an := a.(type) {
	case Number:
		bn, ok := b.(Number)
		return ok && an.Literal == bn.Literal
	case Symbol:
		bn, ok := b.(Symbol)
		return ok && an.Name == bn.Name
	case Unary:
		bn, ok := b.(Unary)
		return ok && an.Op == bn.Op && EqualNodes(an.X, bn.X)
	case Binary:
		bn, ok := b.(Binary)
		return ok && an.Op == bn.Op && EqualNodes(an.L, bn.L) && EqualNodes(an.R, bn.R)
	case Equation:
		bn, ok := b.(Equation)
		return ok && EqualNodes(an.L, bn.L) && EqualNodes(an.R, bn.R)
	case Call:
		bn, ok := b.(Call)
		if !ok || an.Fn != bn.Fn || len(an.Args) != len(bn.Args) {
			return false
		}
		for i := range an.Args {
			if !EqualNodes(an.Args[i], bn.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// freeSymbols collects free-variable names, excluding known constants.
func freeSymbols(n Node, into map[string]bool) {
	switch t := n.(type) {
	case Symbol:
		if !knownConstants[t.Name] {
			into[t.Name] = true
		}
	case Unary:
		freeSymbols(t.X, into)
	case Binary:
		freeSymbols(t.L, into)
		freeSymbols(t.R, into)
	case Equation:
		freeSymbols(t.L, into)
		freeSymbols(t.R, into)
	case Call:
		for _, a := range t.Args {
			freeSymbols(a, into)
		}
	}
}

// Expression is the canonical symbolic representation produced by the
// codec: an immutable tree plus the free-variable table.
type Expression struct {
	root     Node
	original string
	format   Format
	vars     map[string]Variable
}

// newExpression builds the wrapper and its default variable table.
func newExpression(root Node, original string, format Format) *Expression {
	names := make(map[string]bool)
	freeSymbols(root, names)
	vars := make(map[string]Variable, len(names))
	for name := range names {
		vars[name] = Variable{Name: name, Constraint: inferConstraint(name)}
	}
	return &Expression{root: root, original: original, format: format, vars: vars}
}

// Root exposes the tree for traversal by computation capabilities.
func (e *Expression) Root() Node { return e.root }

// Original returns the raw input the expression was parsed from.
func (e *Expression) Original() string { return e.original }

// SourceFormat returns the detected or declared input format.
func (e *Expression) SourceFormat() Format { return e.format }

// String renders the canonical linear form. Parsing the result yields a
// structurally equal tree.
func (e *Expression) String() string { return renderCanonical(e.root) }

// LaTeX renders a typeset form suitable for handoff payloads.
func (e *Expression) LaTeX() string { return renderLaTeX(e.root, false) }

// FreeSymbols returns the sorted free-variable names.
func (e *Expression) FreeSymbols() []string {
	out := make([]string, 0, len(e.vars))
	for name := range e.vars {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Variables returns a copy of the variable table.
func (e *Expression) Variables() map[string]Variable {
	out := make(map[string]Variable, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Var looks up metadata for one free variable.
func (e *Expression) Var(name string) (Variable, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Equal reports structural equality with another expression.
func (e *Expression) Equal(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	return EqualNodes(e.root, other.root)
}

// withVariable returns a copy of the expression with metadata merged onto
// one variable. The tree itself is shared; it is immutable.
func (e *Expression) withVariable(v Variable) *Expression {
	c := *e
	c.vars = make(map[string]Variable, len(e.vars))
	for k, old := range e.vars {
		c.vars[k] = old
	}
	c.vars[v.Name] = v
	return &c
}
