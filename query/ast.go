package query

import (
	"strings"
)

// Comparator selects how a leaf constraint matches its value.
type Comparator int

const (
	CompEq Comparator = iota
	CompGT
	CompLT
	CompRange
)

func (c Comparator) String() string {
	switch c {
	case CompEq:
		return "="
	case CompGT:
		return ">"
	case CompLT:
		return "<"
	case CompRange:
		return ".."
	default:
		return "unknown"
	}
}

// BoolOp joins two subtrees.
type BoolOp int

const (
	OpAnd BoolOp = iota
	OpOr
)

func (o BoolOp) String() string {
	if o == OpOr {
		return "OR"
	}
	return "AND"
}

// Node is one node of a parsed query tree. Trees are immutable after
// Parse returns.
type Node interface {
	// String re-serializes the subtree into query syntax. The output is
	// semantically equivalent to the input, not byte identical.
	String() string

	isNode()
}

// Leaf is a single constraint. For a recognized field, Field holds the
// name as written, Key the endpoint-side key from the registry, and
// Domains the domains the constraint applies to. A free-text leaf has
// FreeText set and carries only Value.
type Leaf struct {
	Field    string
	Key      string
	Domains  []string
	Comp     Comparator
	Value    string
	High     string // upper bound when Comp == CompRange
	FreeText bool
}

func (l *Leaf) isNode() {}

func (l *Leaf) String() string {
	if l.FreeText {
		return quoteIfNeeded(l.Value)
	}
	var b strings.Builder
	b.WriteString(l.Field)
	b.WriteByte(':')
	switch l.Comp {
	case CompGT:
		b.WriteByte('>')
		b.WriteString(quoteIfNeeded(l.Value))
	case CompLT:
		b.WriteByte('<')
		b.WriteString(quoteIfNeeded(l.Value))
	case CompRange:
		b.WriteString(l.Value)
		b.WriteString("..")
		b.WriteString(l.High)
	default:
		b.WriteString(quoteIfNeeded(l.Value))
	}
	return b.String()
}

// Not negates its child.
type Not struct {
	Expr Node
}

func (n *Not) isNode() {}

func (n *Not) String() string {
	if _, ok := n.Expr.(*Binary); ok {
		return "NOT (" + n.Expr.String() + ")"
	}
	return "NOT " + n.Expr.String()
}

// Binary joins two subtrees with AND or OR.
type Binary struct {
	Op    BoolOp
	Left  Node
	Right Node
}

func (b *Binary) isNode() {}

func (b *Binary) String() string {
	return parenthesize(b.Left, b.Op) + " " + b.Op.String() + " " + parenthesize(b.Right, b.Op)
}

func parenthesize(n Node, parent BoolOp) string {
	if child, ok := n.(*Binary); ok && child.Op != parent {
		return "(" + n.String() + ")"
	}
	return n.String()
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " \t()") {
		return `"` + v + `"`
	}
	return v
}

// Leaves returns every leaf constraint in the tree in left-to-right
// order.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	walk(n, func(l *Leaf) { out = append(out, l) })
	return out
}

func walk(n Node, fn func(*Leaf)) {
	switch v := n.(type) {
	case *Leaf:
		fn(v)
	case *Not:
		walk(v.Expr, fn)
	case *Binary:
		walk(v.Left, fn)
		walk(v.Right, fn)
	}
}
