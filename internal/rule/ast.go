// Package rule implements the conditional surcharge DSL: a closed,
// non-Turing-complete condition tree evaluated against a calculation context.
package rule

import (
	"github.com/shopspring/decimal"
)

// CompareOp is a comparison operator of the DSL.
type CompareOp string

const (
	CompareGT  CompareOp = "gt"
	CompareLT  CompareOp = "lt"
	CompareEQ  CompareOp = "eq"
	CompareGTE CompareOp = "gte"
	CompareLTE CompareOp = "lte"
)

// BoolOp is a boolean combinator of the DSL.
type BoolOp string

const (
	BoolAND BoolOp = "and"
	BoolOR  BoolOp = "or"
)

// Node is one node of a condition tree. The variant set is closed: a tree is
// built from exactly these five forms, with Value and Field as the only leaves.
type Node interface {
	isNode()
}

// Value is a literal leaf.
type Value struct {
	Literal Literal
}

// Field is a context-lookup leaf. Evaluation fails if the key is absent.
type Field struct {
	Key string
}

// Comparison compares two numeric subtrees.
type Comparison struct {
	Op    CompareOp
	Left  Node
	Right Node
}

// Boolean combines operands with short-circuit AND/OR, left to right.
type Boolean struct {
	Op       BoolOp
	Operands []Node
}

// IfThenElse evaluates Cond, then exactly one of Then/Else. Either branch may
// be nil, in which case the node evaluates to the number zero.
type IfThenElse struct {
	Cond Node
	Then Node
	Else Node
}

func (Value) isNode()      {}
func (Field) isNode()      {}
func (Comparison) isNode() {}
func (Boolean) isNode()    {}
func (IfThenElse) isNode() {}

// LiteralKind discriminates the scalar types a tree can produce.
type LiteralKind string

const (
	KindNumber LiteralKind = "number"
	KindString LiteralKind = "string"
	KindBool   LiteralKind = "bool"
)

// Literal is a scalar value flowing through evaluation.
type Literal struct {
	Kind LiteralKind
	Num  decimal.Decimal
	Str  string
	Bool bool
}

// Number returns a numeric literal.
func Number(d decimal.Decimal) Literal {
	return Literal{Kind: KindNumber, Num: d}
}

// NumberFromFloat returns a numeric literal from a float64.
func NumberFromFloat(f float64) Literal {
	return Literal{Kind: KindNumber, Num: decimal.NewFromFloat(f)}
}

// String returns a string literal.
func String(s string) Literal {
	return Literal{Kind: KindString, Str: s}
}

// Bool returns a boolean literal.
func Bool(b bool) Literal {
	return Literal{Kind: KindBool, Bool: b}
}

// IsTruthy reports whether the literal counts as true in a boolean position:
// booleans by value, numbers by non-zero. Strings are never truthy.
func (l Literal) IsTruthy() bool {
	switch l.Kind {
	case KindBool:
		return l.Bool
	case KindNumber:
		return !l.Num.IsZero()
	default:
		return false
	}
}

// Context holds the named fields a tree may reference during evaluation.
type Context map[string]Literal

// Depth returns the height of the tree rooted at n. A leaf has depth 1.
func Depth(n Node) int {
	switch t := n.(type) {
	case Value, Field:
		return 1
	case Comparison:
		return 1 + max(Depth(t.Left), Depth(t.Right))
	case Boolean:
		d := 0
		for _, op := range t.Operands {
			d = max(d, Depth(op))
		}
		return 1 + d
	case IfThenElse:
		d := Depth(t.Cond)
		if t.Then != nil {
			d = max(d, Depth(t.Then))
		}
		if t.Else != nil {
			d = max(d, Depth(t.Else))
		}
		return 1 + d
	default:
		return 1
	}
}

// Size returns the number of nodes in the tree rooted at n.
func Size(n Node) int {
	switch t := n.(type) {
	case Value, Field:
		return 1
	case Comparison:
		return 1 + Size(t.Left) + Size(t.Right)
	case Boolean:
		s := 1
		for _, op := range t.Operands {
			s += Size(op)
		}
		return s
	case IfThenElse:
		s := 1 + Size(t.Cond)
		if t.Then != nil {
			s += Size(t.Then)
		}
		if t.Else != nil {
			s += Size(t.Else)
		}
		return s
	default:
		return 1
	}
}
