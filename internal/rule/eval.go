package rule

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// MissingContextFieldError is returned when a FIELD node references a key the
// calculation context does not carry.
type MissingContextFieldError struct {
	Field string
}

func (e *MissingContextFieldError) Error() string {
	return fmt.Sprintf("rule: context field %q is missing", e.Field)
}

// Evaluate walks a condition tree against the given context. It is a pure
// function: no I/O, no mutation of ctx. Trees reaching the evaluator are
// pre-validated at parse time, so unknown node types indicate a programming
// error and fail hard.
//
// Booleans short-circuit left to right; IF_THEN_ELSE evaluates the condition
// and then exactly one branch.
func Evaluate(n Node, ctx Context) (Literal, error) {
	switch t := n.(type) {
	case Value:
		return t.Literal, nil

	case Field:
		lit, ok := ctx[t.Key]
		if !ok {
			return Literal{}, &MissingContextFieldError{Field: t.Key}
		}
		return lit, nil

	case Comparison:
		return evalComparison(t, ctx)

	case Boolean:
		return evalBoolean(t, ctx)

	case IfThenElse:
		cond, err := Evaluate(t.Cond, ctx)
		if err != nil {
			return Literal{}, err
		}
		branch := t.Then
		if !cond.IsTruthy() {
			branch = t.Else
		}
		if branch == nil {
			return NumberFromFloat(0), nil
		}
		return Evaluate(branch, ctx)

	default:
		return Literal{}, eris.Errorf("rule: unexpected node type %T", n)
	}
}

func evalComparison(c Comparison, ctx Context) (Literal, error) {
	left, err := Evaluate(c.Left, ctx)
	if err != nil {
		return Literal{}, err
	}
	right, err := Evaluate(c.Right, ctx)
	if err != nil {
		return Literal{}, err
	}

	// EQ also covers string and boolean equality; ordering operators are
	// numeric only.
	if c.Op == CompareEQ && left.Kind != KindNumber {
		if left.Kind != right.Kind {
			return Bool(false), nil
		}
		switch left.Kind {
		case KindString:
			return Bool(left.Str == right.Str), nil
		case KindBool:
			return Bool(left.Bool == right.Bool), nil
		}
	}

	if left.Kind != KindNumber || right.Kind != KindNumber {
		return Literal{}, eris.Errorf("rule: comparison %s requires numeric operands", c.Op)
	}

	cmp := left.Num.Cmp(right.Num)
	switch c.Op {
	case CompareGT:
		return Bool(cmp > 0), nil
	case CompareLT:
		return Bool(cmp < 0), nil
	case CompareEQ:
		return Bool(cmp == 0), nil
	case CompareGTE:
		return Bool(cmp >= 0), nil
	case CompareLTE:
		return Bool(cmp <= 0), nil
	default:
		return Literal{}, eris.Errorf("rule: unexpected comparison operator %q", c.Op)
	}
}

func evalBoolean(b Boolean, ctx Context) (Literal, error) {
	for _, operand := range b.Operands {
		lit, err := Evaluate(operand, ctx)
		if err != nil {
			return Literal{}, err
		}
		truthy := lit.IsTruthy()
		if b.Op == BoolAND && !truthy {
			return Bool(false), nil
		}
		if b.Op == BoolOR && truthy {
			return Bool(true), nil
		}
	}
	return Bool(b.Op == BoolAND), nil
}
