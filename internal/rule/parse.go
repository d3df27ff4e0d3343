package rule

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Parse bounds. Trees beyond these limits are rejected at parse time so that
// evaluation is always terminating and safe to run inline.
const (
	DefaultMaxDepth = 10
	DefaultMaxNodes = 128
)

// InvalidRuleDepthError is returned when a condition tree exceeds the
// configured depth or node-count bound.
type InvalidRuleDepthError struct {
	Depth    int
	MaxDepth int
	Nodes    int
	MaxNodes int
}

func (e *InvalidRuleDepthError) Error() string {
	if e.Nodes > e.MaxNodes {
		return "rule: condition tree exceeds node limit"
	}
	return "rule: condition tree exceeds depth limit"
}

// Limits bounds accepted condition trees.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// DefaultLimits returns the standard parse bounds.
func DefaultLimits() Limits {
	return Limits{MaxDepth: DefaultMaxDepth, MaxNodes: DefaultMaxNodes}
}

// rawNode is the external JSON envelope of a condition node.
//
//	{"kind":"value","value":50}
//	{"kind":"field","field":"distance_km"}
//	{"kind":"comparison","op":"gt","left":{...},"right":{...}}
//	{"kind":"boolean","op":"and","operands":[{...},...]}
//	{"kind":"if","cond":{...},"then":{...},"else":{...}}
type rawNode struct {
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Field    string          `json:"field,omitempty"`
	Op       string          `json:"op,omitempty"`
	Left     *rawNode        `json:"left,omitempty"`
	Right    *rawNode        `json:"right,omitempty"`
	Operands []rawNode       `json:"operands,omitempty"`
	Cond     *rawNode        `json:"cond,omitempty"`
	Then     *rawNode        `json:"then,omitempty"`
	Else     *rawNode        `json:"else,omitempty"`
}

// ParseJSON decodes a condition tree from its external JSON form and validates
// it against the given limits. The returned tree is finite, acyclic, and uses
// only the closed operator set; the evaluator may assume all of that.
func ParseJSON(data []byte, limits Limits) (Node, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "rule: decode condition")
	}

	node, err := buildNode(&raw)
	if err != nil {
		return nil, err
	}

	if d := Depth(node); d > limits.MaxDepth {
		return nil, &InvalidRuleDepthError{Depth: d, MaxDepth: limits.MaxDepth, MaxNodes: limits.MaxNodes}
	}
	if s := Size(node); s > limits.MaxNodes {
		return nil, &InvalidRuleDepthError{Depth: Depth(node), MaxDepth: limits.MaxDepth, Nodes: s, MaxNodes: limits.MaxNodes}
	}

	return node, nil
}

func buildNode(raw *rawNode) (Node, error) {
	if raw == nil {
		return nil, eris.New("rule: nil condition node")
	}

	switch raw.Kind {
	case "value":
		lit, err := parseLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		return Value{Literal: lit}, nil

	case "field":
		if raw.Field == "" {
			return nil, eris.New("rule: field node requires a key")
		}
		return Field{Key: raw.Field}, nil

	case "comparison":
		op := CompareOp(raw.Op)
		switch op {
		case CompareGT, CompareLT, CompareEQ, CompareGTE, CompareLTE:
		default:
			return nil, eris.Errorf("rule: unknown comparison operator %q", raw.Op)
		}
		left, err := buildNode(raw.Left)
		if err != nil {
			return nil, eris.Wrap(err, "rule: comparison left")
		}
		right, err := buildNode(raw.Right)
		if err != nil {
			return nil, eris.Wrap(err, "rule: comparison right")
		}
		return Comparison{Op: op, Left: left, Right: right}, nil

	case "boolean":
		op := BoolOp(raw.Op)
		if op != BoolAND && op != BoolOR {
			return nil, eris.Errorf("rule: unknown boolean operator %q", raw.Op)
		}
		if len(raw.Operands) == 0 {
			return nil, eris.New("rule: boolean node requires operands")
		}
		operands := make([]Node, 0, len(raw.Operands))
		for i := range raw.Operands {
			child, err := buildNode(&raw.Operands[i])
			if err != nil {
				return nil, eris.Wrapf(err, "rule: boolean operand %d", i)
			}
			operands = append(operands, child)
		}
		return Boolean{Op: op, Operands: operands}, nil

	case "if":
		if raw.Cond == nil {
			return nil, eris.New("rule: if node requires a condition")
		}
		cond, err := buildNode(raw.Cond)
		if err != nil {
			return nil, eris.Wrap(err, "rule: if condition")
		}
		var thenN, elseN Node
		if raw.Then != nil {
			if thenN, err = buildNode(raw.Then); err != nil {
				return nil, eris.Wrap(err, "rule: then branch")
			}
		}
		if raw.Else != nil {
			if elseN, err = buildNode(raw.Else); err != nil {
				return nil, eris.Wrap(err, "rule: else branch")
			}
		}
		return IfThenElse{Cond: cond, Then: thenN, Else: elseN}, nil

	default:
		return nil, eris.Errorf("rule: unknown node kind %q", raw.Kind)
	}
}

func parseLiteral(data json.RawMessage) (Literal, error) {
	if len(data) == 0 {
		return Literal{}, eris.New("rule: value node requires a literal")
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Literal{}, eris.Wrap(err, "rule: decode literal")
	}

	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Literal{}, eris.Wrapf(err, "rule: numeric literal %q", t.String())
		}
		return Number(d), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	default:
		return Literal{}, eris.New("rule: literal must be a number, string, or boolean")
	}
}

// MarshalNode encodes a tree back to its external JSON form. Used by the
// storage layer to persist validated rules.
func MarshalNode(n Node) ([]byte, error) {
	raw, err := toRaw(n)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "rule: encode condition")
	}
	return out, nil
}

func toRaw(n Node) (*rawNode, error) {
	switch t := n.(type) {
	case Value:
		var val []byte
		var err error
		switch t.Literal.Kind {
		case KindNumber:
			val = []byte(t.Literal.Num.String())
		case KindString:
			val, err = json.Marshal(t.Literal.Str)
		case KindBool:
			val, err = json.Marshal(t.Literal.Bool)
		default:
			return nil, eris.Errorf("rule: unknown literal kind %q", t.Literal.Kind)
		}
		if err != nil {
			return nil, eris.Wrap(err, "rule: encode literal")
		}
		return &rawNode{Kind: "value", Value: val}, nil
	case Field:
		return &rawNode{Kind: "field", Field: t.Key}, nil
	case Comparison:
		left, err := toRaw(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := toRaw(t.Right)
		if err != nil {
			return nil, err
		}
		return &rawNode{Kind: "comparison", Op: string(t.Op), Left: left, Right: right}, nil
	case Boolean:
		operands := make([]rawNode, 0, len(t.Operands))
		for _, op := range t.Operands {
			r, err := toRaw(op)
			if err != nil {
				return nil, err
			}
			operands = append(operands, *r)
		}
		return &rawNode{Kind: "boolean", Op: string(t.Op), Operands: operands}, nil
	case IfThenElse:
		cond, err := toRaw(t.Cond)
		if err != nil {
			return nil, err
		}
		out := &rawNode{Kind: "if", Cond: cond}
		if t.Then != nil {
			if out.Then, err = toRaw(t.Then); err != nil {
				return nil, err
			}
		}
		if t.Else != nil {
			if out.Else, err = toRaw(t.Else); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, eris.New("rule: unknown node type")
	}
}
