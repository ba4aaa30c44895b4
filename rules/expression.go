package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the variant of an Expression.
type Kind string

const (
	KindCondition Kind = "condition"
	KindGroup     Kind = "group"
)

// Logic joins the children of a group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator compares a field value with a literal.
type Operator string

const (
	OpEq         Operator = "="
	OpNeq        Operator = "!="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpIn         Operator = "in"
	OpWithinDays Operator = "withinDays"
	OpContains   Operator = "contains"
)

// ParseOperator normalizes an operator name. "equals" is accepted for "=".
func ParseOperator(s string) Operator {
	switch s {
	case "equals", "==":
		return OpEq
	case "notEquals":
		return OpNeq
	}
	return Operator(s)
}

// Expression is a node of an audience rule tree: either a Condition
// (Field, Operator, Value) or a Group (Logic, Children). Children are held by
// value so a tree can never reference itself.
type Expression struct {
	Kind     Kind
	Field    Field
	Operator Operator
	Value    any
	Logic    Logic
	Children []Expression
}

// Cond builds a condition node.
func Cond(field Field, op Operator, value any) Expression {
	return Expression{Kind: KindCondition, Field: field, Operator: op, Value: value}
}

// And builds an AND group.
func And(children ...Expression) Expression {
	return Expression{Kind: KindGroup, Logic: LogicAnd, Children: children}
}

// Or builds an OR group.
func Or(children ...Expression) Expression {
	return Expression{Kind: KindGroup, Logic: LogicOr, Children: children}
}

// IsGroup reports whether the node is a group.
func (e Expression) IsGroup() bool {
	return e.Kind == KindGroup
}

// Conditions counts the condition leaves in the tree.
func (e Expression) Conditions() int {
	if !e.IsGroup() {
		return 1
	}
	n := 0
	for _, c := range e.Children {
		n += c.Conditions()
	}
	return n
}

type conditionJSON struct {
	Kind  Kind   `json:"kind"`
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type groupJSON struct {
	Kind  Kind         `json:"kind"`
	Op    string       `json:"op"`
	Rules []Expression `json:"rules"`
}

type expressionWire struct {
	Kind     Kind            `json:"kind"`
	Field    string          `json:"field"`
	Op       string          `json:"op"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
	Rules    []Expression    `json:"rules"`
	Children []Expression    `json:"children"`
}

// MarshalJSON writes the tagged wire shape.
func (e Expression) MarshalJSON() ([]byte, error) {
	if e.IsGroup() {
		children := e.Children
		if children == nil {
			children = []Expression{}
		}
		return json.Marshal(groupJSON{Kind: KindGroup, Op: string(e.Logic), Rules: children})
	}
	return json.Marshal(conditionJSON{Kind: KindCondition, Field: string(e.Field), Op: string(e.Operator), Value: e.Value})
}

// UnmarshalJSON reads the tagged wire shape. "operator" and "children" are
// accepted as synonyms of "op" and "rules"; a missing kind is inferred.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var w expressionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	op := w.Op
	if op == "" {
		op = w.Operator
	}
	kind := w.Kind
	if kind == "" {
		if w.Rules != nil || w.Children != nil || op == string(LogicAnd) || op == string(LogicOr) {
			kind = KindGroup
		} else {
			kind = KindCondition
		}
	}

	switch kind {
	case KindGroup:
		children := w.Rules
		if children == nil {
			children = w.Children
		}
		*e = Expression{Kind: KindGroup, Logic: Logic(op), Children: children}
	case KindCondition:
		field, ok := ParseField(w.Field)
		if !ok {
			field = Field(w.Field)
		}
		var value any
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &value); err != nil {
				return fmt.Errorf("invalid value for field %q: %w", w.Field, err)
			}
		}
		*e = Expression{Kind: KindCondition, Field: field, Operator: ParseOperator(op), Value: value}
	default:
		return fmt.Errorf("unknown rule kind %q", kind)
	}
	return nil
}

// Audience selects customers matching Include and not matching Exclude.
type Audience struct {
	Include *Expression `json:"include,omitempty"`
	Exclude *Expression `json:"exclude,omitempty"`
}

// UnmarshalJSON accepts {"include":..., "exclude":...} where each side is an
// expression or a list of conditions (include lists are ANDed, exclude lists
// ORed). A bare expression is read as the include side.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	rawInclude, hasInclude := probe["include"]
	rawExclude, hasExclude := probe["exclude"]
	if !hasInclude && !hasExclude {
		var expr Expression
		if err := json.Unmarshal(data, &expr); err != nil {
			return err
		}
		*a = Audience{Include: &expr}
		return nil
	}

	out := Audience{}
	if hasInclude {
		expr, err := decodeSide(rawInclude, LogicAnd)
		if err != nil {
			return fmt.Errorf("include: %w", err)
		}
		out.Include = expr
	}
	if hasExclude {
		expr, err := decodeSide(rawExclude, LogicOr)
		if err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
		out.Exclude = expr
	}
	*a = out
	return nil
}

func decodeSide(raw json.RawMessage, listLogic Logic) (*Expression, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []Expression
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &Expression{Kind: KindGroup, Logic: listLogic, Children: list}, nil
	}
	var expr Expression
	if err := json.Unmarshal(trimmed, &expr); err != nil {
		return nil, err
	}
	return &expr, nil
}
