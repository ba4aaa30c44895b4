package rules

import (
	"fmt"
	"slices"
)

// InvalidRuleError describes a malformed node. Path locates the node, e.g. "include.rules[1]".
type InvalidRuleError struct {
	Path   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

var allowedOperators = map[ValueType][]Operator{
	TypeString:    {OpEq, OpNeq, OpIn},
	TypeBool:      {OpEq, OpNeq, OpIn},
	TypeNumber:    {OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn},
	TypeDate:      {OpWithinDays, OpIn},
	TypeStringSet: {OpContains, OpIn},
}

// OperatorsFor returns the operators accepted for a field type.
func OperatorsFor(t ValueType) []Operator {
	return slices.Clone(allowedOperators[t])
}

// Validate checks that every node is well formed and every condition uses an
// operator its field type supports.
func Validate(expr Expression, path string) error {
	switch expr.Kind {
	case KindGroup:
		if expr.Logic != LogicAnd && expr.Logic != LogicOr {
			return &InvalidRuleError{Path: path, Reason: fmt.Sprintf("group op must be AND or OR, got %q", expr.Logic)}
		}
		for i, child := range expr.Children {
			if err := Validate(child, fmt.Sprintf("%s.rules[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case KindCondition:
		if !expr.Field.Valid() {
			return &InvalidRuleError{Path: path, Reason: fmt.Sprintf("unknown field %q", expr.Field)}
		}
		if !slices.Contains(allowedOperators[expr.Field.Type()], expr.Operator) {
			return &InvalidRuleError{Path: path, Reason: fmt.Sprintf("operator %q not supported for field %q", expr.Operator, expr.Field)}
		}
		if expr.Value == nil {
			return &InvalidRuleError{Path: path, Reason: "value is required"}
		}
		if expr.Operator == OpWithinDays {
			if _, ok := toNumber(expr.Value); !ok {
				return &InvalidRuleError{Path: path, Reason: "withinDays requires a number of days"}
			}
		}
		return nil
	default:
		return &InvalidRuleError{Path: path, Reason: fmt.Sprintf("unknown kind %q", expr.Kind)}
	}
}

// ValidateAudience requires an include side with at least one condition and
// validates both sides.
func ValidateAudience(a Audience) error {
	if a.Include == nil || a.Include.Conditions() == 0 {
		return &InvalidRuleError{Path: "include", Reason: "at least one inclusion condition is required"}
	}
	if err := Validate(*a.Include, "include"); err != nil {
		return err
	}
	if a.Exclude != nil {
		if err := Validate(*a.Exclude, "exclude"); err != nil {
			return err
		}
	}
	return nil
}
