package rules

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Evaluator decides whether a Record satisfies an Expression. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an evaluator reading the current time from now.
// A nil clock falls back to time.Now.
func NewEvaluator(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

var defaultEvaluator = &Evaluator{}

// Evaluate evaluates expr against r using the wall clock.
func Evaluate(r Record, expr Expression) bool {
	return defaultEvaluator.Evaluate(r, expr)
}

// Matches reports whether r belongs to the audience, using the wall clock.
func Matches(r Record, a Audience) bool {
	return defaultEvaluator.Matches(r, a)
}

func (e *Evaluator) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now().UTC()
	}
	return e.now()
}

// Evaluate returns true iff r satisfies expr. Malformed nodes evaluate to false.
func (e *Evaluator) Evaluate(r Record, expr Expression) bool {
	return e.eval(r, expr, e.clock())
}

// Matches reports whether r satisfies the include side and not the exclude side.
// An audience without an include side matches nobody.
func (e *Evaluator) Matches(r Record, a Audience) bool {
	if a.Include == nil {
		return false
	}
	now := e.clock()
	if !e.eval(r, *a.Include, now) {
		return false
	}
	return a.Exclude == nil || !e.eval(r, *a.Exclude, now)
}

func (e *Evaluator) eval(r Record, expr Expression, now time.Time) bool {
	switch expr.Kind {
	case KindGroup:
		switch expr.Logic {
		case LogicAnd:
			for _, child := range expr.Children {
				if !e.eval(r, child, now) {
					return false
				}
			}
			return true
		case LogicOr:
			for _, child := range expr.Children {
				if e.eval(r, child, now) {
					return true
				}
			}
			return false
		default:
			return false
		}
	case KindCondition:
		return evalCondition(r.value(expr.Field), expr.Operator, expr.Value, now)
	default:
		return false
	}
}

func evalCondition(fv fieldValue, op Operator, value any, now time.Time) bool {
	if fv.typ == TypeUnknown || !fv.present {
		return false
	}

	switch op {
	case OpIn:
		for _, candidate := range asList(value) {
			if equalsLiteral(fv, candidate) {
				return true
			}
		}
		return false
	case OpWithinDays:
		if fv.typ != TypeDate {
			return false
		}
		days, ok := toNumber(value)
		if !ok {
			return false
		}
		cutoff := now.Add(time.Duration(days * float64(24*time.Hour)))
		return !fv.date.After(cutoff)
	case OpContains:
		if fv.typ != TypeStringSet {
			return false
		}
		s, ok := value.(string)
		return ok && slices.Contains(fv.set, s)
	}

	switch fv.typ {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return fv.str == s
		case OpNeq:
			return fv.str != s
		}
	case TypeBool:
		b, ok := toBool(value)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return fv.boolean == b
		case OpNeq:
			return fv.boolean != b
		}
	case TypeNumber:
		n, ok := toNumber(value)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return fv.num == n
		case OpNeq:
			return fv.num != n
		case OpGt:
			return fv.num > n
		case OpGte:
			return fv.num >= n
		case OpLt:
			return fv.num < n
		case OpLte:
			return fv.num <= n
		}
	}
	return false
}

// equalsLiteral is the strict equality used by "in": the literal must carry
// the field's own type.
func equalsLiteral(fv fieldValue, literal any) bool {
	switch fv.typ {
	case TypeString:
		s, ok := literal.(string)
		return ok && s == fv.str
	case TypeBool:
		b, ok := literal.(bool)
		return ok && b == fv.boolean
	case TypeNumber:
		if _, isString := literal.(string); isString {
			return false
		}
		n, ok := toNumber(literal)
		return ok && n == fv.num
	case TypeStringSet:
		s, ok := literal.(string)
		return ok && slices.Contains(fv.set, s)
	case TypeDate:
		return sameDate(fv.date, literal)
	default:
		return false
	}
}

// sameDate matches a timestamp literal to the instant, and a bare
// YYYY-MM-DD literal to the UTC calendar day.
func sameDate(at time.Time, literal any) bool {
	switch v := literal.(type) {
	case time.Time:
		return v.Equal(at)
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Equal(at)
		}
		if d, err := time.Parse(time.DateOnly, s); err == nil {
			return at.UTC().Format(time.DateOnly) == d.Format(time.DateOnly)
		}
	}
	return false
}

func asList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []bool:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return []any{v}
	}
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true"), true
	default:
		return false, false
	}
}

func toNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
