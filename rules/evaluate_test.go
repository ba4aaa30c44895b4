package rules

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedEvaluator() *Evaluator {
	return NewEvaluator(func() time.Time { return fixedNow })
}

func goldCustomer() Record {
	exp := fixedNow.AddDate(0, 0, 10)
	return Record{
		Plan:            "gold",
		TenureMonths:    24,
		Purchases12mo:   5,
		Complaints12mo:  1,
		ConsentSMS:      true,
		CreditCardExpAt: &exp,
		RiskFlags:       []string{"LATE_PAYMENT"},
	}
}

func TestEvaluateConditions(t *testing.T) {
	ev := fixedEvaluator()
	c := goldCustomer()

	tests := []struct {
		name string
		expr Expression
		want bool
	}{
		{"string equals", Cond(FieldPlan, OpEq, "gold"), true},
		{"string not equals", Cond(FieldPlan, OpNeq, "gold"), false},
		{"string ordering is fail-closed", Cond(FieldPlan, OpGt, "a"), false},
		{"string against number literal", Cond(FieldPlan, OpEq, 1), false},
		{"number greater", Cond(FieldTenureMonths, OpGt, 12), true},
		{"number greater or equal boundary", Cond(FieldTenureMonths, OpGte, 24), true},
		{"number less", Cond(FieldPurchases12mo, OpLt, 5), false},
		{"number less or equal", Cond(FieldComplaints12mo, OpLte, 1), true},
		{"number from numeric string", Cond(FieldTenureMonths, OpEq, "24"), true},
		{"number from garbage string", Cond(FieldTenureMonths, OpEq, "lots"), false},
		{"bool equals true", Cond(FieldConsentSMS, OpEq, true), true},
		{"bool equals string literal", Cond(FieldConsentSMS, OpEq, "true"), true},
		{"bool not equals", Cond(FieldConsentEmail, OpNeq, true), true},
		{"bool ordering is fail-closed", Cond(FieldConsentSMS, OpGt, true), false},
		{"equals alias", Cond(FieldABPEnrolled, ParseOperator("equals"), false), true},
		{"in with list", Cond(FieldPlan, OpIn, []any{"silver", "gold"}), true},
		{"in with scalar", Cond(FieldPlan, OpIn, "gold"), true},
		{"in misses", Cond(FieldPlan, OpIn, []any{"bronze"}), false},
		{"in on numbers", Cond(FieldTenureMonths, OpIn, []any{12.0, 24.0}), true},
		{"in on numbers is strict about type", Cond(FieldTenureMonths, OpIn, []any{"24"}), false},
		{"in on bool", Cond(FieldConsentSMS, OpIn, true), true},
		{"in on date by instant", Cond(FieldCreditCardExpAt, OpIn, []any{"2026-03-11T12:00:00Z"}), true},
		{"in on date by day", Cond(FieldCreditCardExpAt, OpIn, []any{"2026-01-01", "2026-03-11"}), true},
		{"in on date misses", Cond(FieldCreditCardExpAt, OpIn, "2026-03-12"), false},
		{"in on date with garbage", Cond(FieldCreditCardExpAt, OpIn, "soon"), false},
		{"within days inside window", Cond(FieldCreditCardExpAt, OpWithinDays, 45), true},
		{"within days outside window", Cond(FieldCreditCardExpAt, OpWithinDays, 5), false},
		{"contains flag", Cond(FieldRiskFlags, OpContains, "LATE_PAYMENT"), true},
		{"contains missing flag", Cond(FieldRiskFlags, OpContains, "HIGH_COMPLAINT_RISK"), false},
		{"contains on scalar field", Cond(FieldPlan, OpContains, "go"), false},
		{"unknown field", Cond(Field("shoe_size"), OpEq, 42), false},
		{"unknown operator", Cond(FieldPlan, Operator("~"), "gold"), false},
		{"nil value", Cond(FieldPlan, OpEq, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Evaluate(c, tt.expr))
		})
	}
}

func TestEvaluateGroups(t *testing.T) {
	ev := fixedEvaluator()
	c := goldCustomer()
	yes := Cond(FieldPlan, OpEq, "gold")
	no := Cond(FieldPlan, OpEq, "bronze")

	tests := []struct {
		name string
		expr Expression
		want bool
	}{
		{"empty AND is true", And(), true},
		{"empty OR is false", Or(), false},
		{"AND all true", And(yes, yes), true},
		{"AND one false", And(yes, no), false},
		{"OR one true", Or(no, yes), true},
		{"OR all false", Or(no, no), false},
		{"nested", And(yes, Or(no, And(yes, yes))), true},
		{"unknown logic", Expression{Kind: KindGroup, Logic: "XOR", Children: []Expression{yes}}, false},
		{"unknown kind", Expression{Kind: "weird"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Evaluate(c, tt.expr))
		})
	}
}

func TestEvaluateMissingValue(t *testing.T) {
	ev := fixedEvaluator()
	c := goldCustomer()
	c.CreditCardExpAt = nil

	assert.NotPanics(t, func() {
		assert.False(t, ev.Evaluate(c, Cond(FieldCreditCardExpAt, OpWithinDays, 45)))
		assert.False(t, ev.Evaluate(c, Cond(FieldCreditCardExpAt, OpIn, []any{"2026-01-01"})))
	})
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	ev := fixedEvaluator()
	c := goldCustomer()
	list := []any{"silver", "gold"}
	expr := And(Cond(FieldPlan, OpIn, list), Cond(FieldRiskFlags, OpContains, "LATE_PAYMENT"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, ev.Evaluate(c, expr))
		}()
	}
	wg.Wait()

	assert.Equal(t, []any{"silver", "gold"}, list)
	assert.Equal(t, []string{"LATE_PAYMENT"}, c.RiskFlags)
}

func TestAudienceMatchesAndExplain(t *testing.T) {
	ev := fixedEvaluator()
	audience := Audience{
		Include: ptr(And(Cond(FieldCreditCardExpAt, OpWithinDays, 45), Cond(FieldConsentSMS, OpEq, true))),
		Exclude: ptr(Or(Cond(FieldRiskFlags, OpContains, "HIGH_COMPLAINT_RISK"))),
	}

	t.Run("eligible", func(t *testing.T) {
		c := goldCustomer()
		assert.True(t, ev.Matches(c, audience))
		assert.Equal(t, Explanation{Eligible: true, Reasons: []string{ReasonAudienceMatch}}, ev.Explain(c, audience))
	})

	t.Run("suppressed by risk flag", func(t *testing.T) {
		c := goldCustomer()
		c.RiskFlags = append(c.RiskFlags, "HIGH_COMPLAINT_RISK")
		assert.False(t, ev.Matches(c, audience))
		assert.Equal(t, []string{ReasonSuppressedRiskFlag}, ev.Explain(c, audience).Reasons)
	})

	t.Run("no expiry date", func(t *testing.T) {
		c := goldCustomer()
		c.CreditCardExpAt = nil
		assert.Equal(t, []string{ReasonNoCCExpiryDate}, ev.Explain(c, audience).Reasons)
	})

	t.Run("expiry too far out", func(t *testing.T) {
		c := goldCustomer()
		far := fixedNow.AddDate(0, 3, 0)
		c.CreditCardExpAt = &far
		assert.Equal(t, []string{ReasonCCNotExpiringSoon}, ev.Explain(c, audience).Reasons)
	})

	t.Run("other include failure", func(t *testing.T) {
		c := goldCustomer()
		c.ConsentSMS = false
		assert.Equal(t, []string{ReasonIncludeRuleNotMet}, ev.Explain(c, audience).Reasons)
	})

	t.Run("abp mismatch", func(t *testing.T) {
		a := Audience{Include: ptr(Cond(FieldABPEnrolled, OpEq, true))}
		assert.Equal(t, []string{ReasonABPMismatch}, ev.Explain(goldCustomer(), a).Reasons)
	})

	t.Run("no include side", func(t *testing.T) {
		assert.False(t, ev.Matches(goldCustomer(), Audience{}))
		assert.Equal(t, []string{ReasonNoAudience}, ev.Explain(goldCustomer(), Audience{}).Reasons)
	})
}

func TestAudienceJSON(t *testing.T) {
	t.Run("include and exclude lists", func(t *testing.T) {
		raw := `{
			"include": [
				{"field": "creditCardExpAt", "operator": "withinDays", "value": 45},
				{"field": "consentSms", "operator": "equals", "value": true}
			],
			"exclude": [
				{"field": "riskFlags", "operator": "contains", "value": "HIGH_COMPLAINT_RISK"}
			]
		}`
		var a Audience
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		require.NotNil(t, a.Include)
		require.NotNil(t, a.Exclude)
		assert.Equal(t, LogicAnd, a.Include.Logic)
		assert.Equal(t, LogicOr, a.Exclude.Logic)
		assert.Equal(t, FieldCreditCardExpAt, a.Include.Children[0].Field)
		assert.Equal(t, OpEq, a.Include.Children[1].Operator)
		assert.NoError(t, ValidateAudience(a))
		assert.True(t, fixedEvaluator().Matches(goldCustomer(), a))
	})

	t.Run("bare group is the include side", func(t *testing.T) {
		raw := `{"kind":"group","op":"OR","rules":[{"kind":"condition","field":"plan","op":"=","value":"gold"}]}`
		var a Audience
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		require.NotNil(t, a.Include)
		assert.Nil(t, a.Exclude)
		assert.Equal(t, 1, a.Include.Conditions())
	})

	t.Run("group keeps false literals when written back", func(t *testing.T) {
		expr := And(Cond(FieldRiskFlag, OpEq, false))
		data, err := json.Marshal(expr)
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"group","op":"AND","rules":[{"kind":"condition","field":"risk_flag","op":"=","value":false}]}`, string(data))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		aud     Audience
		wantErr string
	}{
		{"missing include", Audience{}, "include: at least one inclusion condition is required"},
		{"empty include group", Audience{Include: ptr(And())}, "include: at least one inclusion condition is required"},
		{"bad operator for string", Audience{Include: ptr(Cond(FieldPlan, OpGt, "a"))}, `include: operator ">" not supported for field "plan"`},
		{"unknown field", Audience{Include: ptr(And(Cond(Field("x"), OpEq, 1)))}, `include.rules[0]: unknown field "x"`},
		{"within days needs number", Audience{Include: ptr(Cond(FieldCreditCardExpAt, OpWithinDays, "soon"))}, "include: withinDays requires a number of days"},
		{"bad exclude", Audience{Include: ptr(Cond(FieldPlan, OpEq, "gold")), Exclude: ptr(Expression{Kind: KindGroup, Logic: "NOT"})}, `exclude: group op must be AND or OR, got "NOT"`},
		{"in on date", Audience{Include: ptr(Cond(FieldCreditCardExpAt, OpIn, []any{"2026-03-11"}))}, ""},
		{"valid", Audience{Include: ptr(Cond(FieldTenureMonths, OpGte, 6))}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAudience(tt.aud)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func ptr(e Expression) *Expression {
	return &e
}
