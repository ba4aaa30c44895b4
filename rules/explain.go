package rules

import "time"

// Reason codes attached to eligibility decisions.
const (
	ReasonAudienceMatch      = "AUDIENCE_MATCH"
	ReasonNoCCExpiryDate     = "NO_CC_EXPIRY_DATE"
	ReasonCCNotExpiringSoon  = "CC_NOT_EXPIRING_SOON"
	ReasonABPMismatch        = "ABP_MISMATCH"
	ReasonIncludeRuleNotMet  = "INCLUDE_RULE_NOT_MET"
	ReasonSuppressedRiskFlag = "SUPPRESSED_RISK_FLAG"
	ReasonExcludedByRule     = "EXCLUDED_BY_RULE"
	ReasonNoAudience         = "NO_AUDIENCE"
)

// Explanation is the outcome of an audience check with the codes that drove it.
type Explanation struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Explain evaluates the audience like Matches and names why r was accepted or
// rejected. The first failing include condition or the first matching exclude
// condition determines the reason.
func (e *Evaluator) Explain(r Record, a Audience) Explanation {
	if a.Include == nil {
		return Explanation{Reasons: []string{ReasonNoAudience}}
	}
	now := e.clock()

	if !e.eval(r, *a.Include, now) {
		return Explanation{Reasons: []string{e.includeFailure(r, *a.Include, now)}}
	}
	if a.Exclude != nil && e.eval(r, *a.Exclude, now) {
		return Explanation{Reasons: []string{e.excludeMatch(r, *a.Exclude, now)}}
	}
	return Explanation{Eligible: true, Reasons: []string{ReasonAudienceMatch}}
}

// Explain explains the audience check using the wall clock.
func Explain(r Record, a Audience) Explanation {
	return defaultEvaluator.Explain(r, a)
}

func (e *Evaluator) includeFailure(r Record, expr Expression, now time.Time) string {
	if expr.IsGroup() {
		if expr.Logic != LogicAnd {
			return ReasonIncludeRuleNotMet
		}
		for _, child := range expr.Children {
			if !e.eval(r, child, now) {
				return e.includeFailure(r, child, now)
			}
		}
		return ReasonIncludeRuleNotMet
	}

	switch {
	case expr.Operator == OpWithinDays && expr.Field.Type() == TypeDate:
		if !r.value(expr.Field).present {
			return ReasonNoCCExpiryDate
		}
		return ReasonCCNotExpiringSoon
	case expr.Field == FieldABPEnrolled:
		return ReasonABPMismatch
	default:
		return ReasonIncludeRuleNotMet
	}
}

func (e *Evaluator) excludeMatch(r Record, expr Expression, now time.Time) string {
	if expr.IsGroup() {
		for _, child := range expr.Children {
			if e.eval(r, child, now) {
				return e.excludeMatch(r, child, now)
			}
		}
		return ReasonExcludedByRule
	}
	if expr.Field == FieldRiskFlags || expr.Field == FieldRiskFlag {
		return ReasonSuppressedRiskFlag
	}
	return ReasonExcludedByRule
}
