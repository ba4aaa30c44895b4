// Package rules evaluates audience rule trees against flat customer records.
package rules

import (
	"slices"
	"time"
)

// Field is one of the closed set of customer attributes a condition may reference.
type Field string

const (
	FieldPlan            Field = "plan"
	FieldTenureMonths    Field = "tenure_months"
	FieldPurchases12mo   Field = "purchases_12mo"
	FieldComplaints12mo  Field = "complaints_12mo"
	FieldRiskFlag        Field = "risk_flag"
	FieldConsentSMS      Field = "consent_sms"
	FieldConsentEmail    Field = "consent_email"
	FieldABPEnrolled     Field = "abp_enrolled"
	FieldCreditCardExpAt Field = "credit_card_exp_at"
	FieldRiskFlags       Field = "risk_flags"
)

// ValueType is the static type bound to a field.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
	TypeStringSet
)

var fieldTypes = map[Field]ValueType{
	FieldPlan:            TypeString,
	FieldTenureMonths:    TypeNumber,
	FieldPurchases12mo:   TypeNumber,
	FieldComplaints12mo:  TypeNumber,
	FieldRiskFlag:        TypeBool,
	FieldConsentSMS:      TypeBool,
	FieldConsentEmail:    TypeBool,
	FieldABPEnrolled:     TypeBool,
	FieldCreditCardExpAt: TypeDate,
	FieldRiskFlags:       TypeStringSet,
}

var fieldAliases = map[string]Field{
	"tenureMonths":    FieldTenureMonths,
	"purchases12mo":   FieldPurchases12mo,
	"complaints12mo":  FieldComplaints12mo,
	"riskFlag":        FieldRiskFlag,
	"consentSms":      FieldConsentSMS,
	"consentEmail":    FieldConsentEmail,
	"abpEnrolled":     FieldABPEnrolled,
	"creditCardExpAt": FieldCreditCardExpAt,
	"riskFlags":       FieldRiskFlags,
}

// ParseField resolves a field name or one of its camelCase aliases.
func ParseField(name string) (Field, bool) {
	f := Field(name)
	if _, ok := fieldTypes[f]; ok {
		return f, true
	}
	if f, ok := fieldAliases[name]; ok {
		return f, true
	}
	return "", false
}

// Type returns the static value type of the field, TypeUnknown for unsupported fields.
func (f Field) Type() ValueType {
	return fieldTypes[f]
}

// Valid reports whether the field belongs to the supported set.
func (f Field) Valid() bool {
	return f.Type() != TypeUnknown
}

// Fields lists every supported field in a stable order.
func Fields() []Field {
	out := make([]Field, 0, len(fieldTypes))
	for f := range fieldTypes {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Record is the typed view of a customer that conditions are evaluated against.
type Record struct {
	Plan            string
	TenureMonths    int
	Purchases12mo   int
	Complaints12mo  int
	RiskFlag        bool
	ConsentSMS      bool
	ConsentEmail    bool
	ABPEnrolled     bool
	CreditCardExpAt *time.Time
	RiskFlags       []string
}

// fieldValue holds the resolved value of a field. present is false when the
// customer has no applicable value (e.g. no expiry date on file).
type fieldValue struct {
	typ     ValueType
	present bool
	str     string
	num     float64
	boolean bool
	date    time.Time
	set     []string
}

func (r Record) value(f Field) fieldValue {
	switch f {
	case FieldPlan:
		return fieldValue{typ: TypeString, present: true, str: r.Plan}
	case FieldTenureMonths:
		return fieldValue{typ: TypeNumber, present: true, num: float64(r.TenureMonths)}
	case FieldPurchases12mo:
		return fieldValue{typ: TypeNumber, present: true, num: float64(r.Purchases12mo)}
	case FieldComplaints12mo:
		return fieldValue{typ: TypeNumber, present: true, num: float64(r.Complaints12mo)}
	case FieldRiskFlag:
		return fieldValue{typ: TypeBool, present: true, boolean: r.RiskFlag}
	case FieldConsentSMS:
		return fieldValue{typ: TypeBool, present: true, boolean: r.ConsentSMS}
	case FieldConsentEmail:
		return fieldValue{typ: TypeBool, present: true, boolean: r.ConsentEmail}
	case FieldABPEnrolled:
		return fieldValue{typ: TypeBool, present: true, boolean: r.ABPEnrolled}
	case FieldCreditCardExpAt:
		if r.CreditCardExpAt == nil {
			return fieldValue{typ: TypeDate}
		}
		return fieldValue{typ: TypeDate, present: true, date: *r.CreditCardExpAt}
	case FieldRiskFlags:
		return fieldValue{typ: TypeStringSet, present: true, set: r.RiskFlags}
	default:
		return fieldValue{typ: TypeUnknown}
	}
}
