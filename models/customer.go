package models

import (
	"slices"
	"time"

	"github.com/amirphl/nba-decision-core/rules"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Customer is the flat attribute record audience rules are evaluated against
type Customer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Plan            string         `gorm:"size:64;not null;index:idx_customers_plan" json:"plan"`
	TenureMonths    int            `gorm:"not null;default:0" json:"tenure_months"`
	Purchases12mo   int            `gorm:"column:purchases_12mo;not null;default:0" json:"purchases_12mo"`
	Complaints12mo  int            `gorm:"column:complaints_12mo;not null;default:0" json:"complaints_12mo"`
	RiskFlag        bool           `gorm:"not null;default:false" json:"risk_flag"`
	ConsentSMS      bool           `gorm:"column:consent_sms;not null;default:false" json:"consent_sms"`
	ConsentEmail    bool           `gorm:"not null;default:false" json:"consent_email"`
	ABPEnrolled     bool           `gorm:"column:abp_enrolled;not null;default:false" json:"abp_enrolled"`
	CreditCardExpAt *time.Time     `json:"credit_card_exp_at,omitempty"`
	RiskFlags       pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"risk_flags"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// RuleRecord projects the customer onto the fields audience rules can reference
func (c *Customer) RuleRecord() rules.Record {
	return rules.Record{
		Plan:            c.Plan,
		TenureMonths:    c.TenureMonths,
		Purchases12mo:   c.Purchases12mo,
		Complaints12mo:  c.Complaints12mo,
		RiskFlag:        c.RiskFlag,
		ConsentSMS:      c.ConsentSMS,
		ConsentEmail:    c.ConsentEmail,
		ABPEnrolled:     c.ABPEnrolled,
		CreditCardExpAt: c.CreditCardExpAt,
		RiskFlags:       slices.Clone([]string(c.RiskFlags)),
	}
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID   *uint
	UUID *uuid.UUID
	Plan *string
}
