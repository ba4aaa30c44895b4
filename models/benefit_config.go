package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BenefitType string

const (
	BenefitTypeOrderDiscount   BenefitType = "order_discount"
	BenefitTypeOneTimeCredit   BenefitType = "one_time_credit"
	BenefitTypeRecurringCredit BenefitType = "recurring_credit"
	BenefitTypeFreeAddOn       BenefitType = "free_add_on"
)

func (t BenefitType) Valid() bool {
	switch t {
	case BenefitTypeOrderDiscount, BenefitTypeOneTimeCredit, BenefitTypeRecurringCredit, BenefitTypeFreeAddOn:
		return true
	}
	return false
}

func (t *BenefitType) Scan(value any) error { return scanString(t, value) }

func (t BenefitType) Value() (driver.Value, error) { return valueString(t, t.Valid()) }

type BenefitUnit string

const (
	BenefitUnitPercent BenefitUnit = "percent"
	BenefitUnitUSD     BenefitUnit = "usd"
	BenefitUnitPoints  BenefitUnit = "points"
	BenefitUnitAddOn   BenefitUnit = "add_on"
)

func (u BenefitUnit) Valid() bool {
	switch u {
	case BenefitUnitPercent, BenefitUnitUSD, BenefitUnitPoints, BenefitUnitAddOn:
		return true
	}
	return false
}

func (u *BenefitUnit) Scan(value any) error { return scanString(u, value) }

func (u BenefitUnit) Value() (driver.Value, error) { return valueString(u, u.Valid()) }

// Redemption is how a customer redeems the benefit
type Redemption string

const (
	RedemptionAutoApply   Redemption = "auto_apply"
	RedemptionPromoCode   Redemption = "promo_code"
	RedemptionRepAssisted Redemption = "rep_assisted"
)

func (r Redemption) Valid() bool {
	switch r {
	case RedemptionAutoApply, RedemptionPromoCode, RedemptionRepAssisted:
		return true
	}
	return false
}

func (r *Redemption) Scan(value any) error { return scanString(r, value) }

func (r Redemption) Value() (driver.Value, error) { return valueString(r, r.Valid()) }

// Stackability says what else a benefit combines with
type Stackability struct {
	WithOtherOffers bool `json:"withOtherOffers"`
	WithPromotions  bool `json:"withPromotions"`
}

// BenefitSpec is the editable part of a benefit config
type BenefitSpec struct {
	BenefitType  BenefitType                      `gorm:"size:32;not null" json:"benefitType"`
	Value        decimal.Decimal                  `gorm:"type:numeric(12,2);not null" json:"value"`
	Unit         BenefitUnit                      `gorm:"size:16;not null" json:"unit"`
	Cap          decimal.Decimal                  `gorm:"type:numeric(12,2);not null" json:"cap"`
	MinSpend     decimal.NullDecimal              `gorm:"type:numeric(12,2)" json:"minSpend"`
	Stackability datatypes.JSONType[Stackability] `gorm:"type:jsonb;not null" json:"stackability"`
	Exclusions   pq.StringArray                   `gorm:"type:text[]" json:"exclusions"`
	Redemption   Redemption                       `gorm:"size:16;not null" json:"redemption"`
	Description  string                           `gorm:"size:240;not null" json:"description"`
}

// BenefitConfig is the benefit of one campaign version
type BenefitConfig struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;uniqueIndex:uk_benefit_configs_campaign_version" json:"campaign_id"`
	Version    int  `gorm:"not null;uniqueIndex:uk_benefit_configs_campaign_version" json:"version"`

	BenefitSpec `gorm:"embedded"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (BenefitConfig) TableName() string {
	return "benefit_configs"
}

func (b *BenefitConfig) BeforeCreate(tx *gorm.DB) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (b *BenefitConfig) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = utils.UTCNowPtr()
	return nil
}
