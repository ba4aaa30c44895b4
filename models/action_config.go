package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ActionType is what the customer is asked to do
type ActionType string

const (
	ActionTypePurchaseSKU          ActionType = "purchase_sku"
	ActionTypeChangePlan           ActionType = "change_plan"
	ActionTypeEnrollABP            ActionType = "enroll_abp"
	ActionTypeUpdatePaymentProfile ActionType = "update_payment_profile"
	ActionTypeReferral             ActionType = "referral"
	ActionTypeUsageMilestone       ActionType = "usage_milestone"
	ActionTypeCompleteProfile      ActionType = "complete_profile"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionTypePurchaseSKU, ActionTypeChangePlan, ActionTypeEnrollABP, ActionTypeUpdatePaymentProfile,
		ActionTypeReferral, ActionTypeUsageMilestone, ActionTypeCompleteProfile:
		return true
	}
	return false
}

func (t *ActionType) Scan(value any) error { return scanString(t, value) }

func (t ActionType) Value() (driver.Value, error) { return valueString(t, t.Valid()) }

// SaleChannel is where an action may be completed
type SaleChannel string

const (
	SaleChannelStore       SaleChannel = "Store"
	SaleChannelCare        SaleChannel = "Care"
	SaleChannelSelfService SaleChannel = "SelfService"
	SaleChannelWeb         SaleChannel = "Web"
)

func (c SaleChannel) Valid() bool {
	switch c {
	case SaleChannelStore, SaleChannelCare, SaleChannelSelfService, SaleChannelWeb:
		return true
	}
	return false
}

// ActionSpec is the editable part of an action config
type ActionSpec struct {
	ActionType           ActionType     `gorm:"size:32;not null" json:"actionType"`
	CompletionEvent      string         `gorm:"size:120;not null" json:"completionEvent"`
	SaleChannels         pq.StringArray `gorm:"type:text[];not null" json:"saleChannels"`
	OfferPriority        int            `gorm:"not null;default:5" json:"offerPriority"`
	MaxOffersPerCustomer int            `gorm:"not null;default:1" json:"maxOffersPerCustomer"`
}

// ActionConfig is the action of one campaign version
type ActionConfig struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;uniqueIndex:uk_action_configs_campaign_version" json:"campaign_id"`
	Version    int  `gorm:"not null;uniqueIndex:uk_action_configs_campaign_version" json:"version"`

	ActionSpec `gorm:"embedded"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (ActionConfig) TableName() string {
	return "action_configs"
}

func (a *ActionConfig) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (a *ActionConfig) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = utils.UTCNowPtr()
	return nil
}
