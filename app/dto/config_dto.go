package dto

import (
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/rules"
	"github.com/shopspring/decimal"
)

// SaveAudienceRequest replaces the audience rule of a campaign
type SaveAudienceRequest struct {
	Rules         rules.Audience `json:"rules"`
	ChangeSummary string         `json:"changeSummary" validate:"max=500"`
}

// AudienceResult is the size of a saved or previewed audience
type AudienceResult struct {
	CampaignID   uint     `json:"campaignId"`
	Version      int      `json:"version"`
	SizeEstimate int      `json:"sizeEstimate"`
	Sample       []string `json:"sample"`
	Cached       bool     `json:"cached,omitempty"`
}

// SaveActionRequest replaces the action of a campaign
type SaveActionRequest struct {
	ActionType           string   `json:"actionType" validate:"required,oneof=purchase_sku change_plan enroll_abp update_payment_profile referral usage_milestone complete_profile"`
	CompletionEvent      string   `json:"completionEvent" validate:"required,min=2,max=120"`
	SaleChannels         []string `json:"saleChannels" validate:"required,min=1,unique,dive,oneof=Store Care SelfService Web"`
	OfferPriority        int      `json:"offerPriority" validate:"required,min=1,max=10"`
	MaxOffersPerCustomer int      `json:"maxOffersPerCustomer" validate:"required,min=1,max=10"`
	ChangeSummary        string   `json:"changeSummary" validate:"max=500"`
}

// SaveBenefitRequest replaces the benefit of a campaign
type SaveBenefitRequest struct {
	BenefitType   string              `json:"benefitType" validate:"required,oneof=order_discount one_time_credit recurring_credit free_add_on"`
	Value         decimal.Decimal     `json:"value"`
	Unit          string              `json:"unit" validate:"required,oneof=percent usd points add_on"`
	Cap           decimal.Decimal     `json:"cap"`
	MinSpend      *decimal.Decimal    `json:"minSpend"`
	Stackability  models.Stackability `json:"stackability"`
	Exclusions    []string            `json:"exclusions" validate:"omitempty,dive,min=1,max=64"`
	Redemption    string              `json:"redemption" validate:"required,oneof=auto_apply promo_code rep_assisted"`
	Description   string              `json:"description" validate:"required,min=3,max=240"`
	ChangeSummary string              `json:"changeSummary" validate:"max=500"`
}

// TemplateInput is the message for one channel
type TemplateInput struct {
	Channel string `json:"channel" validate:"required,oneof=SMS Email Memo"`
	Subject string `json:"subject" validate:"max=140"`
	Body    string `json:"body" validate:"required,min=3,max=4000"`
}

// UpsertCommsRequest creates or replaces templates, one per channel
type UpsertCommsRequest struct {
	Templates     []TemplateInput `json:"templates" validate:"required,min=1,dive"`
	ChangeSummary string          `json:"changeSummary" validate:"max=500"`
}

// LegalDecisionRequest approves or rejects a template
type LegalDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=Approved Rejected"`
	Comments string `json:"comments" validate:"max=2000"`
}
