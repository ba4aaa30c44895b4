package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OfferStatus string

const (
	OfferStatusIssued   OfferStatus = "Issued"
	OfferStatusRedeemed OfferStatus = "Redeemed"
)

func (s OfferStatus) Valid() bool {
	return s == OfferStatusIssued || s == OfferStatusRedeemed
}

func (s *OfferStatus) Scan(value any) error { return scanString(s, value) }

func (s OfferStatus) Value() (driver.Value, error) { return valueString(s, s.Valid()) }

// OfferAssignment is an offer issued to a customer by a simulated send
type OfferAssignment struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_offer_assignments_uuid" json:"uuid"`
	CampaignID uint        `gorm:"not null;index:idx_offer_assignments_campaign_id" json:"campaign_id"`
	Version    int         `gorm:"not null" json:"version"`
	CustomerID uint        `gorm:"not null;index:idx_offer_assignments_customer_id" json:"customer_id"`
	Channel    Channel     `gorm:"size:16;not null" json:"channel"`
	PromoCode  *string     `gorm:"size:16" json:"promo_code,omitempty"`
	Status     OfferStatus `gorm:"size:16;not null;default:'Issued'" json:"status"`
	IssuedAt   time.Time   `gorm:"not null" json:"issued_at"`
	RedeemedAt *time.Time  `json:"redeemed_at,omitempty"`
}

func (OfferAssignment) TableName() string {
	return "offer_assignments"
}

func (o *OfferAssignment) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OfferStatusIssued
	}
	if o.IssuedAt.IsZero() {
		o.IssuedAt = utils.UTCNow()
	}
	return nil
}

// ChannelSummary is the reach and redemption count of one channel
type ChannelSummary struct {
	Channel  Channel `json:"channel"`
	Issued   int64   `json:"issued"`
	Redeemed int64   `json:"redeemed"`
}
