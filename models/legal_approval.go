package models

import (
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/gorm"
)

// LegalApproval is one reviewer decision on a template. Rows are append-only.
type LegalApproval struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	TemplateID uint        `gorm:"not null;index:idx_legal_approvals_template_id" json:"template_id"`
	CampaignID uint        `gorm:"not null;index:idx_legal_approvals_campaign_id" json:"campaign_id"`
	Version    int         `gorm:"not null" json:"version"`
	Decision   LegalStatus `gorm:"size:16;not null" json:"decision"`
	Comments   string      `gorm:"type:text;not null;default:''" json:"comments"`
	ReviewerID string      `gorm:"size:64;not null" json:"reviewer_id"`
	CreatedAt  time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (LegalApproval) TableName() string {
	return "legal_approvals"
}

func (l *LegalApproval) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}
