package models

import (
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArbitrationScore is one scored candidate of one decision. Rows are append-only.
type ArbitrationScore struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	DecisionID  string         `gorm:"size:21;not null;index:idx_arbitration_scores_decision_id" json:"decision_id"`
	CustomerID  uint           `gorm:"not null;index:idx_arbitration_scores_customer_id" json:"customer_id"`
	CampaignID  uint           `gorm:"not null;index:idx_arbitration_scores_campaign_id" json:"campaign_id"`
	Version     int            `gorm:"not null" json:"version"`
	Strategy    string         `gorm:"size:32;not null" json:"strategy"`
	Score       float64        `gorm:"not null" json:"score"`
	Winner      bool           `gorm:"not null;default:false" json:"winner"`
	ReasonCodes pq.StringArray `gorm:"type:text[];not null" json:"reason_codes"`
	Factors     datatypes.JSON `gorm:"type:jsonb" json:"factors"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_arbitration_scores_created_at" json:"created_at"`
}

func (ArbitrationScore) TableName() string {
	return "arbitration_scores"
}

func (s *ArbitrationScore) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ArbitrationScoreFilter represents filter criteria for arbitration scores
type ArbitrationScoreFilter struct {
	DecisionID    *string
	CustomerID    *uint
	CampaignID    *uint
	Winner        *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
