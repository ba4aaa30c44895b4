package models

import (
	"time"

	"github.com/amirphl/nba-decision-core/rules"
	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AudienceConfig is the audience rule of one campaign version
type AudienceConfig struct {
	ID           uint                               `gorm:"primaryKey" json:"id"`
	CampaignID   uint                               `gorm:"not null;uniqueIndex:uk_audience_configs_campaign_version" json:"campaign_id"`
	Version      int                                `gorm:"not null;uniqueIndex:uk_audience_configs_campaign_version" json:"version"`
	Rules        datatypes.JSONType[rules.Audience] `gorm:"type:jsonb;not null" json:"rules"`
	SizeEstimate int                                `gorm:"not null;default:0" json:"size_estimate"`
	CreatedAt    time.Time                          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time                         `json:"updated_at,omitempty"`
}

func (AudienceConfig) TableName() string {
	return "audience_configs"
}

func (a *AudienceConfig) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (a *AudienceConfig) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// Audience returns the decoded rule tree
func (a *AudienceConfig) Audience() rules.Audience {
	return a.Rules.Data()
}
