package models

import (
	"time"

	"github.com/amirphl/nba-decision-core/rules"
	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CampaignSnapshot is the general part of a version snapshot
type CampaignSnapshot struct {
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	Priority          int       `json:"priority"`
	ArbitrationWeight float64   `json:"arbitrationWeight"`
}

// TemplateSnapshot is a comm template as captured in a version snapshot
type TemplateSnapshot struct {
	Channel     Channel     `json:"channel"`
	Subject     string      `json:"subject,omitempty"`
	Body        string      `json:"body"`
	Tokens      []string    `json:"tokens"`
	LegalStatus LegalStatus `json:"legalStatus"`
}

// VersionSnapshot is the full configuration of a campaign at one version
type VersionSnapshot struct {
	Campaign  CampaignSnapshot   `json:"campaign"`
	Audience  *rules.Audience    `json:"audience,omitempty"`
	Action    *ActionSpec        `json:"action,omitempty"`
	Benefit   *BenefitSpec       `json:"benefit,omitempty"`
	Templates []TemplateSnapshot `json:"templates,omitempty"`
}

// CampaignVersion is one numbered configuration of a campaign
type CampaignVersion struct {
	ID             uint                                `gorm:"primaryKey" json:"id"`
	CampaignID     uint                                `gorm:"not null;uniqueIndex:uk_campaign_versions_campaign_version" json:"campaign_id"`
	Version        int                                 `gorm:"not null;uniqueIndex:uk_campaign_versions_campaign_version" json:"version"`
	Snapshot       datatypes.JSONType[VersionSnapshot] `gorm:"type:jsonb;not null" json:"snapshot"`
	MaterialChange bool                                `gorm:"not null;default:false" json:"material_change"`
	ChangeSummary  string                              `gorm:"type:text;not null;default:''" json:"change_summary"`
	CreatedBy      string                              `gorm:"size:64;not null" json:"created_by"`
	CreatedAt      time.Time                           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CampaignVersion) TableName() string {
	return "campaign_versions"
}

func (v *CampaignVersion) BeforeCreate(tx *gorm.DB) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = utils.UTCNow()
	}
	return nil
}

// NewSnapshot wraps a snapshot for storage in a jsonb column
func NewSnapshot(s VersionSnapshot) datatypes.JSONType[VersionSnapshot] {
	return datatypes.NewJSONType(s)
}
