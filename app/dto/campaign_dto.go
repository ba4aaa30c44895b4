package dto

import (
	"time"

	"github.com/amirphl/nba-decision-core/models"
)

// CampaignGeneralRequest carries the general details of a campaign
type CampaignGeneralRequest struct {
	Name              string    `json:"name" validate:"required,min=3,max=120"`
	Description       string    `json:"description" validate:"max=1000"`
	StartDate         time.Time `json:"startDate" validate:"required"`
	EndDate           time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
	Priority          int       `json:"priority" validate:"omitempty,min=1,max=10"`
	ArbitrationWeight float64   `json:"arbitrationWeight" validate:"omitempty,gte=0.1,lte=10"`
	ChangeSummary     string    `json:"changeSummary" validate:"max=500"`
}

// ListCampaignsRequest filters the campaign list
type ListCampaignsRequest struct {
	Statuses []models.CampaignStatus `json:"statuses"`
	Limit    int                     `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset   int                     `json:"offset" validate:"omitempty,min=0"`
}

// VersionDiff is the difference between two snapshots of one campaign
type VersionDiff struct {
	CampaignID  uint     `json:"campaignId"`
	From        int      `json:"from"`
	To          int      `json:"to"`
	MergePatch  any      `json:"mergePatch"`
	ChangedKeys []string `json:"changedKeys"`
}

// EditResult reports the version an edit landed on
type EditResult struct {
	Campaign        *models.Campaign `json:"campaign"`
	Version         int              `json:"version"`
	PreviousVersion int              `json:"previousVersion"`
	Material        bool             `json:"material"`
}

// TransitionResult is the outcome of a successful status change
type TransitionResult struct {
	CampaignID uint                  `json:"campaignId"`
	From       models.CampaignStatus `json:"from"`
	To         models.CampaignStatus `json:"to"`
}

// ReconcileResult lists the campaigns a sweep expired
type ReconcileResult struct {
	Expired []uint `json:"expired"`
}

// TransitionRequest moves a campaign to another lifecycle status
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}
