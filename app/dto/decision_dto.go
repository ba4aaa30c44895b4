package dto

import (
	"github.com/amirphl/nba-decision-core/models"
)

// Reasons given when no campaign is chosen
const (
	NoActivatableCampaigns = "no activatable campaigns"
	NoAudienceMatch        = "no audience match"
)

// DecideRequest asks for the next best action of one customer
type DecideRequest struct {
	CustomerID uint `json:"customerId" validate:"required"`
	ScoreAll   bool `json:"scoreAll"`
}

// Candidate is one scored campaign
type Candidate struct {
	CampaignID   uint                `json:"campaignId"`
	CampaignUUID string              `json:"campaignUuid"`
	Name         string              `json:"name"`
	Version      int                 `json:"version"`
	Score        float64             `json:"score"`
	ReasonCodes  []string            `json:"reasonCodes"`
	Factors      map[string]any      `json:"factors,omitempty"`
	Action       *models.ActionSpec  `json:"action,omitempty"`
	Benefit      *models.BenefitSpec `json:"benefit,omitempty"`
}

// DecisionResult is the outcome of arbitration. Winner is nil when nothing qualified.
type DecisionResult struct {
	DecisionID string      `json:"decisionId"`
	CustomerID uint        `json:"customerId"`
	Strategy   string      `json:"strategy"`
	Winner     *Candidate  `json:"winner,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// CampaignEvaluation is one campaign as seen by the eligibility view
type CampaignEvaluation struct {
	CampaignID   uint     `json:"campaignId"`
	Name         string   `json:"name"`
	Version      int      `json:"version"`
	Eligible     bool     `json:"eligible"`
	Reasons      []string `json:"reasons"`
	Score        *float64 `json:"score,omitempty"`
	ScoreReasons []string `json:"scoreReasons,omitempty"`
}

// EligibilityResult lists every activatable campaign with its verdict for one customer
type EligibilityResult struct {
	DecisionID  string               `json:"decisionId"`
	CustomerID  uint                 `json:"customerId"`
	Evaluations []CampaignEvaluation `json:"evaluations"`
	Winner      *CampaignEvaluation  `json:"winner,omitempty"`
}

// SimulateIssueRequest issues offers to the first eligible customers
type SimulateIssueRequest struct {
	Count   int    `json:"count"`
	Channel string `json:"channel" validate:"omitempty,oneof=SMS Email Memo"`
}

// SimulateIssueResult summarizes a simulated send
type SimulateIssueResult struct {
	CampaignID uint                      `json:"campaignId"`
	Version    int                       `json:"version"`
	Issued     []*models.OfferAssignment `json:"issued"`
	Skipped    int                       `json:"skipped"`
}

// AnalyticsSummary is the reach and conversion of one campaign
type AnalyticsSummary struct {
	CampaignID uint                    `json:"campaignId"`
	Reach      int64                   `json:"reach"`
	Redeemed   int64                   `json:"redeemed"`
	Conversion float64                 `json:"conversion"`
	ByChannel  []models.ChannelSummary `json:"byChannel"`
}

// ExportResult points at a written export
type ExportResult struct {
	Path     string `json:"path"`
	Location string `json:"location,omitempty"`
	Rows     int    `json:"rows"`
}
