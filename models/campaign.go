// Package models contains the persisted entities of the campaign decision core
package models

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft         CampaignStatus = "Draft"
	CampaignStatusSubmitted     CampaignStatus = "Submitted"
	CampaignStatusInLegalReview CampaignStatus = "In Legal Review"
	CampaignStatusApproved      CampaignStatus = "Approved"
	CampaignStatusRejected      CampaignStatus = "Rejected"
	CampaignStatusInTesting     CampaignStatus = "In Testing"
	CampaignStatusScheduled     CampaignStatus = "Scheduled"
	CampaignStatusPublishing    CampaignStatus = "Publishing"
	CampaignStatusPublished     CampaignStatus = "Published"
	CampaignStatusTerminated    CampaignStatus = "Terminated"
	CampaignStatusExpired       CampaignStatus = "Expired"
	CampaignStatusCompleted     CampaignStatus = "Completed"
	CampaignStatusArchived      CampaignStatus = "Archived"
	CampaignStatusCancelled     CampaignStatus = "Cancelled"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:         {CampaignStatusSubmitted, CampaignStatusCancelled, CampaignStatusArchived},
	CampaignStatusSubmitted:     {CampaignStatusInLegalReview, CampaignStatusCancelled},
	CampaignStatusInLegalReview: {CampaignStatusApproved, CampaignStatusRejected},
	CampaignStatusRejected:      {CampaignStatusDraft, CampaignStatusArchived, CampaignStatusCancelled},
	CampaignStatusApproved:      {CampaignStatusInTesting, CampaignStatusScheduled, CampaignStatusArchived, CampaignStatusCancelled},
	CampaignStatusInTesting:     {CampaignStatusApproved, CampaignStatusScheduled, CampaignStatusCancelled},
	CampaignStatusScheduled:     {CampaignStatusPublishing, CampaignStatusCancelled, CampaignStatusArchived},
	CampaignStatusPublishing:    {CampaignStatusPublished, CampaignStatusCancelled},
	CampaignStatusPublished:     {CampaignStatusTerminated, CampaignStatusCompleted, CampaignStatusExpired},
	CampaignStatusExpired:       {CampaignStatusArchived, CampaignStatusCompleted},
	CampaignStatusTerminated:    {CampaignStatusCompleted, CampaignStatusArchived},
	CampaignStatusCompleted:     {CampaignStatusArchived},
	CampaignStatusCancelled:     {CampaignStatusArchived},
	CampaignStatusArchived:      {},
}

// AllCampaignStatuses lists every status in declaration order
func AllCampaignStatuses() []CampaignStatus {
	return []CampaignStatus{
		CampaignStatusDraft, CampaignStatusSubmitted, CampaignStatusInLegalReview,
		CampaignStatusApproved, CampaignStatusRejected, CampaignStatusInTesting,
		CampaignStatusScheduled, CampaignStatusPublishing, CampaignStatusPublished,
		CampaignStatusTerminated, CampaignStatusExpired, CampaignStatusCompleted,
		CampaignStatusArchived, CampaignStatusCancelled,
	}
}

// ActivatableStatuses are the statuses whose campaigns take part in arbitration
func ActivatableStatuses() []CampaignStatus {
	return []CampaignStatus{CampaignStatusPublished, CampaignStatusScheduled}
}

// ParseCampaignStatus accepts both the display form ("In Legal Review") and the
// compact form ("InLegalReview"), case-insensitively.
func ParseCampaignStatus(s string) (CampaignStatus, bool) {
	compact := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, status := range AllCampaignStatuses() {
		if strings.ToLower(strings.ReplaceAll(string(status), " ", "")) == compact {
			return status, true
		}
	}
	return "", false
}

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	_, ok := campaignTransitions[s]
	return ok
}

// AllowedTransitions returns the statuses reachable from s in one step
func (s CampaignStatus) AllowedTransitions() []CampaignStatus {
	return slices.Clone(campaignTransitions[s])
}

// IsTerminal reports whether nothing but archiving (or nothing at all) follows
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusArchived
}

// IsActivation reports whether entering s requires every template to be legally approved
func (s CampaignStatus) IsActivation() bool {
	return s == CampaignStatusScheduled || s == CampaignStatusPublishing || s == CampaignStatusPublished
}

// Expirable reports whether a campaign in s turns Expired once its end date passes
func (s CampaignStatus) Expirable() bool {
	switch s {
	case CampaignStatusApproved, CampaignStatusInTesting, CampaignStatusScheduled,
		CampaignStatusPublishing, CampaignStatusPublished:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign is a configured next best action
type Campaign struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name              string         `gorm:"size:120;not null;uniqueIndex:uk_campaigns_name" json:"name"`
	Description       string         `gorm:"type:text;not null;default:''" json:"description"`
	StartDate         time.Time      `gorm:"not null" json:"start_date"`
	EndDate           time.Time      `gorm:"not null;index:idx_campaigns_end_date" json:"end_date"`
	Status            CampaignStatus `gorm:"size:32;not null;default:'Draft';index:idx_campaigns_status" json:"status"`
	OwnerID           string         `gorm:"size:64;not null" json:"owner_id"`
	Priority          int            `gorm:"not null;default:5" json:"priority"`
	ArbitrationWeight float64        `gorm:"not null;default:1" json:"arbitration_weight"`
	CurrentVersion    int            `gorm:"not null;default:1" json:"current_version"`
	CreatedAt         time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CurrentVersion == 0 {
		c.CurrentVersion = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks if the campaign can move to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	return slices.Contains(campaignTransitions[c.Status], newStatus)
}

// IsStale reports whether the campaign should read as Expired at the given time
func (c *Campaign) IsStale(at time.Time) bool {
	return c.Status.Expirable() && c.EndDate.Before(at)
}

// IsActivatable reports whether the campaign takes part in arbitration
func (c *Campaign) IsActivatable() bool {
	return slices.Contains(ActivatableStatuses(), c.Status)
}

// IsMaterialEdit reports whether an edit of the given kind forks a new version
func (c *Campaign) IsMaterialEdit(kind EditKind) bool {
	return c.Status != CampaignStatusDraft && kind != EditKindGeneral
}

// Key is the stable identifier used for tie-breaking and audit references
func (c *Campaign) Key() string {
	return c.UUID.String()
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	Name      *string
	Statuses  []CampaignStatus
	EndBefore *time.Time
}
