package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Channel is a customer-facing communication channel
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "Email"
	ChannelMemo  Channel = "Memo"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelMemo:
		return true
	}
	return false
}

func (c *Channel) Scan(value any) error { return scanString(c, value) }

func (c Channel) Value() (driver.Value, error) { return valueString(c, c.Valid()) }

// LegalStatus is the legal review state of a template, independent of the campaign status
type LegalStatus string

const (
	LegalStatusDraft    LegalStatus = "Draft"
	LegalStatusInReview LegalStatus = "In Review"
	LegalStatusApproved LegalStatus = "Approved"
	LegalStatusRejected LegalStatus = "Rejected"
)

func (s LegalStatus) Valid() bool {
	switch s {
	case LegalStatusDraft, LegalStatusInReview, LegalStatusApproved, LegalStatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether s is a status a reviewer may set
func (s LegalStatus) IsDecision() bool {
	return s == LegalStatusApproved || s == LegalStatusRejected
}

func (s *LegalStatus) Scan(value any) error { return scanString(s, value) }

func (s LegalStatus) Value() (driver.Value, error) { return valueString(s, s.Valid()) }

// CommTemplate is the message for one channel of one campaign version
type CommTemplate struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_comm_templates_uuid" json:"uuid"`
	CampaignID  uint           `gorm:"not null;uniqueIndex:uk_comm_templates_campaign_version_channel" json:"campaign_id"`
	Version     int            `gorm:"not null;uniqueIndex:uk_comm_templates_campaign_version_channel" json:"version"`
	Channel     Channel        `gorm:"size:16;not null;uniqueIndex:uk_comm_templates_campaign_version_channel" json:"channel"`
	Subject     string         `gorm:"size:140;not null;default:''" json:"subject"`
	Body        string         `gorm:"type:text;not null" json:"body"`
	Tokens      pq.StringArray `gorm:"type:text[];not null" json:"tokens"`
	LegalStatus LegalStatus    `gorm:"size:16;not null;default:'In Review';index:idx_comm_templates_legal_status" json:"legal_status"`
	ReviewedBy  *string        `gorm:"size:64" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

func (CommTemplate) TableName() string {
	return "comm_templates"
}

func (t *CommTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.LegalStatus == "" {
		t.LegalStatus = LegalStatusInReview
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate fills UpdatedAt when the caller left it unset
func (t *CommTemplate) BeforeUpdate(tx *gorm.DB) error {
	if t.UpdatedAt == nil {
		t.UpdatedAt = utils.UTCNowPtr()
	}
	return nil
}

// Snapshot returns the template as captured in a version snapshot
func (t *CommTemplate) Snapshot() TemplateSnapshot {
	return TemplateSnapshot{
		Channel:     t.Channel,
		Subject:     t.Subject,
		Body:        t.Body,
		Tokens:      append([]string{}, t.Tokens...),
		LegalStatus: t.LegalStatus,
	}
}

// CommTemplateFilter represents filter criteria for comm templates
type CommTemplateFilter struct {
	ID            *uint
	CampaignID    *uint
	Version       *int
	Channel       *Channel
	LegalStatuses []LegalStatus
}

// LegalInboxItem is a template awaiting or failing legal review
type LegalInboxItem struct {
	Template     CommTemplate `json:"template"`
	CampaignName string       `json:"campaign_name"`
}
