package models

import (
	"time"

	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is one recorded mutation. Rows are append-only.
type AuditEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	EventID    string         `gorm:"size:21;not null;uniqueIndex:uk_audit_entries_event_id" json:"event_id"`
	ActorID    string         `gorm:"size:64;not null" json:"actor_id"`
	ActorRole  Role           `gorm:"size:16;not null" json:"actor_role"`
	Action     string         `gorm:"size:64;not null;index:idx_audit_entries_action" json:"action"`
	EntityType string         `gorm:"size:32;not null;index:idx_audit_entries_entity" json:"entity_type"`
	EntityID   string         `gorm:"size:64;not null;index:idx_audit_entries_entity" json:"entity_id"`
	Before     datatypes.JSON `gorm:"type:jsonb" json:"before,omitempty"`
	After      datatypes.JSON `gorm:"type:jsonb" json:"after,omitempty"`
	Diff       datatypes.JSON `gorm:"type:jsonb" json:"diff,omitempty"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_audit_entries_created_at" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Audit actions
const (
	AuditActionCreateNBA        = "CREATE_NBA"
	AuditActionUpdateGeneral    = "UPDATE_GENERAL"
	AuditActionDeleteNBA        = "DELETE_NBA"
	AuditActionCloneNBA         = "CLONE_NBA"
	AuditActionVersionBump      = "VERSION_BUMP"
	AuditActionStatusTransition = "STATUS_TRANSITION"
	AuditActionUpsertAudience   = "UPSERT_AUDIENCE"
	AuditActionUpsertAction     = "UPSERT_ACTION"
	AuditActionUpsertBenefit    = "UPSERT_BENEFIT"
	AuditActionCreateTemplate   = "CREATE_TEMPLATE"
	AuditActionUpsertTemplate   = "UPSERT_TEMPLATE"
	AuditActionLegalApproved    = "LEGAL_APPROVED"
	AuditActionLegalRejected    = "LEGAL_REJECTED"
	AuditActionArbitrationScore = "ARBITRATION_SCORE"
	AuditActionOfferIssued      = "OFFER_ISSUED"
	AuditActionOfferRedeemed    = "OFFER_REDEEMED"
)

// Audited entity types
const (
	EntityNBA             = "NBA"
	EntityCampaignVersion = "CampaignVersion"
	EntityAudience        = "Audience"
	EntityAction          = "Action"
	EntityBenefit         = "Benefit"
	EntityCommTemplate    = "CommTemplate"
	EntityLegalApproval   = "LegalApproval"
	EntityArbitration     = "Arbitration"
	EntityOffer           = "OfferAssignment"
)

// AuditEntryFilter represents filter criteria for audit queries
type AuditEntryFilter struct {
	EntityType    *string
	EntityID      *string
	Action        *string
	ActorID       *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
