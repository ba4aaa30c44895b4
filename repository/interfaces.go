// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrDuplicateKey is returned when a write violates a unique constraint
var ErrDuplicateKey = errors.New("duplicate key")

// Transactor runs fn as one atomic unit. Repositories called with the ctx
// passed to fn take part in the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ByName(ctx context.Context, name string) (*models.Campaign, error)
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	// Delete removes the campaign together with its versions, sub-configs and templates
	Delete(ctx context.Context, id uint) error
}

// CampaignVersionRepository defines operations for campaign versions
type CampaignVersionRepository interface {
	Save(ctx context.Context, version *models.CampaignVersion) error
	ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*models.CampaignVersion, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignVersion, error)
	UpdateSnapshot(ctx context.Context, id uint, snapshot models.VersionSnapshot) error
}

// VersionedConfigRepository defines operations shared by the per-version sub-configs
type VersionedConfigRepository[T any] interface {
	ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*T, error)
	// Upsert inserts the config or replaces the one stored for the same campaign and version
	Upsert(ctx context.Context, config *T) error
	// CopyForward copies the config of version from into version to unless one is already there
	CopyForward(ctx context.Context, campaignID uint, from, to int) error
}

type AudienceConfigRepository interface {
	VersionedConfigRepository[models.AudienceConfig]
}

type ActionConfigRepository interface {
	VersionedConfigRepository[models.ActionConfig]
}

type BenefitConfigRepository interface {
	VersionedConfigRepository[models.BenefitConfig]
}

// CommTemplateRepository defines operations for communication templates
type CommTemplateRepository interface {
	ByID(ctx context.Context, id uint) (*models.CommTemplate, error)
	ByCampaignVersionChannel(ctx context.Context, campaignID uint, version int, channel models.Channel) (*models.CommTemplate, error)
	ListByCampaignVersion(ctx context.Context, campaignID uint, version int) ([]*models.CommTemplate, error)
	Save(ctx context.Context, template *models.CommTemplate) error
	Update(ctx context.Context, template *models.CommTemplate) error
	// CopyForward copies every template of version from into version to, skipping channels already
	// present, with legal status reset to In Review and no reviewer
	CopyForward(ctx context.Context, campaignID uint, from, to int) error
	LegalInbox(ctx context.Context, limit int) ([]*models.LegalInboxItem, error)
}

// LegalApprovalRepository defines operations for legal decisions
type LegalApprovalRepository interface {
	Save(ctx context.Context, approval *models.LegalApproval) error
	ListByTemplate(ctx context.Context, templateID uint) ([]*models.LegalApproval, error)
	CountByCampaign(ctx context.Context, campaignID uint) (int64, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	ByID(ctx context.Context, id uint) (*models.Customer, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	// ListAll returns every customer ordered by id
	ListAll(ctx context.Context) ([]*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	SaveBatch(ctx context.Context, customers []*models.Customer) error
}

// ArbitrationScoreRepository defines operations for arbitration scores
type ArbitrationScoreRepository interface {
	SaveBatch(ctx context.Context, scores []*models.ArbitrationScore) error
	ByFilter(ctx context.Context, filter models.ArbitrationScoreFilter, limit, offset int) ([]*models.ArbitrationScore, error)
}

// AuditEntryRepository defines operations for the audit trail
type AuditEntryRepository interface {
	Save(ctx context.Context, entry *models.AuditEntry) error
	// ListByEntity returns the entity's entries newest first
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
	ByFilter(ctx context.Context, filter models.AuditEntryFilter, limit, offset int) ([]*models.AuditEntry, error)
}

// OfferAssignmentRepository defines operations for issued offers
type OfferAssignmentRepository interface {
	SaveBatch(ctx context.Context, offers []*models.OfferAssignment) error
	ByUUID(ctx context.Context, id uuid.UUID) (*models.OfferAssignment, error)
	MarkRedeemed(ctx context.Context, id uint, at time.Time) error
	CountByCampaignCustomer(ctx context.Context, campaignID, customerID uint) (int64, error)
	Summary(ctx context.Context, campaignID uint) ([]models.ChannelSummary, error)
}
