package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"gorm.io/gorm"
)

// AuditEntryRepositoryImpl implements the AuditEntryRepository interface
type AuditEntryRepositoryImpl struct {
	*BaseRepository[models.AuditEntry, models.AuditEntryFilter]
}

// NewAuditEntryRepository creates a new audit repository
func NewAuditEntryRepository(db *gorm.DB) AuditEntryRepository {
	return &AuditEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditEntry, models.AuditEntryFilter](db),
	}
}

func (r *AuditEntryRepositoryImpl) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	return r.ByFilter(ctx, models.AuditEntryFilter{EntityType: &entityType, EntityID: &entityID}, 0, 0)
}

// ByFilter returns matching entries, newest first
func (r *AuditEntryRepositoryImpl) ByFilter(ctx context.Context, filter models.AuditEntryFilter, limit, offset int) ([]*models.AuditEntry, error) {
	db := r.getDB(ctx).Model(&models.AuditEntry{})

	if filter.EntityType != nil {
		db = db.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		db = db.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Action != nil {
		db = db.Where("action = ?", *filter.Action)
	}
	if filter.ActorID != nil {
		db = db.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	db = db.Order("created_at DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var entries []*models.AuditEntry
	if err := db.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", err)
	}
	return entries, nil
}
