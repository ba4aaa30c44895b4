package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VersionedConfigRepositoryImpl stores one sub-config row per (campaign, version)
type VersionedConfigRepositoryImpl[T any] struct {
	*BaseRepository[T, struct{}]
	table string
	// payload columns, copied forward and replaced on upsert
	columns []string
}

func NewAudienceConfigRepository(db *gorm.DB) AudienceConfigRepository {
	return &VersionedConfigRepositoryImpl[models.AudienceConfig]{
		BaseRepository: NewBaseRepository[models.AudienceConfig, struct{}](db),
		table:          models.AudienceConfig{}.TableName(),
		columns:        []string{"rules", "size_estimate"},
	}
}

func NewActionConfigRepository(db *gorm.DB) ActionConfigRepository {
	return &VersionedConfigRepositoryImpl[models.ActionConfig]{
		BaseRepository: NewBaseRepository[models.ActionConfig, struct{}](db),
		table:          models.ActionConfig{}.TableName(),
		columns: []string{
			"action_type", "completion_event", "sale_channels",
			"offer_priority", "max_offers_per_customer",
		},
	}
}

func NewBenefitConfigRepository(db *gorm.DB) BenefitConfigRepository {
	return &VersionedConfigRepositoryImpl[models.BenefitConfig]{
		BaseRepository: NewBaseRepository[models.BenefitConfig, struct{}](db),
		table:          models.BenefitConfig{}.TableName(),
		columns: []string{
			"benefit_type", "value", "unit", "cap", "min_spend",
			"stackability", "exclusions", "redemption", "description",
		},
	}
}

func (r *VersionedConfigRepositoryImpl[T]) ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*T, error) {
	var cfg T
	err := r.getDB(ctx).
		Where("campaign_id = ? AND version = ?", campaignID, version).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s for campaign %d v%d: %w", r.table, campaignID, version, err)
	}
	return &cfg, nil
}

func (r *VersionedConfigRepositoryImpl[T]) Upsert(ctx context.Context, cfg *T) error {
	set := clause.AssignmentColumns(r.columns)
	set = append(set, clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: utils.UTCNow()})

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "version"}},
			DoUpdates: set,
		}).Create(cfg).Error
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.table, err)
		}
		return nil
	})
}

func (r *VersionedConfigRepositoryImpl[T]) CopyForward(ctx context.Context, campaignID uint, from, to int) error {
	cols := strings.Join(r.columns, ", ")
	query := fmt.Sprintf(
		"INSERT INTO %[1]s (campaign_id, version, %[2]s, created_at) "+
			"SELECT campaign_id, ?, %[2]s, ? FROM %[1]s WHERE campaign_id = ? AND version = ? "+
			"ON CONFLICT (campaign_id, version) DO NOTHING",
		r.table, cols,
	)

	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Exec(query, to, utils.UTCNow(), campaignID, from).Error; err != nil {
			return fmt.Errorf("failed to copy %s of campaign %d from v%d to v%d: %w", r.table, campaignID, from, to, err)
		}
		return nil
	})
}
