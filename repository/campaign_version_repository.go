package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"gorm.io/gorm"
)

// CampaignVersionRepositoryImpl implements the CampaignVersionRepository interface
type CampaignVersionRepositoryImpl struct {
	*BaseRepository[models.CampaignVersion, struct{}]
}

func NewCampaignVersionRepository(db *gorm.DB) CampaignVersionRepository {
	return &CampaignVersionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignVersion, struct{}](db),
	}
}

func (r *CampaignVersionRepositoryImpl) ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*models.CampaignVersion, error) {
	var v models.CampaignVersion
	err := r.getDB(ctx).
		Where("campaign_id = ? AND version = ?", campaignID, version).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find version %d of campaign %d: %w", version, campaignID, err)
	}
	return &v, nil
}

// ListByCampaign returns the campaign's versions in ascending order
func (r *CampaignVersionRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignVersion, error) {
	var versions []*models.CampaignVersion
	err := r.getDB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("version ASC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of campaign %d: %w", campaignID, err)
	}
	return versions, nil
}

func (r *CampaignVersionRepositoryImpl) UpdateSnapshot(ctx context.Context, id uint, snapshot models.VersionSnapshot) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.CampaignVersion{}).
			Where("id = ?", id).
			Update("snapshot", models.NewSnapshot(snapshot)).Error
		if err != nil {
			return fmt.Errorf("failed to update snapshot of version %d: %w", id, err)
		}
		return nil
	})
}
