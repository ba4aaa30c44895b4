package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	campaigns, err := r.ByFilter(ctx, models.CampaignFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}
	return campaigns[0], nil
}

// ByName retrieves a campaign by its unique name
func (r *CampaignRepositoryImpl) ByName(ctx context.Context, name string) (*models.Campaign, error) {
	campaigns, err := r.ByFilter(ctx, models.CampaignFilter{Name: &name}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}
	return campaigns[0], nil
}

// ByFilter retrieves campaigns matching the filter
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx).Model(&models.Campaign{})

	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.EndBefore != nil {
		db = db.Where("end_date < ?", *filter.EndBefore)
	}

	if orderBy == "" {
		orderBy = "id ASC"
	}
	db = db.Order(orderBy)
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := db.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}
	return campaigns, nil
}

// Update writes every column of the campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Save(campaign).Error; err != nil {
			return fmt.Errorf("failed to update campaign %d: %w", campaign.ID, translate(err))
		}
		return nil
	})
}

// UpdateStatus updates only the status of a campaign
func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     status,
				"updated_at": utils.UTCNow(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to update campaign status: %w", gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// Delete removes a campaign; versions, sub-configs and templates follow by cascade
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Delete(&models.Campaign{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete campaign %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to delete campaign %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// IsNotFound reports whether err came from a write that matched no rows
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
