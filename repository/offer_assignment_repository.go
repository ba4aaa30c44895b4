package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferAssignmentRepositoryImpl implements the OfferAssignmentRepository interface
type OfferAssignmentRepositoryImpl struct {
	*BaseRepository[models.OfferAssignment, struct{}]
}

func NewOfferAssignmentRepository(db *gorm.DB) OfferAssignmentRepository {
	return &OfferAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OfferAssignment, struct{}](db),
	}
}

func (r *OfferAssignmentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.OfferAssignment, error) {
	var offer models.OfferAssignment
	err := r.getDB(ctx).Where("uuid = ?", id).First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find offer %s: %w", id, err)
	}
	return &offer, nil
}

func (r *OfferAssignmentRepositoryImpl) MarkRedeemed(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.OfferAssignment{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":      models.OfferStatusRedeemed,
				"redeemed_at": at,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to redeem offer %d: %w", id, err)
		}
		return nil
	})
}

func (r *OfferAssignmentRepositoryImpl) CountByCampaignCustomer(ctx context.Context, campaignID, customerID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).
		Model(&models.OfferAssignment{}).
		Where("campaign_id = ? AND customer_id = ?", campaignID, customerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count offers: %w", err)
	}
	return count, nil
}

// Summary aggregates issued and redeemed offers per channel
func (r *OfferAssignmentRepositoryImpl) Summary(ctx context.Context, campaignID uint) ([]models.ChannelSummary, error) {
	var rows []models.ChannelSummary
	err := r.getDB(ctx).
		Model(&models.OfferAssignment{}).
		Select("channel, COUNT(*) AS issued, COUNT(*) FILTER (WHERE status = ?) AS redeemed", models.OfferStatusRedeemed).
		Where("campaign_id = ?", campaignID).
		Group("channel").
		Order("channel ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize offers of campaign %d: %w", campaignID, err)
	}
	return rows, nil
}
