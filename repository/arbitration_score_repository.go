package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"gorm.io/gorm"
)

// ArbitrationScoreRepositoryImpl implements the ArbitrationScoreRepository interface
type ArbitrationScoreRepositoryImpl struct {
	*BaseRepository[models.ArbitrationScore, models.ArbitrationScoreFilter]
}

func NewArbitrationScoreRepository(db *gorm.DB) ArbitrationScoreRepository {
	return &ArbitrationScoreRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ArbitrationScore, models.ArbitrationScoreFilter](db),
	}
}

// ByFilter returns matching scores, newest first
func (r *ArbitrationScoreRepositoryImpl) ByFilter(ctx context.Context, filter models.ArbitrationScoreFilter, limit, offset int) ([]*models.ArbitrationScore, error) {
	db := r.getDB(ctx).Model(&models.ArbitrationScore{})

	if filter.DecisionID != nil {
		db = db.Where("decision_id = ?", *filter.DecisionID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Winner != nil {
		db = db.Where("winner = ?", *filter.Winner)
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

	var scores []*models.ArbitrationScore
	if err := db.Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("failed to find arbitration scores: %w", err)
	}
	return scores, nil
}
