package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"gorm.io/gorm"
)

// LegalApprovalRepositoryImpl implements the LegalApprovalRepository interface
type LegalApprovalRepositoryImpl struct {
	*BaseRepository[models.LegalApproval, struct{}]
}

func NewLegalApprovalRepository(db *gorm.DB) LegalApprovalRepository {
	return &LegalApprovalRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LegalApproval, struct{}](db),
	}
}

func (r *LegalApprovalRepositoryImpl) ListByTemplate(ctx context.Context, templateID uint) ([]*models.LegalApproval, error) {
	var approvals []*models.LegalApproval
	err := r.getDB(ctx).
		Where("template_id = ?", templateID).
		Order("created_at DESC, id DESC").
		Find(&approvals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list legal approvals of template %d: %w", templateID, err)
	}
	return approvals, nil
}

func (r *LegalApprovalRepositoryImpl) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).
		Model(&models.LegalApproval{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count legal approvals of campaign %d: %w", campaignID, err)
	}
	return count, nil
}
