package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"gorm.io/gorm"
)

// CommTemplateRepositoryImpl implements the CommTemplateRepository interface
type CommTemplateRepositoryImpl struct {
	*BaseRepository[models.CommTemplate, models.CommTemplateFilter]
}

func NewCommTemplateRepository(db *gorm.DB) CommTemplateRepository {
	return &CommTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommTemplate, models.CommTemplateFilter](db),
	}
}

func (r *CommTemplateRepositoryImpl) ByCampaignVersionChannel(ctx context.Context, campaignID uint, version int, channel models.Channel) (*models.CommTemplate, error) {
	var t models.CommTemplate
	err := r.getDB(ctx).
		Where("campaign_id = ? AND version = ? AND channel = ?", campaignID, version, channel).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s template for campaign %d v%d: %w", channel, campaignID, version, err)
	}
	return &t, nil
}

func (r *CommTemplateRepositoryImpl) ListByCampaignVersion(ctx context.Context, campaignID uint, version int) ([]*models.CommTemplate, error) {
	var templates []*models.CommTemplate
	err := r.getDB(ctx).
		Where("campaign_id = ? AND version = ?", campaignID, version).
		Order("channel ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for campaign %d v%d: %w", campaignID, version, err)
	}
	return templates, nil
}

func (r *CommTemplateRepositoryImpl) Update(ctx context.Context, t *models.CommTemplate) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Save(t).Error; err != nil {
			return fmt.Errorf("failed to update template %d: %w", t.ID, translate(err))
		}
		return nil
	})
}

func (r *CommTemplateRepositoryImpl) CopyForward(ctx context.Context, campaignID uint, from, to int) error {
	const query = "INSERT INTO comm_templates " +
		"(uuid, campaign_id, version, channel, subject, body, tokens, legal_status, created_at) " +
		"SELECT gen_random_uuid(), campaign_id, ?, channel, subject, body, tokens, ?, ? " +
		"FROM comm_templates WHERE campaign_id = ? AND version = ? " +
		"ON CONFLICT (campaign_id, version, channel) DO NOTHING"

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Exec(query, to, models.LegalStatusInReview, utils.UTCNow(), campaignID, from).Error
		if err != nil {
			return fmt.Errorf("failed to copy templates of campaign %d from v%d to v%d: %w", campaignID, from, to, err)
		}
		return nil
	})
}

// LegalInbox lists current-version templates that are in review or rejected, most recently touched first
func (r *CommTemplateRepositoryImpl) LegalInbox(ctx context.Context, limit int) ([]*models.LegalInboxItem, error) {
	type row struct {
		models.CommTemplate
		CampaignName string
	}

	db := r.getDB(ctx).
		Table("comm_templates").
		Select("comm_templates.*, campaigns.name AS campaign_name").
		Joins("JOIN campaigns ON campaigns.id = comm_templates.campaign_id AND campaigns.current_version = comm_templates.version").
		Where("comm_templates.legal_status IN ?", []models.LegalStatus{models.LegalStatusInReview, models.LegalStatusRejected}).
		Order("COALESCE(comm_templates.updated_at, comm_templates.created_at) DESC, comm_templates.id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var rows []row
	if err := db.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load legal inbox: %w", err)
	}

	items := make([]*models.LegalInboxItem, 0, len(rows))
	for _, it := range rows {
		items = append(items, &models.LegalInboxItem{Template: it.CommTemplate, CampaignName: it.CampaignName})
	}
	return items, nil
}
