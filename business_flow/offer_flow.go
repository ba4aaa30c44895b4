package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var minBenefitAmount = decimal.RequireFromString("0.01")

// OfferFlow configures what a campaign asks of the customer and what it gives back
type OfferFlow interface {
	SaveAction(ctx context.Context, campaignID uint, req *dto.SaveActionRequest, actor models.Actor) (*dto.EditResult, error)
	SaveBenefit(ctx context.Context, campaignID uint, req *dto.SaveBenefitRequest, actor models.Actor) (*dto.EditResult, error)
}

// OfferFlowImpl implements the offer flow
type OfferFlowImpl struct {
	actionRepo  repository.ActionConfigRepository
	benefitRepo repository.BenefitConfigRepository
	versions    VersionManager
	logger      *log.Logger
}

// NewOfferFlow creates a new offer flow
func NewOfferFlow(
	actionRepo repository.ActionConfigRepository,
	benefitRepo repository.BenefitConfigRepository,
	versions VersionManager,
	logger *log.Logger,
) OfferFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &OfferFlowImpl{
		actionRepo:  actionRepo,
		benefitRepo: benefitRepo,
		versions:    versions,
		logger:      logger,
	}
}

func (s *OfferFlowImpl) SaveAction(ctx context.Context, campaignID uint, req *dto.SaveActionRequest, actor models.Actor) (*dto.EditResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}

	spec := models.ActionSpec{
		ActionType:           models.ActionType(req.ActionType),
		CompletionEvent:      req.CompletionEvent,
		SaleChannels:         pq.StringArray(req.SaleChannels),
		OfferPriority:        req.OfferPriority,
		MaxOffersPerCustomer: req.MaxOffersPerCustomer,
	}

	edit := Edit{Kind: models.EditKindAction, Actor: actor, Summary: req.ChangeSummary}
	result, err := s.versions.ApplyEdit(ctx, campaignID, edit, func(ctx context.Context, c *models.Campaign, version int) (*AuditChange, error) {
		before, err := configBefore[models.ActionConfig](ctx, s.actionRepo, c.ID, version)
		if err != nil {
			return nil, err
		}
		if err := s.actionRepo.Upsert(ctx, &models.ActionConfig{CampaignID: c.ID, Version: version, ActionSpec: spec}); err != nil {
			return nil, err
		}
		change := &AuditChange{
			Action:     models.AuditActionUpsertAction,
			EntityType: models.EntityAction,
			EntityID:   versionEntityID(c.ID, version),
			After:      spec,
		}
		if before != nil {
			change.Before = before.ActionSpec
		}
		return change, nil
	})
	if err != nil {
		return nil, s.fail("Action save failed", err)
	}
	return result, nil
}

func (s *OfferFlowImpl) SaveBenefit(ctx context.Context, campaignID uint, req *dto.SaveBenefitRequest, actor models.Actor) (*dto.EditResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	if err := validateAmounts(req); err != nil {
		return nil, classify("", err)
	}

	spec := models.BenefitSpec{
		BenefitType:  models.BenefitType(req.BenefitType),
		Value:        req.Value,
		Unit:         models.BenefitUnit(req.Unit),
		Cap:          req.Cap,
		Stackability: datatypes.NewJSONType(req.Stackability),
		Exclusions:   pq.StringArray(req.Exclusions),
		Redemption:   models.Redemption(req.Redemption),
		Description:  req.Description,
	}
	if req.MinSpend != nil {
		spec.MinSpend = decimal.NewNullDecimal(*req.MinSpend)
	}

	edit := Edit{Kind: models.EditKindBenefit, Actor: actor, Summary: req.ChangeSummary}
	result, err := s.versions.ApplyEdit(ctx, campaignID, edit, func(ctx context.Context, c *models.Campaign, version int) (*AuditChange, error) {
		before, err := configBefore[models.BenefitConfig](ctx, s.benefitRepo, c.ID, version)
		if err != nil {
			return nil, err
		}
		if err := s.benefitRepo.Upsert(ctx, &models.BenefitConfig{CampaignID: c.ID, Version: version, BenefitSpec: spec}); err != nil {
			return nil, err
		}
		change := &AuditChange{
			Action:     models.AuditActionUpsertBenefit,
			EntityType: models.EntityBenefit,
			EntityID:   versionEntityID(c.ID, version),
			After:      spec,
		}
		if before != nil {
			change.Before = before.BenefitSpec
		}
		return change, nil
	})
	if err != nil {
		return nil, s.fail("Benefit save failed", err)
	}
	return result, nil
}

func (s *OfferFlowImpl) fail(message string, err error) error {
	if !IsExpected(err) {
		s.logger.Printf("%s: %v", message, err)
	}
	return classify(message, err)
}

func validateAmounts(req *dto.SaveBenefitRequest) error {
	var errs ValidationErrors
	if req.Value.LessThan(minBenefitAmount) {
		errs = append(errs, &ValidationError{Field: "value", Message: "value must be at least 0.01"})
	}
	if req.Cap.LessThan(minBenefitAmount) {
		errs = append(errs, &ValidationError{Field: "cap", Message: "cap must be at least 0.01"})
	}
	if req.MinSpend != nil && req.MinSpend.IsNegative() {
		errs = append(errs, &ValidationError{Field: "minSpend", Message: "minSpend must not be negative"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
