package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/rules"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	defaultIssueCount = 50
	maxIssueCount     = 500
	promoAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	promoLength       = 10
)

// SimulationFlow issues offers to eligible customers and tracks redemption
type SimulationFlow interface {
	SimulateIssue(ctx context.Context, campaignID uint, req *dto.SimulateIssueRequest, actor models.Actor) (*dto.SimulateIssueResult, error)
	RedeemOffer(ctx context.Context, offerID uuid.UUID, actor models.Actor) (*models.OfferAssignment, error)
	AnalyticsSummary(ctx context.Context, campaignID uint) (*dto.AnalyticsSummary, error)
}

// SimulationFlowImpl implements the simulation flow
type SimulationFlowImpl struct {
	campaignRepo repository.CampaignRepository
	audienceRepo repository.AudienceConfigRepository
	actionRepo   repository.ActionConfigRepository
	benefitRepo  repository.BenefitConfigRepository
	customerRepo repository.CustomerRepository
	offerRepo    repository.OfferAssignmentRepository
	audit        AuditTrail
	evaluator    *rules.Evaluator
	now          func() time.Time
	logger       *log.Logger
}

// NewSimulationFlow creates a new simulation flow
func NewSimulationFlow(
	campaignRepo repository.CampaignRepository,
	audienceRepo repository.AudienceConfigRepository,
	actionRepo repository.ActionConfigRepository,
	benefitRepo repository.BenefitConfigRepository,
	customerRepo repository.CustomerRepository,
	offerRepo repository.OfferAssignmentRepository,
	audit AuditTrail,
	now func() time.Time,
	logger *log.Logger,
) SimulationFlow {
	if now == nil {
		now = utils.UTCNow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SimulationFlowImpl{
		campaignRepo: campaignRepo,
		audienceRepo: audienceRepo,
		actionRepo:   actionRepo,
		benefitRepo:  benefitRepo,
		customerRepo: customerRepo,
		offerRepo:    offerRepo,
		audit:        audit,
		evaluator:    rules.NewEvaluator(now),
		now:          now,
		logger:       logger,
	}
}

// SimulateIssue assigns offers at the current version to the first count
// eligible customers. Customers already holding the per-customer maximum are skipped.
func (s *SimulationFlowImpl) SimulateIssue(ctx context.Context, campaignID uint, req *dto.SimulateIssueRequest, actor models.Actor) (*dto.SimulateIssueResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	count := req.Count
	switch {
	case count <= 0:
		count = defaultIssueCount
	case count > maxIssueCount:
		count = maxIssueCount
	}
	channel := models.ChannelSMS
	if req.Channel != "" {
		channel = models.Channel(req.Channel)
	}

	var result *dto.SimulateIssueResult
	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}
		version := campaign.CurrentVersion

		audience, err := s.audienceRepo.ByCampaignVersion(txCtx, campaignID, version)
		if err != nil {
			return err
		}
		if audience == nil {
			return fmt.Errorf("campaign %d v%d: %w", campaignID, version, ErrAudienceNotConfigured)
		}
		maxOffers := 1
		action, err := s.actionRepo.ByCampaignVersion(txCtx, campaignID, version)
		if err != nil {
			return err
		}
		if action != nil && action.MaxOffersPerCustomer > 0 {
			maxOffers = action.MaxOffersPerCustomer
		}
		benefit, err := s.benefitRepo.ByCampaignVersion(txCtx, campaignID, version)
		if err != nil {
			return err
		}
		promo := benefit != nil && benefit.Redemption == models.RedemptionPromoCode

		eligible, err := matchCustomers(txCtx, s.customerRepo, s.evaluator, audience.Audience(), 0)
		if err != nil {
			return err
		}

		result = &dto.SimulateIssueResult{CampaignID: campaignID, Version: version}
		issuedAt := s.now()
		var offers []*models.OfferAssignment
		for _, c := range eligible {
			if len(offers) == count {
				break
			}
			held, err := s.offerRepo.CountByCampaignCustomer(txCtx, campaignID, c.ID)
			if err != nil {
				return err
			}
			if held >= int64(maxOffers) {
				result.Skipped++
				continue
			}
			offer := &models.OfferAssignment{
				CampaignID: campaignID,
				Version:    version,
				CustomerID: c.ID,
				Channel:    channel,
				Status:     models.OfferStatusIssued,
				IssuedAt:   issuedAt,
			}
			if promo {
				code, err := gonanoid.Generate(promoAlphabet, promoLength)
				if err != nil {
					return fmt.Errorf("failed to generate promo code: %w", err)
				}
				offer.PromoCode = &code
			}
			offers = append(offers, offer)
		}
		result.Issued = offers
		if len(offers) == 0 {
			return nil
		}

		if err := s.offerRepo.SaveBatch(txCtx, offers); err != nil {
			return err
		}
		_, err = s.audit.Record(txCtx, actor, AuditChange{
			Action:     models.AuditActionOfferIssued,
			EntityType: models.EntityOffer,
			EntityID:   versionEntityID(campaignID, version),
			After:      map[string]any{"issued": len(offers), "skipped": result.Skipped, "channel": channel},
		})
		return err
	})
	if err != nil {
		return nil, s.fail("Offer simulation failed", err)
	}
	if result.Issued == nil {
		result.Issued = []*models.OfferAssignment{}
	}
	return result, nil
}

func (s *SimulationFlowImpl) RedeemOffer(ctx context.Context, offerID uuid.UUID, actor models.Actor) (*models.OfferAssignment, error) {
	var offer *models.OfferAssignment
	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		var err error
		offer, err = s.offerRepo.ByUUID(txCtx, offerID)
		if err != nil {
			return err
		}
		if offer == nil {
			return fmt.Errorf("offer %s: %w", offerID, ErrOfferNotFound)
		}
		if offer.Status == models.OfferStatusRedeemed {
			return fmt.Errorf("offer %s: %w", offerID, ErrOfferAlreadyRedeemed)
		}

		at := s.now()
		if err := s.offerRepo.MarkRedeemed(txCtx, offer.ID, at); err != nil {
			return err
		}
		offer.Status = models.OfferStatusRedeemed
		offer.RedeemedAt = &at

		_, err = s.audit.Record(txCtx, actor, AuditChange{
			Action:     models.AuditActionOfferRedeemed,
			EntityType: models.EntityOffer,
			EntityID:   offer.UUID.String(),
			Before:     map[string]any{"status": models.OfferStatusIssued},
			After:      map[string]any{"status": models.OfferStatusRedeemed, "redeemedAt": at},
		})
		return err
	})
	if err != nil {
		return nil, s.fail("Offer redemption failed", err)
	}
	return offer, nil
}

func (s *SimulationFlowImpl) AnalyticsSummary(ctx context.Context, campaignID uint) (*dto.AnalyticsSummary, error) {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, s.fail("Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, classify("", fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound))
	}

	byChannel, err := s.offerRepo.Summary(ctx, campaignID)
	if err != nil {
		return nil, s.fail("Failed to summarize offers", err)
	}
	summary := &dto.AnalyticsSummary{CampaignID: campaignID, ByChannel: byChannel}
	for _, ch := range byChannel {
		summary.Reach += ch.Issued
		summary.Redeemed += ch.Redeemed
	}
	if summary.Reach > 0 {
		summary.Conversion = float64(summary.Redeemed) / float64(summary.Reach)
	}
	return summary, nil
}

func (s *SimulationFlowImpl) fail(message string, err error) error {
	if !IsExpected(err) {
		s.logger.Printf("%s: %v", message, err)
	}
	return classify(message, err)
}
