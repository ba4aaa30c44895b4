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
	"gorm.io/datatypes"
)

const defaultSampleSize = 20

// AudienceCache keeps the last computed size and sample per campaign version
type AudienceCache interface {
	// Get returns nil without error on a miss
	Get(ctx context.Context, campaignID uint, version int) (*dto.AudienceResult, error)
	Set(ctx context.Context, result *dto.AudienceResult) error
}

// AudienceFlow saves and sizes campaign audiences
type AudienceFlow interface {
	// SaveAudience stores the rule through the version manager and sizes it
	// against every customer. Cost is O(customers) per save.
	SaveAudience(ctx context.Context, campaignID uint, req *dto.SaveAudienceRequest, actor models.Actor) (*dto.AudienceResult, error)
	PreviewAudience(ctx context.Context, campaignID uint) (*dto.AudienceResult, error)
}

// AudienceFlowImpl implements the audience flow
type AudienceFlowImpl struct {
	campaignRepo repository.CampaignRepository
	audienceRepo repository.AudienceConfigRepository
	customerRepo repository.CustomerRepository
	versions     VersionManager
	cache        AudienceCache
	evaluator    *rules.Evaluator
	sampleSize   int
	logger       *log.Logger
}

// NewAudienceFlow creates a new audience flow. cache may be nil.
func NewAudienceFlow(
	campaignRepo repository.CampaignRepository,
	audienceRepo repository.AudienceConfigRepository,
	customerRepo repository.CustomerRepository,
	versions VersionManager,
	cache AudienceCache,
	sampleSize int,
	now func() time.Time,
	logger *log.Logger,
) AudienceFlow {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	if now == nil {
		now = utils.UTCNow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AudienceFlowImpl{
		campaignRepo: campaignRepo,
		audienceRepo: audienceRepo,
		customerRepo: customerRepo,
		versions:     versions,
		cache:        cache,
		evaluator:    rules.NewEvaluator(now),
		sampleSize:   sampleSize,
		logger:       logger,
	}
}

func (s *AudienceFlowImpl) SaveAudience(ctx context.Context, campaignID uint, req *dto.SaveAudienceRequest, actor models.Actor) (*dto.AudienceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	if err := validateAudience(req.Rules); err != nil {
		return nil, classify("", err)
	}

	result := &dto.AudienceResult{CampaignID: campaignID}
	edit := Edit{Kind: models.EditKindAudience, Actor: actor, Summary: req.ChangeSummary}
	res, err := s.versions.ApplyEdit(ctx, campaignID, edit, func(ctx context.Context, c *models.Campaign, version int) (*AuditChange, error) {
		before, err := configBefore[models.AudienceConfig](ctx, s.audienceRepo, c.ID, version)
		if err != nil {
			return nil, err
		}

		size, sample, err := s.estimate(ctx, req.Rules)
		if err != nil {
			return nil, err
		}
		cfg := &models.AudienceConfig{
			CampaignID:   c.ID,
			Version:      version,
			Rules:        datatypes.NewJSONType(req.Rules),
			SizeEstimate: size,
		}
		if err := s.audienceRepo.Upsert(ctx, cfg); err != nil {
			return nil, err
		}

		result.Version = version
		result.SizeEstimate = size
		result.Sample = sample

		change := &AuditChange{
			Action:     models.AuditActionUpsertAudience,
			EntityType: models.EntityAudience,
			EntityID:   versionEntityID(c.ID, version),
			After:      map[string]any{"rules": req.Rules, "sizeEstimate": size},
		}
		if before != nil {
			change.Before = map[string]any{"rules": before.Audience(), "sizeEstimate": before.SizeEstimate}
		}
		return change, nil
	})
	if err != nil {
		if !IsExpected(err) {
			s.logger.Printf("failed to save audience of campaign %d: %v", campaignID, err)
		}
		return nil, classify("Audience save failed", err)
	}

	result.Version = res.Version
	audienceSize.WithLabelValues(fmt.Sprint(campaignID)).Set(float64(result.SizeEstimate))
	s.store(ctx, result)
	return result, nil
}

// PreviewAudience returns the size and sample of the current version, from cache when possible
func (s *AudienceFlowImpl) PreviewAudience(ctx context.Context, campaignID uint) (*dto.AudienceResult, error) {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, classify("Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, classify("", fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound))
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, campaignID, campaign.CurrentVersion)
		if err != nil {
			s.logger.Printf("audience cache read failed for campaign %d: %v", campaignID, err)
		} else if cached != nil {
			cached.Cached = true
			return cached, nil
		}
	}

	cfg, err := s.audienceRepo.ByCampaignVersion(ctx, campaignID, campaign.CurrentVersion)
	if err != nil {
		return nil, classify("Failed to load audience", err)
	}
	if cfg == nil {
		return nil, classify("", fmt.Errorf("campaign %d v%d: %w", campaignID, campaign.CurrentVersion, ErrAudienceNotConfigured))
	}

	size, sample, err := s.estimate(ctx, cfg.Audience())
	if err != nil {
		return nil, classify("Failed to size audience", err)
	}
	result := &dto.AudienceResult{
		CampaignID:   campaignID,
		Version:      campaign.CurrentVersion,
		SizeEstimate: size,
		Sample:       sample,
	}
	s.store(ctx, result)
	return result, nil
}

// estimate scans every customer and returns the match count and the first
// sampleSize matching customer ids in id order
func (s *AudienceFlowImpl) estimate(ctx context.Context, audience rules.Audience) (int, []string, error) {
	matched, err := matchCustomers(ctx, s.customerRepo, s.evaluator, audience, 0)
	if err != nil {
		return 0, nil, err
	}
	sample := make([]string, 0, min(len(matched), s.sampleSize))
	for _, c := range matched[:min(len(matched), s.sampleSize)] {
		sample = append(sample, c.UUID.String())
	}
	return len(matched), sample, nil
}

func (s *AudienceFlowImpl) store(ctx context.Context, result *dto.AudienceResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, result); err != nil {
		s.logger.Printf("audience cache write failed for campaign %d: %v", result.CampaignID, err)
	}
}

// matchCustomers returns the customers in the audience ordered by id. A
// positive limit stops the scan after that many matches.
func matchCustomers(ctx context.Context, repo repository.CustomerRepository, evaluator *rules.Evaluator, audience rules.Audience, limit int) ([]*models.Customer, error) {
	customers, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Customer
	for _, c := range customers {
		if !evaluator.Matches(c.RuleRecord(), audience) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// configBefore returns the config an edit replaces: the one already on the
// target version, or for a fresh version the one it was forked from.
func configBefore[T any](ctx context.Context, repo repository.VersionedConfigRepository[T], campaignID uint, version int) (*T, error) {
	cfg, err := repo.ByCampaignVersion(ctx, campaignID, version)
	if err != nil || cfg != nil || version <= 1 {
		return cfg, err
	}
	return repo.ByCampaignVersion(ctx, campaignID, version-1)
}
