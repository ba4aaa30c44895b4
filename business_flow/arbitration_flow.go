package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/rules"
	"github.com/amirphl/nba-decision-core/scoring"
	"github.com/amirphl/nba-decision-core/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ArbitrationFlow picks the next best action for a customer
type ArbitrationFlow interface {
	// Decide ranks the eligible activatable campaigns with the multiplicative
	// strategy. With scoreAll every candidate is persisted, otherwise only the winner.
	Decide(ctx context.Context, customerID uint, scoreAll bool) (*dto.DecisionResult, error)
	// Eligibility explains the verdict for every activatable campaign and ranks
	// the eligible ones with the additive strategy.
	Eligibility(ctx context.Context, customerID uint) (*dto.EligibilityResult, error)
}

// ArbitrationFlowImpl implements the arbitration engine
type ArbitrationFlowImpl struct {
	campaignRepo repository.CampaignRepository
	customerRepo repository.CustomerRepository
	audienceRepo repository.AudienceConfigRepository
	actionRepo   repository.ActionConfigRepository
	benefitRepo  repository.BenefitConfigRepository
	scoreRepo    repository.ArbitrationScoreRepository
	lifecycle    LifecycleFlow
	audit        AuditTrail
	evaluator    *rules.Evaluator
	arbitration  scoring.Strategy
	eligibility  scoring.Strategy
	now          func() time.Time
	logger       *log.Logger
}

// NewArbitrationFlow creates a new arbitration flow scoring with the given profile
func NewArbitrationFlow(
	campaignRepo repository.CampaignRepository,
	customerRepo repository.CustomerRepository,
	audienceRepo repository.AudienceConfigRepository,
	actionRepo repository.ActionConfigRepository,
	benefitRepo repository.BenefitConfigRepository,
	scoreRepo repository.ArbitrationScoreRepository,
	lifecycle LifecycleFlow,
	audit AuditTrail,
	profile scoring.Profile,
	now func() time.Time,
	logger *log.Logger,
) ArbitrationFlow {
	if now == nil {
		now = utils.UTCNow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ArbitrationFlowImpl{
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		audienceRepo: audienceRepo,
		actionRepo:   actionRepo,
		benefitRepo:  benefitRepo,
		scoreRepo:    scoreRepo,
		lifecycle:    lifecycle,
		audit:        audit,
		evaluator:    rules.NewEvaluator(now),
		arbitration:  scoring.NewMultiplicative(profile.Multiplicative),
		eligibility:  scoring.NewAdditive(profile.Additive),
		now:          now,
		logger:       logger,
	}
}

// pooled is an activatable campaign together with its current audience
type pooled struct {
	campaign *models.Campaign
	audience *rules.Audience
}

func (s *ArbitrationFlowImpl) Decide(ctx context.Context, customerID uint, scoreAll bool) (*dto.DecisionResult, error) {
	started := time.Now()
	strategy := s.arbitration.Name()

	customer, pool, err := s.load(ctx, customerID)
	if err != nil {
		decisionsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, err
	}

	decisionID, err := gonanoid.New()
	if err != nil {
		return nil, classify("Failed to generate decision id", err)
	}
	result := &dto.DecisionResult{DecisionID: decisionID, CustomerID: customer.ID, Strategy: strategy}
	if len(pool) == 0 {
		result.Reason = dto.NoActivatableCampaigns
		s.observeDecision(strategy, "none", started)
		return result, nil
	}

	record := customer.RuleRecord()
	now := s.now()
	var candidates []scoring.Scored[*models.Campaign]
	for _, p := range pool {
		if p.audience == nil || !s.evaluator.Matches(record, *p.audience) {
			continue
		}
		in := scoringInput(p.campaign, customer, now)
		candidates = append(candidates, scoring.Scored[*models.Campaign]{
			Item:   p.campaign,
			Key:    p.campaign.Key(),
			Result: s.arbitration.Score(in),
		})
	}
	if len(candidates) == 0 {
		result.Reason = dto.NoAudienceMatch
		s.observeDecision(strategy, "none", started)
		return result, nil
	}

	ranked := scoring.Rank(candidates)
	for _, sc := range ranked {
		result.Candidates = append(result.Candidates, dto.Candidate{
			CampaignID:   sc.Item.ID,
			CampaignUUID: sc.Key,
			Name:         sc.Item.Name,
			Version:      sc.Item.CurrentVersion,
			Score:        sc.Result.Score,
			ReasonCodes:  sc.Result.Reasons,
			Factors:      sc.Result.Factors,
		})
	}
	winner := result.Candidates[0]
	if winner.Action, winner.Benefit, err = s.payload(ctx, ranked[0].Item); err != nil {
		decisionsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, classify("Failed to load offer payload", err)
	}
	result.Winner = &winner

	persist := ranked[:1]
	if scoreAll {
		persist = ranked
	}
	if err := s.persist(ctx, decisionID, customer.ID, strategy, persist); err != nil {
		decisionsTotal.WithLabelValues(strategy, "error").Inc()
		s.logger.Printf("failed to persist decision %s for customer %d: %v", decisionID, customer.ID, err)
		return nil, classify("Failed to persist decision", err)
	}

	s.observeDecision(strategy, "winner", started)
	return result, nil
}

func (s *ArbitrationFlowImpl) Eligibility(ctx context.Context, customerID uint) (*dto.EligibilityResult, error) {
	started := time.Now()
	strategy := s.eligibility.Name()

	customer, pool, err := s.load(ctx, customerID)
	if err != nil {
		decisionsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, err
	}

	decisionID, err := gonanoid.New()
	if err != nil {
		return nil, classify("Failed to generate decision id", err)
	}
	result := &dto.EligibilityResult{
		DecisionID:  decisionID,
		CustomerID:  customer.ID,
		Evaluations: make([]dto.CampaignEvaluation, 0, len(pool)),
	}

	record := customer.RuleRecord()
	now := s.now()
	var candidates []scoring.Scored[int]
	for _, p := range pool {
		eval := dto.CampaignEvaluation{
			CampaignID: p.campaign.ID,
			Name:       p.campaign.Name,
			Version:    p.campaign.CurrentVersion,
		}
		var explanation rules.Explanation
		if p.audience == nil {
			explanation = rules.Explanation{Reasons: []string{rules.ReasonNoAudience}}
		} else {
			explanation = s.evaluator.Explain(record, *p.audience)
		}
		eval.Eligible = explanation.Eligible
		eval.Reasons = explanation.Reasons

		if eval.Eligible {
			in := scoringInput(p.campaign, customer, now)
			action, err := s.actionRepo.ByCampaignVersion(ctx, p.campaign.ID, p.campaign.CurrentVersion)
			if err != nil {
				return nil, classify("Failed to load action", err)
			}
			if action != nil {
				in.ActionPriority = &action.OfferPriority
			}
			scored := s.eligibility.Score(in)
			score := scored.Score
			eval.Score = &score
			eval.ScoreReasons = scored.Reasons
			candidates = append(candidates, scoring.Scored[int]{
				Item:   len(result.Evaluations),
				Key:    p.campaign.Key(),
				Result: scored,
			})
		}
		result.Evaluations = append(result.Evaluations, eval)
	}

	if len(candidates) == 0 {
		s.observeDecision(strategy, "none", started)
		return result, nil
	}

	best := scoring.Rank(candidates)[0]
	winner := result.Evaluations[best.Item]
	result.Winner = &winner

	campaign := pool[best.Item].campaign
	win := scoring.Scored[*models.Campaign]{Item: campaign, Key: best.Key, Result: best.Result}
	if err := s.persist(ctx, decisionID, customer.ID, strategy, []scoring.Scored[*models.Campaign]{win}); err != nil {
		decisionsTotal.WithLabelValues(strategy, "error").Inc()
		s.logger.Printf("failed to persist eligibility %s for customer %d: %v", decisionID, customer.ID, err)
		return nil, classify("Failed to persist decision", err)
	}

	s.observeDecision(strategy, "winner", started)
	return result, nil
}

// load fetches the customer and the activatable campaigns with their current
// audiences. Stale campaigns are reconciled first so they drop out of the pool.
func (s *ArbitrationFlowImpl) load(ctx context.Context, customerID uint) (*models.Customer, []pooled, error) {
	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, nil, classify("Failed to load customer", err)
	}
	if customer == nil {
		return nil, nil, classify("", fmt.Errorf("customer %d: %w", customerID, ErrCustomerNotFound))
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, models.CampaignFilter{
		Statuses: models.ActivatableStatuses(),
	}, "id ASC", 0, 0)
	if err != nil {
		return nil, nil, classify("Failed to list campaigns", err)
	}

	pool := make([]pooled, 0, len(campaigns))
	for _, c := range campaigns {
		c, err = s.lifecycle.Reconcile(ctx, c)
		if err != nil {
			return nil, nil, classify("Failed to reconcile campaign", err)
		}
		if !c.IsActivatable() {
			continue
		}
		cfg, err := s.audienceRepo.ByCampaignVersion(ctx, c.ID, c.CurrentVersion)
		if err != nil {
			return nil, nil, classify("Failed to load audience", err)
		}
		p := pooled{campaign: c}
		if cfg != nil {
			a := cfg.Audience()
			p.audience = &a
		}
		pool = append(pool, p)
	}
	return customer, pool, nil
}

func (s *ArbitrationFlowImpl) payload(ctx context.Context, c *models.Campaign) (*models.ActionSpec, *models.BenefitSpec, error) {
	var (
		action  *models.ActionSpec
		benefit *models.BenefitSpec
	)
	a, err := s.actionRepo.ByCampaignVersion(ctx, c.ID, c.CurrentVersion)
	if err != nil {
		return nil, nil, err
	}
	if a != nil {
		action = &a.ActionSpec
	}
	b, err := s.benefitRepo.ByCampaignVersion(ctx, c.ID, c.CurrentVersion)
	if err != nil {
		return nil, nil, err
	}
	if b != nil {
		benefit = &b.BenefitSpec
	}
	return action, benefit, nil
}

// persist stores the score rows of one decision and audits the winner. The
// first entry of ranked is the winner.
func (s *ArbitrationFlowImpl) persist(ctx context.Context, decisionID string, customerID uint, strategy string, ranked []scoring.Scored[*models.Campaign]) error {
	rows := make([]*models.ArbitrationScore, 0, len(ranked))
	for i, sc := range ranked {
		factors, err := json.Marshal(sc.Result.Factors)
		if err != nil {
			return fmt.Errorf("failed to marshal score factors: %w", err)
		}
		rows = append(rows, &models.ArbitrationScore{
			DecisionID:  decisionID,
			CustomerID:  customerID,
			CampaignID:  sc.Item.ID,
			Version:     sc.Item.CurrentVersion,
			Strategy:    strategy,
			Score:       sc.Result.Score,
			Winner:      i == 0,
			ReasonCodes: sc.Result.Reasons,
			Factors:     factors,
		})
	}

	return s.audit.Atomically(ctx, func(txCtx context.Context) error {
		if err := s.scoreRepo.SaveBatch(txCtx, rows); err != nil {
			return err
		}
		win := rows[0]
		_, err := s.audit.Record(txCtx, models.SystemActor, AuditChange{
			Action:     models.AuditActionArbitrationScore,
			EntityType: models.EntityArbitration,
			EntityID:   decisionID,
			After: map[string]any{
				"customerId":  customerID,
				"campaignId":  win.CampaignID,
				"version":     win.Version,
				"strategy":    strategy,
				"score":       win.Score,
				"reasonCodes": win.ReasonCodes,
				"candidates":  len(rows),
			},
		})
		return err
	})
}

func (s *ArbitrationFlowImpl) observeDecision(strategy, outcome string, started time.Time) {
	decisionsTotal.WithLabelValues(strategy, outcome).Inc()
	decisionDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}

func scoringInput(c *models.Campaign, customer *models.Customer, now time.Time) scoring.Input {
	return scoring.Input{
		CampaignKey:   c.Key(),
		Priority:      c.Priority,
		Weight:        c.ArbitrationWeight,
		CardExpiresAt: customer.CreditCardExpAt,
		ConsentSMS:    customer.ConsentSMS,
		ConsentEmail:  customer.ConsentEmail,
		Now:           now,
	}
}
