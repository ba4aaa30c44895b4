package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/utils"
)

// LifecycleFlow validates and applies campaign status transitions
type LifecycleFlow interface {
	Transition(ctx context.Context, campaignID uint, target string, actor models.Actor) (*dto.TransitionResult, error)
	// Reconcile moves the campaign to Expired if its end date has passed. It is idempotent.
	Reconcile(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error)
	// ReconcileAll sweeps every stale campaign
	ReconcileAll(ctx context.Context) (*dto.ReconcileResult, error)
	AllowedTransitions(status models.CampaignStatus) []models.CampaignStatus
}

// LifecycleFlowImpl implements the lifecycle state machine
type LifecycleFlowImpl struct {
	campaignRepo repository.CampaignRepository
	templateRepo repository.CommTemplateRepository
	audit        AuditTrail
	now          func() time.Time
	logger       *log.Logger
}

// NewLifecycleFlow creates a new lifecycle flow. now defaults to utils.UTCNow.
func NewLifecycleFlow(
	campaignRepo repository.CampaignRepository,
	templateRepo repository.CommTemplateRepository,
	audit AuditTrail,
	now func() time.Time,
	logger *log.Logger,
) LifecycleFlow {
	if now == nil {
		now = utils.UTCNow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LifecycleFlowImpl{
		campaignRepo: campaignRepo,
		templateRepo: templateRepo,
		audit:        audit,
		now:          now,
		logger:       logger,
	}
}

func (s *LifecycleFlowImpl) Transition(ctx context.Context, campaignID uint, target string, actor models.Actor) (*dto.TransitionResult, error) {
	next, ok := models.ParseCampaignStatus(target)
	if !ok {
		return nil, classify("", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", target)})
	}

	current, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, classify("Failed to load campaign", err)
	}
	if current == nil {
		return nil, classify("", fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound))
	}
	// expiry commits on its own so a rejected transition cannot undo it
	reconciled, err := s.Reconcile(ctx, current)
	if err != nil {
		return nil, classify("Reconcile failed", err)
	}
	if reconciled.Status != current.Status && reconciled.Status == next {
		transitionsTotal.WithLabelValues(string(current.Status), string(next), "ok").Inc()
		return &dto.TransitionResult{CampaignID: current.ID, From: current.Status, To: next}, nil
	}

	var result *dto.TransitionResult
	err = s.audit.Atomically(ctx, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}

		from := campaign.Status
		if !campaign.CanTransitionTo(next) {
			return &InvalidTransitionError{From: from, To: next}
		}
		if next.IsActivation() {
			if err := s.checkLegalGate(txCtx, campaign); err != nil {
				return err
			}
		}

		if err := s.campaignRepo.UpdateStatus(txCtx, campaign.ID, next); err != nil {
			return err
		}
		if _, err := s.audit.Record(txCtx, actor, statusChange(campaign.ID, from, next)); err != nil {
			return err
		}

		result = &dto.TransitionResult{CampaignID: campaign.ID, From: from, To: next}
		return nil
	})

	if err != nil {
		transitionsTotal.WithLabelValues(string(transitionFrom(err)), string(next), transitionResult(err)).Inc()
		if !IsExpected(err) {
			s.logger.Printf("transition of campaign %d to %s failed: %v", campaignID, next, err)
		}
		return nil, classify("Transition failed", err)
	}

	transitionsTotal.WithLabelValues(string(result.From), string(result.To), "ok").Inc()
	return result, nil
}

// checkLegalGate rejects activation while any current-version template is not Approved
func (s *LifecycleFlowImpl) checkLegalGate(ctx context.Context, campaign *models.Campaign) error {
	templates, err := s.templateRepo.ListByCampaignVersion(ctx, campaign.ID, campaign.CurrentVersion)
	if err != nil {
		return err
	}
	var pending []string
	for _, t := range templates {
		if t.LegalStatus != models.LegalStatusApproved {
			pending = append(pending, fmt.Sprintf("%s (%s)", t.Channel, t.LegalStatus))
		}
	}
	if len(pending) > 0 {
		return &LegalApprovalRequiredError{Pending: pending}
	}
	return nil
}

func (s *LifecycleFlowImpl) Reconcile(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	if campaign == nil || !campaign.IsStale(s.now()) {
		return campaign, nil
	}

	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		from := campaign.Status
		if err := s.campaignRepo.UpdateStatus(txCtx, campaign.ID, models.CampaignStatusExpired); err != nil {
			return err
		}
		_, err := s.audit.Record(txCtx, models.SystemActor, statusChange(campaign.ID, from, models.CampaignStatusExpired))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expire campaign %d: %w", campaign.ID, err)
	}

	expired := *campaign
	expired.Status = models.CampaignStatusExpired
	return &expired, nil
}

func (s *LifecycleFlowImpl) ReconcileAll(ctx context.Context) (*dto.ReconcileResult, error) {
	now := s.now()
	stale, err := s.campaignRepo.ByFilter(ctx, models.CampaignFilter{
		Statuses:  expirableStatuses(),
		EndBefore: &now,
	}, "id ASC", 0, 0)
	if err != nil {
		return nil, classify("Failed to list stale campaigns", err)
	}

	result := &dto.ReconcileResult{Expired: []uint{}}
	for _, c := range stale {
		updated, err := s.Reconcile(ctx, c)
		if err != nil {
			s.logger.Printf("reconcile: %v", err)
			return result, classify("Reconcile failed", err)
		}
		if updated.Status == models.CampaignStatusExpired {
			result.Expired = append(result.Expired, c.ID)
		}
	}
	return result, nil
}

func (s *LifecycleFlowImpl) AllowedTransitions(status models.CampaignStatus) []models.CampaignStatus {
	return status.AllowedTransitions()
}

func statusChange(campaignID uint, from, to models.CampaignStatus) AuditChange {
	return AuditChange{
		Action:     models.AuditActionStatusTransition,
		EntityType: models.EntityNBA,
		EntityID:   fmt.Sprint(campaignID),
		Before:     map[string]any{"status": from},
		After:      map[string]any{"status": to},
	}
}

func expirableStatuses() []models.CampaignStatus {
	var out []models.CampaignStatus
	for _, s := range models.AllCampaignStatuses() {
		if s.Expirable() {
			out = append(out, s)
		}
	}
	return out
}

func transitionFrom(err error) models.CampaignStatus {
	var inv *InvalidTransitionError
	if errors.As(err, &inv) {
		return inv.From
	}
	return "unknown"
}

func transitionResult(err error) string {
	switch {
	case IsInvalidTransition(err):
		return "invalid"
	case IsLegalApprovalRequired(err):
		return "legal_gate"
	case IsExpected(err):
		return "rejected"
	default:
		return "error"
	}
}
