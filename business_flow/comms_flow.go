package businessflow

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/lib/pq"
)

const defaultInboxLimit = 100

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_ ]+)\s*\}\}`)

// CommsFlow manages communication templates and their legal review
type CommsFlow interface {
	// UpsertComms writes one template per channel in a single transaction and
	// sends every written template back to legal review.
	UpsertComms(ctx context.Context, campaignID uint, req *dto.UpsertCommsRequest, actor models.Actor) (*dto.EditResult, error)
	LegalDecision(ctx context.Context, templateID uint, req *dto.LegalDecisionRequest, reviewer models.Actor) (*models.CommTemplate, error)
	LegalInbox(ctx context.Context, limit int) ([]*models.LegalInboxItem, error)
}

// CommsFlowImpl implements the comms flow
type CommsFlowImpl struct {
	templateRepo repository.CommTemplateRepository
	approvalRepo repository.LegalApprovalRepository
	versions     VersionManager
	audit        AuditTrail
	now          func() time.Time
	logger       *log.Logger
}

// NewCommsFlow creates a new comms flow
func NewCommsFlow(
	templateRepo repository.CommTemplateRepository,
	approvalRepo repository.LegalApprovalRepository,
	versions VersionManager,
	audit AuditTrail,
	now func() time.Time,
	logger *log.Logger,
) CommsFlow {
	if now == nil {
		now = utils.UTCNow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CommsFlowImpl{
		templateRepo: templateRepo,
		approvalRepo: approvalRepo,
		versions:     versions,
		audit:        audit,
		now:          now,
		logger:       logger,
	}
}

func (s *CommsFlowImpl) UpsertComms(ctx context.Context, campaignID uint, req *dto.UpsertCommsRequest, actor models.Actor) (*dto.EditResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	seen := make(map[string]bool, len(req.Templates))
	for i, t := range req.Templates {
		if seen[t.Channel] {
			return nil, classify("", &ValidationError{
				Field:   fmt.Sprintf("templates[%d].channel", i),
				Message: fmt.Sprintf("channel %s given more than once", t.Channel),
			})
		}
		seen[t.Channel] = true
	}

	edit := Edit{Kind: models.EditKindComms, Actor: actor, Summary: req.ChangeSummary}
	result, err := s.versions.ApplyEdit(ctx, campaignID, edit, func(ctx context.Context, c *models.Campaign, version int) (*AuditChange, error) {
		for _, in := range req.Templates {
			if err := s.upsertTemplate(ctx, c.ID, version, in, actor); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, s.fail("Template save failed", err)
	}
	return result, nil
}

func (s *CommsFlowImpl) upsertTemplate(ctx context.Context, campaignID uint, version int, in dto.TemplateInput, actor models.Actor) error {
	channel := models.Channel(in.Channel)
	existing, err := s.templateRepo.ByCampaignVersionChannel(ctx, campaignID, version, channel)
	if err != nil {
		return err
	}

	if existing == nil {
		t := &models.CommTemplate{
			CampaignID:  campaignID,
			Version:     version,
			Channel:     channel,
			Subject:     in.Subject,
			Body:        in.Body,
			Tokens:      pq.StringArray(ExtractTokens(in.Subject + "\n" + in.Body)),
			LegalStatus: models.LegalStatusInReview,
			CreatedAt:   s.now(),
		}
		if err := s.templateRepo.Save(ctx, t); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, actor, AuditChange{
			Action:     models.AuditActionCreateTemplate,
			EntityType: models.EntityCommTemplate,
			EntityID:   fmt.Sprint(t.ID),
			After:      t.Snapshot(),
		})
		return err
	}

	before := existing.Snapshot()
	existing.Subject = in.Subject
	existing.Body = in.Body
	existing.Tokens = pq.StringArray(ExtractTokens(in.Subject + "\n" + in.Body))
	existing.LegalStatus = models.LegalStatusInReview
	existing.ReviewedBy = nil
	existing.ReviewedAt = nil
	existing.UpdatedAt = utils.ToPtr(s.now())
	if err := s.templateRepo.Update(ctx, existing); err != nil {
		return err
	}
	_, err = s.audit.Record(ctx, actor, AuditChange{
		Action:     models.AuditActionUpsertTemplate,
		EntityType: models.EntityCommTemplate,
		EntityID:   fmt.Sprint(existing.ID),
		Before:     before,
		After:      existing.Snapshot(),
	})
	return err
}

// LegalDecision approves or rejects a template and keeps the decision on record
func (s *CommsFlowImpl) LegalDecision(ctx context.Context, templateID uint, req *dto.LegalDecisionRequest, reviewer models.Actor) (*models.CommTemplate, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	decision := models.LegalStatus(req.Decision)

	var template *models.CommTemplate
	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		var err error
		template, err = s.templateRepo.ByID(txCtx, templateID)
		if err != nil {
			return err
		}
		if template == nil {
			return fmt.Errorf("template %d: %w", templateID, ErrTemplateNotFound)
		}

		before := template.LegalStatus
		reviewedAt := s.now()
		template.LegalStatus = decision
		template.ReviewedBy = &reviewer.ID
		template.ReviewedAt = &reviewedAt
		template.UpdatedAt = &reviewedAt
		if err := s.templateRepo.Update(txCtx, template); err != nil {
			return err
		}

		approval := &models.LegalApproval{
			TemplateID: template.ID,
			CampaignID: template.CampaignID,
			Version:    template.Version,
			Decision:   decision,
			Comments:   req.Comments,
			ReviewerID: reviewer.ID,
		}
		if err := s.approvalRepo.Save(txCtx, approval); err != nil {
			return err
		}

		action := models.AuditActionLegalApproved
		if decision == models.LegalStatusRejected {
			action = models.AuditActionLegalRejected
		}
		_, err = s.audit.Record(txCtx, reviewer, AuditChange{
			Action:     action,
			EntityType: models.EntityLegalApproval,
			EntityID:   fmt.Sprint(approval.ID),
			Before:     map[string]any{"templateId": template.ID, "legalStatus": before},
			After:      map[string]any{"templateId": template.ID, "legalStatus": decision, "comments": req.Comments},
		})
		return err
	})
	if err != nil {
		return nil, s.fail("Legal decision failed", err)
	}
	return template, nil
}

// LegalInbox lists templates in review or rejected, newest first
func (s *CommsFlowImpl) LegalInbox(ctx context.Context, limit int) ([]*models.LegalInboxItem, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	items, err := s.templateRepo.LegalInbox(ctx, limit)
	if err != nil {
		return nil, s.fail("Failed to load legal inbox", err)
	}
	return items, nil
}

func (s *CommsFlowImpl) fail(message string, err error) error {
	if !IsExpected(err) {
		s.logger.Printf("%s: %v", message, err)
	}
	return classify(message, err)
}

// ExtractTokens returns the sorted, unique {{ token }} names used in text
func ExtractTokens(text string) []string {
	tokens := []string{}
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		if name := strings.TrimSpace(m[1]); name != "" {
			tokens = append(tokens, name)
		}
	}
	slices.Sort(tokens)
	return slices.Compact(tokens)
}
