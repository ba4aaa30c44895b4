package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

const (
	defaultPriority          = 5
	defaultArbitrationWeight = 1.0
	maxCampaignName          = 120
	initialVersionSummary    = "Initial draft"
)

// CampaignFlow handles the campaign (NBA) lifecycle outside status changes
type CampaignFlow interface {
	Create(ctx context.Context, req *dto.CampaignGeneralRequest, actor models.Actor) (*models.Campaign, error)
	UpdateGeneral(ctx context.Context, campaignID uint, req *dto.CampaignGeneralRequest, actor models.Actor) (*dto.EditResult, error)
	Get(ctx context.Context, campaignID uint) (*models.Campaign, error)
	List(ctx context.Context, req *dto.ListCampaignsRequest) ([]*models.Campaign, error)
	Delete(ctx context.Context, campaignID uint, actor models.Actor) error
	Clone(ctx context.Context, campaignID uint, actor models.Actor) (*models.Campaign, error)
	ListVersions(ctx context.Context, campaignID uint) ([]*models.CampaignVersion, error)
	GetSnapshot(ctx context.Context, campaignID uint, version int) (*models.CampaignVersion, error)
	DiffVersions(ctx context.Context, campaignID uint, from, to int) (*dto.VersionDiff, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	versionRepo  repository.CampaignVersionRepository
	audienceRepo repository.AudienceConfigRepository
	actionRepo   repository.ActionConfigRepository
	benefitRepo  repository.BenefitConfigRepository
	templateRepo repository.CommTemplateRepository
	versions     VersionManager
	lifecycle    LifecycleFlow
	audit        AuditTrail
	logger       *log.Logger
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	versionRepo repository.CampaignVersionRepository,
	audienceRepo repository.AudienceConfigRepository,
	actionRepo repository.ActionConfigRepository,
	benefitRepo repository.BenefitConfigRepository,
	templateRepo repository.CommTemplateRepository,
	versions VersionManager,
	lifecycle LifecycleFlow,
	audit AuditTrail,
	logger *log.Logger,
) CampaignFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		versionRepo:  versionRepo,
		audienceRepo: audienceRepo,
		actionRepo:   actionRepo,
		benefitRepo:  benefitRepo,
		templateRepo: templateRepo,
		versions:     versions,
		lifecycle:    lifecycle,
		audit:        audit,
		logger:       logger,
	}
}

// Create stores a new Draft campaign at version 1
func (s *CampaignFlowImpl) Create(ctx context.Context, req *dto.CampaignGeneralRequest, actor models.Actor) (*models.Campaign, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}

	campaign := &models.Campaign{
		Name:              req.Name,
		Description:       req.Description,
		StartDate:         req.StartDate.UTC(),
		EndDate:           req.EndDate.UTC(),
		Status:            models.CampaignStatusDraft,
		OwnerID:           actor.ID,
		Priority:          withDefault(req.Priority, defaultPriority),
		ArbitrationWeight: withDefault(req.ArbitrationWeight, defaultArbitrationWeight),
		CurrentVersion:    1,
	}

	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		if err := s.campaignRepo.Save(txCtx, campaign); err != nil {
			return nameConflict(err)
		}
		if err := s.saveInitialVersion(txCtx, campaign, actor); err != nil {
			return err
		}
		_, err := s.audit.Record(txCtx, actor, AuditChange{
			Action:     models.AuditActionCreateNBA,
			EntityType: models.EntityNBA,
			EntityID:   fmt.Sprint(campaign.ID),
			After:      campaign,
		})
		return err
	})
	if err != nil {
		return nil, s.fail("Campaign creation failed", err)
	}
	return campaign, nil
}

// UpdateGeneral edits name, description, dates, priority and weight. General
// edits never fork a version.
func (s *CampaignFlowImpl) UpdateGeneral(ctx context.Context, campaignID uint, req *dto.CampaignGeneralRequest, actor models.Actor) (*dto.EditResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}

	edit := Edit{Kind: models.EditKindGeneral, Actor: actor, Summary: req.ChangeSummary}
	result, err := s.versions.ApplyEdit(ctx, campaignID, edit, func(ctx context.Context, c *models.Campaign, _ int) (*AuditChange, error) {
		before := *c
		c.Name = req.Name
		c.Description = req.Description
		c.StartDate = req.StartDate.UTC()
		c.EndDate = req.EndDate.UTC()
		c.Priority = withDefault(req.Priority, c.Priority)
		c.ArbitrationWeight = withDefault(req.ArbitrationWeight, c.ArbitrationWeight)
		if err := s.campaignRepo.Update(ctx, c); err != nil {
			return nil, nameConflict(err)
		}
		return &AuditChange{
			Action:     models.AuditActionUpdateGeneral,
			EntityType: models.EntityNBA,
			EntityID:   fmt.Sprint(c.ID),
			Before:     generalDetails(&before),
			After:      generalDetails(c),
		}, nil
	})
	if err != nil {
		return nil, s.fail("Campaign update failed", err)
	}
	return result, nil
}

// Get returns the campaign with its expiry reconciled
func (s *CampaignFlowImpl) Get(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	campaign, err = s.lifecycle.Reconcile(ctx, campaign)
	if err != nil {
		return nil, s.fail("Failed to reconcile campaign", err)
	}
	return campaign, nil
}

func (s *CampaignFlowImpl) List(ctx context.Context, req *dto.ListCampaignsRequest) ([]*models.Campaign, error) {
	if err := validateRequest(req); err != nil {
		return nil, classify("", err)
	}
	for i, st := range req.Statuses {
		if !st.Valid() {
			return nil, classify("", &ValidationError{Field: fmt.Sprintf("statuses[%d]", i), Message: fmt.Sprintf("unknown status %q", st)})
		}
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, models.CampaignFilter{Statuses: req.Statuses}, "id DESC", req.Limit, req.Offset)
	if err != nil {
		return nil, s.fail("Failed to list campaigns", err)
	}

	out := make([]*models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		c, err = s.lifecycle.Reconcile(ctx, c)
		if err != nil {
			return nil, s.fail("Failed to reconcile campaign", err)
		}
		// A status filter applies to what the caller would read, not the stale row.
		if len(req.Statuses) > 0 && !slices.Contains(req.Statuses, c.Status) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete removes the campaign and everything it owns
func (s *CampaignFlowImpl) Delete(ctx context.Context, campaignID uint, actor models.Actor) error {
	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}
		if err := s.campaignRepo.Delete(txCtx, campaignID); err != nil {
			return err
		}
		_, err = s.audit.Record(txCtx, actor, AuditChange{
			Action:     models.AuditActionDeleteNBA,
			EntityType: models.EntityNBA,
			EntityID:   fmt.Sprint(campaignID),
			Before:     campaign,
		})
		return err
	})
	if err != nil {
		return s.fail("Campaign deletion failed", err)
	}
	return nil
}

// Clone copies the current version of a campaign into a new Draft campaign.
// Templates start over in legal review and no approvals are carried.
func (s *CampaignFlowImpl) Clone(ctx context.Context, campaignID uint, actor models.Actor) (*models.Campaign, error) {
	var clone *models.Campaign
	err := s.audit.Atomically(ctx, func(txCtx context.Context) error {
		source, err := s.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if source == nil {
			return fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}

		name, err := s.cloneName(txCtx, source.Name)
		if err != nil {
			return err
		}
		clone = &models.Campaign{
			Name:              name,
			Description:       source.Description,
			StartDate:         source.StartDate,
			EndDate:           source.EndDate,
			Status:            models.CampaignStatusDraft,
			OwnerID:           actor.ID,
			Priority:          source.Priority,
			ArbitrationWeight: source.ArbitrationWeight,
			CurrentVersion:    1,
		}
		if err := s.campaignRepo.Save(txCtx, clone); err != nil {
			return nameConflict(err)
		}

		if err := s.copyConfigs(txCtx, source, clone); err != nil {
			return err
		}
		if err := s.saveInitialVersion(txCtx, clone, actor); err != nil {
			return err
		}

		_, err = s.audit.Record(txCtx, actor, AuditChange{
			Action:     models.AuditActionCloneNBA,
			EntityType: models.EntityNBA,
			EntityID:   fmt.Sprint(clone.ID),
			Before:     map[string]any{"sourceId": source.ID, "sourceVersion": source.CurrentVersion},
			After:      clone,
		})
		return err
	})
	if err != nil {
		return nil, s.fail("Campaign clone failed", err)
	}
	return clone, nil
}

func (s *CampaignFlowImpl) ListVersions(ctx context.Context, campaignID uint) ([]*models.CampaignVersion, error) {
	if _, err := s.load(ctx, campaignID); err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, s.fail("Failed to list versions", err)
	}
	return versions, nil
}

func (s *CampaignFlowImpl) GetSnapshot(ctx context.Context, campaignID uint, version int) (*models.CampaignVersion, error) {
	if _, err := s.load(ctx, campaignID); err != nil {
		return nil, err
	}
	row, err := s.versionRepo.ByCampaignVersion(ctx, campaignID, version)
	if err != nil {
		return nil, s.fail("Failed to load version", err)
	}
	if row == nil {
		return nil, classify("", fmt.Errorf("campaign %d v%d: %w", campaignID, version, ErrVersionNotFound))
	}
	return row, nil
}

// DiffVersions returns the merge patch turning snapshot from into snapshot to
func (s *CampaignFlowImpl) DiffVersions(ctx context.Context, campaignID uint, from, to int) (*dto.VersionDiff, error) {
	older, err := s.GetSnapshot(ctx, campaignID, from)
	if err != nil {
		return nil, err
	}
	newer, err := s.GetSnapshot(ctx, campaignID, to)
	if err != nil {
		return nil, err
	}

	a, err := json.Marshal(older.Snapshot.Data())
	if err != nil {
		return nil, s.fail("Failed to encode snapshot", err)
	}
	b, err := json.Marshal(newer.Snapshot.Data())
	if err != nil {
		return nil, s.fail("Failed to encode snapshot", err)
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, s.fail("Failed to diff snapshots", err)
	}

	var changed map[string]any
	if err := json.Unmarshal(patch, &changed); err != nil {
		return nil, s.fail("Failed to decode snapshot diff", err)
	}
	return &dto.VersionDiff{
		CampaignID:  campaignID,
		From:        from,
		To:          to,
		MergePatch:  json.RawMessage(patch),
		ChangedKeys: slices.Sorted(maps.Keys(changed)),
	}, nil
}

func (s *CampaignFlowImpl) load(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, s.fail("Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, classify("", fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound))
	}
	return campaign, nil
}

func (s *CampaignFlowImpl) saveInitialVersion(ctx context.Context, campaign *models.Campaign, actor models.Actor) error {
	snapshot, err := s.versions.BuildSnapshot(ctx, campaign, 1)
	if err != nil {
		return err
	}
	return s.versionRepo.Save(ctx, &models.CampaignVersion{
		CampaignID:    campaign.ID,
		Version:       1,
		Snapshot:      models.NewSnapshot(snapshot),
		ChangeSummary: initialVersionSummary,
		CreatedBy:     actor.ID,
	})
}

// copyConfigs copies the current version of source into version 1 of clone
func (s *CampaignFlowImpl) copyConfigs(ctx context.Context, source, clone *models.Campaign) error {
	v := source.CurrentVersion

	audience, err := s.audienceRepo.ByCampaignVersion(ctx, source.ID, v)
	if err != nil {
		return err
	}
	if audience != nil {
		cfg := &models.AudienceConfig{CampaignID: clone.ID, Version: 1, Rules: audience.Rules, SizeEstimate: audience.SizeEstimate}
		if err := s.audienceRepo.Upsert(ctx, cfg); err != nil {
			return err
		}
	}

	action, err := s.actionRepo.ByCampaignVersion(ctx, source.ID, v)
	if err != nil {
		return err
	}
	if action != nil {
		cfg := &models.ActionConfig{CampaignID: clone.ID, Version: 1, ActionSpec: action.ActionSpec}
		if err := s.actionRepo.Upsert(ctx, cfg); err != nil {
			return err
		}
	}

	benefit, err := s.benefitRepo.ByCampaignVersion(ctx, source.ID, v)
	if err != nil {
		return err
	}
	if benefit != nil {
		cfg := &models.BenefitConfig{CampaignID: clone.ID, Version: 1, BenefitSpec: benefit.BenefitSpec}
		if err := s.benefitRepo.Upsert(ctx, cfg); err != nil {
			return err
		}
	}

	templates, err := s.templateRepo.ListByCampaignVersion(ctx, source.ID, v)
	if err != nil {
		return err
	}
	for _, t := range templates {
		copied := &models.CommTemplate{
			CampaignID:  clone.ID,
			Version:     1,
			Channel:     t.Channel,
			Subject:     t.Subject,
			Body:        t.Body,
			Tokens:      slices.Clone(t.Tokens),
			LegalStatus: models.LegalStatusInReview,
		}
		if err := s.templateRepo.Save(ctx, copied); err != nil {
			return err
		}
	}
	return nil
}

// cloneName finds the first free name of the form "Copy of X", "Copy of X (2)", ...
func (s *CampaignFlowImpl) cloneName(ctx context.Context, base string) (string, error) {
	for n := 1; ; n++ {
		suffix := ""
		if n > 1 {
			suffix = fmt.Sprintf(" (%d)", n)
		}
		name := truncate("Copy of "+base, maxCampaignName-utf8.RuneCountInString(suffix)) + suffix
		existing, err := s.campaignRepo.ByName(ctx, name)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return name, nil
		}
	}
}

// fail classifies err and logs it when it is not a user-actionable outcome
func (s *CampaignFlowImpl) fail(message string, err error) error {
	if !IsExpected(err) {
		s.logger.Printf("%s: %v", message, err)
	}
	return classify(message, err)
}

// nameConflict turns a duplicate-key write into a name field error
func nameConflict(err error) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return &UniqueConstraintError{Field: "name"}
	}
	return err
}

func generalDetails(c *models.Campaign) map[string]any {
	return map[string]any{
		"name":              c.Name,
		"description":       c.Description,
		"startDate":         c.StartDate,
		"endDate":           c.EndDate,
		"priority":          c.Priority,
		"arbitrationWeight": c.ArbitrationWeight,
	}
}

func withDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func truncate(s string, runes int) string {
	if utf8.RuneCountInString(s) <= runes {
		return s
	}
	return string([]rune(s)[:runes])
}
