package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
)

// Edit describes who changes which part of a campaign
type Edit struct {
	Kind    models.EditKind
	Actor   models.Actor
	Summary string
}

// EditFunc applies an edit to the given version of the campaign and returns
// the change to audit, or nil when there is nothing to record.
type EditFunc func(ctx context.Context, campaign *models.Campaign, version int) (*AuditChange, error)

// VersionManager decides whether an edit forks a new version and performs the fork
type VersionManager interface {
	ApplyEdit(ctx context.Context, campaignID uint, edit Edit, mutate EditFunc) (*dto.EditResult, error)
	// BuildSnapshot reads the stored configuration of one version
	BuildSnapshot(ctx context.Context, campaign *models.Campaign, version int) (models.VersionSnapshot, error)
	// ForwardCopy copies the sub-configs of the given kinds from one version to the next
	// unless already present there
	ForwardCopy(ctx context.Context, campaignID uint, from, to int, kinds []models.EditKind) error
}

// VersionManagerImpl implements the version manager
type VersionManagerImpl struct {
	campaignRepo repository.CampaignRepository
	versionRepo  repository.CampaignVersionRepository
	audienceRepo repository.AudienceConfigRepository
	actionRepo   repository.ActionConfigRepository
	benefitRepo  repository.BenefitConfigRepository
	templateRepo repository.CommTemplateRepository
	audit        AuditTrail
}

// NewVersionManager creates a new version manager
func NewVersionManager(
	campaignRepo repository.CampaignRepository,
	versionRepo repository.CampaignVersionRepository,
	audienceRepo repository.AudienceConfigRepository,
	actionRepo repository.ActionConfigRepository,
	benefitRepo repository.BenefitConfigRepository,
	templateRepo repository.CommTemplateRepository,
	audit AuditTrail,
) VersionManager {
	return &VersionManagerImpl{
		campaignRepo: campaignRepo,
		versionRepo:  versionRepo,
		audienceRepo: audienceRepo,
		actionRepo:   actionRepo,
		benefitRepo:  benefitRepo,
		templateRepo: templateRepo,
		audit:        audit,
	}
}

// ApplyEdit runs mutate against the right version in one transaction.
//
// A material edit (non-Draft campaign, non-General kind) allocates
// current+1, moves the campaign to In Legal Review, forward-copies the
// sub-configs the edit does not target, stores a snapshot flagged material
// and audits the bump before mutate runs on the new version. Any other edit
// mutates the current version in place; its snapshot is refreshed only while
// the campaign is still a Draft.
func (m *VersionManagerImpl) ApplyEdit(ctx context.Context, campaignID uint, edit Edit, mutate EditFunc) (*dto.EditResult, error) {
	if !edit.Kind.Valid() {
		return nil, &ValidationError{Field: "editKind", Message: fmt.Sprintf("unknown edit kind %q", edit.Kind)}
	}

	var result *dto.EditResult
	err := m.audit.Atomically(ctx, func(txCtx context.Context) error {
		campaign, err := m.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}

		if campaign.IsMaterialEdit(edit.Kind) {
			result, err = m.applyMaterial(txCtx, campaign, edit, mutate)
		} else {
			result, err = m.applyInPlace(txCtx, campaign, edit, mutate)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Material {
		versionBumpsTotal.WithLabelValues(string(edit.Kind)).Inc()
	}
	return result, nil
}

func (m *VersionManagerImpl) applyInPlace(ctx context.Context, campaign *models.Campaign, edit Edit, mutate EditFunc) (*dto.EditResult, error) {
	version := campaign.CurrentVersion
	change, err := mutate(ctx, campaign, version)
	if err != nil {
		return nil, err
	}
	if change != nil {
		if _, err := m.audit.Record(ctx, edit.Actor, *change); err != nil {
			return nil, err
		}
	}

	if campaign.Status == models.CampaignStatusDraft {
		if err := m.refreshSnapshot(ctx, campaign, version); err != nil {
			return nil, err
		}
	}

	return &dto.EditResult{Campaign: campaign, Version: version, PreviousVersion: version}, nil
}

func (m *VersionManagerImpl) applyMaterial(ctx context.Context, campaign *models.Campaign, edit Edit, mutate EditFunc) (*dto.EditResult, error) {
	prev := campaign.CurrentVersion
	next := prev + 1
	before := map[string]any{"version": prev, "status": campaign.Status}

	campaign.CurrentVersion = next
	campaign.Status = models.CampaignStatusInLegalReview
	if err := m.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, err
	}

	others := make([]models.EditKind, 0, 3)
	for _, kind := range models.SubConfigKinds() {
		if kind != edit.Kind {
			others = append(others, kind)
		}
	}
	if err := m.ForwardCopy(ctx, campaign.ID, prev, next, others); err != nil {
		return nil, err
	}

	snapshot, err := m.BuildSnapshot(ctx, campaign, next)
	if err != nil {
		return nil, err
	}
	summary := edit.Summary
	if summary == "" {
		summary = fmt.Sprintf("%s change", edit.Kind)
	}
	version := &models.CampaignVersion{
		CampaignID:     campaign.ID,
		Version:        next,
		Snapshot:       models.NewSnapshot(snapshot),
		MaterialChange: true,
		ChangeSummary:  summary,
		CreatedBy:      edit.Actor.ID,
	}
	if err := m.versionRepo.Save(ctx, version); err != nil {
		return nil, err
	}

	_, err = m.audit.Record(ctx, edit.Actor, AuditChange{
		Action:     models.AuditActionVersionBump,
		EntityType: models.EntityCampaignVersion,
		EntityID:   versionEntityID(campaign.ID, next),
		Before:     before,
		After:      map[string]any{"version": next, "status": campaign.Status, "editKind": edit.Kind, "summary": summary},
	})
	if err != nil {
		return nil, err
	}

	change, err := mutate(ctx, campaign, next)
	if err != nil {
		return nil, err
	}
	if change != nil {
		if _, err := m.audit.Record(ctx, edit.Actor, *change); err != nil {
			return nil, err
		}
	}

	// Untouched parts of the targeted sub-config (e.g. template channels the
	// edit did not name) are carried over too.
	if err := m.ForwardCopy(ctx, campaign.ID, prev, next, []models.EditKind{edit.Kind}); err != nil {
		return nil, err
	}

	// Snapshot of the new version includes the edit itself.
	if err := m.refreshSnapshot(ctx, campaign, next); err != nil {
		return nil, err
	}

	return &dto.EditResult{Campaign: campaign, Version: next, PreviousVersion: prev, Material: true}, nil
}

func (m *VersionManagerImpl) ForwardCopy(ctx context.Context, campaignID uint, from, to int, kinds []models.EditKind) error {
	for _, kind := range kinds {
		var err error
		switch kind {
		case models.EditKindAudience:
			err = m.audienceRepo.CopyForward(ctx, campaignID, from, to)
		case models.EditKindAction:
			err = m.actionRepo.CopyForward(ctx, campaignID, from, to)
		case models.EditKindBenefit:
			err = m.benefitRepo.CopyForward(ctx, campaignID, from, to)
		case models.EditKindComms:
			err = m.templateRepo.CopyForward(ctx, campaignID, from, to)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *VersionManagerImpl) BuildSnapshot(ctx context.Context, campaign *models.Campaign, version int) (models.VersionSnapshot, error) {
	snap := models.VersionSnapshot{
		Campaign: models.CampaignSnapshot{
			Name:              campaign.Name,
			Description:       campaign.Description,
			StartDate:         campaign.StartDate,
			EndDate:           campaign.EndDate,
			Priority:          campaign.Priority,
			ArbitrationWeight: campaign.ArbitrationWeight,
		},
	}

	audience, err := m.audienceRepo.ByCampaignVersion(ctx, campaign.ID, version)
	if err != nil {
		return snap, err
	}
	if audience != nil {
		a := audience.Audience()
		snap.Audience = &a
	}

	action, err := m.actionRepo.ByCampaignVersion(ctx, campaign.ID, version)
	if err != nil {
		return snap, err
	}
	if action != nil {
		spec := action.ActionSpec
		snap.Action = &spec
	}

	benefit, err := m.benefitRepo.ByCampaignVersion(ctx, campaign.ID, version)
	if err != nil {
		return snap, err
	}
	if benefit != nil {
		spec := benefit.BenefitSpec
		snap.Benefit = &spec
	}

	templates, err := m.templateRepo.ListByCampaignVersion(ctx, campaign.ID, version)
	if err != nil {
		return snap, err
	}
	for _, t := range templates {
		snap.Templates = append(snap.Templates, t.Snapshot())
	}

	return snap, nil
}

func (m *VersionManagerImpl) refreshSnapshot(ctx context.Context, campaign *models.Campaign, version int) error {
	row, err := m.versionRepo.ByCampaignVersion(ctx, campaign.ID, version)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("campaign %d v%d: %w", campaign.ID, version, ErrVersionNotFound)
	}
	snapshot, err := m.BuildSnapshot(ctx, campaign, version)
	if err != nil {
		return err
	}
	return m.versionRepo.UpdateSnapshot(ctx, row.ID, snapshot)
}

// versionEntityID names a per-version entity in the audit trail, e.g. "12@v3"
func versionEntityID(campaignID uint, version int) string {
	return fmt.Sprintf("%d@v%d", campaignID, version)
}
