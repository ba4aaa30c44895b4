package businessflow_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

var pathToPublished = []models.CampaignStatus{
	models.CampaignStatusSubmitted,
	models.CampaignStatusInLegalReview,
	models.CampaignStatusApproved,
	models.CampaignStatusScheduled,
	models.CampaignStatusPublishing,
	models.CampaignStatusPublished,
}

func (e *env) walk(t *testing.T, campaignID uint, path []models.CampaignStatus) {
	t.Helper()
	for _, next := range path {
		_, err := e.flows.Lifecycle.Transition(e.ctx, campaignID, next.String(), testingutil.Marketer)
		require.NoError(t, err, "transition to %s", next)
	}
}

func TestTransition_HappyPath(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Walked", 3)

	from := models.CampaignStatusDraft
	for _, next := range pathToPublished {
		res, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, next.String(), testingutil.Marketer)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, from, res.From)
		assert.Equal(t, next, res.To)
		from = next
	}
	assert.Equal(t, models.CampaignStatusPublished, e.reload(t, c.ID).Status)

	entries, err := e.store.Audits().ByFilter(e.ctx, models.AuditEntryFilter{
		EntityType: ptr(models.EntityNBA),
		EntityID:   ptr(fmt.Sprint(c.ID)),
		Action:     ptr(models.AuditActionStatusTransition),
	}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, len(pathToPublished))
	assert.Equal(t, testingutil.Marketer.ID, entries[0].ActorID)
}

func TestTransition_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   string
	}{
		{name: "skipping review", target: "Published", code: businessflow.CodeInvalidTransition},
		{name: "straight to approved", target: "Approved", code: businessflow.CodeInvalidTransition},
		{name: "unknown status", target: "Live", code: businessflow.CodeValidationFailed},
		{name: "same status", target: "Draft", code: businessflow.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			c := e.campaign(t, "Stuck", 3)

			_, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, tt.target, testingutil.Marketer)
			assert.Equal(t, tt.code, businessCode(t, err))
			assert.Equal(t, models.CampaignStatusDraft, e.reload(t, c.ID).Status)
		})
	}

	t.Run("invalid transition names both ends", func(t *testing.T) {
		e := newEnv(t)
		c := e.campaign(t, "Stuck", 3)

		_, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "Published", testingutil.Marketer)
		var inv *businessflow.InvalidTransitionError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, models.CampaignStatusDraft, inv.From)
		assert.Equal(t, models.CampaignStatusPublished, inv.To)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.flows.Lifecycle.Transition(e.ctx, 77, "Submitted", testingutil.Marketer)
		assert.Equal(t, businessflow.CodeCampaignNotFound, businessCode(t, err))
	})
}

func TestTransition_AcceptsLooseStatusNames(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Loose", 3)
	e.walk(t, c.ID, []models.CampaignStatus{models.CampaignStatusSubmitted})

	res, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "in legal review", testingutil.Marketer)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusInLegalReview, res.To)
}

func TestTransition_LegalGate(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Gated", 3)
	_, err := e.flows.Comms.UpsertComms(e.ctx, c.ID, testingutil.CommsRequest("SMS", "Email"), testingutil.Marketer)
	require.NoError(t, err)
	e.walk(t, c.ID, pathToPublished[:3])

	_, err = e.flows.Lifecycle.Transition(e.ctx, c.ID, "Scheduled", testingutil.Marketer)
	assert.Equal(t, businessflow.CodeLegalApprovalRequired, businessCode(t, err))
	var gate *businessflow.LegalApprovalRequiredError
	require.ErrorAs(t, err, &gate)
	assert.ElementsMatch(t, []string{"SMS (In Review)", "Email (In Review)"}, gate.Pending)
	assert.Equal(t, models.CampaignStatusApproved, e.reload(t, c.ID).Status)

	templates, err := e.store.Templates().ListByCampaignVersion(e.ctx, c.ID, 1)
	require.NoError(t, err)
	for i, tpl := range templates {
		decision := "Approved"
		if i == 0 {
			decision = "Rejected"
		}
		_, err := e.flows.Comms.LegalDecision(e.ctx, tpl.ID, &dto.LegalDecisionRequest{Decision: decision}, testingutil.Legal)
		require.NoError(t, err)
	}

	_, err = e.flows.Lifecycle.Transition(e.ctx, c.ID, "Scheduled", testingutil.Marketer)
	require.ErrorAs(t, err, &gate)
	assert.Len(t, gate.Pending, 1)

	_, err = e.flows.Comms.LegalDecision(e.ctx, templates[0].ID, &dto.LegalDecisionRequest{Decision: "Approved"}, testingutil.Legal)
	require.NoError(t, err)
	e.walk(t, c.ID, pathToPublished[3:])
	assert.Equal(t, models.CampaignStatusPublished, e.reload(t, c.ID).Status)
}

func TestReconcileAll(t *testing.T) {
	e := newEnv(t)
	first := e.liveCampaign(t, "First", 3, testingutil.TenureAudience(1))
	second := e.liveCampaign(t, "Second", 3, testingutil.TenureAudience(1))
	draft := e.campaign(t, "Draft", 3)

	res, err := e.flows.Lifecycle.ReconcileAll(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Expired)

	e.clock.Advance(61 * 24 * time.Hour)
	res, err = e.flows.Lifecycle.ReconcileAll(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID}, res.Expired)
	assert.Equal(t, models.CampaignStatusDraft, e.reload(t, draft.ID).Status)

	entries, err := e.flows.Audit.Query(e.ctx, models.EntityNBA, fmt.Sprint(first.ID))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditActionStatusTransition, entries[0].Action)
	assert.Equal(t, models.SystemActor.ID, entries[0].ActorID)

	res, err = e.flows.Lifecycle.ReconcileAll(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Expired)
}

func TestTransition_ExpiredCampaignCannotBePublished(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Late", 3)
	e.walk(t, c.ID, pathToPublished[:4])
	e.clock.Advance(61 * 24 * time.Hour)

	_, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "Publishing", testingutil.Marketer)
	var inv *businessflow.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, models.CampaignStatusExpired, inv.From)
}

func TestTransition_StalePublishedToExpired(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Stale", 3)
	e.walk(t, c.ID, pathToPublished)
	e.clock.Advance(61 * 24 * time.Hour)

	res, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "Expired", testingutil.Marketer)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPublished, res.From)
	assert.Equal(t, models.CampaignStatusExpired, res.To)
	assert.Equal(t, models.CampaignStatusExpired, e.reload(t, c.ID).Status)

	entries, err := e.store.Audits().ByFilter(e.ctx, models.AuditEntryFilter{
		EntityType: ptr(models.EntityNBA),
		EntityID:   ptr(fmt.Sprint(c.ID)),
		Action:     ptr(models.AuditActionStatusTransition),
	}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, len(pathToPublished)+1)

	t.Run("already expired is rejected", func(t *testing.T) {
		_, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "Expired", testingutil.Marketer)
		var inv *businessflow.InvalidTransitionError
		require.ErrorAs(t, err, &inv)
	})
}

func TestTransition_RejectedTransitionKeepsExpiry(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Kept", 3)
	e.walk(t, c.ID, pathToPublished)
	e.clock.Advance(61 * 24 * time.Hour)

	_, err := e.flows.Lifecycle.Transition(e.ctx, c.ID, "Draft", testingutil.Marketer)
	var inv *businessflow.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, models.CampaignStatusExpired, inv.From)
	assert.Equal(t, models.CampaignStatusExpired, e.reload(t, c.ID).Status)
}

func TestAllowedTransitions(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t,
		[]models.CampaignStatus{models.CampaignStatusSubmitted, models.CampaignStatusCancelled, models.CampaignStatusArchived},
		e.flows.Lifecycle.AllowedTransitions(models.CampaignStatusDraft))
	assert.Empty(t, e.flows.Lifecycle.AllowedTransitions(models.CampaignStatusArchived))
}

func ptr[T any](v T) *T { return &v }
