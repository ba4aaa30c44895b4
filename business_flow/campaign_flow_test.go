package businessflow_test

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/rules"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

func TestCampaignFlow_Create(t *testing.T) {
	e := newEnv(t)

	c := e.campaign(t, "Card expiry reminder", 0)
	assert.NotZero(t, c.ID)
	assert.Equal(t, models.CampaignStatusDraft, c.Status)
	assert.Equal(t, 1, c.CurrentVersion)
	assert.Equal(t, 5, c.Priority)
	assert.Equal(t, testingutil.Marketer.ID, c.OwnerID)

	versions, err := e.flows.Campaigns.ListVersions(e.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.False(t, versions[0].MaterialChange)

	entries, err := e.flows.Audit.Query(e.ctx, models.EntityNBA, fmt.Sprint(c.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionCreateNBA, entries[0].Action)
}

func TestCampaignFlow_CreateRejects(t *testing.T) {
	tests := []struct {
		name string
		req  func(e *env) *dto.CampaignGeneralRequest
		code string
	}{
		{
			name: "name too short",
			req:  func(e *env) *dto.CampaignGeneralRequest { return testingutil.GeneralRequest("ab", e.clock.Now(), 3) },
			code: businessflow.CodeValidationFailed,
		},
		{
			name: "end before start",
			req: func(e *env) *dto.CampaignGeneralRequest {
				req := testingutil.GeneralRequest("Backwards", e.clock.Now(), 3)
				req.EndDate = req.StartDate.Add(-1)
				return req
			},
			code: businessflow.CodeValidationFailed,
		},
		{
			name: "priority out of range",
			req:  func(e *env) *dto.CampaignGeneralRequest { return testingutil.GeneralRequest("Too eager", e.clock.Now(), 11) },
			code: businessflow.CodeValidationFailed,
		},
		{
			name: "duplicate name",
			req:  func(e *env) *dto.CampaignGeneralRequest { return testingutil.GeneralRequest("Taken", e.clock.Now(), 3) },
			code: businessflow.CodeCampaignNameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.campaign(t, "Taken", 3)

			_, err := e.flows.Campaigns.Create(e.ctx, tt.req(e), testingutil.Marketer)
			assert.Equal(t, tt.code, businessCode(t, err))

			list, err := e.flows.Campaigns.List(e.ctx, &dto.ListCampaignsRequest{})
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestCampaignFlow_Clone(t *testing.T) {
	e := newEnv(t)
	source := e.campaign(t, "Card expiry", 3)
	e.audience(t, source.ID, testingutil.ExpiringCardAudience())
	_, err := e.flows.Offers.SaveAction(e.ctx, source.ID, testingutil.ActionRequest(2), testingutil.Marketer)
	require.NoError(t, err)
	_, err = e.flows.Comms.UpsertComms(e.ctx, source.ID, testingutil.CommsRequest("SMS", "Email"), testingutil.Marketer)
	require.NoError(t, err)

	templates, err := e.store.Templates().ListByCampaignVersion(e.ctx, source.ID, 1)
	require.NoError(t, err)
	for _, tpl := range templates {
		_, err := e.flows.Comms.LegalDecision(e.ctx, tpl.ID, &dto.LegalDecisionRequest{Decision: "Approved"}, testingutil.Legal)
		require.NoError(t, err)
	}

	clone, err := e.flows.Campaigns.Clone(e.ctx, source.ID, testingutil.Marketer)
	require.NoError(t, err)
	assert.Equal(t, "Copy of Card expiry", clone.Name)
	assert.Equal(t, models.CampaignStatusDraft, clone.Status)
	assert.Equal(t, 1, clone.CurrentVersion)
	assert.NotEqual(t, source.UUID, clone.UUID)

	t.Run("templates start over in review", func(t *testing.T) {
		copied, err := e.store.Templates().ListByCampaignVersion(e.ctx, clone.ID, 1)
		require.NoError(t, err)
		require.Len(t, copied, 2)
		for _, tpl := range copied {
			assert.Equal(t, models.LegalStatusInReview, tpl.LegalStatus)
			assert.Nil(t, tpl.ReviewedBy)
		}
	})

	t.Run("no approvals are carried", func(t *testing.T) {
		n, err := e.store.Approvals().CountByCampaign(e.ctx, clone.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = e.store.Approvals().CountByCampaign(e.ctx, source.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("sub-configs are copied", func(t *testing.T) {
		audience, err := e.store.Audiences().ByCampaignVersion(e.ctx, clone.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, audience)
		action, err := e.store.Actions().ByCampaignVersion(e.ctx, clone.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.Equal(t, models.ActionTypeUpdatePaymentProfile, action.ActionType)
	})

	t.Run("second clone gets a numbered name", func(t *testing.T) {
		again, err := e.flows.Campaigns.Clone(e.ctx, source.ID, testingutil.Marketer)
		require.NoError(t, err)
		assert.Equal(t, "Copy of Card expiry (2)", again.Name)
	})

	t.Run("clone is audited", func(t *testing.T) {
		entries, err := e.flows.Audit.Query(e.ctx, models.EntityNBA, fmt.Sprint(clone.ID))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, models.AuditActionCloneNBA, entries[0].Action)
	})
}

func TestCampaignFlow_CloneTruncatesLongNames(t *testing.T) {
	e := newEnv(t)
	long := strings.Repeat("é", 120)
	source := e.campaign(t, long, 3)

	clone, err := e.flows.Campaigns.Clone(e.ctx, source.ID, testingutil.Marketer)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(clone.Name, "Copy of "))
	assert.Equal(t, 120, utf8.RuneCountInString(clone.Name))

	again, err := e.flows.Campaigns.Clone(e.ctx, source.ID, testingutil.Marketer)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(again.Name, " (2)"))
	assert.Equal(t, 120, utf8.RuneCountInString(again.Name))
}

func TestCampaignFlow_CloneUnknown(t *testing.T) {
	e := newEnv(t)
	_, err := e.flows.Campaigns.Clone(e.ctx, 42, testingutil.Marketer)
	assert.Equal(t, businessflow.CodeCampaignNotFound, businessCode(t, err))
}

func TestCampaignFlow_Delete(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Short lived", 3)
	e.audience(t, c.ID, testingutil.TenureAudience(1))

	require.NoError(t, e.flows.Campaigns.Delete(e.ctx, c.ID, testingutil.Marketer))

	_, err := e.flows.Campaigns.Get(e.ctx, c.ID)
	assert.Equal(t, businessflow.CodeCampaignNotFound, businessCode(t, err))
	audience, err := e.store.Audiences().ByCampaignVersion(e.ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, audience)

	entries, err := e.flows.Audit.Query(e.ctx, models.EntityNBA, fmt.Sprint(c.ID))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditActionDeleteNBA, entries[0].Action)

	err = e.flows.Campaigns.Delete(e.ctx, c.ID, testingutil.Marketer)
	assert.Equal(t, businessflow.CodeCampaignNotFound, businessCode(t, err))
}

func TestCampaignFlow_ListFiltersAfterExpiry(t *testing.T) {
	e := newEnv(t)
	live := e.liveCampaign(t, "Live", 3, testingutil.TenureAudience(1))
	e.campaign(t, "Draft", 3)
	e.clock.Advance(61 * 24 * time.Hour)

	published, err := e.flows.Campaigns.List(e.ctx, &dto.ListCampaignsRequest{Statuses: []models.CampaignStatus{models.CampaignStatusPublished}})
	require.NoError(t, err)
	assert.Empty(t, published)

	expired, err := e.flows.Campaigns.List(e.ctx, &dto.ListCampaignsRequest{Statuses: []models.CampaignStatus{models.CampaignStatusExpired}})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, live.ID, expired[0].ID)

	_, err = e.flows.Campaigns.List(e.ctx, &dto.ListCampaignsRequest{Statuses: []models.CampaignStatus{"Live"}})
	assert.Equal(t, businessflow.CodeValidationFailed, businessCode(t, err))
}

func TestCampaignFlow_DiffVersions(t *testing.T) {
	e := newEnv(t)
	c := e.liveCampaign(t, "Diffed", 3, testingutil.TenureAudience(1))

	include := rules.Cond(rules.FieldTenureMonths, rules.OpGte, 6)
	res, err := e.flows.Audiences.SaveAudience(e.ctx, c.ID, &dto.SaveAudienceRequest{Rules: rules.Audience{Include: &include}}, testingutil.Marketer)
	require.NoError(t, err)
	require.Equal(t, 2, res.Version)

	diff, err := e.flows.Campaigns.DiffVersions(e.ctx, c.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"audience"}, diff.ChangedKeys)

	_, err = e.flows.Campaigns.DiffVersions(e.ctx, c.ID, 1, 3)
	assert.Equal(t, businessflow.CodeVersionNotFound, businessCode(t, err))
}
