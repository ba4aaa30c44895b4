package businessflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "none", text: "Plain text", want: []string{}},
		{name: "sorted and unique", text: "{{shortUrl}} hi {{ firstName }}, {{firstName}}", want: []string{"firstName", "shortUrl"}},
		{name: "underscores and digits", text: "{{plan_name}} {{offer2}}", want: []string{"offer2", "plan_name"}},
		{name: "unclosed braces ignored", text: "{{firstName} {{ }}", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, businessflow.ExtractTokens(tt.text))
		})
	}
}

func TestUpsertComms(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Messaged", 3)

	res, err := e.flows.Comms.UpsertComms(e.ctx, c.ID, testingutil.CommsRequest("SMS", "Email"), testingutil.Marketer)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Version)
	assert.False(t, res.Material)

	templates, err := e.store.Templates().ListByCampaignVersion(e.ctx, c.ID, 1)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	for _, tpl := range templates {
		assert.Equal(t, models.LegalStatusInReview, tpl.LegalStatus)
		assert.Equal(t, []string{"firstName", "shortUrl"}, []string(tpl.Tokens))
	}

	t.Run("rewrite sends an approved template back to review", func(t *testing.T) {
		sms, err := e.store.Templates().ByCampaignVersionChannel(e.ctx, c.ID, 1, models.ChannelSMS)
		require.NoError(t, err)
		_, err = e.flows.Comms.LegalDecision(e.ctx, sms.ID, &dto.LegalDecisionRequest{Decision: "Approved"}, testingutil.Legal)
		require.NoError(t, err)

		_, err = e.flows.Comms.UpsertComms(e.ctx, c.ID, &dto.UpsertCommsRequest{
			Templates: []dto.TemplateInput{{Channel: "SMS", Body: "Reminder for {{firstName}}"}},
		}, testingutil.Marketer)
		require.NoError(t, err)

		sms, err = e.store.Templates().ByCampaignVersionChannel(e.ctx, c.ID, 1, models.ChannelSMS)
		require.NoError(t, err)
		assert.Equal(t, models.LegalStatusInReview, sms.LegalStatus)
		assert.Nil(t, sms.ReviewedBy)
		assert.Equal(t, []string{"firstName"}, []string(sms.Tokens))

		templates, err := e.store.Templates().ListByCampaignVersion(e.ctx, c.ID, 1)
		require.NoError(t, err)
		assert.Len(t, templates, 2)
	})
}

func TestUpsertComms_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  *dto.UpsertCommsRequest
	}{
		{name: "no templates", req: &dto.UpsertCommsRequest{}},
		{name: "duplicate channel", req: testingutil.CommsRequest("SMS", "SMS")},
		{name: "unknown channel", req: testingutil.CommsRequest("Fax")},
		{name: "empty body", req: &dto.UpsertCommsRequest{Templates: []dto.TemplateInput{{Channel: "SMS"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			c := e.campaign(t, "Messaged", 3)

			_, err := e.flows.Comms.UpsertComms(e.ctx, c.ID, tt.req, testingutil.Marketer)
			assert.Equal(t, businessflow.CodeValidationFailed, businessCode(t, err))

			templates, err := e.store.Templates().ListByCampaignVersion(e.ctx, c.ID, 1)
			require.NoError(t, err)
			assert.Empty(t, templates)
		})
	}
}

func TestLegalDecision(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, "Reviewed", 3)
	_, err := e.flows.Comms.UpsertComms(e.ctx, c.ID, testingutil.CommsRequest("SMS", "Email"), testingutil.Marketer)
	require.NoError(t, err)
	sms, err := e.store.Templates().ByCampaignVersionChannel(e.ctx, c.ID, 1, models.ChannelSMS)
	require.NoError(t, err)

	inbox, err := e.flows.Comms.LegalInbox(e.ctx, 0)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	rejected, err := e.flows.Comms.LegalDecision(e.ctx, sms.ID, &dto.LegalDecisionRequest{Decision: "Rejected", Comments: "missing opt-out"}, testingutil.Legal)
	require.NoError(t, err)
	assert.Equal(t, models.LegalStatusRejected, rejected.LegalStatus)
	require.NotNil(t, rejected.ReviewedBy)
	assert.Equal(t, testingutil.Legal.ID, *rejected.ReviewedBy)
	require.NotNil(t, rejected.ReviewedAt)
	assert.True(t, rejected.ReviewedAt.Equal(e.clock.Now()))

	approvals, err := e.store.Approvals().ListByTemplate(e.ctx, sms.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.LegalStatusRejected, approvals[0].Decision)
	assert.Equal(t, "missing opt-out", approvals[0].Comments)

	inbox, err = e.flows.Comms.LegalInbox(e.ctx, 0)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	t.Run("unknown template", func(t *testing.T) {
		_, err := e.flows.Comms.LegalDecision(e.ctx, 9999, &dto.LegalDecisionRequest{Decision: "Approved"}, testingutil.Legal)
		assert.Equal(t, businessflow.CodeTemplateNotFound, businessCode(t, err))
	})

	t.Run("unknown decision", func(t *testing.T) {
		_, err := e.flows.Comms.LegalDecision(e.ctx, sms.ID, &dto.LegalDecisionRequest{Decision: "Maybe"}, testingutil.Legal)
		assert.Equal(t, businessflow.CodeValidationFailed, businessCode(t, err))
	})
}

func TestLegalInbox_ResubmittedTemplateRisesToTop(t *testing.T) {
	e := newEnv(t)
	first := e.campaign(t, "First", 3)
	second := e.campaign(t, "Second", 3)

	for _, c := range []uint{first.ID, second.ID} {
		_, err := e.flows.Comms.UpsertComms(e.ctx, c, testingutil.CommsRequest("SMS"), testingutil.Marketer)
		require.NoError(t, err)
	}

	inbox, err := e.flows.Comms.LegalInbox(e.ctx, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, second.ID, inbox[0].Template.CampaignID)

	e.clock.Advance(time.Hour)
	_, err = e.flows.Comms.UpsertComms(e.ctx, first.ID, testingutil.CommsRequest("SMS"), testingutil.Marketer)
	require.NoError(t, err)

	inbox, err = e.flows.Comms.LegalInbox(e.ctx, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, first.ID, inbox[0].Template.CampaignID)
	require.NotNil(t, inbox[0].Template.UpdatedAt)
	assert.True(t, inbox[0].Template.UpdatedAt.Equal(e.clock.Now()))
}
