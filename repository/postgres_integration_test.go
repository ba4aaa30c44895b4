package repository_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

func TestPostgres_CampaignLifecycle(t *testing.T) {
	tdb := testingutil.RequireTestDB(t)
	ctx := context.Background()
	clock := testingutil.NewClock(testingutil.Epoch)
	repos := repository.NewSet(tdb.DB)
	flows := businessflow.NewFlows(repos, businessflow.Options{
		Now:    clock.Now,
		Logger: log.New(io.Discard, "", 0),
	})

	now := clock.Now()
	customers, err := testingutil.SaveCustomers(ctx, repos.Customers,
		testingutil.NewCustomer("Alex Lee", testingutil.CardExpiresIn(now, 10)),
		testingutil.NewCustomer("Sam Patel", testingutil.CardExpiresIn(now, 90)),
	)
	require.NoError(t, err)

	c, err := flows.Campaigns.Create(ctx, testingutil.GeneralRequest("Card expiry", now, 3), testingutil.Marketer)
	require.NoError(t, err)

	t.Run("duplicate name is rejected", func(t *testing.T) {
		_, err := flows.Campaigns.Create(ctx, testingutil.GeneralRequest("Card expiry", now, 3), testingutil.Marketer)
		var be *businessflow.BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, businessflow.CodeCampaignNameTaken, be.Code)
	})

	audience, err := flows.Audiences.SaveAudience(ctx, c.ID, testingutil.ExpiringCardAudience(), testingutil.Marketer)
	require.NoError(t, err)
	assert.Equal(t, 1, audience.SizeEstimate)

	_, err = flows.Offers.SaveAction(ctx, c.ID, testingutil.ActionRequest(2), testingutil.Marketer)
	require.NoError(t, err)
	_, err = flows.Comms.UpsertComms(ctx, c.ID, testingutil.CommsRequest("SMS"), testingutil.Marketer)
	require.NoError(t, err)

	for _, status := range []string{"Submitted", "In Legal Review", "Approved"} {
		_, err := flows.Lifecycle.Transition(ctx, c.ID, status, testingutil.Marketer)
		require.NoError(t, err)
	}
	templates, err := repos.Templates.ListByCampaignVersion(ctx, c.ID, 1)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	_, err = flows.Comms.LegalDecision(ctx, templates[0].ID, &dto.LegalDecisionRequest{Decision: "Approved"}, testingutil.Legal)
	require.NoError(t, err)
	for _, status := range []string{"Scheduled", "Publishing", "Published"} {
		_, err := flows.Lifecycle.Transition(ctx, c.ID, status, testingutil.Marketer)
		require.NoError(t, err)
	}

	decision, err := flows.Arbitration.Decide(ctx, customers[0].ID, false)
	require.NoError(t, err)
	require.NotNil(t, decision.Winner)
	assert.Equal(t, c.ID, decision.Winner.CampaignID)

	decision, err = flows.Arbitration.Decide(ctx, customers[1].ID, false)
	require.NoError(t, err)
	assert.Nil(t, decision.Winner)

	t.Run("material edit forks version 2 with templates copied", func(t *testing.T) {
		_, err := flows.Audiences.SaveAudience(ctx, c.ID, testingutil.TenureAudience(1), testingutil.Marketer)
		require.NoError(t, err)

		reloaded, err := repos.Campaigns.ByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.CurrentVersion)
		assert.Equal(t, models.CampaignStatusInLegalReview, reloaded.Status)

		copied, err := repos.Templates.ListByCampaignVersion(ctx, c.ID, 2)
		require.NoError(t, err)
		require.Len(t, copied, 1)
		assert.Equal(t, models.LegalStatusInReview, copied[0].LegalStatus)

		require.NoError(t, repos.Actions.CopyForward(ctx, c.ID, 1, 2))
		action, err := repos.Actions.ByCampaignVersion(ctx, c.ID, 2)
		require.NoError(t, err)
		require.NotNil(t, action)
	})

	t.Run("audit trail is newest first", func(t *testing.T) {
		entries, err := repos.Audits.ListByEntity(ctx, models.EntityNBA, fmt.Sprint(c.ID))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, models.AuditActionCreateNBA, entries[len(entries)-1].Action)
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
		}
	})

	t.Run("in legal review does not expire", func(t *testing.T) {
		clock.Advance(61 * 24 * time.Hour)
		res, err := flows.Lifecycle.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, res.Expired)
	})
}
