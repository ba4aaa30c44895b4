package businessflow_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

// env wires every flow on an in-memory store with a settable clock
type env struct {
	ctx   context.Context
	store *testingutil.MemStore
	clock *testingutil.Clock
	flows *businessflow.Flows
}

func newEnv(t *testing.T, opts ...func(*businessflow.Options)) *env {
	t.Helper()
	store := testingutil.NewMemStore()
	clock := testingutil.NewClock(testingutil.Epoch)
	o := businessflow.Options{Now: clock.Now, Logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(&o)
	}
	return &env{
		ctx:   context.Background(),
		store: store,
		clock: clock,
		flows: businessflow.NewFlows(store.Set(), o),
	}
}

func (e *env) customer(t *testing.T, name string, opts ...testingutil.CustomerOption) *models.Customer {
	t.Helper()
	saved, err := testingutil.SaveCustomers(e.ctx, e.store.Customers(), testingutil.NewCustomer(name, opts...))
	require.NoError(t, err)
	return saved[0]
}

func (e *env) campaign(t *testing.T, name string, priority int) *models.Campaign {
	t.Helper()
	c, err := e.flows.Campaigns.Create(e.ctx, testingutil.GeneralRequest(name, e.clock.Now(), priority), testingutil.Marketer)
	require.NoError(t, err)
	return c
}

func (e *env) audience(t *testing.T, campaignID uint, req *dto.SaveAudienceRequest) {
	t.Helper()
	_, err := e.flows.Audiences.SaveAudience(e.ctx, campaignID, req, testingutil.Marketer)
	require.NoError(t, err)
}

// publish forces a campaign live without walking the lifecycle
func (e *env) publish(t *testing.T, campaignID uint) {
	t.Helper()
	require.NoError(t, e.store.Campaigns().UpdateStatus(e.ctx, campaignID, models.CampaignStatusPublished))
}

// liveCampaign creates a published campaign with the given audience
func (e *env) liveCampaign(t *testing.T, name string, priority int, req *dto.SaveAudienceRequest) *models.Campaign {
	t.Helper()
	c := e.campaign(t, name, priority)
	e.audience(t, c.ID, req)
	e.publish(t, c.ID)
	return c
}

func (e *env) reload(t *testing.T, campaignID uint) *models.Campaign {
	t.Helper()
	c, err := e.store.Campaigns().ByID(e.ctx, campaignID)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var be *businessflow.BusinessError
	require.ErrorAs(t, err, &be)
	return be.Code
}
