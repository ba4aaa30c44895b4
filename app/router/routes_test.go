package router_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nba-decision-core/app/handlers"
	"github.com/amirphl/nba-decision-core/app/middleware"
	"github.com/amirphl/nba-decision-core/app/router"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	testingutil "github.com/amirphl/nba-decision-core/testing"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type server struct {
	store *testingutil.MemStore
	flows *businessflow.Flows
	app   *router.FiberRouter
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := testingutil.NewMemStore()
	clock := testingutil.NewClock(testingutil.Epoch)
	flows := businessflow.NewFlows(store.Set(), businessflow.Options{
		Now:    clock.Now,
		Logger: log.New(io.Discard, "", 0),
	})
	r := router.NewFiberRouter(router.Config{}, router.Handlers{
		Decision: handlers.NewDecisionHandler(flows.Arbitration, false),
		Campaign: handlers.NewCampaignHandler(flows.Campaigns, flows.Lifecycle),
		Audit:    handlers.NewAuditHandler(flows.Audit),
	})
	r.SetupRoutes()
	return &server{store: store, flows: flows, app: r}
}

func (s *server) do(t *testing.T, method, path, body string, headers map[string]string) (int, response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.GetApp().Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func marketer() map[string]string {
	return map[string]string{middleware.ActorIDHeader: testingutil.Marketer.ID}
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t)
	status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "unknown customer", body: `{"customerId": 404}`, status: http.StatusNotFound, code: businessflow.CodeCustomerNotFound},
		{name: "missing customer", body: `{}`, status: http.StatusBadRequest, code: businessflow.CodeValidationFailed},
		{name: "malformed body", body: `{"customerId":`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			status, body := s.do(t, http.MethodPost, "/api/v1/decisions", tt.body, nil)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}

	t.Run("no eligible campaign", func(t *testing.T) {
		s := newServer(t)
		customers, err := testingutil.SaveCustomers(context.Background(), s.store.Customers(), testingutil.NewCustomer("Alex Lee"))
		require.NoError(t, err)

		status, body := s.do(t, http.MethodPost, "/api/v1/decisions", `{"customerId": `+jsonUint(customers[0].ID)+`}`, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.Success)
		assert.Equal(t, "No eligible campaign", body.Message)
	})
}

func TestTransition(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c, err := s.flows.Campaigns.Create(ctx, testingutil.GeneralRequest("Routed", testingutil.Epoch, 3), testingutil.Marketer)
	require.NoError(t, err)
	path := "/api/v1/campaigns/" + jsonUint(c.ID) + "/transitions"

	t.Run("requires an actor", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, path, `{"status":"Submitted"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "MISSING_ACTOR", body.Error.Code)
	})

	t.Run("legal cannot move campaigns", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, path, `{"status":"Submitted"}`, map[string]string{
			middleware.ActorIDHeader:   testingutil.Legal.ID,
			middleware.ActorRoleHeader: string(testingutil.Legal.Role),
		})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "FORBIDDEN_ROLE", body.Error.Code)
	})

	t.Run("invalid transition is a conflict", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, path, `{"status":"Published"}`, marketer())
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, businessflow.CodeInvalidTransition, body.Error.Code)
		assert.JSONEq(t, `{"from":"Draft","to":"Published"}`, string(body.Error.Details))
	})

	t.Run("submits", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, path, `{"status":"Submitted"}`, marketer())
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.Success)

		status, body = s.do(t, http.MethodGet, "/api/v1/audit/NBA/"+jsonUint(c.ID), "", nil)
		assert.Equal(t, http.StatusOK, status)
		var entries []map[string]any
		require.NoError(t, json.Unmarshal(body.Data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "STATUS_TRANSITION", entries[0]["action"])
	})
}

func TestGetCampaign_NotFound(t *testing.T) {
	s := newServer(t)
	status, body := s.do(t, http.MethodGet, "/api/v1/campaigns/99", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, businessflow.CodeCampaignNotFound, body.Error.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	status, body := s.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
