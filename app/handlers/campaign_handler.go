package handlers

import (
	"strconv"
	"strings"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandler exposes campaign reads and lifecycle transitions
type CampaignHandler struct {
	campaigns businessflow.CampaignFlow
	lifecycle businessflow.LifecycleFlow
	validator *validator.Validate
}

func NewCampaignHandler(campaigns businessflow.CampaignFlow, lifecycle businessflow.LifecycleFlow) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		lifecycle: lifecycle,
		validator: validator.New(),
	}
}

// ListCampaigns GET /api/v1/campaigns?status=Published,Scheduled&limit=&offset=
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	req := dto.ListCampaignsRequest{}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			req.Statuses = append(req.Statuses, models.CampaignStatus(strings.TrimSpace(s)))
		}
	}
	var err error
	if req.Limit, err = queryInt(c, "limit"); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "limit must be a number", "INVALID_REQUEST", nil)
	}
	if req.Offset, err = queryInt(c, "offset"); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "offset must be a number", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns")
	defer cancel()

	campaigns, err := h.campaigns.List(ctx, &req)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Campaigns retrieved", campaigns)
}

// GetCampaign GET /api/v1/campaigns/:id
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	campaign, err := h.campaigns.Get(ctx, id)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Campaign retrieved", fiber.Map{
		"campaign":           campaign,
		"allowedTransitions": h.lifecycle.AllowedTransitions(campaign.Status),
	})
}

// Transition POST /api/v1/campaigns/:id/transitions
func (h *CampaignHandler) Transition(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	var req dto.TransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return bindingError(c, err)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/transitions")
	defer cancel()

	result, err := h.lifecycle.Transition(ctx, id, req.Status, actor(c))
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Campaign status changed", result)
}

// ListVersions GET /api/v1/campaigns/:id/versions
func (h *CampaignHandler) ListVersions(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/versions")
	defer cancel()

	versions, err := h.campaigns.ListVersions(ctx, id)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Versions retrieved", versions)
}

// DiffVersions GET /api/v1/campaigns/:id/versions/diff?from=1&to=2
func (h *CampaignHandler) DiffVersions(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	from, errFrom := queryInt(c, "from")
	to, errTo := queryInt(c, "to")
	if errFrom != nil || errTo != nil || from < 1 || to < 1 {
		return errorResponse(c, fiber.StatusBadRequest, "from and to must be version numbers", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/versions/diff")
	defer cancel()

	diff, err := h.campaigns.DiffVersions(ctx, id, from, to)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Versions compared", diff)
}

// queryInt returns 0 for a missing parameter
func queryInt(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
