package handlers

import (
	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// DecisionHandler serves next-best-action decisions
type DecisionHandler struct {
	arbitration businessflow.ArbitrationFlow
	validator   *validator.Validate
	scoreAll    bool
}

// NewDecisionHandler creates a decision handler. scoreAll forces every candidate to be persisted.
func NewDecisionHandler(arbitration businessflow.ArbitrationFlow, scoreAll bool) *DecisionHandler {
	return &DecisionHandler{
		arbitration: arbitration,
		validator:   validator.New(),
		scoreAll:    scoreAll,
	}
}

// Decide picks the winning campaign for one customer
// POST /api/v1/decisions
func (h *DecisionHandler) Decide(c fiber.Ctx) error {
	var req dto.DecideRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return bindingError(c, err)
	}

	ctx, cancel := requestContext(c, "/api/v1/decisions")
	defer cancel()

	result, err := h.arbitration.Decide(ctx, req.CustomerID, req.ScoreAll || h.scoreAll)
	if err != nil {
		return flowError(c, err)
	}
	message := "Decision made"
	if result.Winner == nil {
		message = "No eligible campaign"
	}
	return successResponse(c, fiber.StatusOK, message, result)
}

// Eligibility explains every activatable campaign for one customer
// GET /api/v1/customers/:id/eligibility
func (h *DecisionHandler) Eligibility(c fiber.Ctx) error {
	customerID, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid customer id", "INVALID_CUSTOMER_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/customers/:id/eligibility")
	defer cancel()

	result, err := h.arbitration.Eligibility(ctx, customerID)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Eligibility evaluated", result)
}
