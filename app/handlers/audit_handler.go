package handlers

import (
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuditHandler answers audit queries
type AuditHandler struct {
	audit businessflow.AuditTrail
}

func NewAuditHandler(audit businessflow.AuditTrail) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Query GET /api/v1/audit/:entityType/:entityId, newest first
func (h *AuditHandler) Query(c fiber.Ctx) error {
	entityType, entityID := c.Params("entityType"), c.Params("entityId")
	if entityType == "" || entityID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "entity type and id are required", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/audit/:entityType/:entityId")
	defer cancel()

	entries, err := h.audit.Query(ctx, entityType, entityID)
	if err != nil {
		return flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Audit trail retrieved", entries)
}
