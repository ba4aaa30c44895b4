// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/gofiber/fiber/v3"
)

const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"

	actorKey = "actor"
)

// RequireActor rejects requests that do not say who is acting and stores the
// actor for downstream handlers. The identity is trusted as given; the gateway
// in front of this service authenticates it.
func RequireActor() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(ActorIDHeader)
		if id == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: ActorIDHeader + " header is required",
				Error:   dto.ErrorDetail{Code: "MISSING_ACTOR"},
			})
		}
		if len(id) > 64 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
				Success: false,
				Message: ActorIDHeader + " must be at most 64 characters",
				Error:   dto.ErrorDetail{Code: "INVALID_ACTOR"},
			})
		}

		role := models.Role(c.Get(ActorRoleHeader))
		switch role {
		case "":
			role = models.RoleMarketer
		case models.RoleMarketer, models.RoleLegal, models.RoleAdmin:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
				Success: false,
				Message: "Unknown actor role",
				Error:   dto.ErrorDetail{Code: "INVALID_ACTOR_ROLE", Details: string(role)},
			})
		}

		c.Locals(actorKey, models.Actor{ID: id, Role: role})
		return c.Next()
	}
}

// RequireRole allows only the listed roles through. It must run after RequireActor.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c fiber.Ctx) error {
		actor, _ := ActorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Role not allowed for this operation",
			Error:   dto.ErrorDetail{Code: "FORBIDDEN_ROLE", Details: string(actor.Role)},
		})
	}
}

// ActorFrom returns the actor stored by RequireActor
func ActorFrom(c fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}
