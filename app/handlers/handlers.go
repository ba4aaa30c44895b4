// Package handlers exposes the decision core over HTTP
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/app/middleware"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// flowError renders an error returned by a business flow. Expected kinds map
// to 4xx with their stable code; anything else is logged and becomes a 500.
func flowError(c fiber.Ctx, err error) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		log.Printf("Unclassified error on %s %s: %v", c.Method(), c.Path(), err)
		return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", businessflow.CodeInternal, nil)
	}

	status := statusFor(be.Code)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
		return errorResponse(c, status, be.Message, be.Code, nil)
	}
	return errorResponse(c, status, be.Message, be.Code, errorDetails(err))
}

func statusFor(code string) int {
	switch code {
	case businessflow.CodeValidationFailed:
		return fiber.StatusBadRequest
	case businessflow.CodeCampaignNotFound, businessflow.CodeCustomerNotFound,
		businessflow.CodeTemplateNotFound, businessflow.CodeVersionNotFound,
		businessflow.CodeOfferNotFound:
		return fiber.StatusNotFound
	case businessflow.CodeInvalidTransition, businessflow.CodeCampaignNameTaken,
		businessflow.CodeOfferAlreadyRedeemed:
		return fiber.StatusConflict
	case businessflow.CodeLegalApprovalRequired, businessflow.CodeAudienceNotConfigured:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// errorDetails extracts the field hints and transition detail a caller can act on
func errorDetails(err error) any {
	var many businessflow.ValidationErrors
	if errors.As(err, &many) {
		out := make([]dto.FieldError, 0, len(many))
		for _, v := range many {
			out = append(out, dto.FieldError{Field: v.Field, Message: v.Message})
		}
		return out
	}
	var one *businessflow.ValidationError
	if errors.As(err, &one) {
		return []dto.FieldError{{Field: one.Field, Message: one.Message}}
	}
	var unique *businessflow.UniqueConstraintError
	if errors.As(err, &unique) {
		return []dto.FieldError{{Field: unique.Field, Message: unique.Error()}}
	}
	var transition *businessflow.InvalidTransitionError
	if errors.As(err, &transition) {
		return fiber.Map{"from": transition.From, "to": transition.To}
	}
	var legal *businessflow.LegalApprovalRequiredError
	if errors.As(err, &legal) {
		return fiber.Map{"pending": legal.Pending}
	}
	return nil
}

func bindingError(c fiber.Ctx, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	out := make([]dto.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, dto.FieldError{Field: fe.Field(), Message: getValidationErrorMessage(fe)})
	}
	return errorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.CodeValidationFailed, out)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// uintParam reads a positive numeric path parameter
func uintParam(c fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func actor(c fiber.Ctx) models.Actor {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}
	}
	return a
}

// requestContext detaches the call from fasthttp's pooled context and bounds it
func requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), utils.RequestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
