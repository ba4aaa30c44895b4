// Package businessflow contains the decision core: audit trail, versioning,
// lifecycle, arbitration and the campaign configuration flows built on them.
package businessflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/nba-decision-core/models"
)

// Business flow error constants
var (
	ErrValidation            = errors.New("validation failed")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrVersionNotFound       = errors.New("version not found")
	ErrOfferNotFound         = errors.New("offer not found")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrLegalApprovalRequired = errors.New("legal approval required")
	ErrUniqueConstraint      = errors.New("unique constraint violation")
	ErrAudienceNotConfigured = errors.New("audience not configured")
	ErrOfferAlreadyRedeemed  = errors.New("offer already redeemed")
)

// Error codes carried by BusinessError
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeCampaignNotFound      = "CAMPAIGN_NOT_FOUND"
	CodeCustomerNotFound      = "CUSTOMER_NOT_FOUND"
	CodeTemplateNotFound      = "TEMPLATE_NOT_FOUND"
	CodeVersionNotFound       = "VERSION_NOT_FOUND"
	CodeOfferNotFound         = "OFFER_NOT_FOUND"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeLegalApprovalRequired = "LEGAL_APPROVAL_REQUIRED"
	CodeCampaignNameTaken     = "CAMPAIGN_NAME_TAKEN"
	CodeAudienceNotConfigured = "AUDIENCE_NOT_CONFIGURED"
	CodeOfferAlreadyRedeemed  = "OFFER_ALREADY_REDEEMED"
	CodeInternal              = "INTERNAL_ERROR"
)

// ValidationError reports a malformed input together with the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationErrors collects every problem found in one input
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

// InvalidTransitionError is returned when a status change is not an edge of the lifecycle table
type InvalidTransitionError struct {
	From models.CampaignStatus
	To   models.CampaignStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// LegalApprovalRequiredError lists the channels whose templates are not approved
type LegalApprovalRequiredError struct {
	Pending []string
}

func (e *LegalApprovalRequiredError) Error() string {
	return fmt.Sprintf("legal approval required for templates: %s", strings.Join(e.Pending, ", "))
}

func (e *LegalApprovalRequiredError) Unwrap() error { return ErrLegalApprovalRequired }

// UniqueConstraintError names the input that collided with an existing row
type UniqueConstraintError struct {
	Field string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *UniqueConstraintError) Unwrap() error { return ErrUniqueConstraint }

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// classify wraps err in a BusinessError whose code matches the first known
// kind found in its chain. Unknown errors become INTERNAL_ERROR with message.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}

	switch {
	case IsValidation(err):
		return NewBusinessError(CodeValidationFailed, "Validation failed", err)
	case IsCampaignNotFound(err):
		return NewBusinessError(CodeCampaignNotFound, "Campaign not found", err)
	case IsCustomerNotFound(err):
		return NewBusinessError(CodeCustomerNotFound, "Customer not found", err)
	case IsTemplateNotFound(err):
		return NewBusinessError(CodeTemplateNotFound, "Template not found", err)
	case errors.Is(err, ErrVersionNotFound):
		return NewBusinessError(CodeVersionNotFound, "Version not found", err)
	case errors.Is(err, ErrOfferNotFound):
		return NewBusinessError(CodeOfferNotFound, "Offer not found", err)
	case IsInvalidTransition(err):
		return NewBusinessError(CodeInvalidTransition, "Transition not allowed", err)
	case IsLegalApprovalRequired(err):
		return NewBusinessError(CodeLegalApprovalRequired, "Legal approval required", err)
	case IsUniqueConstraint(err):
		return NewBusinessError(CodeCampaignNameTaken, "Campaign name already taken", err)
	case errors.Is(err, ErrAudienceNotConfigured):
		return NewBusinessError(CodeAudienceNotConfigured, "Audience not configured", err)
	case errors.Is(err, ErrOfferAlreadyRedeemed):
		return NewBusinessError(CodeOfferAlreadyRedeemed, "Offer already redeemed", err)
	}
	return NewBusinessError(CodeInternal, message, err)
}

// IsExpected reports whether err is a user-actionable outcome rather than a fault
func IsExpected(err error) bool {
	return IsValidation(err) ||
		IsCampaignNotFound(err) ||
		IsCustomerNotFound(err) ||
		IsTemplateNotFound(err) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		IsInvalidTransition(err) ||
		IsLegalApprovalRequired(err) ||
		IsUniqueConstraint(err) ||
		errors.Is(err, ErrAudienceNotConfigured) ||
		errors.Is(err, ErrOfferAlreadyRedeemed)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsLegalApprovalRequired(err error) bool {
	return errors.Is(err, ErrLegalApprovalRequired)
}

func IsUniqueConstraint(err error) bool {
	return errors.Is(err, ErrUniqueConstraint)
}
