package businessflow

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/amirphl/nba-decision-core/rules"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// requestValidator returns the shared validator. Field names in errors are the json names.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest checks req against its validate tags
func validateRequest(req any) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: err.Error()}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{Field: fieldPath(fe), Message: validationMessage(fe)})
	}
	return out
}

// fieldPath drops the struct name from the namespace, e.g. "SaveActionRequest.saleChannels[0]" -> "saleChannels[0]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		if err.Kind() == reflect.Slice {
			return err.Field() + " must have at least " + err.Param() + " item(s)"
		}
		if err.Kind() == reflect.String {
			return err.Field() + " must be at least " + err.Param() + " characters"
		}
		return err.Field() + " must be at least " + err.Param()
	case "max":
		if err.Kind() == reflect.String {
			return err.Field() + " must be at most " + err.Param() + " characters"
		}
		return err.Field() + " must be at most " + err.Param()
	case "gte":
		return err.Field() + " must be at least " + err.Param()
	case "lte":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gtfield":
		return err.Field() + " must be after " + err.Param()
	case "unique":
		return err.Field() + " must not contain duplicates"
	default:
		return err.Field() + " is invalid"
	}
}

// validateAudience turns rule tree problems into field-scoped validation errors
func validateAudience(a rules.Audience) error {
	err := rules.ValidateAudience(a)
	if err == nil {
		return nil
	}
	var ruleErr *rules.InvalidRuleError
	if errors.As(err, &ruleErr) {
		return &ValidationError{Field: ruleErr.Path, Message: ruleErr.Reason}
	}
	return &ValidationError{Field: "rules", Message: err.Error()}
}
