package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

// validationError converts validator output into a ValidationFailed error keyed by field.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[lowerFirst(fe.Field())] = fieldMessage(fe)
	}
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == "ID" {
		return "id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}
