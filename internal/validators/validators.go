// Package validators wraps struct validation for request payloads.
package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator configured to report JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseValidationError flattens validator errors into a field->message map
// suitable for an error response's extras.
func ParseValidationError(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"error": err.Error()}
	}

	extras := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			extras[fieldError.Field()] = "This field is required"
		case "min":
			extras[fieldError.Field()] = fmt.Sprintf("Should have at least %s element(s)", fieldError.Param())
		case "gte":
			extras[fieldError.Field()] = fmt.Sprintf("Should be greater than or equal to %s", fieldError.Param())
		default:
			extras[fieldError.Field()] = fmt.Sprintf("Invalid value for the %q constraint", fieldError.Tag())
		}
	}
	return extras
}
