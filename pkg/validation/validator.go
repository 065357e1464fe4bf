package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Identifiers in network files are at most 31 characters and never contain
// whitespace or the comment character.
const MaxIDLength = 31

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterValidation("netid", func(fl validator.FieldLevel) bool {
		return ValidateID(fl.Field().String()) == nil
	})
}

// Struct validates a struct with `validate` tags and reports every failure.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateID checks a node, link, pattern or curve identifier.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("identifier %q exceeds %d characters", id, MaxIDLength)
	}
	if strings.ContainsAny(id, " \t;\"") {
		return fmt.Errorf("identifier %q contains whitespace, quote or ';'", id)
	}
	return nil
}

// formatValidationError converts validator errors to readable messages
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	c := NewCollector("")
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()
		switch e.Tag() {
		case "required":
			c.Addf(field, "field is required")
		case "min", "gte":
			c.Addf(field, "must be at least %s", param)
		case "max", "lte":
			c.Addf(field, "must not exceed %s", param)
		case "gt":
			c.Addf(field, "must be greater than %s", param)
		case "oneof":
			c.Addf(field, "must be one of [%s]", param)
		case "netid":
			c.Addf(field, "is not a valid identifier")
		default:
			c.Addf(field, "validation failed (%s)", e.Tag())
		}
	}
	return c.Err()
}
