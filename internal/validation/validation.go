// Package validation wraps a shared go-playground validator with the custom
// tags used across request bodies, feature definitions and LLM output.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

var (
	validate *validator.Validate

	featureIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

	// Path segments under /api/features that are routes, not feature ids.
	reservedFeatureIDs = []string{"generate", "integration-check"}
)

// ReservedFeatureID reports whether id collides with a fixed API route.
func ReservedFeatureID(id string) bool {
	for _, r := range reservedFeatureIDs {
		if strings.EqualFold(id, r) {
			return true
		}
	}
	return false
}

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Register custom validation for non-empty trimmed strings
	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	_ = validate.RegisterValidation("featureid", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return featureIDPattern.MatchString(id) && !ReservedFeatureID(id)
	})

	// Project-relative paths only
	_ = validate.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return p != "" && !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "\\")
	})
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Result is the outcome of validating a struct.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Check validates s and reports each failed rule.
func Check(s any) Result {
	err := validate.Struct(s)
	if err == nil {
		return Result{Valid: true}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Result{Errors: []FieldError{{Message: err.Error()}}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Message: formatFieldError(fe),
		})
	}
	return Result{Errors: out}
}

// Struct validates s and returns an apperr validation error naming op.
func Struct(op string, s any) error {
	res := Check(s)
	if res.Valid {
		return nil
	}
	return apperr.Validation(op, res.Summary())
}

// Summary joins all messages into one line.
func (r Result) Summary() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "nonempty":
		return fmt.Sprintf("%s cannot be empty or whitespace", err.Field())
	case "featureid":
		if v := fmt.Sprint(err.Value()); ReservedFeatureID(v) {
			return fmt.Sprintf("%s %q is reserved (%s)", err.Field(), v, strings.Join(reservedFeatureIDs, ", "))
		}
		return fmt.Sprintf("%s must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", err.Field())
	case "relpath":
		return fmt.Sprintf("%s must be a relative path", err.Field())
	case "min":
		if err.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must have at least %s items", err.Field(), err.Param())
	case "max":
		if err.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must have at most %s items", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", err.Field(), err.Tag())
	}
}
