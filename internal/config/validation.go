package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors collects every invalid value of a configuration.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	messages := make([]string, len(ve))
	for i := range ve {
		messages[i] = ve[i].Error()
	}
	return strings.Join(messages, "; ")
}

// Validate checks config. Field names in the returned ValidationErrors use
// the configuration keys, e.g. "audit.engine".
func Validate(config *Config) error {
	var problems ValidationErrors

	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, ValidationError{
				Field:   keyOf(fe.Namespace()),
				Value:   fe.Value(),
				Message: describe(fe),
			})
		}
	}

	if config.Audit.Engine == EngineAxe && !config.Document.Browser {
		problems = append(problems, ValidationError{
			Field:   "audit.engine",
			Value:   config.Audit.Engine,
			Message: "the axe engine needs document.browser enabled",
		})
	}

	if len(problems) > 0 {
		return problems
	}
	return nil
}

// keyOf turns "Config.audit.axe_script" into "audit.axe_script".
func keyOf(namespace string) string {
	return strings.TrimPrefix(namespace, "Config.")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "dir":
		return "must be an existing directory"
	case "file":
		return "must be an existing file"
	case "bcp47_language_tag":
		return "must be a BCP 47 language tag"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}
