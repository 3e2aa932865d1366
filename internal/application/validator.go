package application

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"cogbot/internal/domain"
)

var settingKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidationError names the first rejected field. It matches
// domain.ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == domain.ErrInvalidInput }

// SettingInput is a /settings request.
type SettingInput struct {
	Key   string `json:"key" validate:"required,max=64,settingkey"`
	Value string `json:"value" validate:"max=512,safetext"`
}

// InputValidator checks user-supplied command input.
type InputValidator struct {
	validate *validator.Validate
}

func NewInputValidator() *InputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("settingkey", func(fl validator.FieldLevel) bool {
		return settingKeyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("safetext", func(fl validator.FieldLevel) bool {
		return safeText(fl.Field().String())
	})
	return &InputValidator{validate: v}
}

// safeText rejects control characters and mass mentions.
func safeText(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && r != '\n' {
			return false
		}
	}
	return !strings.Contains(s, "@everyone") && !strings.Contains(s, "@here")
}

// Validate runs the struct tag rules of input.
func (v *InputValidator) Validate(input any) error {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	return &ValidationError{Field: e.Field(), Reason: reason(e.Tag(), e.Param())}
}

func reason(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", param)
	case "settingkey":
		return "must use lowercase letters, digits, dots, dashes or underscores"
	case "safetext":
		return "contains control characters or mass mentions"
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}
