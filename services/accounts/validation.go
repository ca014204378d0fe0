package accounts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterInput struct {
	Email          string `validate:"required,email,max=255"`
	Password       string `validate:"required"`
	PasswordRepeat string `validate:"required,eqfield=Password"`
	FirstName      string `validate:"max=100"`
	LastName       string `validate:"max=100"`
	Bio            string `validate:"max=1000"`
	Device         string `validate:"-"`
}

type ProfileInput struct {
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
	Bio       string `validate:"max=1000"`
}

type emailInput struct {
	Email string `validate:"required,email,max=255"`
}

type passwordInput struct {
	Password       string `validate:"required"`
	PasswordRepeat string `validate:"required,eqfield=Password"`
}

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field)
	case "max":
		return fmt.Sprintf("%s is too long", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	first := fieldErrs[0]
	if first.Tag() == "eqfield" {
		return ErrPasswordMismatch
	}
	return &ValidationError{Field: fieldName(first.Field()), Rule: first.Tag()}
}

func fieldName(name string) string {
	switch name {
	case "PasswordRepeat":
		return "password_repeat"
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	default:
		return strings.ToLower(name)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
