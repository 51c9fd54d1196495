package auth

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/users"
	"github.com/go-playground/validator/v10"
)

// ValidationError is a request rejected before it reached the backend.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional, more specific than errors.ErrValidation
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{errors.ErrValidation, e.Err}
	}
	return []error{errors.ErrValidation}
}

// Validator checks credential requests with the `validate` struct tags of the api package.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return users.ValidatePasswordStrength(fl.Field().String()) == nil
	})

	return &Validator{validate: v}
}

// Struct returns nil or a *ValidationError for the first failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	return fieldError(fieldErrs[0])
}

func fieldError(fe validator.FieldError) *ValidationError {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	ve := &ValidationError{Field: fe.Field()}

	switch fe.Tag() {
	case "required":
		ve.Message = fmt.Sprintf("%s is required", label)
	case "email":
		ve.Message = "enter a valid email address"
	case "strongpassword":
		value, _ := fe.Value().(string)
		if err := users.ValidatePasswordStrength(value); err != nil {
			ve.Message = err.Error()
		} else {
			ve.Message = "password is too weak"
		}
	case "eqfield":
		ve.Message = errors.ErrPasswordMismatch.Error()
		ve.Err = errors.ErrPasswordMismatch
	case "nefield":
		ve.Message = "new password must be different from the current password"
	default:
		ve.Message = fmt.Sprintf("%s is invalid", label)
	}
	return ve
}
