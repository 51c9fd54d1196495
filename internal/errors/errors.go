package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal session layer
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPortal        = errors.New("account does not belong to this portal")

	// Token errors
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrNoStoredToken     = errors.New("no stored token")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// Institution errors
	ErrInstitutionNotFound = errors.New("institution not found")

	// Portal errors
	ErrUnknownPortal = errors.New("unknown portal")

	// Validation errors
	ErrValidation       = errors.New("validation failed")
	ErrPasswordMismatch = errors.New("passwords do not match")

	// Transport errors
	ErrNetwork = errors.New("network error")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
