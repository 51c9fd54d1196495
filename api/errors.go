package api

import (
	"fmt"
	"net/http"

	"github.com/EXyrus/tabularasa/internal/errors"
)

// Error is a failed backend call. Message is human readable and safe to show to users.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError classifies a backend status code. An empty message falls back to a generic one.
func NewError(status int, message string) *Error {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = errors.ErrInvalidCredentials
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		kind = errors.ErrValidation
	case status == http.StatusNotFound:
		kind = errors.ErrNotFound
	default:
		kind = errors.ErrInternal
	}
	if message == "" {
		message = fmt.Sprintf("request failed: %s", http.StatusText(status))
	}
	return &Error{Status: status, Message: message, Err: kind}
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *Error {
	return &Error{
		Message: "unable to reach the server, please try again",
		Err:     fmt.Errorf("%w: %w", errors.ErrNetwork, err),
	}
}

// Message returns the text a form should display for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
