package auth_test

import (
	"testing"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/auth"
	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v := auth.NewValidator()

	tests := []struct {
		name    string
		input   any
		field   string
		message string
		is      error
	}{
		{
			name:    "missing email",
			input:   api.Credentials{Password: "x"},
			field:   "email",
			message: "email is required",
		},
		{
			name:    "malformed email",
			input:   api.ForgotPasswordRequest{Email: "not-an-email"},
			field:   "email",
			message: "enter a valid email address",
		},
		{
			name:    "weak reset password",
			input:   api.ResetPasswordRequest{Token: "t", Password: "short", PasswordConfirmation: "short"},
			field:   "password",
			message: "password must be at least 8 characters long",
		},
		{
			name:  "reset confirmation mismatch",
			input: api.ResetPasswordRequest{Token: "t", Password: "Password123", PasswordConfirmation: "Password124"},
			field: "password_confirmation",
			is:    apperrors.ErrPasswordMismatch,
		},
		{
			name:    "missing current password",
			input:   api.UpdatePasswordRequest{NewPassword: "Password123", PasswordConfirmation: "Password123"},
			field:   "old_password",
			message: "old password is required",
		},
		{
			name:    "new password equals old",
			input:   api.UpdatePasswordRequest{OldPassword: "Password123", NewPassword: "Password123", PasswordConfirmation: "Password123"},
			field:   "new_password",
			message: "new password must be different from the current password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			require.ErrorIs(t, err, apperrors.ErrValidation)

			var ve *auth.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.field, ve.Field)
			if tt.message != "" {
				require.Equal(t, tt.message, ve.Message)
			}
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestValidator_Valid(t *testing.T) {
	v := auth.NewValidator()
	require.NoError(t, v.Struct(api.Credentials{Email: "a@b.test", Password: "x"}))
	require.NoError(t, v.Struct(api.UpdatePasswordRequest{
		OldPassword:          "Password123",
		NewPassword:          "Password456",
		PasswordConfirmation: "Password456",
	}))
}
