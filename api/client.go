// Package api talks to the school-management REST API on behalf of the session layer.
package api

import (
	"context"

	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/users"
	"golang.org/x/oauth2"
)

// Credentials is the body of every login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,strongpassword"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	OldPassword          string `json:"old_password" validate:"required"`
	NewPassword          string `json:"new_password" validate:"required,strongpassword,nefield=OldPassword"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=NewPassword"`
}

// AuthResult is returned by every operation that produces a session.
type AuthResult struct {
	User  *users.User
	Token *oauth2.Token
}

// Client is the set of logical backend operations the session layer depends on.
// Implementations persist the session token themselves: a successful Login,
// InstitutionLogin or Restore stores it, Logout and a failed Restore drop it.
type Client interface {
	// Restore exchanges the stored token for a fresh identity and token.
	Restore(ctx context.Context) (*AuthResult, error)
	Login(ctx context.Context, appType portal.AppType, creds Credentials) (*AuthResult, error)
	InstitutionLogin(ctx context.Context, institutionID string, creds Credentials) (*AuthResult, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	UpdatePassword(ctx context.Context, req UpdatePasswordRequest) error
}
