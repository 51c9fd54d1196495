package api

import (
	"time"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims the backend issues.
type Claims struct {
	AppType       string `json:"app_type,omitempty"`
	Role          string `json:"role,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a session token without verifying its signature. The shell cannot
// verify backend tokens; it only reads them to learn the expiry and portal.
func ParseClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[ParseClaims] %v", err)
	}
	return claims, nil
}

// Expiry is the zero time when the token carries no exp claim.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
