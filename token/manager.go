// Package token issues and verifies the session tokens of the in-memory backend.
package token

import (
	"time"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const DefaultIssuer = "tabularasa"

type Manager struct {
	signer       Signer
	issuer       string
	revokedCache RevokedTokenCache
	tokenExpiry  time.Duration
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.tokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		issuer:       DefaultIssuer,
		revokedCache: NewInMemoryRevokedTokenCache(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.tokenExpiry == 0 {
		m.tokenExpiry = time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue signs a session token carrying the portal and role of user.
func (m *Manager) Issue(user *users.User) (*oauth2.Token, error) {
	now := m.nowFunc()
	expiry := now.Add(m.tokenExpiry)
	claims := api.Claims{
		AppType:       user.AppType.String(),
		Role:          string(user.Role),
		InstitutionID: user.InstitutionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrapf(err, "[token.Issue] sign")
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: expiry}, nil
}

// Verify checks signature, issuer, expiry and revocation of raw.
func (m *Manager) Verify(raw string) (*api.Claims, error) {
	claims := &api.Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "%v", err)
	}
	if m.revokedCache.IsRevoked(claims.ID) {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "revoked")
	}
	return claims, nil
}

// Revoke invalidates a valid token. Invalid tokens are left alone.
func (m *Manager) Revoke(raw string) error {
	claims, err := m.Verify(raw)
	if err != nil {
		return nil
	}
	m.revokedCache.Cleanup(m.nowFunc())
	return m.revokedCache.Add(claims.ID, claims.Expiry())
}
