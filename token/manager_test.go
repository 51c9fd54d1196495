package token_test

import (
	"testing"
	"time"

	"github.com/EXyrus/tabularasa/api"
	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/token"
	"github.com/EXyrus/tabularasa/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secretStr = "1234"

func testUser() *users.User {
	return &users.User{ID: "user-1", Email: "admin@example.com", Role: users.RoleEmployee, AppType: portal.Institution, InstitutionID: "inst-1"}
}

func TestManager_IssueAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	m := token.New(token.NewHMACSigner(secretStr),
		token.WithNowFunc(func() time.Time { return now }),
		token.WithTokenExpiry(30*time.Minute),
	)

	tok, err := m.Issue(testUser())
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, now.Add(30*time.Minute), tok.Expiry)

	claims, err := m.Verify(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "institution", claims.AppType)
	require.Equal(t, "employee", claims.Role)
	require.Equal(t, "inst-1", claims.InstitutionID)

	parsed, err := api.ParseClaims(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claims.ID, parsed.ID)

	now = now.Add(31 * time.Minute)
	_, err = m.Verify(tok.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	m := token.New(token.NewHMACSigner(secretStr))
	other := token.New(token.NewHMACSigner("another-secret"))

	tok, err := other.Issue(testUser())
	require.NoError(t, err)
	_, err = m.Verify(tok.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	otherIssuer := token.New(token.NewHMACSigner(secretStr), token.WithIssuer("someone-else"))
	tok, err = otherIssuer.Issue(testUser())
	require.NoError(t, err)
	_, err = m.Verify(tok.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: token.DefaultIssuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestManager_Revoke(t *testing.T) {
	m := token.New(token.NewHMACSigner(secretStr))
	tok, err := m.Issue(testUser())
	require.NoError(t, err)

	require.NoError(t, m.Revoke(tok.AccessToken))
	_, err = m.Verify(tok.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	require.NoError(t, m.Revoke("garbage"))
}

func TestRevokedTokenCache_Cleanup(t *testing.T) {
	now := time.Now()
	cache := token.NewInMemoryRevokedTokenCache()
	require.NoError(t, cache.Add("old", now.Add(-time.Minute)))
	require.NoError(t, cache.Add("fresh", now.Add(time.Minute)))

	cache.Cleanup(now)
	require.False(t, cache.IsRevoked("old"))
	require.True(t, cache.IsRevoked("fresh"))
}
