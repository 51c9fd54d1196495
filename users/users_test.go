package users_test

import (
	"testing"

	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/users"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		errMsg   string
	}{
		{"valid", "Secret123", ""},
		{"too short", "Ab1", "at least 8 characters"},
		{"no upper", "secret123", "uppercase"},
		{"no lower", "SECRET123", "lowercase"},
		{"no number", "SecretSecret", "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("Secret123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Secret123", hash))
	require.False(t, users.CheckPasswordHash("secret123", hash))
}

func TestBelongsTo(t *testing.T) {
	staff := &users.User{AppType: portal.Institution, InstitutionID: "inst-1", Role: users.RoleEmployee}

	require.True(t, staff.BelongsTo(portal.Institution, "inst-1"))
	require.True(t, staff.BelongsTo(portal.Institution, ""))
	require.False(t, staff.BelongsTo(portal.Institution, "inst-2"))
	require.False(t, staff.BelongsTo(portal.Guardian, ""))
	require.True(t, staff.HasRole(users.RoleStudent, users.RoleEmployee))
	require.False(t, staff.HasRole(users.RoleVendor))
}

func TestFullName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", (&users.User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	require.Equal(t, "Ada", (&users.User{FirstName: "Ada"}).FullName())
	require.Equal(t, "Lovelace", (&users.User{LastName: "Lovelace"}).FullName())
}
