package fakeuserrepo_test

import (
	"testing"

	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/users"
	fakeuserrepo "github.com/EXyrus/tabularasa/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Email: "Parent@Example.com"}
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	got, err := repo.GetByEmail(" parent@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	require.NoError(t, repo.SetPasswordHash("parent@example.com", "hash"))
	require.Equal(t, "hash", got.PasswordHash)

	require.NoError(t, repo.Upsert(&users.User{Email: "other@example.com"}))
	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	list, err = repo.List(1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = repo.List(5, 10)
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, repo.Delete("parent@example.com"))
	_, err = repo.GetByEmail("parent@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.ErrorIs(t, repo.Delete("parent@example.com"), apperrors.ErrUserNotFound)
}
