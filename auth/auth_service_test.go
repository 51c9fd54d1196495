package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/api/apifake"
	"github.com/EXyrus/tabularasa/auth"
	"github.com/EXyrus/tabularasa/institutions"
	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/session"
	"github.com/EXyrus/tabularasa/storage"
	"github.com/EXyrus/tabularasa/users"
	"github.com/stretchr/testify/require"
)

const (
	vendorEmail   = "vendor@tabularasa.test"
	adminEmail    = "admin@greenfield.test"
	guardianEmail = "parent@greenfield.test"
)

type testFixture struct {
	durable storage.Store
	tokens  *api.TokenStore
	backend *apifake.Backend
	session *session.Store
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	durable := storage.NewMemory()
	tokens := api.NewTokenStore(durable)
	backend := apifake.New(tokens)
	require.NoError(t, backend.SeedDemo())

	store, err := session.New(durable)
	require.NoError(t, err)

	service, err := auth.NewService(auth.Deps{
		Session:      store,
		API:          backend,
		Institutions: institutions.NewResolver(backend.Institutions()),
	})
	require.NoError(t, err)

	return &testFixture{
		durable: durable,
		tokens:  tokens,
		backend: backend,
		session: store,
		service: service,
	}
}

// restart builds a new store and service over the same durable storage, like a page reload.
func (f *testFixture) restart(t *testing.T) *testFixture {
	t.Helper()
	store, err := session.New(f.durable)
	require.NoError(t, err)
	service, err := auth.NewService(auth.Deps{
		Session:      store,
		API:          f.backend,
		Institutions: institutions.NewResolver(f.backend.Institutions()),
	})
	require.NoError(t, err)
	return &testFixture{durable: f.durable, tokens: f.tokens, backend: f.backend, session: store, service: service}
}

func creds(email string) api.Credentials {
	return api.Credentials{Email: email, Password: apifake.DemoPassword}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := auth.NewService(auth.Deps{})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success sets identity and marker", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))

		user := f.service.CurrentUser()
		require.NotNil(t, user)
		require.Equal(t, vendorEmail, user.Email)
		require.Equal(t, portal.Vendor, user.AppType)
		require.Empty(t, user.PasswordHash)

		marker, ok := f.session.Marker()
		require.True(t, ok)
		require.Equal(t, portal.Vendor, marker)

		raw, ok, err := f.durable.Get(storage.KeyAppType)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "vendor", raw)
	})

	t.Run("bad credentials leave session unchanged", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Login(ctx, portal.Vendor, api.Credentials{Email: vendorEmail, Password: "wrong"})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "Invalid email or password", err.Error())
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("marker is written before the backend answers", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.FailWith(context.DeadlineExceeded)

		err := f.service.Login(ctx, portal.Guardian, creds(guardianEmail))
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Nil(t, f.service.CurrentUser())

		marker, ok := f.session.Marker()
		require.True(t, ok)
		require.Equal(t, portal.Guardian, marker)
	})

	t.Run("account of another portal is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Login(ctx, portal.Vendor, creds(guardianEmail))
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("invalid input fails before the backend", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Login(ctx, portal.Vendor, api.Credentials{Email: "bad", Password: "wrong"})
		require.ErrorIs(t, err, apperrors.ErrValidation)
		require.NotEmpty(t, err.Error())
		require.Zero(t, f.backend.Calls(apifake.OpLogin))
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("unknown portal", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Login(ctx, portal.AppType(0), creds(vendorEmail))
		require.ErrorIs(t, err, apperrors.ErrUnknownPortal)
	})
}

func TestLogin_SubmittingFlag(t *testing.T) {
	f := setupTestFixture(t)
	release := f.backend.Hold()

	done := make(chan error, 1)
	go func() {
		done <- f.service.Login(context.Background(), portal.Vendor, creds(vendorEmail))
	}()

	require.Eventually(t, func() bool { return f.service.IsSubmitting() }, time.Second, 5*time.Millisecond)
	release()
	require.NoError(t, <-done)
	require.False(t, f.service.IsSubmitting())
}

func TestInstitutionLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.InstitutionLogin(ctx, " Greenfield-Academy ", creds(adminEmail)))

		user := f.service.CurrentUser()
		require.NotNil(t, user)
		require.Equal(t, portal.Institution, user.AppType)
		require.Equal(t, users.RoleEmployee, user.Role)

		marker, _ := f.session.Marker()
		require.Equal(t, portal.Institution, marker)
	})

	t.Run("unknown slug never reaches the backend", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.InstitutionLogin(ctx, "nowhere", creds(adminEmail))
		require.ErrorIs(t, err, apperrors.ErrInstitutionNotFound)
		require.ErrorIs(t, err, apperrors.ErrValidation)

		var ve *auth.ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "institution", ve.Field)
		require.Zero(t, f.backend.Calls(apifake.OpInstitutionLogin))
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("user of another institution", func(t *testing.T) {
		f := setupTestFixture(t)
		other := &institutions.Institution{Slug: "riverside", Name: "Riverside"}
		require.NoError(t, f.backend.AddInstitution(other))

		err := f.service.InstitutionLogin(ctx, "riverside", creds(adminEmail))
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Nil(t, f.service.CurrentUser())
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears identity and token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))
		require.NoError(t, f.service.Logout(ctx))
		require.Nil(t, f.service.CurrentUser())

		_, err := f.tokens.Load()
		require.ErrorIs(t, err, apperrors.ErrNoStoredToken)
	})

	t.Run("remote failure still clears locally", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))
		f.backend.FailWith(context.DeadlineExceeded)

		require.NoError(t, f.service.Logout(ctx))
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("idempotent when logged out", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Logout(ctx))
		require.NoError(t, f.service.Logout(ctx))
		require.Nil(t, f.service.CurrentUser())
		require.Zero(t, f.backend.Calls(apifake.OpLogout))
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.service.IsBootstrapping())

		err := f.service.Bootstrap(ctx)
		require.ErrorIs(t, err, apperrors.ErrNoStoredToken)
		require.False(t, f.service.IsBootstrapping())
		require.Nil(t, f.service.CurrentUser())
	})

	t.Run("restores a previous login", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Guardian, creds(guardianEmail)))

		reloaded := f.restart(t)
		require.True(t, reloaded.service.IsBootstrapping())
		require.Nil(t, reloaded.service.CurrentUser())

		require.NoError(t, reloaded.service.Bootstrap(ctx))
		require.False(t, reloaded.service.IsBootstrapping())
		require.Equal(t, guardianEmail, reloaded.service.CurrentUser().Email)
		require.Equal(t, 1, f.backend.Calls(apifake.OpRestore))
	})

	t.Run("restores the marker when it was lost", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Guardian, creds(guardianEmail)))
		require.NoError(t, f.durable.Delete(storage.KeyAppType))

		reloaded := f.restart(t)
		require.NoError(t, reloaded.service.Bootstrap(ctx))
		marker, ok := reloaded.session.Marker()
		require.True(t, ok)
		require.Equal(t, portal.Guardian, marker)
	})

	t.Run("restore is attempted once", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))

		reloaded := f.restart(t)
		require.NoError(t, reloaded.service.Bootstrap(ctx))
		require.NoError(t, reloaded.service.Bootstrap(ctx))
		require.Equal(t, 1, f.backend.Calls(apifake.OpRestore))
	})

	t.Run("network failure finishes bootstrapping", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))
		f.backend.FailWith(context.DeadlineExceeded)

		reloaded := f.restart(t)
		err := reloaded.service.Bootstrap(ctx)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.False(t, reloaded.service.IsBootstrapping())
		require.Nil(t, reloaded.service.CurrentUser())
	})

	t.Run("revoked token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))
		tok, err := f.tokens.Load()
		require.NoError(t, err)
		require.NoError(t, f.service.Logout(ctx))
		require.NoError(t, f.tokens.Save(tok))

		reloaded := f.restart(t)
		err = reloaded.service.Bootstrap(ctx)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Nil(t, reloaded.service.CurrentUser())
	})
}

func TestPasswordFlows(t *testing.T) {
	ctx := context.Background()

	t.Run("forgot and reset do not log in", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.ForgotPassword(ctx, api.ForgotPasswordRequest{Email: guardianEmail}))

		outbox := f.backend.Outbox()
		require.Len(t, outbox, 1)

		err := f.service.ResetPassword(ctx, api.ResetPasswordRequest{
			Token:                outbox[0].ResetToken,
			Password:             "BrandNew123",
			PasswordConfirmation: "BrandNew123",
		})
		require.NoError(t, err)
		require.Nil(t, f.service.CurrentUser())

		require.NoError(t, f.service.Login(ctx, portal.Guardian, api.Credentials{Email: guardianEmail, Password: "BrandNew123"}))
	})

	t.Run("reset with mismatched confirmation", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.ResetPassword(ctx, api.ResetPasswordRequest{
			Token:                "anything",
			Password:             "BrandNew123",
			PasswordConfirmation: "BrandNew124",
		})
		require.ErrorIs(t, err, apperrors.ErrPasswordMismatch)
		require.Zero(t, f.backend.Calls(apifake.OpResetPassword))
	})

	t.Run("reset with unknown token", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.ResetPassword(ctx, api.ResetPasswordRequest{
			Token:                "unknown",
			Password:             "BrandNew123",
			PasswordConfirmation: "BrandNew123",
		})
		require.ErrorIs(t, err, apperrors.ErrInvalidResetToken)
		require.Equal(t, "This password reset link is invalid or has expired", api.Message(err))
	})

	t.Run("update requires a session", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.UpdatePassword(ctx, api.UpdatePasswordRequest{
			OldPassword:          apifake.DemoPassword,
			NewPassword:          "BrandNew123",
			PasswordConfirmation: "BrandNew123",
		})
		require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
		require.Zero(t, f.backend.Calls(apifake.OpUpdatePassword))
	})

	t.Run("update", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Login(ctx, portal.Vendor, creds(vendorEmail)))

		err := f.service.UpdatePassword(ctx, api.UpdatePasswordRequest{
			OldPassword:          "Wrong1234",
			NewPassword:          "BrandNew123",
			PasswordConfirmation: "BrandNew123",
		})
		require.ErrorIs(t, err, apperrors.ErrValidation)

		require.NoError(t, f.service.UpdatePassword(ctx, api.UpdatePasswordRequest{
			OldPassword:          apifake.DemoPassword,
			NewPassword:          "BrandNew123",
			PasswordConfirmation: "BrandNew123",
		}))
		require.NotNil(t, f.service.CurrentUser())
	})
}

func TestVisitLogin(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.service.Login(context.Background(), portal.Vendor, creds(vendorEmail)))

	require.NoError(t, f.service.VisitLogin(portal.Guardian))
	marker, _ := f.session.Marker()
	require.Equal(t, portal.Guardian, marker)
	require.NotNil(t, f.service.CurrentUser())
}

// mismatchedClient answers every login with a user of the guardian portal.
type mismatchedClient struct {
	*apifake.Backend
}

func (c mismatchedClient) Login(ctx context.Context, _ portal.AppType, creds api.Credentials) (*api.AuthResult, error) {
	return c.Backend.Login(ctx, portal.Guardian, creds)
}

func TestLogin_WrongPortalFromBackend(t *testing.T) {
	f := setupTestFixture(t)
	service, err := auth.NewService(auth.Deps{
		Session:      f.session,
		API:          mismatchedClient{f.backend},
		Institutions: institutions.NewResolver(f.backend.Institutions()),
	})
	require.NoError(t, err)

	err = service.Login(context.Background(), portal.Vendor, creds(guardianEmail))
	require.ErrorIs(t, err, apperrors.ErrWrongPortal)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Nil(t, service.CurrentUser())

	_, err = f.tokens.Load()
	require.ErrorIs(t, err, apperrors.ErrNoStoredToken)
}
