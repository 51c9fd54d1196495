// Package auth is the Auth Context: it owns the session lifecycle and exposes the
// credential operations to the rest of the application.
package auth

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/institutions"
	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/session"
	"github.com/EXyrus/tabularasa/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Deps holds the collaborators of the Service.
type Deps struct {
	Session      *session.Store         // The one Session Store of the application
	API          api.Client             // Backend operations
	Institutions *institutions.Resolver // Slug resolution for institution login
}

// Service aggregates the Session Store and the credential operations.
//
// Operations are not serialised against each other. Concurrent calls, e.g. Logout racing
// UpdatePassword, leave the session in whatever state the last write produced; callers
// disable duplicate submission through IsSubmitting instead.
type Service struct {
	session      *session.Store
	api          api.Client
	institutions *institutions.Resolver
	validator    *Validator
	logger       zerolog.Logger

	bootstrapOnce sync.Once
	bootstrapErr  error
	inFlight      atomic.Int32
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithValidator(v *Validator) ServiceOption {
	return func(s *Service) {
		s.validator = v
	}
}

func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Session == nil {
		return nil, errors.New("[NewService] Session store is required")
	}
	if deps.API == nil {
		return nil, errors.New("[NewService] API client is required")
	}
	if deps.Institutions == nil {
		return nil, errors.New("[NewService] Institutions resolver is required")
	}

	s := &Service{
		session:      deps.Session,
		api:          deps.API,
		institutions: deps.Institutions,
		logger:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}
	return s, nil
}

// Session returns the store the service writes to.
func (s *Service) Session() *session.Store {
	return s.session
}

func (s *Service) CurrentUser() *users.User {
	return s.session.CurrentUser()
}

func (s *Service) IsBootstrapping() bool {
	return s.session.IsBootstrapping()
}

func (s *Service) State() session.State {
	return s.session.Snapshot()
}

// IsSubmitting reports whether a credential operation is waiting on the backend.
func (s *Service) IsSubmitting() bool {
	return s.inFlight.Load() > 0
}

func (s *Service) begin() func() {
	s.inFlight.Add(1)
	return func() { s.inFlight.Add(-1) }
}

// Bootstrap makes the single silent-restore attempt of the application. Whatever the
// outcome, bootstrapping is over when it returns. Later calls do nothing and return the
// first result.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.bootstrapOnce.Do(func() {
		defer s.session.FinishBootstrap()

		res, err := s.api.Restore(ctx)
		if err != nil {
			s.session.Clear()
			s.bootstrapErr = err
			s.logger.Debug().Err(err).Msg("auth: no session restored")
			return
		}

		marker, markerSet := s.session.Marker()
		fallback := marker
		if !markerSet {
			fallback = 0
		}
		user := adopt(res.User, fallback)
		s.session.SetIdentity(user)
		if !markerSet && user.AppType.Valid() {
			if err := s.session.SetMarker(user.AppType); err != nil {
				s.logger.Warn().Err(err).Msg("auth: persisting restored portal")
			}
		}
		s.logger.Info().Str("user", user.Email).Stringer("portal", user.AppType).Msg("auth: session restored")
	})
	return s.bootstrapErr
}

// VisitLogin records that the login page of appType was opened. The marker is
// overwritten even when no login follows.
func (s *Service) VisitLogin(appType portal.AppType) error {
	return s.session.SetMarker(appType)
}

// Login authenticates within the given portal.
func (s *Service) Login(ctx context.Context, appType portal.AppType, creds api.Credentials) error {
	if !appType.Valid() {
		return apperrors.Wrapf(apperrors.ErrUnknownPortal, "[auth.Login] %d", int(appType))
	}
	if err := s.validator.Struct(creds); err != nil {
		return err
	}
	if err := s.session.SetMarker(appType); err != nil {
		return errors.Wrap(err, "[auth.Login] persisting portal")
	}

	done := s.begin()
	defer done()

	res, err := s.api.Login(ctx, appType, creds)
	if err != nil {
		s.logger.Info().Err(err).Stringer("portal", appType).Msg("auth: login failed")
		return err
	}
	return s.establish(ctx, appType, res)
}

// InstitutionLogin resolves slug to an institution and authenticates against it. An
// unknown slug fails before the backend login is attempted.
func (s *Service) InstitutionLogin(ctx context.Context, slug string, creds api.Credentials) error {
	if err := s.validator.Struct(creds); err != nil {
		return err
	}
	if err := s.session.SetMarker(portal.Institution); err != nil {
		return errors.Wrap(err, "[auth.InstitutionLogin] persisting portal")
	}

	done := s.begin()
	defer done()

	inst, err := s.institutions.Resolve(ctx, slug)
	if err != nil {
		return &ValidationError{
			Field:   "institution",
			Message: "no institution matches that code",
			Err:     err,
		}
	}

	res, err := s.api.InstitutionLogin(ctx, inst.ID, creds)
	if err != nil {
		s.logger.Info().Err(err).Str("institution", inst.Slug).Msg("auth: institution login failed")
		return err
	}
	return s.establish(ctx, portal.Institution, res)
}

func (s *Service) establish(ctx context.Context, appType portal.AppType, res *api.AuthResult) error {
	user := adopt(res.User, appType)
	if user.AppType != appType {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("auth: dropping token of wrong-portal login")
		}
		return &api.Error{
			Status:  http.StatusForbidden,
			Message: "this account cannot sign in to the " + appType.String() + " portal",
			Err:     apperrors.ErrWrongPortal,
		}
	}

	s.session.SetIdentity(user)
	if err := s.session.SetMarker(appType); err != nil {
		s.logger.Warn().Err(err).Msg("auth: persisting portal after login")
	}
	s.logger.Info().Str("user", user.Email).Stringer("portal", appType).Msg("auth: logged in")
	return nil
}

// Logout clears the local session first and then asks the backend to invalidate the
// token. The backend outcome is logged, never returned.
func (s *Service) Logout(ctx context.Context) error {
	s.session.Clear()

	done := s.begin()
	defer done()

	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("auth: remote logout failed")
	}
	return nil
}

func (s *Service) ForgotPassword(ctx context.Context, req api.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	done := s.begin()
	defer done()
	return s.api.ForgotPassword(ctx, req)
}

// ResetPassword sets a new password from an emailed token. It does not sign the user in.
func (s *Service) ResetPassword(ctx context.Context, req api.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	done := s.begin()
	defer done()
	return s.api.ResetPassword(ctx, req)
}

// UpdatePassword fails with ErrNotAuthenticated, without contacting the backend, when no
// one is logged in.
func (s *Service) UpdatePassword(ctx context.Context, req api.UpdatePasswordRequest) error {
	if s.session.CurrentUser() == nil {
		return apperrors.ErrNotAuthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	done := s.begin()
	defer done()
	return s.api.UpdatePassword(ctx, req)
}

// adopt fills in the portal of a backend user record that did not carry one.
func adopt(u *users.User, fallback portal.AppType) *users.User {
	cp := *u
	cp.PasswordHash = ""
	if !cp.AppType.Valid() {
		cp.AppType = fallback
	}
	return &cp
}
