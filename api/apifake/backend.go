// Package apifake is an in-memory school-management backend. It backs the shell's offline
// mode and the tests of everything built on api.Client.
package apifake

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/institutions"
	institutionrepofake "github.com/EXyrus/tabularasa/institutions/repofake"
	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/token"
	"github.com/EXyrus/tabularasa/users"
	fakeuserrepo "github.com/EXyrus/tabularasa/users/repofake"
	"github.com/google/uuid"
)

// Operation names, as counted by Calls.
const (
	OpRestore          = "restore"
	OpLogin            = "login"
	OpInstitutionLogin = "institution_login"
	OpLogout           = "logout"
	OpForgotPassword   = "forgot_password"
	OpResetPassword    = "reset_password"
	OpUpdatePassword   = "update_password"
)

const issuer = "tabularasa-apifake"

// Mail is a password reset email the backend "sent".
type Mail struct {
	To         string
	ResetToken string
	SentAt     time.Time
}

type resetEntry struct {
	email     string
	expiresAt time.Time
}

var _ api.Client = (*Backend)(nil)

type Backend struct {
	users        users.Repo
	institutions institutions.Repo
	tokens       *api.TokenStore
	secret       string
	tokenTTL     time.Duration
	sessions     *token.Manager
	resetTTL     time.Duration
	nowTime      func() time.Time

	mu      sync.Mutex
	resets  map[string]resetEntry
	outbox  []Mail
	calls   map[string]int
	failure error
	gate    chan struct{}
}

type Option func(*Backend)

func WithNowTime(now func() time.Time) Option {
	return func(b *Backend) {
		b.nowTime = now
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.tokenTTL = ttl
	}
}

func WithSecret(secret string) Option {
	return func(b *Backend) {
		b.secret = secret
	}
}

func WithRepos(userRepo users.Repo, institutionRepo institutions.Repo) Option {
	return func(b *Backend) {
		b.users = userRepo
		b.institutions = institutionRepo
	}
}

// New creates an empty backend persisting its session token in tokens.
func New(tokens *api.TokenStore, options ...Option) *Backend {
	b := &Backend{
		users:        fakeuserrepo.NewFakeUserRepo(),
		institutions: institutionrepofake.NewFakeInstitutionRepo(),
		tokens:       tokens,
		secret:       "apifake-secret",
		tokenTTL:     time.Hour,
		resetTTL:     time.Hour,
		nowTime:      time.Now,
		resets:       make(map[string]resetEntry),
		calls:        make(map[string]int),
	}
	for _, opt := range options {
		opt(b)
	}
	b.sessions = token.New(token.NewHMACSigner(b.secret),
		token.WithIssuer(issuer),
		token.WithTokenExpiry(b.tokenTTL),
		token.WithNowFunc(func() time.Time { return b.nowTime() }),
	)
	return b
}

// Institutions exposes the institution repo so callers can resolve slugs against the same
// data the backend authenticates with.
func (b *Backend) Institutions() institutions.Repo {
	return b.institutions
}

// AddUser stores u with the given plain text password.
func (b *Backend) AddUser(u *users.User, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrapf(err, "[apifake.AddUser] hash")
	}
	u.PasswordHash = hash
	if u.DateJoined.IsZero() {
		u.DateJoined = b.nowTime()
	}
	return b.users.Upsert(u)
}

func (b *Backend) AddInstitution(inst *institutions.Institution) error {
	return b.institutions.Upsert(inst)
}

// FailWith makes every following call fail with a network error wrapping err until
// FailWith(nil) is called.
func (b *Backend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

// Hold blocks every following call until the returned release function runs. Used to
// observe in-flight state.
func (b *Backend) Hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.gate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op reached the backend.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Outbox returns the reset emails sent so far.
func (b *Backend) Outbox() []Mail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Mail(nil), b.outbox...)
}

func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	failure, gate := b.failure, b.gate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.NetworkError(ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return api.NetworkError(err)
	}
	if failure != nil {
		return api.NetworkError(failure)
	}
	return nil
}

func (b *Backend) Restore(ctx context.Context) (*api.AuthResult, error) {
	tok, err := b.tokens.Load()
	if err != nil {
		return nil, err
	}
	if err := b.enter(ctx, OpRestore); err != nil {
		return nil, err
	}

	user, err := b.verify(tok.AccessToken)
	if err != nil {
		_ = b.tokens.Clear()
		return nil, api.NewError(http.StatusUnauthorized, "Your session has expired, please log in again")
	}
	return b.issue(user)
}

func (b *Backend) Login(ctx context.Context, appType portal.AppType, creds api.Credentials) (*api.AuthResult, error) {
	if err := b.enter(ctx, OpLogin); err != nil {
		return nil, err
	}
	user, err := b.authenticate(creds)
	if err != nil {
		return nil, err
	}
	if !user.BelongsTo(appType, "") {
		return nil, api.NewError(http.StatusUnauthorized, "Invalid email or password")
	}
	return b.issue(user)
}

func (b *Backend) InstitutionLogin(ctx context.Context, institutionID string, creds api.Credentials) (*api.AuthResult, error) {
	if err := b.enter(ctx, OpInstitutionLogin); err != nil {
		return nil, err
	}
	if _, err := b.institutions.Get(institutionID); err != nil {
		return nil, api.NewError(http.StatusNotFound, "Institution not found")
	}
	user, err := b.authenticate(creds)
	if err != nil {
		return nil, err
	}
	if !user.BelongsTo(portal.Institution, institutionID) {
		return nil, api.NewError(http.StatusUnauthorized, "Invalid email or password")
	}
	return b.issue(user)
}

func (b *Backend) Logout(ctx context.Context) error {
	tok, loadErr := b.tokens.Load()
	defer func() { _ = b.tokens.Clear() }()
	if loadErr != nil {
		return nil
	}
	if err := b.enter(ctx, OpLogout); err != nil {
		return err
	}
	return b.sessions.Revoke(tok.AccessToken)
}

// ForgotPassword accepts unknown addresses silently so it cannot be used to probe accounts.
func (b *Backend) ForgotPassword(ctx context.Context, req api.ForgotPasswordRequest) error {
	if err := b.enter(ctx, OpForgotPassword); err != nil {
		return err
	}
	user, err := b.users.GetByEmail(req.Email)
	if err != nil {
		return nil
	}
	resetToken := uuid.New().String()
	now := b.nowTime()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets[resetToken] = resetEntry{email: user.Email, expiresAt: now.Add(b.resetTTL)}
	b.outbox = append(b.outbox, Mail{To: user.Email, ResetToken: resetToken, SentAt: now})
	return nil
}

func (b *Backend) ResetPassword(ctx context.Context, req api.ResetPasswordRequest) error {
	if err := b.enter(ctx, OpResetPassword); err != nil {
		return err
	}

	b.mu.Lock()
	entry, ok := b.resets[req.Token]
	b.mu.Unlock()
	if !ok || b.nowTime().After(entry.expiresAt) {
		return &api.Error{
			Status:  http.StatusUnprocessableEntity,
			Message: "This password reset link is invalid or has expired",
			Err:     errors.ErrInvalidResetToken,
		}
	}
	if err := checkNewPassword(req.Password, req.PasswordConfirmation); err != nil {
		return err
	}
	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return api.NewError(http.StatusInternalServerError, "")
	}
	if err := b.users.SetPasswordHash(entry.email, hash); err != nil {
		return api.NewError(http.StatusNotFound, "User not found")
	}

	b.mu.Lock()
	delete(b.resets, req.Token)
	b.mu.Unlock()
	return nil
}

func (b *Backend) UpdatePassword(ctx context.Context, req api.UpdatePasswordRequest) error {
	tok, err := b.tokens.Load()
	if err != nil {
		return api.NewError(http.StatusUnauthorized, "You must be logged in to change your password")
	}
	if err := b.enter(ctx, OpUpdatePassword); err != nil {
		return err
	}
	user, err := b.verify(tok.AccessToken)
	if err != nil {
		return api.NewError(http.StatusUnauthorized, "Your session has expired, please log in again")
	}
	if !users.CheckPasswordHash(req.OldPassword, user.PasswordHash) {
		return api.NewError(http.StatusUnprocessableEntity, "Current password is incorrect")
	}
	if err := checkNewPassword(req.NewPassword, req.PasswordConfirmation); err != nil {
		return err
	}
	hash, err := users.HashPassword(req.NewPassword)
	if err != nil {
		return api.NewError(http.StatusInternalServerError, "")
	}
	return b.users.SetPasswordHash(user.Email, hash)
}

func checkNewPassword(password, confirmation string) error {
	if password != confirmation {
		return api.NewError(http.StatusUnprocessableEntity, "Password confirmation does not match")
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return api.NewError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

func (b *Backend) authenticate(creds api.Credentials) (*users.User, error) {
	user, err := b.users.GetByEmail(creds.Email)
	if err != nil || !users.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, api.NewError(http.StatusUnauthorized, "Invalid email or password")
	}
	if user.Blocked {
		return nil, api.NewError(http.StatusForbidden, "This account has been blocked")
	}
	return user, nil
}

// issue signs a new session token for user and stores it.
func (b *Backend) issue(user *users.User) (*api.AuthResult, error) {
	tok, err := b.sessions.Issue(user)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "")
	}
	if err := b.tokens.Save(tok); err != nil {
		return nil, errors.Wrapf(err, "[apifake.issue] save token")
	}

	cp := *user
	cp.LastLogin = b.nowTime()
	cp.PasswordHash = ""
	return &api.AuthResult{User: &cp, Token: tok}, nil
}

// verify checks raw and loads its subject.
func (b *Backend) verify(raw string) (*users.User, error) {
	claims, err := b.sessions.Verify(raw)
	if err != nil {
		return nil, err
	}
	user, err := b.users.GetByID(claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, errors.ErrInvalidToken
	}
	return user, nil
}
