package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/users"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Backend routes. The backend owns these; they are listed here so tests and the
// in-memory backend agree on them.
const (
	RouteRefresh          = "/auth/refresh"
	RouteLogout           = "/auth/logout"
	RouteForgotPassword   = "/auth/forgot-password"
	RouteResetPassword    = "/auth/reset-password"
	RouteUpdatePassword   = "/auth/password"
	routePortalLogin      = "/%s/auth/login"
	routeInstitutionLogin = "/institutions/%s/auth/login"
)

// PortalLoginRoute is the login route of a portal, e.g. /guardian/auth/login.
func PortalLoginRoute(appType portal.AppType) string {
	return fmt.Sprintf(routePortalLogin, appType)
}

// InstitutionLoginRoute is the login route scoped to one institution.
func InstitutionLoginRoute(institutionID string) string {
	return fmt.Sprintf(routeInstitutionLogin, url.PathEscape(institutionID))
}

// authResponse is the wire shape of a login or refresh response.
type authResponse struct {
	User      *users.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var _ Client = (*HTTPClient)(nil)

// HTTPClient is the Client for the real REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
	logger  zerolog.Logger
}

type HTTPClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(hc *HTTPClient) {
		hc.http = c
	}
}

func WithTimeout(d time.Duration) HTTPClientOption {
	return func(hc *HTTPClient) {
		hc.http.Timeout = d
	}
}

func WithLogger(logger zerolog.Logger) HTTPClientOption {
	return func(hc *HTTPClient) {
		hc.logger = logger
	}
}

func NewHTTPClient(baseURL string, tokens *TokenStore, options ...HTTPClientOption) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrapf(err, "[NewHTTPClient] invalid base URL %q", baseURL)
	}
	if tokens == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewHTTPClient] token store is required")
	}
	hc := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(hc)
	}
	return hc, nil
}

func (hc *HTTPClient) Restore(ctx context.Context) (*AuthResult, error) {
	tok, err := hc.tokens.Load()
	if err != nil {
		return nil, err
	}
	if !tok.Valid() {
		_ = hc.tokens.Clear()
		return nil, errors.ErrTokenExpired
	}

	var resp authResponse
	if err := hc.do(ctx, http.MethodPost, RouteRefresh, nil, &resp, tok); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			_ = hc.tokens.Clear()
		}
		return nil, err
	}
	return hc.storeResult(&resp)
}

func (hc *HTTPClient) Login(ctx context.Context, appType portal.AppType, creds Credentials) (*AuthResult, error) {
	var resp authResponse
	if err := hc.do(ctx, http.MethodPost, PortalLoginRoute(appType), creds, &resp, nil); err != nil {
		return nil, err
	}
	return hc.storeResult(&resp)
}

func (hc *HTTPClient) InstitutionLogin(ctx context.Context, institutionID string, creds Credentials) (*AuthResult, error) {
	var resp authResponse
	if err := hc.do(ctx, http.MethodPost, InstitutionLoginRoute(institutionID), creds, &resp, nil); err != nil {
		return nil, err
	}
	return hc.storeResult(&resp)
}

// Logout always drops the stored token, even when the backend call fails.
func (hc *HTTPClient) Logout(ctx context.Context) error {
	tok, loadErr := hc.tokens.Load()
	defer func() {
		if err := hc.tokens.Clear(); err != nil {
			hc.logger.Warn().Err(err).Msg("api: clearing stored token")
		}
	}()
	if loadErr != nil {
		return nil
	}
	return hc.do(ctx, http.MethodPost, RouteLogout, nil, nil, tok)
}

func (hc *HTTPClient) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	return hc.do(ctx, http.MethodPost, RouteForgotPassword, req, nil, nil)
}

func (hc *HTTPClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return hc.do(ctx, http.MethodPost, RouteResetPassword, req, nil, nil)
}

func (hc *HTTPClient) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) error {
	tok, err := hc.tokens.Load()
	if err != nil {
		return errors.Wrapf(errors.ErrNotAuthenticated, "[UpdatePassword] %v", err)
	}
	return hc.do(ctx, http.MethodPut, RouteUpdatePassword, req, nil, tok)
}

func (hc *HTTPClient) storeResult(resp *authResponse) (*AuthResult, error) {
	if resp.User == nil || resp.Token == "" {
		return nil, &Error{Message: "unexpected response from the server", Err: errors.ErrInternal}
	}
	tok := &oauth2.Token{AccessToken: resp.Token, TokenType: "Bearer"}
	if resp.ExpiresAt != nil {
		tok.Expiry = *resp.ExpiresAt
	} else if claims, err := ParseClaims(resp.Token); err == nil {
		tok.Expiry = claims.Expiry()
	}
	if err := hc.tokens.Save(tok); err != nil {
		return nil, errors.Wrapf(err, "[HTTPClient] saving token")
	}
	return &AuthResult{User: resp.User, Token: tok}, nil
}

// do sends body as JSON and decodes a 2xx response into out. A nil tok sends no
// Authorization header.
func (hc *HTTPClient) do(ctx context.Context, method, path string, body, out any, tok *oauth2.Token) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "[HTTPClient] encode %s", path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, hc.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "[HTTPClient] new request %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := hc.http.Do(req)
	if err != nil {
		hc.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("api: transport failure")
		return NetworkError(err)
	}
	defer resp.Body.Close()

	hc.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api: request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		return NewError(resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Message: "unexpected response from the server", Err: errors.ErrInternal}
	}
	return nil
}
