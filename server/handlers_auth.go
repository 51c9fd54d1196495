package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/EXyrus/tabularasa/api"
	apperrors "github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
)

const (
	noticeResetSent = "If an account exists for that address, a reset link is on its way."
	noticeResetDone = "Your password has been reset. Please sign in with the new password."
	noticeLoggedOut = "You have been logged out."
)

// LoginPageHandler renders the sign in form and records the portal the browser is using.
func (s *Server) LoginPageHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.VisitLogin(p); err != nil {
			s.logger.Warn().Err(err).Stringer("portal", p).Msg("recording portal visit")
		}
		s.render(w, http.StatusOK, "login.html", s.page(r, p))
	}
}

// LoginSubmissionHandler processes the login form. The institution portal resolves the
// institution code before signing in.
func (s *Server) LoginSubmissionHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := api.Credentials{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
		}
		from := r.PostFormValue(paramFrom)
		slug := r.PostFormValue("institution")

		var err error
		switch p {
		case portal.Institution:
			err = s.auth.InstitutionLogin(r.Context(), slug, creds)
		case portal.Vendor, portal.Guardian:
			err = s.auth.Login(r.Context(), p, creds)
		}
		if err != nil {
			data := s.page(r, p)
			data.Error = api.Message(err)
			data.Email = creds.Email
			data.Institution = slug
			data.From = from
			s.render(w, failureStatus(err), "login.html", data)
			return
		}

		http.Redirect(w, r, returnPath(p, from), http.StatusSeeOther)
	}
}

// LogoutHandler always ends the local session.
func (s *Server) LogoutHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = s.auth.Logout(r.Context())
		http.Redirect(w, r, withNotice(p.LoginPath(), noticeLoggedOut), http.StatusSeeOther)
	}
}

func (s *Server) ForgotPasswordGetHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "forgot_password.html", s.page(r, p))
	}
}

func (s *Server) ForgotPasswordPostHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := api.ForgotPasswordRequest{Email: strings.TrimSpace(r.PostFormValue("email"))}

		data := s.page(r, p)
		data.Email = req.Email
		if err := s.auth.ForgotPassword(r.Context(), req); err != nil {
			data.Error = api.Message(err)
			s.render(w, failureStatus(err), "forgot_password.html", data)
			return
		}
		data.Notice = noticeResetSent
		s.render(w, http.StatusOK, "forgot_password.html", data)
	}
}

func (s *Server) ResetPasswordGetHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.page(r, p)
		data.Token = r.URL.Query().Get(paramToken)
		if data.Token == "" {
			data.Error = "This password reset link is incomplete. Request a new one."
		}
		s.render(w, http.StatusOK, "reset_password.html", data)
	}
}

// ResetPasswordPostHandler sets the new password and sends the user to sign in. A reset
// never signs the user in by itself.
func (s *Server) ResetPasswordPostHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := api.ResetPasswordRequest{
			Token:                r.PostFormValue(paramToken),
			Password:             r.PostFormValue("password"),
			PasswordConfirmation: r.PostFormValue("password_confirmation"),
		}
		if err := s.auth.ResetPassword(r.Context(), req); err != nil {
			data := s.page(r, p)
			data.Token = req.Token
			data.Error = api.Message(err)
			s.render(w, failureStatus(err), "reset_password.html", data)
			return
		}
		http.Redirect(w, r, withNotice(p.LoginPath(), noticeResetDone), http.StatusSeeOther)
	}
}

// returnPath is the page to land on after login: the attempted location when it belongs
// to the portal, the dashboard otherwise.
func returnPath(p portal.AppType, from string) string {
	prefix := "/" + p.String() + "/"
	if strings.HasPrefix(from, prefix) && !strings.HasPrefix(from, "//") && !strings.Contains(from, "\\") {
		return from
	}
	return p.DashboardPath()
}

func withNotice(path, notice string) string {
	return path + "?" + url.Values{paramNotice: {notice}}.Encode()
}

func failureStatus(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrValidation), apperrors.Is(err, apperrors.ErrInvalidResetToken):
		return http.StatusUnprocessableEntity
	case apperrors.Is(err, apperrors.ErrInvalidCredentials), apperrors.Is(err, apperrors.ErrWrongPortal):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
