package server

import (
	"encoding/json"
	"net/http"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/guard"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/theme"
	"github.com/EXyrus/tabularasa/users"
)

const noticePasswordUpdated = "Your password has been updated."

// IndexHandler sends a browser that already picked a portal to it and lists the portals
// otherwise.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := guard.Portal(s.auth.State()); ok {
			http.Redirect(w, r, p.DashboardPath(), http.StatusSeeOther)
			return
		}
		s.render(w, http.StatusOK, "index.html", s.page(r, 0))
	}
}

// SessionResponse is the session as seen by collaborators of the shell.
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	Bootstrapping bool           `json:"bootstrapping"`
	Submitting    bool           `json:"submitting"`
	Portal        portal.AppType `json:"portal,omitempty"`
	Role          users.RoleType `json:"role,omitempty"`
	User          *users.User    `json:"user,omitempty"`
	DarkMode      bool           `json:"dark_mode"`
}

// SessionHandler serves GET /api/session.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := s.auth.State()
		resp := SessionResponse{
			Authenticated: state.Authenticated(),
			Bootstrapping: state.Bootstrapping,
			Submitting:    s.auth.IsSubmitting(),
			User:          state.Identity,
			DarkMode:      s.theme.Dark(),
		}
		if p, ok := guard.Portal(state); ok {
			resp.Portal = p
		}
		if state.Identity != nil {
			resp.Role = state.Identity.Role
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Err(err).Msg("encoding session response")
		}
	}
}

func (s *Server) DashboardHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "dashboard.html", s.page(r, p))
	}
}

func (s *Server) SettingsHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "settings.html", s.page(r, p))
	}
}

func (s *Server) UpdatePasswordHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := api.UpdatePasswordRequest{
			OldPassword:          r.PostFormValue("old_password"),
			NewPassword:          r.PostFormValue("new_password"),
			PasswordConfirmation: r.PostFormValue("password_confirmation"),
		}
		if err := s.auth.UpdatePassword(r.Context(), req); err != nil {
			data := s.page(r, p)
			data.Error = api.Message(err)
			s.render(w, failureStatus(err), "settings.html", data)
			return
		}
		http.Redirect(w, r, withNotice(p.Path(RouteSettings), noticePasswordUpdated), http.StatusSeeOther)
	}
}

// PreferencesHandler stores the appearance preferences of the portal and applies them.
func (s *Server) PreferencesHandler(p portal.AppType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		prefs := theme.Preferences{DarkMode: r.PostFormValue("dark_mode") == "true"}
		if err := s.theme.Save(p, prefs); err != nil {
			s.logger.Err(err).Stringer("portal", p).Msg("saving preferences")
			data := s.page(r, p)
			data.Error = "Your preferences could not be saved."
			s.render(w, http.StatusInternalServerError, "settings.html", data)
			return
		}
		s.theme.Apply(p)
		http.Redirect(w, r, p.Path(RouteSettings), http.StatusSeeOther)
	}
}
