package server

import (
	"net/http"
	"net/url"

	"github.com/EXyrus/tabularasa/guard"
	"github.com/EXyrus/tabularasa/portal"
)

// Protected only lets requests through when the session belongs to appType.
func (s *Server) Protected(appType portal.AppType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := guard.Protected(s.guards, s.auth.State(), appType, r.URL.RequestURI())
			s.enforce(d, w, r, next)
		}
	}
}

// PublicRestricted sends sessions of appType away from pages meant for signed out users.
func (s *Server) PublicRestricted(appType portal.AppType, restricted bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := guard.PublicRestricted(s.guards, s.auth.State(), appType, restricted)
			s.enforce(d, w, r, next)
		}
	}
}

func (s *Server) enforce(d guard.Decision, w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	switch d.Kind {
	case guard.Render:
		next(w, r)
	case guard.Loading:
		s.renderLoading(w, r)
	case guard.Redirect:
		http.Redirect(w, r, redirectTarget(d), http.StatusSeeOther)
	}
}

func redirectTarget(d guard.Decision) string {
	if d.From == "" {
		return d.To
	}
	return d.To + "?" + url.Values{paramFrom: {d.From}}.Encode()
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	// Poll until the session restore has finished
	w.Header().Set("Refresh", "1")
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, http.StatusOK, "loading.html", s.page(r, 0))
}
