package server

import (
	"net/http"

	"github.com/EXyrus/tabularasa/portal"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(http.NotFound, s.APIMiddleware()...))

	for _, p := range portal.All() {
		s.initPortalRoutes(p)
	}
}

func (s *Server) initPortalRoutes(p portal.AppType) {
	public := func(restricted bool) []func(http.HandlerFunc) http.HandlerFunc {
		return s.HTMLMiddleWare(s.PublicRestricted(p, restricted))
	}
	protected := s.HTMLMiddleWare(s.Protected(p))

	// LOGIN
	s.RegisterRouteHandler("GET "+p.Path(RouteLogin), ChainMiddleware(s.LoginPageHandler(p), public(true)...))
	s.RegisterRouteHandler("POST "+p.Path(RouteLogin), ChainMiddleware(s.LoginSubmissionHandler(p), public(true)...))
	s.RegisterRouteHandler("POST "+p.Path(RouteLogout), ChainMiddleware(s.LogoutHandler(p), s.HTMLMiddleWare()...))

	// PASSWORD RECOVERY
	s.RegisterRouteHandler("GET "+p.Path(RouteForgotPassword), ChainMiddleware(s.ForgotPasswordGetHandler(p), public(false)...))
	s.RegisterRouteHandler("POST "+p.Path(RouteForgotPassword), ChainMiddleware(s.ForgotPasswordPostHandler(p), public(false)...))
	s.RegisterRouteHandler("GET "+p.Path(RouteResetPassword), ChainMiddleware(s.ResetPasswordGetHandler(p), public(false)...))
	s.RegisterRouteHandler("POST "+p.Path(RouteResetPassword), ChainMiddleware(s.ResetPasswordPostHandler(p), public(false)...))

	// PORTAL
	s.RegisterRouteHandler("GET "+p.Path(RouteDashboard), ChainMiddleware(s.DashboardHandler(p), protected...))
	s.RegisterRouteHandler("GET "+p.Path(RouteSettings), ChainMiddleware(s.SettingsHandler(p), protected...))
	s.RegisterRouteHandler("POST "+p.Path(RouteUpdatePassword), ChainMiddleware(s.UpdatePasswordHandler(p), protected...))
	s.RegisterRouteHandler("POST "+p.Path(RoutePreferences), ChainMiddleware(s.PreferencesHandler(p), protected...))
}
