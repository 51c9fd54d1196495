package server

// Portal routes are mounted under /{appType}/, e.g. /vendor/login.
const (
	RouteLogin          = "login"
	RouteLogout         = "logout"
	RouteForgotPassword = "forgot-password"
	RouteResetPassword  = "reset-password"
	RouteDashboard      = "dashboard"
	RouteSettings       = "settings"
	RouteUpdatePassword = "settings/password"
	RoutePreferences    = "settings/preferences"
)

const (
	RouteIndex      = "/{$}"
	RouteAPISession = "/api/session"
)

// Query parameters shared by redirects and pages.
const (
	paramFrom   = "from"
	paramToken  = "token"
	paramNotice = "notice"
)
