// Package guard decides whether a portal route renders, waits for the session or redirects.
// The decisions are pure functions of the session snapshot and never fail.
package guard

import (
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/session"
)

type Kind int

const (
	Render Kind = iota
	Loading
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision tells the router what to do with a request.
type Decision struct {
	Kind Kind
	To   string // redirect target
	From string // attempted location, for returning after login
}

// Config holds the operational switches of the guards.
type Config struct {
	AuthDisabled bool
}

// State is the session view the guards read.
type State = session.State

func render() Decision {
	return Decision{Kind: Render}
}

func redirect(to, from string) Decision {
	return Decision{Kind: Redirect, To: to, From: from}
}

// Portal is the portal the session is using: the durable marker, or the portal of the
// identity when no marker was stored.
func Portal(state State) (portal.AppType, bool) {
	if state.MarkerSet && state.Marker.Valid() {
		return state.Marker, true
	}
	if state.Identity != nil && state.Identity.AppType.Valid() {
		return state.Identity.AppType, true
	}
	return 0, false
}

// Protected gates a route that needs a session of routeAppType. No redirect is decided while
// the session is bootstrapping. A valid session of another portal is sent to its own
// dashboard, never to a login page.
func Protected(cfg Config, state State, routeAppType portal.AppType, location string) Decision {
	if cfg.AuthDisabled {
		return render()
	}
	if state.Bootstrapping {
		return Decision{Kind: Loading}
	}
	if state.Identity == nil {
		return redirect(routeAppType.LoginPath(), location)
	}
	current, ok := Portal(state)
	if !ok {
		return redirect(routeAppType.LoginPath(), location)
	}
	if current != routeAppType {
		return redirect(current.DashboardPath(), "")
	}
	return render()
}

// PublicRestricted gates a public route. When restricted, a session already using
// routeAppType is sent to its dashboard.
func PublicRestricted(cfg Config, state State, routeAppType portal.AppType, restricted bool) Decision {
	if cfg.AuthDisabled || !restricted {
		return render()
	}
	if state.Identity == nil {
		return render()
	}
	if current, ok := Portal(state); ok && current == routeAppType {
		return redirect(routeAppType.DashboardPath(), "")
	}
	return render()
}
