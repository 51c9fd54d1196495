// Package portal models the three role-scoped portions of the application.
package portal

import (
	"fmt"
	"strings"

	apperrors "github.com/EXyrus/tabularasa/internal/errors"
)

// AppType identifies the portal a session or route belongs to.
// The zero value is not a valid portal.
type AppType int

const (
	Vendor AppType = iota + 1
	Institution
	Guardian
)

var all = []AppType{Vendor, Institution, Guardian}

// All returns every portal in a stable order.
func All() []AppType {
	out := make([]AppType, len(all))
	copy(out, all)
	return out
}

// Parse converts the path segment or storage value of a portal into an AppType.
func Parse(s string) (AppType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vendor":
		return Vendor, nil
	case "institution":
		return Institution, nil
	case "guardian":
		return Guardian, nil
	}
	return 0, apperrors.Wrapf(apperrors.ErrUnknownPortal, "portal.Parse %q", s)
}

func (a AppType) String() string {
	switch a {
	case Vendor:
		return "vendor"
	case Institution:
		return "institution"
	case Guardian:
		return "guardian"
	}
	return fmt.Sprintf("AppType(%d)", int(a))
}

// Valid reports whether a is one of the known portals.
func (a AppType) Valid() bool {
	switch a {
	case Vendor, Institution, Guardian:
		return true
	}
	return false
}

// LoginPath is the public login route of the portal.
func (a AppType) LoginPath() string {
	return "/" + a.String() + "/login"
}

// DashboardPath is the landing route of an authenticated portal session.
func (a AppType) DashboardPath() string {
	return "/" + a.String() + "/dashboard"
}

// Path joins a sub route onto the portal prefix, e.g. Vendor.Path("settings").
func (a AppType) Path(sub string) string {
	return "/" + a.String() + "/" + strings.TrimPrefix(sub, "/")
}

// MarshalText encodes the zero value as an empty string.
func (a AppType) MarshalText() ([]byte, error) {
	if a == 0 {
		return []byte{}, nil
	}
	if !a.Valid() {
		return nil, fmt.Errorf("invalid portal %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *AppType) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = 0
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
