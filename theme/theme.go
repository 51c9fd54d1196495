// Package theme applies the per-portal dark mode preference whenever the session switches
// portal.
package theme

import (
	"encoding/json"
	"sync/atomic"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/session"
	"github.com/EXyrus/tabularasa/storage"
	"github.com/rs/zerolog"
)

// Preferences is the blob stored per portal under storage.PreferencesKey.
type Preferences struct {
	DarkMode bool `json:"dark_mode"`
}

type Applier struct {
	store  storage.Store
	dark   atomic.Bool
	logger zerolog.Logger
}

type Option func(*Applier)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

func NewApplier(store storage.Store, options ...Option) *Applier {
	a := &Applier{
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Attach applies the preferences of the current marker, if any, and follows every later
// portal change of s.
func (a *Applier) Attach(s *session.Store) {
	s.Subscribe(a.Apply)
	if marker, ok := s.Marker(); ok {
		a.Apply(marker)
	}
}

// Apply sets the dark flag from the stored preferences of appType. Missing or unreadable
// preferences turn dark mode off.
func (a *Applier) Apply(appType portal.AppType) {
	prefs, err := a.Load(appType)
	if err != nil {
		a.logger.Warn().Err(err).Stringer("portal", appType).Msg("theme: ignoring preferences")
	}
	a.dark.Store(prefs.DarkMode)
}

// Dark reports whether dark presentation is on.
func (a *Applier) Dark() bool {
	return a.dark.Load()
}

// Load returns the zero Preferences when nothing is stored.
func (a *Applier) Load(appType portal.AppType) (Preferences, error) {
	var prefs Preferences
	raw, ok, err := a.store.Get(storage.PreferencesKey(appType))
	if err != nil {
		return Preferences{}, errors.Wrapf(err, "[theme.Load] read")
	}
	if !ok {
		return prefs, nil
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Preferences{}, errors.Wrapf(err, "[theme.Load] parse")
	}
	return prefs, nil
}

func (a *Applier) Save(appType portal.AppType, prefs Preferences) error {
	if !appType.Valid() {
		return errors.Wrapf(errors.ErrUnknownPortal, "[theme.Save] %d", int(appType))
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return errors.Wrapf(err, "[theme.Save] encode")
	}
	if err := a.store.Set(storage.PreferencesKey(appType), string(raw)); err != nil {
		return errors.Wrapf(err, "[theme.Save] write")
	}
	return nil
}
