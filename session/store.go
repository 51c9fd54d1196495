// Package session holds the single authenticated identity of a running portal shell.
package session

import (
	"sync"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/storage"
	"github.com/EXyrus/tabularasa/users"
	"github.com/rs/zerolog"
)

// State is a consistent snapshot of the store, read by the route guards.
type State struct {
	Identity      *users.User
	Bootstrapping bool
	Marker        portal.AppType
	MarkerSet     bool
}

// Authenticated reports whether an identity is present.
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// Store is the Session Store. Create one per application through New and hand the same
// pointer to every consumer.
//
// Concurrent writers are not serialised beyond the mutex: two credential operations racing
// each other end in whichever write lands last.
type Store struct {
	mu            sync.RWMutex
	identity      *users.User
	bootstrapping bool
	marker        portal.AppType
	markerSet     bool

	durable   storage.Store
	listeners []func(portal.AppType)
	logger    zerolog.Logger
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store in the bootstrapping state with the marker loaded from durable
// storage. An unreadable or unknown marker is treated as absent.
func New(durable storage.Store, options ...Option) (*Store, error) {
	if durable == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[session.New] durable storage is required")
	}
	s := &Store{
		bootstrapping: true,
		durable:       durable,
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	raw, ok, err := durable.Get(storage.KeyAppType)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session: reading appType marker")
		return s, nil
	}
	if !ok {
		return s, nil
	}
	marker, err := portal.Parse(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("marker", raw).Msg("session: ignoring stored appType marker")
		return s, nil
	}
	s.marker, s.markerSet = marker, true
	return s, nil
}

// CurrentUser returns a copy of the identity, or nil when unauthenticated.
func (s *Store) CurrentUser() *users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.identity)
}

func (s *Store) IsBootstrapping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootstrapping
}

// Role is empty when unauthenticated.
func (s *Store) Role() users.RoleType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Role
}

// Marker is the portal this browser session last used.
func (s *Store) Marker() (portal.AppType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker, s.markerSet
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Identity:      copyUser(s.identity),
		Bootstrapping: s.bootstrapping,
		Marker:        s.marker,
		MarkerSet:     s.markerSet,
	}
}

func (s *Store) SetIdentity(u *users.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = copyUser(u)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
}

// FinishBootstrap ends the bootstrapping phase. It returns true only for the call that
// actually flipped the flag.
func (s *Store) FinishBootstrap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bootstrapping {
		return false
	}
	s.bootstrapping = false
	return true
}

// SetMarker overwrites the durable appType marker. Subscribers are notified when the
// effective portal changes.
func (s *Store) SetMarker(appType portal.AppType) error {
	if !appType.Valid() {
		return errors.Wrapf(errors.ErrUnknownPortal, "[session.SetMarker] %d", int(appType))
	}
	if err := s.durable.Set(storage.KeyAppType, appType.String()); err != nil {
		return errors.Wrapf(err, "[session.SetMarker] persist")
	}

	s.mu.Lock()
	changed := !s.markerSet || s.marker != appType
	s.marker, s.markerSet = appType, true
	listeners := append([]func(portal.AppType){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(appType)
		}
	}
	return nil
}

// Subscribe registers fn to be called, outside the store lock, whenever the marker
// changes to a different portal.
func (s *Store) Subscribe(fn func(portal.AppType)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
