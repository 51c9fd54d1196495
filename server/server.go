// Package server is the portal shell: it mounts the routes of every portal, gates them with
// the route guards and forwards form submissions to the auth service.
package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/EXyrus/tabularasa/auth"
	"github.com/EXyrus/tabularasa/guard"
	"github.com/EXyrus/tabularasa/internal/config"
	"github.com/EXyrus/tabularasa/theme"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.Service
	theme     *theme.Applier
	guards    guard.Config
	templates map[string]*template.Template
	logger    zerolog.Logger
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg config.Config, service *auth.Service, applier *theme.Applier, options ...Option) (*Server, error) {
	if service == nil {
		return nil, errors.New("[server.New] auth service is required")
	}
	if applier == nil {
		return nil, errors.New("[server.New] theme applier is required")
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		auth:   service,
		theme:  applier,
		guards: guard.Config{AuthDisabled: cfg.GetAuthDisabled()},
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] templates")
	}
	s.templates = templates

	if s.guards.AuthDisabled {
		s.logger.Warn().Msg("route guards are disabled")
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
