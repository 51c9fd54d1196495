package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/EXyrus/tabularasa/api"
	"github.com/EXyrus/tabularasa/api/apifake"
	"github.com/EXyrus/tabularasa/auth"
	"github.com/EXyrus/tabularasa/institutions"
	institutionrepofake "github.com/EXyrus/tabularasa/institutions/repofake"
	"github.com/EXyrus/tabularasa/internal/config"
	"github.com/EXyrus/tabularasa/server"
	"github.com/EXyrus/tabularasa/session"
	"github.com/EXyrus/tabularasa/storage"
	"github.com/EXyrus/tabularasa/theme"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	c := config.New()
	logger := newLogger(c)

	if err := run(c, logger); err != nil {
		logger.Fatal().Err(err).Msg("Error running portal shell")
	}
	logger.Info().Msg("Portal shell stopped")
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

func run(c config.Config, logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	handler, service, err := compose(c, logger)
	if err != nil {
		return err
	}

	// Restore any previous session while the shell already answers with loading pages
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.GetAPITimeout())
		defer cancel()
		if err := service.Bootstrap(ctx); err != nil {
			logger.Info().Msg("Starting signed out")
		}
	}()

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv, logger)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// compose wires the single session store into everything that reads or writes it.
func compose(c config.Config, logger zerolog.Logger) (*server.Server, *auth.Service, error) {
	durable, err := storage.NewFile(filepath.Join(c.GetDataFolder(), "session.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening session storage: %w", err)
	}
	tokens := api.NewTokenStore(durable)

	client, resolver, err := newClient(c, tokens, logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := session.New(durable, session.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("session.New: %w", err)
	}

	applier := theme.NewApplier(durable, theme.WithLogger(logger))
	applier.Attach(store)

	service, err := auth.NewService(auth.Deps{
		Session:      store,
		API:          client,
		Institutions: resolver,
	}, auth.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("auth.NewService: %w", err)
	}

	srv, err := server.New(c, service, applier, server.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("server.New: %w", err)
	}
	return srv, service, nil
}

// newClient talks to API_BASE_URL when set and to a seeded in-memory backend otherwise.
func newClient(c config.Config, tokens *api.TokenStore, logger zerolog.Logger) (api.Client, *institutions.Resolver, error) {
	if baseURL := c.GetAPIBaseURL(); baseURL != "" {
		client, err := api.NewHTTPClient(baseURL, tokens,
			api.WithTimeout(c.GetAPITimeout()),
			api.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("api.NewHTTPClient: %w", err)
		}
		return client, institutions.NewResolver(newDirectory(c, logger)), nil
	}

	backend := apifake.New(tokens, apifake.WithSecret(c.GetTokenSigningSecret()))
	if err := backend.SeedDemo(); err != nil {
		return nil, nil, fmt.Errorf("seeding demo backend: %w", err)
	}
	logger.Warn().
		Str("password", apifake.DemoPassword).
		Str("institution", apifake.DemoInstitutionSlug).
		Msg("API_BASE_URL not set, using the in-memory backend with demo accounts")
	return backend, institutions.NewResolver(backend.Institutions()), nil
}

// newDirectory loads the institution codes the institution login accepts. A missing file
// leaves the directory empty.
func newDirectory(c config.Config, logger zerolog.Logger) institutions.Repo {
	repo := institutionrepofake.NewFakeInstitutionRepo()
	path := c.GetInstitutionsFile()
	f, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("file", path).Msg("No institution directory, institution login is unavailable")
		return repo
	}
	defer f.Close()

	n, err := institutions.Import(f, repo)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("Reading institution directory")
	}
	logger.Info().Int("institutions", n).Str("file", path).Msg("Institution directory loaded")
	return repo
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("Portal shell listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
