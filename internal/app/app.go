package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/auth"
	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/config"
	"github.com/akarpov/murmur-server/internal/core"
	"github.com/akarpov/murmur-server/internal/identity"
	"github.com/akarpov/murmur-server/internal/notify"
	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/store/sqlite"
	"github.com/akarpov/murmur-server/internal/token"
	transporthttp "github.com/akarpov/murmur-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. A store that
// cannot be opened is fatal.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	tokens := token.NewService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	resolver := identity.NewResolver(tokens, st)

	// One explicit bus instance; the dispatcher and session manager share it.
	eventBus := bus.New(cfg.SubscriberBuffer)
	notifier := notify.NewDispatcher(eventBus, logger)
	manager := core.NewManager(eventBus, logger)

	authService := auth.NewService(st, tokens, notifier)

	server := transporthttp.NewServer(manager, resolver, authService, notifier, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
