package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireplan-server/internal/auth"
	"github.com/vovakirdan/wireplan-server/internal/config"
	"github.com/vovakirdan/wireplan-server/internal/core"
	"github.com/vovakirdan/wireplan-server/internal/service/rounds"
	"github.com/vovakirdan/wireplan-server/internal/store"
	"github.com/vovakirdan/wireplan-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wireplan-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	rounds          *rounds.Service
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	opts, err := cfg.CoreOptions()
	if err != nil {
		return nil, fmt.Errorf("core options: %w", err)
	}
	opts.Logger = logger
	opts.Keys = auth.NewRecoveryKeys(auth.Config{
		Secret: []byte(cfg.RecoverySecret),
		TTL:    cfg.RecoveryTTL,
	})
	if cfg.RecoverySecret == "" {
		logger.Warn().Msg("recovery_secret is empty, recovery keys will not survive a restart")
	}

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	// A nil interface keeps /api/rounds disabled; a typed nil pointer would not.
	var archive transporthttp.RoundLister
	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
		a.store = st
		a.rounds = rounds.New(st, logger, 0)
		opts.Recorder = a.rounds
		archive = a.rounds
	} else {
		logger.Info().Msg("round archive disabled")
	}

	a.hub = core.NewHub(opts, cfg.ReapInterval)
	a.server = transporthttp.NewServer(a.hub, archive, cfg, logger)
	return a, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the application on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hub.Run(bgCtx)
	}()
	if a.rounds != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.rounds.Run(bgCtx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	// Shutdown does not track hijacked WebSocket connections; stopping the hub releases them.
	// The archive flushes before the store closes.
	stopBackground()
	wg.Wait()
	a.cleanup()
	return runErr
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
