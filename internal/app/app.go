package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/config"
	"github.com/vovakirdan/partychat/internal/session"
	transporthttp "github.com/vovakirdan/partychat/internal/transport/http"
	"github.com/vovakirdan/partychat/internal/transport/ws"
)

// App wires together the session controller and the view bridge.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	session         *session.Controller
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	ctrl := NewSession(cfg, logger)
	server := transporthttp.NewServer(ctrl, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		session:         ctrl,
		log:             logger,
	}
}

// NewSession builds a session controller that dials the configured backend.
func NewSession(cfg *config.Config, logger *zerolog.Logger) *session.Controller {
	return session.New(Dialer(cfg, logger), session.Options{
		TypingIdleTimeout: cfg.TypingIdleTimeout,
		Logger:            logger,
	})
}

// Dialer returns a session dialer backed by the websocket transport.
func Dialer(cfg *config.Config, logger *zerolog.Logger) session.Dialer {
	opts := ws.Options{
		RequestTimeout:    cfg.RequestTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		ReadLimit:         cfg.MaxMessageBytes,
		Logger:            logger,
	}
	url := cfg.BackendURL
	dialTimeout := cfg.DialTimeout

	return func(ctx context.Context, h session.Handler) (session.Transport, error) {
		if dialTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, dialTimeout)
			defer cancel()
		}
		client, err := ws.Dial(ctx, url, h, opts)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", url, err)
		}
		return client, nil
	}
}

// Run starts the HTTP server, connects the session, and blocks until context
// cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	// A failed connect leaves the session Closed with a notice for the view.
	if err := a.session.Initialize(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial connect failed")
	}

	select {
	case err := <-serverErr:
		a.session.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Closing the session ends the event streams so Shutdown can drain them.
		a.session.Close()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
