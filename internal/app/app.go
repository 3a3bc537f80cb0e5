package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/auth"
	"github.com/rentwire/rentwire-server/internal/config"
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/notify"
	"github.com/rentwire/rentwire-server/internal/scheduler"
	"github.com/rentwire/rentwire-server/internal/store"
	"github.com/rentwire/rentwire-server/internal/store/sqlite"
	transporthttp "github.com/rentwire/rentwire-server/internal/transport/http"
)

// App wires together core, scheduler, and transport layers.
type App struct {
	server          *stdhttp.Server
	scheduler       *scheduler.Scheduler
	shutdownTimeout time.Duration
	store           store.Store
	sink            notify.Sink
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
	authService := auth.NewService(st, st, jwtConfig)

	registry := core.NewRegistry()
	channel := core.NewChannel(registry, st, cfg.Channel.EchoSender, logger)

	var sink notify.Sink
	if cfg.AMQP.URL != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init amqp sink: %w", err)
		}
		logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("amqp notification sink connected")
		sink = amqpSink
	} else {
		sink = notify.NewLogSink(logger)
	}

	sched := scheduler.New(st, channel, sink, cfg.Reminder, logger)
	server := transporthttp.NewServer(cfg, logger, authService, channel, st)

	return &App{
		server:          server,
		scheduler:       sched,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		sink:            sink,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and the reminder scheduler and blocks until
// context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.scheduler.Run(ctx)

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

// cleanup closes the store and the notification sink.
func (a *App) cleanup() {
	if closer, ok := a.sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close notification sink")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
