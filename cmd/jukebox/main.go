package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexplain/jukebox/internal/audio"
	"github.com/alexplain/jukebox/internal/catalog"
	"github.com/alexplain/jukebox/internal/config"
	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/player"
	"github.com/alexplain/jukebox/internal/registry"
	"github.com/alexplain/jukebox/internal/server"
)

// AppOptions wires the whole daemon. Exported so tests can validate the
// dependency graph.
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
		registry.New,
		fx.Annotate(audio.NewFactory, fx.As(new(domain.EngineFactory))),
		newCatalogClient,
		player.NewManager,
		newServer,
	),
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance. JUKEBOX_LOG_LEVEL overrides
// the production default of info.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if raw := os.Getenv("JUKEBOX_LOG_LEVEL"); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return cfg.Build()
}

// newCatalogClient picks the catalog transport: a local library directory
// when one is configured, the content gateway otherwise
func newCatalogClient(logger *zap.Logger, cfg domain.Config) (domain.CatalogClient, error) {
	if dir := cfg.MusicDir(); dir != "" {
		logger.Info("Serving catalog from local library", zap.String("dir", dir))
		return catalog.NewLocalCatalog(logger, dir)
	}
	return catalog.NewGatewayClient(logger, cfg.GatewayURL()), nil
}

func newServer(logger *zap.Logger, manager *player.Manager, cfg domain.Config) *server.Server {
	return server.NewServer(logger, manager, cfg.ListenAddr())
}

// registerHooks sets up application lifecycle hooks
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cat domain.CatalogClient,
	manager *player.Manager,
	srv *server.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Jukebox Daemon Started")
			// Sections load in the background; the page shows loading
			// placeholders until each one settles.
			manager.Load(context.Background())
			go srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			err := multierr.Append(srv.Stop(ctx), manager.Close())
			if closer, ok := cat.(io.Closer); ok {
				err = multierr.Append(err, closer.Close())
			}
			return err
		},
	})
}
