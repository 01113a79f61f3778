package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CandleFeed/internal/domain/repository"
	icache "CandleFeed/internal/service/cache"
	"CandleFeed/internal/stream"
	"CandleFeed/pkg/config"
	xhttp "CandleFeed/pkg/http"
	applogger "CandleFeed/pkg/logger"
)

// App encapsulates the application lifecycle: HTTP server, live stream
// manager and the infrastructure clients that need closing on shutdown.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	streams    *stream.Manager
	publisher  repository.CandlePublisher
	redis      *icache.RedisCache
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. publisher and redis
// may be nil when the corresponding backends are disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	streams *stream.Manager,
	publisher repository.CandlePublisher,
	redis *icache.RedisCache,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		streams:   streams,
		publisher: publisher,
		redis:     redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			a.log.Warn("redis unreachable, continuing without second-level cache", applogger.Error(err))
		}
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.streams.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
