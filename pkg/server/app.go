package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "AllocDesk/internal/middleware"
	"AllocDesk/internal/session"
	"AllocDesk/pkg/config"
	xhttp "AllocDesk/pkg/http"
	applogger "AllocDesk/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

type healthCheck struct {
	name string
	fn   func(ctx context.Context) error
}

// App encapsulates the application lifecycle: session janitor, snapshot
// pipeline, HTTP server, and ordered teardown of infrastructure clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	store      *session.Store
	pipeline   *mid.SnapshotPipeline
	handler    xhttp.Handler
	httpServer *xhttp.Server
	closers    []closer
	health     []healthCheck
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	store *session.Store,
	pipeline *mid.SnapshotPipeline,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: pipeline,
		handler:  handler,
	}
}

// AddCloser registers an infrastructure client to close on shutdown.
// Closers run in reverse registration order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// AddHealthCheck registers a dependency probe exposed on /healthz.
func (a *App) AddHealthCheck(name string, fn func(ctx context.Context) error) {
	a.health = append(a.health, healthCheck{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.store.StartJanitor(ctx, a.cfg.Session.CleanupInterval)
	a.pipeline.Start(ctx)

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
		xhttp.WithLogger(a.log),
	}
	for _, hc := range a.health {
		opts = append(opts, xhttp.WithHealthCheck(hc.name, hc.fn))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.pipeline.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown", applogger.Error(err))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close failed",
				applogger.String("client", c.name),
				applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
