package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vadim/barkwrapped/internal/config"
	httpcontroller "github.com/vadim/barkwrapped/internal/controller/http"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/listener"
	"github.com/vadim/barkwrapped/internal/metrics"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	deps     *Dependencies

	// Mention listener, nil when disabled
	listener *listener.Listener
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	deps, err := NewDependencies(ctx, cfg, m, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	// Initialize router with middleware
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	app := &App{
		cfg:      cfg,
		router:   r,
		logger:   logger,
		registry: registry,
		metrics:  m,
		deps:     deps,
	}

	app.registerRoutes()

	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Listener.Enabled {
		app.listener, err = deps.NewListener(cfg, m)
		if err != nil {
			return nil, fmt.Errorf("initializing listener: %w", err)
		}
	}

	return app, nil
}

// Router returns the HTTP handler of the application
func (a *App) Router() http.Handler {
	return a.router
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	// Health checks
	health := httpcontroller.NewHealthHandler(map[string]httpcontroller.ReadinessCheck{
		"post_dump": func(context.Context) error {
			_, err := os.Stat(a.cfg.Output.DumpDir)
			return err
		},
	})
	health.RegisterRoutes(a.router)

	a.router.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	// Swagger UI documentation
	swaggerHandler := httpcontroller.NewSwaggerHandler("Bark Wrapped API", httpcontroller.OpenAPISpec)
	swaggerHandler.RegisterRoutes(a.router)

	// API v1
	a.router.Route("/api/v1", func(r chi.Router) {
		// A run renders four images; it may take up to the write timeout
		r.Use(middleware.Timeout(a.cfg.Server.WriteTimeout))
		r.Use(middleware.Logger)

		wrappedHandler := httpcontroller.NewWrappedHandler(a.deps.Policy)
		wrappedHandler.RegisterRoutes(r)

		imageHandler := httpcontroller.NewImageHandler(a.deps.Images, a.logger.With("component", "images"))
		imageHandler.RegisterRoutes(r)
	})
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.listener != nil {
		a.listener.Start(ctx)
	}

	// Channel to receive errors from server
	errCh := make(chan error, 1)

	// Start HTTP server in goroutine
	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address(), "variant", a.cfg.Platform.Variant)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.listener != nil {
		a.listener.Stop()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
