package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"finboard/internal/config"
	"finboard/internal/middleware"
	"finboard/internal/observability"
	"finboard/internal/server"
	"finboard/internal/services"
	"finboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	preloadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	reports := services.NewReports(cfg.Data.SessionTTL, logger)

	if cfg.Data.File != "" {
		ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
		start := time.Now()
		ds, err := reports.Preload(ctx, cfg.Data.File)
		cancel()
		if err != nil {
			logger.Error("failed to preload data file", "file", cfg.Data.File, "error", err)
			os.Exit(1)
		}
		logger.Info("data file preloaded",
			"file", cfg.Data.File,
			"records", len(ds.Records),
			"duration", time.Since(start),
		)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(reports, logger, cfg.Data, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down report service")
		return reports.Close(ctx)
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
