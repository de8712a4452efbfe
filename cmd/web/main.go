package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/middleware"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/server"
	"basket-dashboard/internal/services"
)

// newHandler wires the analyzer, routes and middleware chain.
func newHandler(cfg *config.Config, analyzer *services.Analyzer, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analyzer, cfg.Upload, logger)

	chain := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
	}
	if cfg.Security.EnableRateLimit {
		chain = append(chain, middleware.RateLimit(middleware.NewRateLimiter(cfg.Security), logger))
	}
	// Multipart overhead on top of the file itself.
	chain = append(chain, middleware.MaxBodyBytes(cfg.Upload.MaxBytes+1<<20))

	return middleware.Chain(chain...)(srv)
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", config.Version,
		"addr", cfg.Address(),
		"min_support", cfg.Mining.MinSupport,
		"metric", cfg.Mining.Metric,
		"min_threshold", cfg.Mining.MinThreshold,
	)

	analyzer := services.NewAnalyzer(cfg.Mining, cfg.Upload, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analyzer, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		stats := analyzer.Stats()
		logger.Info("analyzer stopped", "runs", stats.Runs, "failures", stats.Failures)
		return nil
	})

	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
