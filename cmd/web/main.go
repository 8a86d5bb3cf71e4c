package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/dataset"
	"udip-dashboard/internal/export"
	"udip-dashboard/internal/middleware"
	"udip-dashboard/internal/observability"
	"udip-dashboard/internal/server"
	"udip-dashboard/internal/services"
	"udip-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	loadTimeout   = 5 * time.Minute
	cacheMaxAge   = "public, max-age=300"
)

// syntheticOptions sizes the generated dataset used when no CSVs exist.
var syntheticOptions = dataset.DefaultGenerateOptions

// Template handler functions that can access the template functions
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// buildSinks returns the exporters enabled by configuration.
func buildSinks(cfg config.ExportConfig, logger *slog.Logger) (export.Sinks, error) {
	var sinks export.Sinks
	if cfg.InfluxEnabled() {
		sinks = append(sinks, export.NewInfluxSink(cfg, logger))
	}
	if cfg.KafkaEnabled() {
		kafka, err := export.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, kafka)
	}
	return sinks, nil
}

// loadData runs the pipeline over the CSV directory, or over a generated
// dataset when the directory holds no data and synthetic data is enabled.
func loadData(ctx context.Context, cfg *config.Config, analytics *services.Analytics, logger *slog.Logger) error {
	loader := dataset.NewLoader(cfg.Data.Dir, cfg.Pipeline.Workers, logger)
	if loader.Available() {
		return analytics.LoadFromDir(ctx, loader)
	}
	if !cfg.Data.Synthetic {
		return errors.New("no CSV data in " + cfg.Data.Dir + " and synthetic data is disabled")
	}

	logger.Warn("no CSV data found, using synthetic dataset", "dir", cfg.Data.Dir, "seed", cfg.Pipeline.Seed)
	return analytics.SetData(ctx, dataset.Generate(syntheticOptions(cfg.Pipeline.Seed)))
}

func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
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
		"data_dir", cfg.Data.Dir,
		"pipeline", cfg.Pipeline.Fingerprint(),
	)

	analytics := services.NewAnalytics(cfg.Pipeline, cfg.Data.CacheDir, logger)

	sinks, err := buildSinks(cfg.Export, logger)
	if err != nil {
		logger.Error("failed to create export sinks", "error", err)
		os.Exit(1)
	}
	analytics.SetSinks(sinks...)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	start := time.Now()
	if err := loadData(ctx, cfg, analytics, logger); err != nil {
		logger.Error("failed to load data", "error", err)
		os.Exit(1)
	}
	logger.Info("analytics ready", "duration", time.Since(start), "stats", analytics.Stats())

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("export sinks", func(ctx context.Context) error {
		logger.Info("closing export sinks", "count", len(sinks))
		return sinks.Close()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
