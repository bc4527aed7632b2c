// Command factgate runs the fact governance HTTP service.
package main

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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/veritas-legal/factgate/internal/compliance"
	"github.com/veritas-legal/factgate/internal/config"
	"github.com/veritas-legal/factgate/internal/facts"
	"github.com/veritas-legal/factgate/internal/metrics"
	"github.com/veritas-legal/factgate/internal/server"
	"github.com/veritas-legal/factgate/internal/storage"
	"github.com/veritas-legal/factgate/internal/telemetry"
	"github.com/veritas-legal/factgate/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("FACTGATE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("factgate starting", "version", version, "port", cfg.Port,
		"citation_required", cfg.CitationRequired)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// RunMigrations tracks applied files in schema_migrations and skips
	// duplicates, so errors here indicate real failures.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Wire the governance engine. The policy closure re-reads config values
	// so the citation gate always reflects the loaded settings.
	sink := metrics.NewOTELSink()
	checker := compliance.NewChecker(func() compliance.Policy {
		return compliance.Policy{
			CitationRequired:       cfg.CitationRequired,
			MinCitationConfidence:  cfg.MinCitationConfidence,
			AllowedCitationDomains: cfg.AllowedCitationDomains,
		}
	}, sink, logger)

	svc := facts.New(db, checker, sink, logger, facts.Options{
		ExtractionModel: cfg.ExtractionModel,
		BulkSyncLimit:   cfg.BulkSyncLimit,
	})

	srv := server.New(server.ServerConfig{
		Service:             svc,
		Health:              db,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown: stop accepting requests, drain in-flight ones,
		// then wait for background bulk extractions to finish.
		slog.Info("factgate shutting down")

		httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpCancel()
		if err := srv.Shutdown(httpCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}

		svc.DrainBulkJobs()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("factgate stopped")
	return nil
}
