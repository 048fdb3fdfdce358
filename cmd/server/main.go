package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/raceresults/internal/config"
	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("effective configuration", "config", cfg.String())

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"import_max_file_size", cfg.Import.MaxFileSize.String(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"auth_enabled", cfg.Security.JWTSecret != "",
		"ranking_enabled", cfg.Ranking.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := core.NewPGStore(pool)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	presets := &config.MappingPresets{}
	if cfg.Presets.File != "" {
		presets, err = config.LoadMappingPresets(cfg.Presets.File)
		if err != nil {
			slog.Error("failed to load mapping presets", "file", cfg.Presets.File, "error", err)
			os.Exit(1)
		}
		slog.Info("mapping presets loaded", "count", len(presets.Presets))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := core.Deps{
		Metrics: core.NewMetrics(reg),
		Presets: presets,
		Logger:  slog.Default(),
	}
	if notifier := core.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, slog.Default()); notifier != nil {
		deps.Notifier = notifier
	}

	// Background jobs run until shutdown
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var ranker *core.Ranker
	if cfg.Ranking.Enabled {
		if err := core.MigrateRiver(ctx, pool); err != nil {
			slog.Error("failed to migrate job queue", "error", err)
			os.Exit(1)
		}
		ranker, err = core.NewRanker(pool, cfg.Ranking, slog.Default())
		if err != nil {
			slog.Error("failed to create ranker", "error", err)
			os.Exit(1)
		}
		if err := ranker.Start(jobCtx); err != nil {
			slog.Error("failed to start ranker", "error", err)
			os.Exit(1)
		}
		deps.Ranker = ranker
		slog.Info("ranking worker started", "queue", cfg.Ranking.Queue, "workers", cfg.Ranking.MaxWorkers)
	}

	service := core.NewService(store, cfg.Import, deps)
	server := web.NewServer(service, cfg, reg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if ranker != nil {
			if err := ranker.Stop(shutdownCtx); err != nil {
				slog.Warn("ranker stop error", "error", err)
			}
		}
		cancelJobs()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
