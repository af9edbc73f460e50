package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/api"
	"github.com/wavecms/mediastore/pkg/mediastore/config"
	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	"github.com/wavecms/mediastore/pkg/mediastore/gc"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

func main() {
	env, err := config.ReadEnv()
	if err != nil {
		slog.Error("failed to read environment", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if env.Environment == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)

	if err := run(env, logger); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(env config.EnvConfig, logger *slog.Logger) error {
	cfg, err := config.Load(config.FromEnv(env))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repo, err := cfg.BuildRepository()
	if err != nil {
		return fmt.Errorf("failed to build repository: %w", err)
	}
	store, err := cfg.BuildStorage()
	if err != nil {
		return fmt.Errorf("failed to build storage: %w", err)
	}

	svc, err := mediastore.New(
		mediastore.WithRepository(repo),
		mediastore.WithBlobStore(cfg.StorageBackend.Type, store),
	)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("failed to load schema description: %w", err)
	}
	source, err := cfg.BuildSchemaSource(registry)
	if err != nil {
		return fmt.Errorf("failed to build schema source: %w", err)
	}

	queue, err := cfg.BuildQueue(logger)
	if err != nil {
		return fmt.Errorf("failed to build job queue: %w", err)
	}
	defer queue.Close()

	scanner := scan.New(registry, source, repo, store)
	tracker := usage.New(repo, scanner, store, queue)
	collector := gc.New(svc, repo, tracker)

	// Relation mutations now feed the usage cache.
	registry.Subscribe(tracker)

	worker := dispatch.NewWorker(queue)
	tracker.RegisterJobs(worker)
	collector.RegisterJobs(worker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker stopped", "error", err)
		}
	}()

	scheduler := dispatch.NewScheduler(queue)
	scheduler.Every(cfg.RecomputeInterval, usage.JobRecomputeAll, nil)
	scheduler.Every(cfg.CleanupInterval, gc.JobCleanUnused, nil)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routes(svc, scanner, queue),
	}

	go func() {
		slog.Info("media store server starting",
			"port", cfg.Port, "env", cfg.Environment,
			"storage", cfg.StorageBackend.Type, "queue", cfg.QueueType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exiting")
	return nil
}

func routes(svc mediastore.Service, scanner *scan.Scanner, dispatcher dispatch.Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/media", api.NewMediaHandler(svc, scanner).Routes())
		r.Mount("/admin", api.NewAdminHandler(dispatcher).Routes())
	})

	return r
}
