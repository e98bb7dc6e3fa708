package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crossgrid/orchestrator/internal/api"
	"github.com/crossgrid/orchestrator/internal/config"
	"github.com/crossgrid/orchestrator/internal/correlation"
	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/ingest"
	"github.com/crossgrid/orchestrator/internal/orchestrator"
	"github.com/crossgrid/orchestrator/internal/reconcile"
	"github.com/crossgrid/orchestrator/internal/store"
	"github.com/crossgrid/orchestrator/internal/store/postgres"
	"github.com/crossgrid/orchestrator/internal/validate"
	"github.com/crossgrid/orchestrator/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting integration orchestrator",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	var requestStore store.RequestStore
	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		requestStore = postgres.NewRequestRepository(db)
	} else {
		logger.Warn("database disabled; running on the in-memory store")
		requestStore = store.NewMemoryStore()
	}

	gate := validate.NewGate(requestStore)
	registry := correlation.NewRegistry(requestStore)
	dispatcher := dispatch.NewDispatcher(logger)
	reconciler := reconcile.NewReconciler(dispatcher, logger)

	orch := orchestrator.New(
		requestStore,
		gate,
		registry,
		dispatcher,
		reconciler,
		orchestrator.Options{
			SweepConcurrency: cfg.Sweep.Concurrency,
			SweepBatchSize:   cfg.Sweep.BatchSize,
			InFlightTTL:      cfg.Sweep.InFlightTTL,
		},
		logger,
	)

	ingestor := ingest.NewIngestor(requestStore, orch, logger)

	targets := cfg.Targets.Dispatch()
	source := ingest.SourceConfig{
		BaseURL:      cfg.Source.BaseURL,
		FetchTimeout: cfg.Source.FetchTimeout,
	}

	router := api.NewAPI(orch, ingestor, targets, source, logger).Router()

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweeper := worker.NewSweeper(orch, targets, cfg.Worker.SweepInterval, logger)
	poller := worker.NewPoller(
		orch,
		requestStore,
		targets,
		cfg.Worker.ReconcileInterval,
		cfg.Worker.BatchSize,
		cfg.Sweep.InFlightTTL,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go sweeper.Start(workerCtx)
	go poller.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
