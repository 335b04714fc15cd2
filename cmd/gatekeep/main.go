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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	gkhttp "github.com/attestia/gatekeep/internal/adapter/http"
	gknats "github.com/attestia/gatekeep/internal/adapter/nats"
	gkotel "github.com/attestia/gatekeep/internal/adapter/otel"
	"github.com/attestia/gatekeep/internal/adapter/postgres"
	"github.com/attestia/gatekeep/internal/config"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/logger"
	"github.com/attestia/gatekeep/internal/port/notifier"
	"github.com/attestia/gatekeep/internal/port/toolhandler"
	"github.com/attestia/gatekeep/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"profiles_dir", cfg.Profiles.Dir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := gkotel.Setup(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := gkotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	var events notifier.Notifier
	if cfg.NATS.URL != "" {
		queue, err := gknats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		events = queue
	} else {
		slog.Info("nats disabled, no url configured")
	}

	// --- Profiles ---
	registry, err := agent.LoadFromDirectory(cfg.Profiles.Dir)
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	slog.Info("profiles loaded", "agents", registry.IDs())

	// --- Services ---
	ledger := postgres.NewLedger(pool)
	auditLog := postgres.NewAuditLog(pool)
	store := postgres.NewDecisionStore(pool)

	escalator := service.NewEscalator(auditLog, events, log, metrics)
	reviewSvc := service.NewReviewService(ledger, events, log)
	decisionSvc := service.NewDecisionService(store, ledger, auditLog, escalator, log)

	handlers := toolhandler.NewRegistry()
	if err := service.RegisterBuiltinHandlers(handlers, decisionSvc, reviewSvc, log); err != nil {
		return fmt.Errorf("tool handlers: %w", err)
	}
	if err := handlers.ValidateAgainst(registry.Profiles()); err != nil {
		return fmt.Errorf("tool handlers: %w", err)
	}

	dispatcher := service.NewDispatcher(handlers, log, metrics)
	orchestrator := service.NewOrchestrator(registry, ledger, auditLog, dispatcher, events, log, metrics)

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(gkhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(gkhttp.RequestID)
	r.Use(gkhttp.Logger)
	r.Use(gkotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	gkhttp.MountRoutes(r, gkhttp.NewHandlers(orchestrator, reviewSvc, decisionSvc))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
