// Package main is the entry point for the Gatherly notification API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the delivery
// pipeline (repositories, preference resolver, scheduler, dispatcher, queue
// worker, realtime manager), and serves the HTTP API. The queue worker and
// the websocket ping sweep run as background goroutines in the same process;
// the standalone queue-worker binary exists for deployments that want
// delivery decoupled from the API.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"gatherly/internal/api/handlers"
	"gatherly/internal/config"
	"gatherly/internal/core"
	"gatherly/internal/db"
	"gatherly/internal/external"
	"gatherly/internal/notifications/dispatch"
	"gatherly/internal/notifications/preferences"
	"gatherly/internal/notifications/scheduler"
	"gatherly/internal/notifications/templates"
	"gatherly/internal/notifications/worker"
	"gatherly/internal/realtime"
	"gatherly/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	appLogger := slogLogger{logger}

	logger.Info("gatherly notification API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	reminderRepo := db.NewReminderRepository(pool)
	queueRepo := db.NewQueueRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)
	logRepo := db.NewLogRepository(pool)
	userRepo := db.NewUserRepository(pool)
	templateRepo := db.NewTemplateRepository(pool)
	ruleRepo := db.NewAutomationRuleRepository(pool)

	// Domain services.
	resolver := preferences.NewResolver(prefRepo, appLogger)
	templateSvc := templates.NewService(templateRepo, ruleRepo, appLogger)
	schedulerSvc := scheduler.NewService(scheduler.ServiceConfig{
		Reminders: reminderRepo,
		Queue:     queueRepo,
		Directory: userRepo,
		Prefs:     resolver,
		Templates: templateSvc,
		Logger:    appLogger,
	})

	manager := realtime.NewManager(types.RealClock{}, appLogger)

	clients := external.NewClientRegistry(cfg, logger)
	dispatcher := dispatch.NewDispatcher(appLogger,
		dispatch.NewEmailSender(userRepo, clients.Email, appLogger),
		dispatch.NewSMSSender(userRepo, clients.SMS, appLogger),
		dispatch.NewPushSender(userRepo, clients.Push, appLogger),
		dispatch.NewInAppSender(manager, logRepo, nil, appLogger),
	)

	queueWorker := worker.New(worker.Config{
		Queue:      queueRepo,
		Dispatcher: dispatcher,
		Logs:       logRepo,
		Reminders:  schedulerSvc,
		Logger:     appLogger,
		BatchSize:  cfg.Worker.BatchSize,
	})

	// HTTP chassis and handlers.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	validator := core.NewValidator(logger)

	reminderHandler := handlers.NewReminderHandler(schedulerSvc, validator)
	templateHandler := handlers.NewTemplateHandler(templateSvc, validator)
	preferenceHandler := handlers.NewPreferenceHandler(resolver, validator)
	inboxHandler := handlers.NewInboxHandler(logRepo)
	queueHandler := handlers.NewQueueHandler(queueWorker, queueRepo)
	deviceHandler := handlers.NewDeviceHandler(userRepo, validator)
	realtimeHandler := handlers.NewRealtimeHandler(manager, cfg.Realtime.AllowedOrigins, logger)

	srv.Router().Route("/v1", func(r chi.Router) {
		r.Use(srv.RequireUser)
		reminderHandler.RegisterRoutes(r)
		templateHandler.RegisterRoutes(r)
		preferenceHandler.RegisterRoutes(r)
		inboxHandler.RegisterRoutes(r)
		queueHandler.RegisterRoutes(r)
		deviceHandler.RegisterRoutes(r)
		realtimeHandler.RegisterRoutes(r)
	})
	srv.Router().Get("/health", srv.HealthHandler(pool))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Long write timeout: /v1/ws connections outlive request timeouts.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return queueWorker.Run(gctx, cfg.Worker.PollInterval, cfg.Worker.RetrySweep)
	})

	g.Go(func() error {
		manager.RunPingSweep(gctx, cfg.Realtime.PingInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newPool creates the pgx connection pool with the configured tuning.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newLogger creates a structured JSON logger for the given level name.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogLogger adapts *slog.Logger to types.Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) With(args ...any) types.Logger { return slogLogger{s.l.With(args...)} }
