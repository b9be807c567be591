// Package main is the standalone queue worker binary. It runs delivery and
// retry passes against the shared database without serving any HTTP traffic,
// for deployments that scale the worker independently of the API.
//
// Realtime push for in-app deliveries only reaches websocket connections
// held by this process; a worker-only process has none, so in-app jobs
// persist their inbox row and recipients catch up on next fetch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"gatherly/internal/config"
	"gatherly/internal/db"
	"gatherly/internal/external"
	"gatherly/internal/notifications/dispatch"
	"gatherly/internal/notifications/preferences"
	"gatherly/internal/notifications/scheduler"
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

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	appLogger := slogLogger{logger}

	logger.Info("gatherly queue worker starting",
		"environment", cfg.Environment,
		"batch_size", cfg.Worker.BatchSize,
		"poll_interval", cfg.Worker.PollInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	queueRepo := db.NewQueueRepository(pool)
	logRepo := db.NewLogRepository(pool)
	userRepo := db.NewUserRepository(pool)
	reminderRepo := db.NewReminderRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)

	// The scheduler here exists to advance reminder status and recurrence
	// when jobs finish; its HTTP-facing operations are never reached.
	resolver := preferences.NewResolver(prefRepo, appLogger)
	schedulerSvc := scheduler.NewService(scheduler.ServiceConfig{
		Reminders: reminderRepo,
		Queue:     queueRepo,
		Directory: userRepo,
		Prefs:     resolver,
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

	err = queueWorker.Run(ctx, cfg.Worker.PollInterval, cfg.Worker.RetrySweep)
	logger.Info("queue worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// slogLogger adapts *slog.Logger to types.Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) With(args ...any) types.Logger { return slogLogger{s.l.With(args...)} }
