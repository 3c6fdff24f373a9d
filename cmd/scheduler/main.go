// The scheduler daemon polls for due scan schedules and executes them. It
// runs separately from the API so scan load never competes with request
// handling.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/threatengine/onboarding/internal/config"
	"github.com/threatengine/onboarding/internal/db"
	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/executor"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/scheduler"
	"github.com/threatengine/onboarding/internal/secrets"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogFormat)

	if cfg.CredentialsKey == "" {
		log.Error("CREDENTIALS_KEY must be set")
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)
	if err != nil {
		log.Error("database connect", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err := db.Run(dsn); err != nil {
		log.Error("migrations", "error", err)
		os.Exit(1)
	}

	cipher, err := secrets.NewCipher(cfg.CredentialsKey)
	if err != nil {
		log.Error("credentials cipher", "error", err)
		os.Exit(1)
	}
	vault := secrets.NewVault(repo.NewCredentialRepo(database), cipher, log)
	exec := executor.New(
		repo.NewAccountRepo(database),
		repo.NewExecutionRepo(database),
		repo.NewScanResultRepo(database),
		vault, engine.NewClient(cfg.EngineURLs), log)

	svc := scheduler.New(
		repo.NewScheduleRepo(database),
		exec,
		cfg.PollInterval,
		cfg.SchedulerWorkers,
		log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler", "error", err)
		os.Exit(1)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
