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

	"github.com/threatengine/onboarding/internal/config"
	"github.com/threatengine/onboarding/internal/db"
	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/executor"
	"github.com/threatengine/onboarding/internal/handlers"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogFormat)

	if cfg.Env == "prod" && (cfg.JWTSecret == "" || cfg.JWTSecret == "supersecretkey") {
		log.Error("JWT_SECRET must be set in prod")
		os.Exit(1)
	}
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
	log.Info("database ready", "host", cfg.DBHost, "name", cfg.DBName)

	cipher, err := secrets.NewCipher(cfg.CredentialsKey)
	if err != nil {
		log.Error("credentials cipher", "error", err)
		os.Exit(1)
	}
	vault := secrets.NewVault(repo.NewCredentialRepo(database), cipher, log)
	engineClient := engine.NewClient(cfg.EngineURLs)
	exec := executor.New(
		repo.NewAccountRepo(database),
		repo.NewExecutionRepo(database),
		repo.NewScanResultRepo(database),
		vault, engineClient, log)

	router := handlers.NewRouter(handlers.Deps{
		DB:       database,
		Cfg:      cfg,
		Vault:    vault,
		Engine:   engineClient,
		Executor: exec,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		// manual scan triggers wait for the engine
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "port", cfg.Port, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
