package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"astro-report-backend/config"
	"astro-report-backend/internal/api"
	"astro-report-backend/internal/astro"
	"astro-report-backend/internal/db"
	"astro-report-backend/internal/generation"
	"astro-report-backend/internal/llm"
	"astro-report-backend/internal/notification"
	"astro-report-backend/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatalf("failed to load configuration from %s", configPath)
	}
	logrus.Infof("configuration loaded from %s", configPath)

	if cfg.LLM.APIKey == "" {
		logrus.Fatal("llm api key must be configured")
	}
	if cfg.Chart.URL == "" {
		logrus.Fatal("chart service url must be configured")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	logrus.Info("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	var mailer notification.Mailer
	if cfg.Email.APIKey != "" {
		mailer = notification.NewResendMailer(&cfg.Email)
	} else {
		logrus.Warn("email api key not configured, completion emails disabled")
	}
	workers := notification.NewWorkerPool(cfg, appStore, mailer)
	workers.Start(ctx)
	logrus.Infof("notification worker pool started (size %d)", cfg.WorkerPool.Size)

	controller := generation.NewController(
		&cfg.Generation,
		appStore,
		astro.NewClient(&cfg.Chart),
		llm.NewClient(&cfg.LLM),
		workers,
	)

	router := api.NewRouter(cfg, appStore, controller)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logrus.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("HTTP server shutdown")
	}

	logrus.Info("server gracefully stopped")
}
