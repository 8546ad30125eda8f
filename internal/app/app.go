// Package app wires the QueryFlow routing engine together: config,
// logging, storage, the LLM client, the reconciler and the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"queryflow/internal/config"
	"queryflow/internal/httpx"
	"queryflow/internal/llm"
	"queryflow/internal/metrics"
	"queryflow/internal/reconcile"
	"queryflow/internal/server"
	"queryflow/internal/storage"
	"queryflow/internal/storage/memory"
	"queryflow/internal/storage/postgres"
	"queryflow/internal/storage/sqlite"
)

func Main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	logger := newLogger(cfg)

	timeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	logger.WithField("timeout", timeout.String()).Debug("external HTTP client configured")

	store, err := openStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("opening ticket store")
	}
	defer store.Close()

	gateway := llm.NewGateway(llm.GatewayConfig{
		Provider: cfg.LLMProvider,
		APIKey:   providerAPIKey(cfg),
		Model:    cfg.LLMModel,
		BaseURL:  cfg.OpenAIBaseURL,
	}, logger)
	client := llm.NewClient(gateway, logger, cfg.ClassifyTemperature, cfg.DemoTemperature)

	m := metrics.New(prometheus.DefaultRegisterer)
	reconciler := reconcile.New(client, store, logger, m)

	if err := reconciler.StartDemoScheduler(client, cfg.DemoSchedule); err != nil {
		logger.WithError(err).Fatal("starting demo scheduler")
	}

	handler := server.NewHandler(reconciler, client, store, logger,
		time.Duration(cfg.DemoIntervalSeconds)*time.Second)
	srv := server.New(cfg.ListenAddr, handler)

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     cfg.ListenAddr,
			"provider": cfg.LLMProvider,
			"model":    gateway.Model(),
			"storage":  cfg.Storage,
		}).Info("queryflow listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func openStore(cfg config.Config) (storage.TicketStore, error) {
	switch cfg.Storage {
	case "postgres":
		return postgres.Open(context.Background(), cfg.PostgresDSN)
	case "memory":
		return memory.NewStore(), nil
	default:
		return sqlite.Open(cfg.DBPath)
	}
}

func providerAPIKey(cfg config.Config) string {
	if cfg.AnthropicConfigured() {
		return cfg.AnthropicAPIKey
	}
	return cfg.OpenAIAPIKey
}
