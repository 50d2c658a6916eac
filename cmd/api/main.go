package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/previa-finance/previa-backend/internal/api"
	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/domain/matching"
	"github.com/previa-finance/previa-backend/internal/infrastructure/config"
	"github.com/previa-finance/previa-backend/internal/infrastructure/logging"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
	"github.com/previa-finance/previa-backend/internal/ratelimit"
	"github.com/previa-finance/previa-backend/internal/webhook"
)

// Demo-data seeding and deletion share this fixed window.
const (
	demoRateWindow = time.Hour
	demoRateMax    = 5
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		port       = flag.Int("port", 0, "Override server port")
	)
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	if *configFile != "" {
		cfg = config.LoadOrEnvWithPath(*configFile)
	} else {
		cfg = config.LoadOrEnv()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.NewLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Ranking oracle. Without a key the matching endpoint degrades to 503;
	// everything else keeps working.
	var ranker reconcile.Ranker
	apiKey := cfg.GetAPIKey(cfg.OpenAI.APIKey, "PREVIA_OPENAI_API_KEY", "OPENAI_API_KEY")
	if apiKey != "" {
		client := matching.NewOpenAIClient(apiKey)
		ranker = matching.NewRanker(client, matching.Config{
			Model:          cfg.OpenAI.Model,
			Temperature:    cfg.OpenAI.Temperature,
			MaxTokens:      cfg.OpenAI.MaxTokens,
			MaxSuggestions: cfg.Matching.MaxSuggestions,
		}, logging.NewScopedLogger(cfg.Logging, "matching"))
	} else {
		logger.Warn("no oracle API key configured, matching disabled")
	}

	service := reconcile.NewService(store, ranker, reconcile.Config{
		LookbackDays:   cfg.Matching.LookbackDays,
		CandidateLimit: cfg.Matching.CandidateLimit,
	}, logging.NewScopedLogger(cfg.Logging, "reconcile"))

	var notifier *webhook.Notifier
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.MaxRetries, logging.NewScopedLogger(cfg.Logging, "webhook"))
	}

	limiter := ratelimit.NewLimiter(store, demoRateWindow, demoRateMax)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
	}, store, service, notifier, limiter, logger)

	// Run until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
