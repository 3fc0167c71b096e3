package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/supplywatch/service/alert"
	"github.com/brojonat/supplywatch/service/config"
	"github.com/brojonat/supplywatch/service/metrics"
	natspkg "github.com/brojonat/supplywatch/service/nats"
	"github.com/brojonat/supplywatch/service/server"
	"github.com/brojonat/supplywatch/service/solana"
	"github.com/brojonat/supplywatch/service/webhook"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// The RPC URL may embed an API key, so only the host is logged and used as a label.
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.RPCEndpointName(), m, logger)
	logger.Info("initialized solana RPC client", "endpoint", cfg.RPCEndpointName())

	// Initialize Telegram bot (verifies the token with getMe)
	// OUTBOUND_TIMEOUT of zero leaves the client without a timeout.
	bot, err := alert.NewTelegramBot(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, &http.Client{Timeout: cfg.OutboundTimeout})
	if err != nil {
		logger.Error("failed to initialize telegram bot", "error", err)
		os.Exit(1)
	}
	logger.Info("initialized telegram bot", "username", bot.Self.UserName)

	dispatchers := []alert.Dispatcher{
		alert.NewTelegramDispatcher(bot, cfg.TelegramChatID, cfg.ExplorerTxURL, logger),
	}

	// Initialize NATS publisher (optional)
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		dispatchers = append(dispatchers, natspkg.NewAlertDispatcher(publisher))
	} else {
		logger.Info("NATS_URL not set, alert events disabled")
	}

	filter, err := webhook.NewFilter(cfg.TransactionFilter)
	if err != nil {
		logger.Error("invalid transaction filter", "error", err)
		os.Exit(1)
	}

	evaluator := webhook.NewEvaluator(
		solanaClient,
		alert.NewFanout(m, logger, dispatchers...),
		webhook.Options{
			Wallets:         webhook.NewWalletSet(cfg.WatchedWallets),
			Threshold:       cfg.AlertThresholdPercent,
			Concurrency:     cfg.EvaluatorConcurrency,
			OutboundTimeout: cfg.OutboundTimeout,
			Filter:          filter,
		},
		m,
		logger,
	)

	if len(cfg.WatchedWallets) == 0 {
		logger.Warn("WATCHED_WALLETS is empty; webhook requests will fail until it is set")
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, evaluator, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"watched_wallets", len(cfg.WatchedWallets),
		"threshold_percent", cfg.AlertThresholdPercent.String(),
		"concurrency", cfg.EvaluatorConcurrency,
		"filter", filter.String(),
		"nats_enabled", cfg.NATSURL != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
