package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/backend"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/config"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/forwarder"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/hub"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/logging"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/policy"
	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logging.NewWithComponent(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stdout,
	}, "ingress")

	logger.Info().
		Int("port", cfg.HTTPPort).
		Str("backend_url", cfg.BackendURL).
		Int64("max_upload_bytes", cfg.MaxUploadBytes).
		Int64("max_file_bytes", cfg.MaxFileBytes).
		Msg("starting ingress service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize exchange log
	exchangeStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open exchange log")
	}
	defer exchangeStore.Close()

	// Initialize upload policy
	module, err := policy.LoadModule(cfg.PolicyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load upload policy")
	}
	policyEngine, err := policy.NewEngine(ctx, module)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile upload policy")
	}

	// Initialize hub
	connectionHub := hub.NewHub(logger.With().Str("component", "hub").Logger())
	go connectionHub.Run(ctx)

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	server := forwarder.NewServer(cfg, backendClient, exchangeStore, policyEngine, connectionHub, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	logger.Info().Int("port", cfg.HTTPPort).Msg("ingress listening")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down ingress")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to shutdown HTTP server gracefully")
	}

	logger.Info().Msg("ingress stopped")
}
