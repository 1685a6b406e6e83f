// AgentCaptcha verification server — drives the four-stage decision-proof
// protocol over WebSocket and exposes token and session introspection.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentcaptcha/agentcaptcha/pkg/api"
	"github.com/agentcaptcha/agentcaptcha/pkg/config"
	"github.com/agentcaptcha/agentcaptcha/pkg/database"
	"github.com/agentcaptcha/agentcaptcha/pkg/oracle"
	"github.com/agentcaptcha/agentcaptcha/pkg/protocol"
	"github.com/agentcaptcha/agentcaptcha/pkg/store"
	"github.com/agentcaptcha/agentcaptcha/pkg/token"
	"github.com/agentcaptcha/agentcaptcha/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting AgentCaptcha",
		"version", version.Full(),
		"http_port", httpPort,
		"mock_mode", cfg.MockMode(),
		"pow_difficulty", cfg.PowDifficulty,
		"decision_rounds", cfg.DecisionRounds)

	ctx := context.Background()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	dbHealth, err := database.Health(ctx, dbClient.DB())
	if err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database",
		"response_time_ms", dbHealth.ResponseTime)

	st := store.NewPostgresStore(dbClient.DB())

	var orc oracle.Oracle
	if cfg.MockMode() {
		orc = oracle.NewStatic()
		slog.Info("Challenge oracle: static bank (mock mode)")
	} else {
		orc = oracle.NewClaude(cfg.AnthropicAPIKey)
		slog.Info("Challenge oracle: Claude API")
	}

	signer := token.NewSigner(cfg.JWTSecret)
	verifier := protocol.NewVerifier(st, orc, signer, protocol.OptionsFromConfig(cfg))
	httpServer := api.NewServer(cfg, st, verifier, signer)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
