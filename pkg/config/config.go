// Package config loads service configuration from environment variables.
//
// A .env file is loaded by main before Load is called (via godotenv), so
// every knob here can be set either in the process environment or in the
// deployment's .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings for the DPP verifier.
type Config struct {
	// JWTSecret signs verification tokens (HS256). The default is for
	// development only; deployments must override it.
	JWTSecret string

	// AnthropicAPIKey enables the remote challenge oracle. When empty the
	// static challenge bank is used and Stage 2 frames carry mock_correct.
	AnthropicAPIKey string

	// PowDifficulty is the number of leading zero hex characters required of
	// the Stage 1 proof-of-work digest.
	PowDifficulty int

	// PowTimeout bounds how long the peer has to return a PoW solution.
	PowTimeout time.Duration

	// DecisionRounds is the number of Stage 2 challenge rounds.
	DecisionRounds int

	// DecisionTimeout bounds each Stage 2 round's answer.
	DecisionTimeout time.Duration

	// DecisionCVThreshold is the Stage 2 timing coefficient-of-variation
	// reject threshold. The default (0.8) accommodates agents calling
	// external APIs with moderate network jitter; tighten it per deployment
	// when peers answer from local compute.
	DecisionCVThreshold float64

	// RateLimitRequests / RateLimitWindow configure the per-IP sliding
	// window in front of the HTTP surface. WebSocket upgrades count.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// MockMode reports whether the static challenge bank is in use.
// Derived: true when no Anthropic API key is configured.
func (c Config) MockMode() bool {
	return c.AnthropicAPIKey == ""
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		JWTSecret:       getEnvOrDefault("JWT_SECRET", "change-me"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
	}

	var err error
	if cfg.PowDifficulty, err = intEnv("POW_DIFFICULTY", 4); err != nil {
		return Config{}, err
	}
	powTimeoutMS, err := intEnv("POW_TIMEOUT_MS", 200)
	if err != nil {
		return Config{}, err
	}
	cfg.PowTimeout = time.Duration(powTimeoutMS) * time.Millisecond

	if cfg.DecisionRounds, err = intEnv("DECISION_ROUNDS", 10); err != nil {
		return Config{}, err
	}
	decisionTimeoutS, err := floatEnv("DECISION_TIMEOUT_S", 1.5)
	if err != nil {
		return Config{}, err
	}
	cfg.DecisionTimeout = time.Duration(decisionTimeoutS * float64(time.Second))

	if cfg.DecisionCVThreshold, err = floatEnv("DECISION_CV_THRESHOLD", 0.8); err != nil {
		return Config{}, err
	}

	if cfg.RateLimitRequests, err = intEnv("RATE_LIMIT_REQUESTS", 30); err != nil {
		return Config{}, err
	}
	windowS, err := intEnv("RATE_LIMIT_WINDOW_S", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitWindow = time.Duration(windowS) * time.Second

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
