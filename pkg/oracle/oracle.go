// Package oracle produces and grades the Stage 2 decision challenges.
//
// Two interchangeable implementations exist: a static bank used when no API
// key is configured (mock mode), and a Claude-backed generator that falls
// back to the static bank on any remote failure. The choice is made once at
// startup; mid-call fallback is internal to the Claude implementation, so
// neither Generate nor Validate can fail a round.
package oracle

import (
	"context"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// Scenarios is the fixed tag set; round k draws Scenarios[(k-1) mod len].
var Scenarios = []string{
	"market_arbitrage", "debug_incident", "resource_allocation",
	"risk_assessment", "data_pipeline_failure", "api_rate_limiting",
	"cost_optimisation", "service_degradation", "security_triage",
	"capacity_planning",
}

// Context carries the session state an oracle may condition on.
type Context struct {
	AgentID string                `json:"agent_id"`
	History []models.RoundSummary `json:"history"`
}

// Oracle generates one challenge per round and grades answers.
type Oracle interface {
	// Generate produces the challenge for roundNum (1-based). prevAnswerHash
	// is "" for the first round, else the first 16 hex chars of the SHA-256
	// of the previous answer.
	Generate(ctx context.Context, octx Context, roundNum int, prevAnswerHash string) models.Challenge

	// Validate reports whether answer is correct for the challenge.
	Validate(ctx context.Context, challenge models.Challenge, answer string) bool
}

func scenarioFor(roundNum int) string {
	return Scenarios[(roundNum-1)%len(Scenarios)]
}
