package api

import (
	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/agentcaptcha/agentcaptcha/pkg/token"
)

// StatusResponse is the GET /status body.
type StatusResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	MockMode bool   `json:"mock_mode"`
}

// VerifyResponse is the GET /verify body on a valid token.
type VerifyResponse struct {
	Valid   bool          `json:"valid"`
	Payload *token.Claims `json:"payload"`
}

// SessionListResponse is the GET /sessions/:agent_id body.
type SessionListResponse struct {
	AgentID  string              `json:"agent_id"`
	Count    int                 `json:"count"`
	Sessions []models.SessionRow `json:"sessions"`
}

// SessionHistoryResponse is the GET /sessions/:agent_id/history/:session_id body.
type SessionHistoryResponse struct {
	SessionID int64                      `json:"session_id"`
	Rounds    []models.ChallengeRoundRow `json:"rounds"`
}
