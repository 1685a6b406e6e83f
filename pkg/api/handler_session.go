package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// listSessionsHandler handles GET /sessions/:agent_id.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	agentID := c.Param("agent_id")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}

	sessions, err := s.store.SessionsByAgent(c.Request().Context(), agentID)
	if err != nil {
		return mapStoreError(err)
	}
	if len(sessions) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no sessions for agent")
	}

	return c.JSON(http.StatusOK, &SessionListResponse{
		AgentID:  agentID,
		Count:    len(sessions),
		Sessions: sessions,
	})
}

// sessionHistoryHandler handles GET /sessions/:agent_id/history/:session_id.
// The session must belong to the named agent; ids under other agents 404.
func (s *Server) sessionHistoryHandler(c *echo.Context) error {
	agentID := c.Param("agent_id")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "session id must be an integer")
	}

	sessions, err := s.store.SessionsByAgent(c.Request().Context(), agentID)
	if err != nil {
		return mapStoreError(err)
	}
	owned := false
	for _, row := range sessions {
		if row.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	rounds, err := s.store.ChallengeHistory(c.Request().Context(), sessionID)
	if err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, &SessionHistoryResponse{
		SessionID: sessionID,
		Rounds:    rounds,
	})
}
