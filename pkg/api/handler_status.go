package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentcaptcha/agentcaptcha/pkg/token"
	"github.com/agentcaptcha/agentcaptcha/pkg/version"
)

// statusHandler handles GET /status.
func (s *Server) statusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &StatusResponse{
		Status:   "ok",
		Service:  version.ServiceName,
		MockMode: s.cfg.MockMode(),
	})
}

// verifyTokenHandler handles GET /verify. It decodes a previously issued
// token and returns its claims; expired and invalid tokens both map to 401
// with distinct details.
func (s *Server) verifyTokenHandler(c *echo.Context) error {
	tok := c.QueryParam("token")
	if tok == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token query parameter is required")
	}

	claims, err := s.signer.Verify(tok)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	return c.JSON(http.StatusOK, &VerifyResponse{Valid: true, Payload: claims})
}
