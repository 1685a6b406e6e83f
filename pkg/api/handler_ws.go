package api

import (
	"log/slog"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/agentcaptcha/agentcaptcha/pkg/protocol"
)

// wsVerifyHandler handles GET /ws/verify: upgrades to WebSocket and runs the
// full verification protocol on the connection. The agent_id query parameter
// is optional; absent, a fresh UUID identifies the session.
func (s *Server) wsVerifyHandler(c *echo.Context) error {
	agentID := c.QueryParam("agent_id")

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin checks are deferred to the deployment's ingress; agents are
		// not browsers.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	wsc := newWSConn(ctx, conn)

	result, err := s.verifier.Run(ctx, wsc, agentID)
	if err != nil {
		// A mid-protocol disconnect is normal peer behavior; anything else
		// gets a best-effort error frame before teardown.
		slog.Info("Verification aborted", "agent_id", agentID, "error", err)
		_ = wsc.Send(ctx, protocol.ErrorFrame{Type: "error", Message: "verification aborted"})
		_ = conn.Close(websocket.StatusInternalError, "")
		return nil
	}

	slog.Info("Verification complete", "agent_id", agentID, "verdict", result.Verdict)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	return nil
}
