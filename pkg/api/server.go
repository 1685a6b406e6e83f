// Package api exposes the verification service over HTTP: the WebSocket
// verification endpoint, token introspection, and read-only session history.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentcaptcha/agentcaptcha/pkg/config"
	"github.com/agentcaptcha/agentcaptcha/pkg/protocol"
	"github.com/agentcaptcha/agentcaptcha/pkg/store"
	"github.com/agentcaptcha/agentcaptcha/pkg/token"
)

// Server is the HTTP surface of the verifier.
type Server struct {
	echo     *echo.Echo
	http     *http.Server
	cfg      config.Config
	store    store.Store
	verifier *protocol.Verifier
	signer   *token.Signer
	limiter  *rateLimiter
}

// NewServer wires routes and middleware. The rate limiter sits in front of
// every route, WebSocket upgrades included.
func NewServer(cfg config.Config, st store.Store, verifier *protocol.Verifier, signer *token.Signer) *Server {
	s := &Server{
		echo:     echo.New(),
		cfg:      cfg,
		store:    st,
		verifier: verifier,
		signer:   signer,
		limiter:  newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
	}
	s.http = &http.Server{Handler: s.echo}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(s.limiter.middleware())

	s.echo.GET("/status", s.statusHandler)
	s.echo.GET("/verify", s.verifyTokenHandler)
	s.echo.GET("/sessions/:agent_id", s.listSessionsHandler)
	s.echo.GET("/sessions/:agent_id/history/:session_id", s.sessionHistoryHandler)
	s.echo.GET("/ws/verify", s.wsVerifyHandler)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx's budget.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
