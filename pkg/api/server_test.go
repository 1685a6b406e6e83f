package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentcaptcha/agentcaptcha/pkg/config"
	"github.com/agentcaptcha/agentcaptcha/pkg/oracle"
	"github.com/agentcaptcha/agentcaptcha/pkg/protocol"
	"github.com/agentcaptcha/agentcaptcha/pkg/store"
	"github.com/agentcaptcha/agentcaptcha/pkg/token"
)

// testConfig keeps the protocol fast enough for tests while leaving the rate
// limiter effectively open.
func testConfig() config.Config {
	return config.Config{
		JWTSecret:           "test-secret",
		PowDifficulty:       2,
		PowTimeout:          time.Second,
		DecisionRounds:      10,
		DecisionTimeout:     1500 * time.Millisecond,
		DecisionCVThreshold: 0.8,
		RateLimitRequests:   1000,
		RateLimitWindow:     time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *store.MemoryStore, *token.Signer) {
	t.Helper()
	st := store.NewMemoryStore()
	signer := token.NewSigner(cfg.JWTSecret)
	verifier := protocol.NewVerifier(st, oracle.NewStatic(), signer, protocol.OptionsFromConfig(cfg))
	return NewServer(cfg, st, verifier, signer), st, signer
}

// doGET serves one request through the full middleware chain.
func doGET(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
