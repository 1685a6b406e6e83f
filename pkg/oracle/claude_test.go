package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claudeTextResponse(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
	require.NoError(t, err)
	return body
}

func TestClaudeGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a well-formed challenge", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
			_, _ = w.Write(claudeTextResponse(t,
				`{"prompt":"Which shard?","options":["A: 1","B: 2"],"correct_option":"B","rationale":"because"}`))
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		ch := c.Generate(ctx, Context{AgentID: "a"}, 3, "abcd")
		assert.Equal(t, "Which shard?", ch.Prompt)
		assert.Equal(t, "B", ch.CorrectOption)
		assert.Equal(t, 3, ch.RoundNum)
		assert.Equal(t, "resource_allocation", ch.Scenario)
	})

	t.Run("strips markdown fences before parsing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(claudeTextResponse(t,
				"```json\n{\"prompt\":\"p\",\"options\":[\"A: x\"],\"correct_option\":\"A\",\"rationale\":\"r\"}\n```"))
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		ch := c.Generate(ctx, Context{}, 1, "")
		assert.Equal(t, "p", ch.Prompt)
	})

	t.Run("falls back to static bank on HTTP error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		ch := c.Generate(ctx, Context{}, 1, "")
		assert.Equal(t, staticBank[0].Prompt, ch.Prompt)
		assert.Equal(t, 1, ch.RoundNum)
	})

	t.Run("falls back on unparseable body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(claudeTextResponse(t, "sorry, I cannot produce JSON today"))
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		ch := c.Generate(ctx, Context{}, 2, "")
		assert.Equal(t, staticBank[1].Prompt, ch.Prompt)
	})
}

func TestClaudeValidate(t *testing.T) {
	ctx := context.Background()
	ch := models.Challenge{Prompt: "p", Options: []string{"A: x", "B: y"}, CorrectOption: "B"}

	t.Run("accepts model verdict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(claudeTextResponse(t, `{"correct": true}`))
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		// Letter match alone would reject "the second one"; the model accepts it.
		assert.True(t, c.Validate(ctx, ch, "the second one"))
	})

	t.Run("falls back to letter match on failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClaude("sk-test", WithBaseURL(srv.URL))
		assert.True(t, c.Validate(ctx, ch, "B"))
		assert.False(t, c.Validate(ctx, ch, "A"))
	})
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripFences(tc.in))
	}
}
