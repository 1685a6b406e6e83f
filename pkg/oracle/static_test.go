package oracle

import (
	"context"
	"testing"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGenerate(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()

	t.Run("bank has at least 12 challenges", func(t *testing.T) {
		assert.GreaterOrEqual(t, len(staticBank), 12)
	})

	t.Run("round metadata is filled in", func(t *testing.T) {
		ch := s.Generate(ctx, Context{AgentID: "a"}, 1, "")
		assert.Equal(t, 1, ch.RoundNum)
		assert.Equal(t, "market_arbitrage", ch.Scenario)
		assert.NotEmpty(t, ch.Prompt)
		assert.NotEmpty(t, ch.CorrectOption)
		require.NotEmpty(t, ch.Options)
		// Labels are the first character of each option string.
		assert.Equal(t, "A", ch.Options[0][:1])
	})

	t.Run("scenario cycles through the fixed tag set", func(t *testing.T) {
		assert.Equal(t, "market_arbitrage", s.Generate(ctx, Context{}, 11, "").Scenario)
		assert.Equal(t, "capacity_planning", s.Generate(ctx, Context{}, 10, "").Scenario)
	})

	t.Run("bank wraps around by round number", func(t *testing.T) {
		first := s.Generate(ctx, Context{}, 1, "")
		wrapped := s.Generate(ctx, Context{}, 1+len(staticBank), "")
		assert.Equal(t, first.Prompt, wrapped.Prompt)
	})
}

func TestStaticValidate(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()
	ch := models.Challenge{
		Prompt:        "pick one",
		Options:       []string{"A: yes", "B: no"},
		CorrectOption: "A",
	}

	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"bare letter", "A", true},
		{"lowercase", "a", true},
		{"letter with colon and text", "A: yes", true},
		{"surrounding whitespace", "  a  ", true},
		{"wrong letter", "B", false},
		{"empty answer", "", false},
		{"unrelated text", "definitely", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Validate(ctx, ch, tc.answer))
		})
	}

	t.Run("empty options still matches by leading letter", func(t *testing.T) {
		bare := models.Challenge{Prompt: "p", CorrectOption: "C"}
		assert.True(t, s.Validate(ctx, bare, "c: sounds right"))
		assert.False(t, s.Validate(ctx, bare, "A"))
	})
}
