package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.InsertSession(ctx, "agent-1", 0, 1000.5, map[string]any{}, false, StrPtr(RejectInProgress))
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	t.Run("pre-inserted row is in_progress", func(t *testing.T) {
		row, ok := s.Session(id)
		require.True(t, ok)
		assert.Equal(t, 0, row.StageReached)
		assert.False(t, row.Passed)
		require.NotNil(t, row.RejectReason)
		assert.Equal(t, RejectInProgress, *row.RejectReason)
	})

	t.Run("terminal update finalizes row", func(t *testing.T) {
		timings := map[string]any{"stage1": 0.05, "stage2": 1.2}
		require.NoError(t, s.UpdateSession(ctx, id, 4, timings, true, nil))

		row, ok := s.Session(id)
		require.True(t, ok)
		assert.Equal(t, 4, row.StageReached)
		assert.True(t, row.Passed)
		assert.Nil(t, row.RejectReason)

		var decoded map[string]float64
		require.NoError(t, json.Unmarshal([]byte(row.Timings), &decoded))
		assert.InDelta(t, 0.05, decoded["stage1"], 1e-9)
	})

	t.Run("update of missing row returns ErrNotFound", func(t *testing.T) {
		err := s.UpdateSession(ctx, 9999, 1, nil, false, StrPtr("stage1_timeout"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore_SessionsByAgentOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Insert out of timestamp order.
	for _, ts := range []float64{300, 100, 200} {
		_, err := s.InsertSession(ctx, "agent-1", 4, ts, nil, true, nil)
		require.NoError(t, err)
	}
	_, err := s.InsertSession(ctx, "agent-2", 0, 50, nil, false, StrPtr("stage1_timeout"))
	require.NoError(t, err)

	sessions, err := s.SessionsByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, []float64{100, 200, 300}, []float64{sessions[0].Timestamp, sessions[1].Timestamp, sessions[2].Timestamp})

	none, err := s.SessionsByAgent(ctx, "agent-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_ChallengeHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.InsertSession(ctx, "agent-1", 0, 100, nil, false, StrPtr(RejectInProgress))
	require.NoError(t, err)

	t.Run("round rows require an existing session", func(t *testing.T) {
		err := s.InsertChallengeRound(ctx, 9999, 1, "q", "A", true, 0.1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	for round := 3; round >= 1; round-- {
		require.NoError(t, s.InsertChallengeRound(ctx, id, round, fmt.Sprintf("prompt %d", round), "A", round != 2, 0.1))
	}

	history, err := s.ChallengeHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, row := range history {
		assert.Equal(t, i+1, row.RoundNum)
		assert.Equal(t, id, row.SessionID)
	}
	assert.False(t, history[1].Correct)
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			agentID := fmt.Sprintf("agent-%d", n%4)
			id, err := s.InsertSession(ctx, agentID, 0, float64(n), nil, false, StrPtr(RejectInProgress))
			assert.NoError(t, err)
			assert.NoError(t, s.InsertChallengeRound(ctx, id, 1, "p", "A", true, 0.1))
			assert.NoError(t, s.UpdateSession(ctx, id, 1, map[string]any{"stage1": 0.01}, false, StrPtr("stage2_timeout_round1")))
		}(i)
	}
	wg.Wait()

	sessions, err := s.SessionsByAgent(ctx, "agent-0")
	require.NoError(t, err)
	assert.Len(t, sessions, 5)
}
