package consistency

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowAt(t *testing.T, ts float64, stage1 float64) models.SessionRow {
	t.Helper()
	timings, err := json.Marshal(map[string]float64{"stage1": stage1})
	require.NoError(t, err)
	return models.SessionRow{AgentID: "agent-1", Timestamp: ts, Timings: string(timings), StageReached: 4, Passed: true}
}

func TestAnalyze_SingleSession(t *testing.T) {
	result := Analyze([]models.SessionRow{rowAt(t, 1000, 0.05)})
	assert.True(t, result.Consistent)
	assert.Equal(t, "insufficient_intervals", result.Reason)
}

func TestAnalyze_ConsistentAgent(t *testing.T) {
	// Sessions spread around the clock with stable PoW solve times.
	var rows []models.SessionRow
	for i := 0; i < 12; i++ {
		ts := float64(i)*7200 + float64(i)*86400 // walks through hours of day
		rows = append(rows, rowAt(t, ts, 0.05))
	}

	result := Analyze(rows)
	assert.True(t, result.Consistent)
	assert.Equal(t, "ok", result.Reason)
	assert.Equal(t, float64(12), result.Stats["session_count"])
	assert.InDelta(t, 0.0, result.Stats["stage1_timing_cv"], 1e-9)
	assert.GreaterOrEqual(t, result.Stats["hour_std"], 3.0)
}

func TestAnalyze_Stage1VarianceGate(t *testing.T) {
	t.Run("exactly three timings are enough to gate", func(t *testing.T) {
		rows := []models.SessionRow{
			rowAt(t, 0, 0.01),
			rowAt(t, 30000, 1.5),
			rowAt(t, 60000, 0.02),
		}
		result := Analyze(rows)
		assert.False(t, result.Consistent)
		assert.Contains(t, result.Reason, "stage1_timing_cv=")
		assert.Contains(t, result.Reason, "human-like variance")
		assert.Greater(t, result.Stats["stage1_timing_cv"], 0.6)
	})

	t.Run("two timings are not gated", func(t *testing.T) {
		rows := []models.SessionRow{
			rowAt(t, 0, 0.01),
			rowAt(t, 30000, 1.5),
			{AgentID: "agent-1", Timestamp: 60000, Timings: "{}"},
		}
		result := Analyze(rows)
		assert.True(t, result.Consistent)
		_, hasCV := result.Stats["stage1_timing_cv"]
		assert.False(t, hasCV)
	})

	t.Run("malformed timings are skipped", func(t *testing.T) {
		rows := []models.SessionRow{
			rowAt(t, 0, 0.05),
			{AgentID: "agent-1", Timestamp: 30000, Timings: "not-json"},
			rowAt(t, 60000, 0.05),
		}
		result := Analyze(rows)
		assert.True(t, result.Consistent)
	})
}

func TestAnalyze_HourClusteringGate(t *testing.T) {
	t.Run("ten sessions within two hours reject", func(t *testing.T) {
		var rows []models.SessionRow
		for i := 0; i < 10; i++ {
			// All sessions land between 14:00 and 16:00 on successive days.
			ts := float64(i)*86400 + 14*3600 + float64(i)*600
			rows = append(rows, rowAt(t, ts, 0.05))
		}
		result := Analyze(rows)
		assert.False(t, result.Consistent)
		assert.Contains(t, result.Reason, "hour_std=")
		assert.Contains(t, result.Reason, "sessions clustered in short window")
		assert.Less(t, result.Stats["hour_std"], 3.0)
	})

	t.Run("nine clustered sessions are not gated", func(t *testing.T) {
		var rows []models.SessionRow
		for i := 0; i < 9; i++ {
			ts := float64(i)*86400 + 14*3600 + float64(i)*600
			rows = append(rows, rowAt(t, ts, 0.05))
		}
		result := Analyze(rows)
		assert.True(t, result.Consistent)
	})
}

func TestAnalyze_IntervalStats(t *testing.T) {
	rows := []models.SessionRow{
		rowAt(t, 0, 0.05),
		rowAt(t, 100, 0.05),
		rowAt(t, 200, 0.05),
	}
	result := Analyze(rows)
	require.True(t, result.Consistent)
	assert.InDelta(t, 100.0, result.Stats["interval_mean_s"], 1e-9)
	assert.InDelta(t, 0.0, result.Stats["interval_cv"], 1e-9)
}

func TestPopStd(t *testing.T) {
	cases := []struct {
		xs   []float64
		want float64
	}{
		{[]float64{}, 0},
		{[]float64{5}, 0},
		{[]float64{1, 1, 1}, 0},
		{[]float64{2, 4, 4, 4, 5, 5, 7, 9}, 2}, // classic population-std example
	}
	for i, tc := range cases {
		assert.InDelta(t, tc.want, popStd(tc.xs), 1e-9, fmt.Sprintf("case %d", i))
	}
}
