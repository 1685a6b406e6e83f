// Package consistency implements the Stage 4 cross-session statistical
// analysis: an agent's historical sessions should show machine-like timing
// regularity (low PoW-solve variance) and a round-the-clock activity pattern.
package consistency

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

const (
	// stage1CVThreshold rejects agents whose PoW solve times vary like a
	// human's. Applied once at least three samples exist.
	stage1CVThreshold = 0.6

	// hourStdThreshold rejects session histories clustered into a short
	// daily window. Applied once at least minSessionsForHourCheck exist.
	hourStdThreshold        = 3.0
	minSessionsForHourCheck = 10

	// minStage1Samples gates the stage1 timing CV check.
	minStage1Samples = 3
)

// Analyze inspects an agent's prior sessions, ordered by timestamp ascending.
func Analyze(sessions []models.SessionRow) models.ConsistencyResult {
	timestamps := make([]float64, len(sessions))
	for i, s := range sessions {
		timestamps[i] = s.Timestamp
	}

	intervals := diffs(timestamps)
	if len(intervals) == 0 {
		return models.ConsistencyResult{
			Consistent: true,
			Reason:     "insufficient_intervals",
			Stats:      map[string]float64{},
		}
	}

	intervalMean := mean(intervals)
	intervalCV := 0.0
	if intervalMean > 0 {
		intervalCV = popStd(intervals) / intervalMean
	}

	stats := map[string]float64{
		"session_count":   float64(len(sessions)),
		"interval_cv":     intervalCV,
		"interval_mean_s": intervalMean,
	}

	// Stage 1 PoW solve times, read back from each row's serialized timings.
	// Rows with missing or malformed timings are silently skipped.
	stage1Times := extractStage1Times(sessions)
	if len(stage1Times) >= minStage1Samples {
		s1CV := 0.0
		if m := mean(stage1Times); m > 0 {
			s1CV = popStd(stage1Times) / m
		}
		stats["stage1_timing_cv"] = s1CV

		if s1CV > stage1CVThreshold {
			return models.ConsistencyResult{
				Consistent: false,
				Reason:     fmt.Sprintf("stage1_timing_cv=%.3f > %.1f (human-like variance)", s1CV, stage1CVThreshold),
				Stats:      stats,
			}
		}
	}

	// Hour-of-day distribution: agents run 24/7, humans cluster.
	hours := make([]float64, len(timestamps))
	for i, ts := range timestamps {
		hours[i] = math.Mod(ts, 86400) / 3600
	}
	hourStd := popStd(hours)
	stats["hour_std"] = hourStd

	if len(sessions) >= minSessionsForHourCheck && hourStd < hourStdThreshold {
		return models.ConsistencyResult{
			Consistent: false,
			Reason:     fmt.Sprintf("hour_std=%.2f < %.1f (sessions clustered in short window)", hourStd, hourStdThreshold),
			Stats:      stats,
		}
	}

	return models.ConsistencyResult{Consistent: true, Reason: "ok", Stats: stats}
}

func extractStage1Times(sessions []models.SessionRow) []float64 {
	var times []float64
	for _, s := range sessions {
		var timings map[string]any
		if err := json.Unmarshal([]byte(s.Timings), &timings); err != nil {
			continue
		}
		if v, ok := timings["stage1"].(float64); ok {
			times = append(times, v)
		}
	}
	return times
}

func diffs(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// popStd is the population (not sample) standard deviation, matching the
// documented thresholds.
func popStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
