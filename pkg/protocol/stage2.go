package protocol

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/agentcaptcha/agentcaptcha/pkg/oracle"
)

// accuracyFloor is the fraction of rounds that must be answered correctly.
const accuracyFloor = 0.7

// runStage2 drives the timed decision rounds: generate, send, collect the
// answer under the per-round deadline, grade, persist, and chain the next
// round on a hash of the answer. After all rounds, two gates apply: timing
// coefficient of variation (erratic pacing reads as human) and accuracy.
func (v *Verifier) runStage2(ctx context.Context, conn Conn, sess *models.Session, sessionID int64) (*models.VerificationResult, error) {
	prevAnswerHash := ""
	octx := oracle.Context{AgentID: sess.AgentID}

	for round := 1; round <= v.opts.DecisionRounds; round++ {
		challenge := v.oracle.Generate(ctx, octx, round, prevAnswerHash)

		frame := DecisionChallengeFrame{
			Stage:          2,
			Type:           "decision_challenge",
			Round:          round,
			TotalRounds:    v.opts.DecisionRounds,
			Prompt:         challenge.Prompt,
			Options:        challenge.Options,
			PrevAnswerHash: prevAnswerHash,
		}
		if v.opts.MockMode {
			frame.MockCorrect = challenge.CorrectOption
		}
		if err := conn.Send(ctx, frame); err != nil {
			return nil, fmt.Errorf("send decision challenge round %d: %w", round, err)
		}

		recvCtx, cancel := context.WithTimeout(ctx, v.opts.DecisionTimeout)
		start := time.Now()
		msg, err := conn.Recv(recvCtx)
		cancel()
		elapsed := time.Since(start).Seconds()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				sess.Timings["stage2"] = elapsed
				reject := models.Reject(fmt.Sprintf("stage2_timeout_round%d", round))
				return &reject, nil
			}
			return nil, fmt.Errorf("receive answer round %d: %w", round, err)
		}

		correct := v.oracle.Validate(ctx, challenge, msg.Answer)
		sess.ChallengeResponses = append(sess.ChallengeResponses, models.ChallengeResponse{
			RoundNum: round,
			Answer:   msg.Answer,
			ElapsedS: elapsed,
			Correct:  correct,
		})

		// Best-effort: a persistence failure must not fail verification.
		if err := v.store.InsertChallengeRound(ctx, sessionID, round, challenge.Prompt, msg.Answer, correct, elapsed); err != nil {
			v.logger.Warn("Failed to persist challenge round",
				"session_id", sessionID, "round", round, "error", err)
		}

		answerDigest := sha256.Sum256([]byte(msg.Answer))
		prevAnswerHash = hex.EncodeToString(answerDigest[:])[:16]
		octx.History = append(octx.History, models.RoundSummary{
			Round:   round,
			Prompt:  challenge.Prompt,
			Answer:  msg.Answer,
			Correct: correct,
		})
	}

	elapsedTimes := make([]float64, len(sess.ChallengeResponses))
	for i, r := range sess.ChallengeResponses {
		elapsedTimes[i] = r.ElapsedS
	}
	mean, cv := timingStats(elapsedTimes)

	total := 0.0
	for _, t := range elapsedTimes {
		total += t
	}
	sess.Timings["stage2"] = total
	sess.Timings["stage2_mean_s"] = mean
	sess.Timings["stage2_cv"] = cv

	if cv > v.opts.CVThreshold {
		reject := models.Reject(fmt.Sprintf("stage2_timing_variance_cv=%.3f", cv))
		return &reject, nil
	}

	correctCount := 0
	for _, r := range sess.ChallengeResponses {
		if r.Correct {
			correctCount++
		}
	}
	if float64(correctCount) < float64(v.opts.DecisionRounds)*accuracyFloor {
		reject := models.Reject(fmt.Sprintf("stage2_low_accuracy_%d/%d", correctCount, v.opts.DecisionRounds))
		return &reject, nil
	}

	sess.StageReached = 2
	return nil, nil
}

// timingStats returns the mean and coefficient of variation of the round
// times, using the population standard deviation. CV is 0 when mean <= 0.
func timingStats(times []float64) (mean, cv float64) {
	if len(times) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, t := range times {
		sum += t
	}
	mean = sum / float64(len(times))
	if mean <= 0 {
		return mean, 0
	}

	variance := 0.0
	for _, t := range times {
		d := t - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(times)))
	return mean, std / mean
}
