package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcaptcha/agentcaptcha/pkg/consistency"
	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// minHistorySessions is the history size below which Stage 4 is skipped.
const minHistorySessions = 5

// runStage4 analyzes the agent's prior sessions for statistical consistency.
// Agents with thin history get a free pass; the gate only bites once enough
// sessions exist to say something meaningful.
func (v *Verifier) runStage4(ctx context.Context, sess *models.Session) (*models.VerificationResult, error) {
	start := time.Now()
	history, err := v.store.SessionsByAgent(ctx, sess.AgentID)
	sess.Timings["stage4_fetch_s"] = time.Since(start).Seconds()
	if err != nil {
		return nil, fmt.Errorf("fetch sessions for agent %s: %w", sess.AgentID, err)
	}

	if len(history) < minHistorySessions {
		sess.StageReached = 4
		return nil, nil
	}

	result := consistency.Analyze(history)
	sess.Timings["stage4"] = result

	if !result.Consistent {
		reject := models.Reject("stage4_inconsistent: " + result.Reason)
		return &reject, nil
	}

	sess.StageReached = 4
	return nil, nil
}
