package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentcaptcha/agentcaptcha/pkg/config"
	"github.com/agentcaptcha/agentcaptcha/pkg/models"
	"github.com/agentcaptcha/agentcaptcha/pkg/oracle"
	"github.com/agentcaptcha/agentcaptcha/pkg/store"
	"github.com/agentcaptcha/agentcaptcha/pkg/token"
)

// Options are the protocol knobs, resolved once at startup.
type Options struct {
	PowDifficulty   int
	PowTimeout      time.Duration
	DecisionRounds  int
	DecisionTimeout time.Duration
	CVThreshold     float64
	MockMode        bool
}

// OptionsFromConfig derives protocol options from service configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		PowDifficulty:   cfg.PowDifficulty,
		PowTimeout:      cfg.PowTimeout,
		DecisionRounds:  cfg.DecisionRounds,
		DecisionTimeout: cfg.DecisionTimeout,
		CVThreshold:     cfg.DecisionCVThreshold,
		MockMode:        cfg.MockMode(),
	}
}

// Verifier drives the four-stage state machine for one connection at a time.
// Each Run owns its session state by value; nothing is shared across
// concurrent sessions except the store.
type Verifier struct {
	store  store.Store
	oracle oracle.Oracle
	signer *token.Signer
	opts   Options
	logger *slog.Logger
}

// NewVerifier wires the verifier's collaborators.
func NewVerifier(st store.Store, orc oracle.Oracle, signer *token.Signer, opts Options) *Verifier {
	return &Verifier{
		store:  st,
		oracle: orc,
		signer: signer,
		opts:   opts,
		logger: slog.Default(),
	}
}

// Run executes the full protocol over conn. agentID may be empty, in which
// case a fresh UUID is minted. The returned error is non-nil only for fatal
// failures (peer disconnect, codec failure, store failure); protocol rejects
// come back as a REJECT result with a nil error.
func (v *Verifier) Run(ctx context.Context, conn Conn, agentID string) (models.VerificationResult, error) {
	if agentID == "" {
		agentID = uuid.NewString()
	}
	sess := models.NewSession(agentID)
	timestamp := float64(time.Now().UnixNano()) / 1e9
	var stagesPassed []int

	// Pre-insert the session row so Stage 2 can write challenge history
	// against it; the terminal update overwrites stage 0 / in_progress.
	sessionID, err := v.store.InsertSession(ctx, agentID, 0, timestamp, map[string]any{}, false, store.StrPtr(store.RejectInProgress))
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("pre-insert session: %w", err)
	}

	reject := func(result models.VerificationResult) (models.VerificationResult, error) {
		// The reject frame goes out before the row update so the peer learns
		// the verdict promptly; the row is still finalized before returning.
		if err := conn.Send(ctx, ResultFrame{
			Type:    "result",
			Verdict: string(models.VerdictReject),
			Reason:  result.Reason,
		}); err != nil {
			return result, fmt.Errorf("send reject frame: %w", err)
		}
		if err := v.store.UpdateSession(ctx, sessionID, sess.StageReached, sess.Timings, false, store.StrPtr(result.Reason)); err != nil {
			return result, fmt.Errorf("finalize rejected session: %w", err)
		}
		return result, nil
	}

	type stage struct {
		num int
		run func() (*models.VerificationResult, error)
	}
	stages := []stage{
		{1, func() (*models.VerificationResult, error) { return v.runStage1(ctx, conn, sess) }},
		{2, func() (*models.VerificationResult, error) { return v.runStage2(ctx, conn, sess, sessionID) }},
		{3, func() (*models.VerificationResult, error) { return v.runStage3(ctx, conn, sess) }},
		{4, func() (*models.VerificationResult, error) { return v.runStage4(ctx, sess) }},
	}

	for _, st := range stages {
		stageReject, err := st.run()
		if err != nil {
			return models.VerificationResult{}, err
		}
		if stageReject != nil {
			v.logger.Info("Verification rejected",
				"agent_id", agentID, "stage", st.num, "reason", stageReject.Reason)
			return reject(*stageReject)
		}
		stagesPassed = append(stagesPassed, st.num)
	}

	signed, err := v.signer.Sign(agentID, stagesPassed)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("mint token: %w", err)
	}

	// The token leaves the process only after the row records the pass.
	if err := v.store.UpdateSession(ctx, sessionID, sess.StageReached, sess.Timings, true, nil); err != nil {
		return models.VerificationResult{}, fmt.Errorf("finalize accepted session: %w", err)
	}

	result := models.Accept(signed, stagesPassed)
	if err := conn.Send(ctx, ResultFrame{
		Type:         "result",
		Verdict:      string(models.VerdictAccept),
		Token:        signed,
		StagesPassed: stagesPassed,
	}); err != nil {
		return result, fmt.Errorf("send accept frame: %w", err)
	}

	v.logger.Info("Verification accepted", "agent_id", agentID, "session_id", sessionID)
	return result, nil
}
