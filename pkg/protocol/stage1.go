package protocol

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// VerifySolution checks a proof-of-work solution: the lowercase hex SHA-256
// of nonce||solution must start with difficulty '0' characters. Difficulty 0
// accepts any solution.
func VerifySolution(nonce []byte, solution string, difficulty int) bool {
	digest := sha256.Sum256(append(append([]byte{}, nonce...), []byte(solution)...))
	return strings.HasPrefix(hex.EncodeToString(digest[:]), strings.Repeat("0", difficulty))
}

// runStage1 issues a fresh 16-byte nonce and validates the peer's solution
// under the PoW deadline. The elapsed time is recorded even on reject;
// stage4 of future sessions reads it back for the timing-variance check.
func (v *Verifier) runStage1(ctx context.Context, conn Conn, sess *models.Session) (*models.VerificationResult, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sess.Nonce = nonce

	err := conn.Send(ctx, PowChallengeFrame{
		Stage:      1,
		Type:       "pow_challenge",
		Nonce:      hex.EncodeToString(nonce),
		Difficulty: v.opts.PowDifficulty,
		TimeoutMS:  v.opts.PowTimeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("send pow challenge: %w", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, v.opts.PowTimeout)
	defer cancel()

	start := time.Now()
	msg, err := conn.Recv(recvCtx)
	elapsed := time.Since(start).Seconds()
	sess.Timings["stage1"] = elapsed

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reject := models.Reject("stage1_timeout")
			return &reject, nil
		}
		return nil, fmt.Errorf("receive pow solution: %w", err)
	}

	if !VerifySolution(nonce, msg.Solution, v.opts.PowDifficulty) {
		reject := models.Reject("stage1_invalid_solution")
		return &reject, nil
	}

	sess.StageReached = 1
	return nil, nil
}
