package models

// Session is the transient per-connection verification state. It is owned by
// exactly one verifier invocation and ceases to exist once the terminal frame
// has been sent; only the persisted row outlives the connection.
type Session struct {
	AgentID string

	// Nonce is the 16-byte Stage 1 proof-of-work nonce.
	Nonce []byte

	// StageReached is monotonic: it only advances when a stage passes.
	StageReached int

	// Timings collects per-stage elapsed seconds plus derived statistics.
	// Keys: stage1, stage2, stage2_mean_s, stage2_cv, stage3, stage4_fetch_s;
	// stage4 holds the consistency analyzer's stats object.
	Timings map[string]any

	ChallengeResponses []ChallengeResponse

	// EnvData is the raw environment attestation from the Stage 3 probe.
	EnvData map[string]any
}

// NewSession creates a fresh session for one verification attempt.
func NewSession(agentID string) *Session {
	return &Session{
		AgentID: agentID,
		Timings: make(map[string]any),
	}
}

// Verdict is the terminal outcome of a verification session.
type Verdict string

const (
	VerdictAccept Verdict = "ACCEPT"
	VerdictReject Verdict = "REJECT"
)

// VerificationResult is the terminal result of one protocol run.
type VerificationResult struct {
	Verdict      Verdict `json:"verdict"`
	Reason       string  `json:"reason,omitempty"`
	Token        string  `json:"token,omitempty"`
	StagesPassed []int   `json:"stages_passed,omitempty"`
}

// Reject builds a REJECT result carrying a stage-tagged reason.
func Reject(reason string) VerificationResult {
	return VerificationResult{Verdict: VerdictReject, Reason: reason}
}

// Accept builds an ACCEPT result carrying the signed token.
func Accept(token string, stagesPassed []int) VerificationResult {
	return VerificationResult{Verdict: VerdictAccept, Token: token, StagesPassed: stagesPassed}
}

// SessionRow is a persisted verification session. Timings is the serialized
// JSON form of Session.Timings; Timestamp is wall-clock seconds fixed at
// session start. RejectReason is nil only on passed sessions (the sentinel
// "in_progress" is used between pre-insert and final update).
type SessionRow struct {
	ID           int64    `json:"id"`
	AgentID      string   `json:"agent_id"`
	StageReached int      `json:"stage_reached"`
	Timestamp    float64  `json:"timestamp"`
	Timings      string   `json:"timings"`
	Passed       bool     `json:"passed"`
	RejectReason *string  `json:"reject_reason"`
}

// ChallengeRoundRow is one persisted Stage 2 round.
type ChallengeRoundRow struct {
	ID            int64   `json:"id"`
	SessionID     int64   `json:"session_id"`
	RoundNum      int     `json:"round_num"`
	ChallengeText string  `json:"challenge_text"`
	ResponseText  string  `json:"response_text"`
	Correct       bool    `json:"correct"`
	ResponseTimeS float64 `json:"response_time_s"`
}

// ConsistencyResult is the Stage 4 analyzer outcome. Stats is stored into the
// session's timings under the "stage4" key.
type ConsistencyResult struct {
	Consistent bool               `json:"consistent"`
	Reason     string             `json:"reason"`
	Stats      map[string]float64 `json:"stats"`
}
