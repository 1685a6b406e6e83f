// Package protocol implements the four-stage Decision-Proof Protocol (DPP)
// over a single duplex message connection: a proof-of-work gate, timed
// semantic decision rounds, an environment attestation, and a cross-session
// consistency check. Passing all four yields a signed bearer token.
package protocol

import (
	"context"
)

// Conn is the duplex JSON frame channel the verifier drives. Recv must honor
// the context deadline and return an error wrapping context.DeadlineExceeded
// on expiry; any other error is treated as a fatal connection failure.
type Conn interface {
	Send(ctx context.Context, frame any) error
	Recv(ctx context.Context) (ClientFrame, error)
}

// ClientFrame is the union of the peer's response frames. Fields not present
// on the wire stay at their zero values; stages treat absent required fields
// as stage-specific input errors. Unknown fields are ignored.
type ClientFrame struct {
	// Solution answers a Stage 1 pow_challenge frame.
	Solution string `json:"solution"`

	// Answer answers a Stage 2 decision_challenge frame.
	Answer string `json:"answer"`

	// Env answers a Stage 3 env_request frame.
	Env map[string]any `json:"env"`
}

// PowChallengeFrame opens Stage 1.
type PowChallengeFrame struct {
	Stage      int    `json:"stage"`
	Type       string `json:"type"`
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	TimeoutMS  int64  `json:"timeout_ms"`
}

// DecisionChallengeFrame carries one Stage 2 round. MockCorrect is set only
// in mock mode so demo peers can reply deterministically.
type DecisionChallengeFrame struct {
	Stage          int      `json:"stage"`
	Type           string   `json:"type"`
	Round          int      `json:"round"`
	TotalRounds    int      `json:"total_rounds"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	PrevAnswerHash string   `json:"prev_answer_hash"`
	MockCorrect    string   `json:"mock_correct,omitempty"`
}

// EnvRequestFrame opens Stage 3.
type EnvRequestFrame struct {
	Stage          int      `json:"stage"`
	Type           string   `json:"type"`
	RequiredFields []string `json:"required_fields"`
}

// ResultFrame is the terminal frame of a session.
type ResultFrame struct {
	Type         string `json:"type"`
	Verdict      string `json:"verdict"`
	Reason       string `json:"reason,omitempty"`
	Token        string `json:"token,omitempty"`
	StagesPassed []int  `json:"stages_passed,omitempty"`
}

// ErrorFrame is sent best-effort on unexpected failures.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
