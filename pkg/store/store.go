// Package store persists verification sessions and their per-round challenge
// history. Writes from independent sessions may interleave; implementations
// must serialize them (the Postgres store relies on database-level
// serialization, the in-memory store on a single mutex).
package store

import (
	"context"
	"errors"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// RejectInProgress is the sentinel reject_reason written between the
// pre-insert and the terminal update of a session row.
const RejectInProgress = "in_progress"

// Store is the persistence surface used by the verifier and the
// introspection API.
type Store interface {
	// InsertSession creates a session row and returns its assigned id.
	InsertSession(ctx context.Context, agentID string, stageReached int, timestamp float64, timings map[string]any, passed bool, rejectReason *string) (int64, error)

	// UpdateSession overwrites the mutable columns of an existing row.
	UpdateSession(ctx context.Context, id int64, stageReached int, timings map[string]any, passed bool, rejectReason *string) error

	// InsertChallengeRound records one Stage 2 round for a session.
	InsertChallengeRound(ctx context.Context, sessionID int64, roundNum int, challengeText, responseText string, correct bool, responseTimeS float64) error

	// SessionsByAgent returns an agent's sessions ordered by timestamp ascending.
	SessionsByAgent(ctx context.Context, agentID string) ([]models.SessionRow, error)

	// ChallengeHistory returns a session's rounds ordered by round_num ascending.
	ChallengeHistory(ctx context.Context, sessionID int64) ([]models.ChallengeRoundRow, error)
}

// StrPtr is a convenience for optional reject_reason values.
func StrPtr(s string) *string {
	return &s
}
