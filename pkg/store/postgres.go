package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// PostgresStore implements Store over the shared database client.
// timings is stored as serialized JSON, passed as a 0/1 integer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertSession(ctx context.Context, agentID string, stageReached int, timestamp float64, timings map[string]any, passed bool, rejectReason *string) (int64, error) {
	timingsJSON, err := encodeTimings(timings)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (agent_id, stage_reached, timestamp, timings, passed, reject_reason)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		agentID, stageReached, timestamp, timingsJSON, boolToInt(passed), rejectReason,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, id int64, stageReached int, timings map[string]any, passed bool, rejectReason *string) error {
	timingsJSON, err := encodeTimings(timings)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET stage_reached = $1, timings = $2, passed = $3, reject_reason = $4
		 WHERE id = $5`,
		stageReached, timingsJSON, boolToInt(passed), rejectReason, id,
	)
	if err != nil {
		return fmt.Errorf("update session %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertChallengeRound(ctx context.Context, sessionID int64, roundNum int, challengeText, responseText string, correct bool, responseTimeS float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO challenge_history (session_id, round_num, challenge_text, response_text, correct, response_time_s)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, roundNum, challengeText, responseText, boolToInt(correct), responseTimeS,
	)
	if err != nil {
		return fmt.Errorf("insert challenge round %d for session %d: %w", roundNum, sessionID, err)
	}
	return nil
}

func (s *PostgresStore) SessionsByAgent(ctx context.Context, agentID string) ([]models.SessionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, stage_reached, timestamp, timings, passed, reject_reason
		 FROM sessions
		 WHERE agent_id = $1
		 ORDER BY timestamp ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var sessions []models.SessionRow
	for rows.Next() {
		var row models.SessionRow
		var passed int
		if err := rows.Scan(&row.ID, &row.AgentID, &row.StageReached, &row.Timestamp, &row.Timings, &passed, &row.RejectReason); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		row.Passed = passed != 0
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) ChallengeHistory(ctx context.Context, sessionID int64) ([]models.ChallengeRoundRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, round_num, challenge_text, response_text, correct, response_time_s
		 FROM challenge_history
		 WHERE session_id = $1
		 ORDER BY round_num ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch challenge history for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var history []models.ChallengeRoundRow
	for rows.Next() {
		var row models.ChallengeRoundRow
		var correct int
		if err := rows.Scan(&row.ID, &row.SessionID, &row.RoundNum, &row.ChallengeText, &row.ResponseText, &correct, &row.ResponseTimeS); err != nil {
			return nil, fmt.Errorf("scan challenge round row: %w", err)
		}
		row.Correct = correct != 0
		history = append(history, row)
	}
	return history, rows.Err()
}

func encodeTimings(timings map[string]any) (string, error) {
	if timings == nil {
		return "{}", nil
	}
	data, err := json.Marshal(timings)
	if err != nil {
		return "", fmt.Errorf("marshal timings: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
