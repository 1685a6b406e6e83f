package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and local demos.
// A single mutex serializes all writers.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]models.SessionRow
	rounds   []models.ChallengeRoundRow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		sessions: make(map[int64]models.SessionRow),
	}
}

func (s *MemoryStore) InsertSession(_ context.Context, agentID string, stageReached int, timestamp float64, timings map[string]any, passed bool, rejectReason *string) (int64, error) {
	timingsJSON, err := encodeTimings(timings)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.sessions[id] = models.SessionRow{
		ID:           id,
		AgentID:      agentID,
		StageReached: stageReached,
		Timestamp:    timestamp,
		Timings:      timingsJSON,
		Passed:       passed,
		RejectReason: copyStrPtr(rejectReason),
	}
	return id, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, id int64, stageReached int, timings map[string]any, passed bool, rejectReason *string) error {
	timingsJSON, err := encodeTimings(timings)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	row.StageReached = stageReached
	row.Timings = timingsJSON
	row.Passed = passed
	row.RejectReason = copyStrPtr(rejectReason)
	s.sessions[id] = row
	return nil
}

func (s *MemoryStore) InsertChallengeRound(_ context.Context, sessionID int64, roundNum int, challengeText, responseText string, correct bool, responseTimeS float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	s.rounds = append(s.rounds, models.ChallengeRoundRow{
		ID:            int64(len(s.rounds) + 1),
		SessionID:     sessionID,
		RoundNum:      roundNum,
		ChallengeText: challengeText,
		ResponseText:  responseText,
		Correct:       correct,
		ResponseTimeS: responseTimeS,
	})
	return nil
}

func (s *MemoryStore) SessionsByAgent(_ context.Context, agentID string) ([]models.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []models.SessionRow
	for _, row := range s.sessions {
		if row.AgentID == agentID {
			sessions = append(sessions, row)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp < sessions[j].Timestamp
	})
	return sessions, nil
}

func (s *MemoryStore) ChallengeHistory(_ context.Context, sessionID int64) ([]models.ChallengeRoundRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.ChallengeRoundRow
	for _, row := range s.rounds {
		if row.SessionID == sessionID {
			history = append(history, row)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].RoundNum < history[j].RoundNum
	})
	return history, nil
}

// Session returns one session row by id. Test helper, not part of Store.
func (s *MemoryStore) Session(id int64) (models.SessionRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	return row, ok
}

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
