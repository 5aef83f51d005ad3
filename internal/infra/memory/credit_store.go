package memory

import (
	"context"
	"sync"
)

// CreditStore is an in-memory implementation of app.CreditStore, keyed by
// session id. Entries live as long as the process; the redis variant adds
// expiry tied to session lifetime.
type CreditStore struct {
	mu      sync.Mutex
	credits map[string]map[int64]int
}

func NewCreditStore() *CreditStore {
	return &CreditStore{credits: make(map[string]map[int64]int)}
}

// Credit records awarded points for a question. The first answer wins;
// later credits for the same question are ignored.
func (s *CreditStore) Credit(_ context.Context, sessionID string, questionID int64, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuestion, ok := s.credits[sessionID]
	if !ok {
		byQuestion = make(map[int64]int)
		s.credits[sessionID] = byQuestion
	}
	if _, answered := byQuestion[questionID]; !answered {
		byQuestion[questionID] = points
	}
	return nil
}

func (s *CreditStore) Credits(_ context.Context, sessionID string) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]int, len(s.credits[sessionID]))
	for id, points := range s.credits[sessionID] {
		out[id] = points
	}
	return out, nil
}

func (s *CreditStore) Clear(_ context.Context, sessionID string, questionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuestion, ok := s.credits[sessionID]
	if !ok {
		return nil
	}
	for _, id := range questionIDs {
		delete(byQuestion, id)
	}
	if len(byQuestion) == 0 {
		delete(s.credits, sessionID)
	}
	return nil
}
