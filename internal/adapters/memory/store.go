// Package memory provides an in-process ports.SessionStore, used by tests
// and by ephemeral single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/derivekit/derivekit/pkg/domain"
)

// Store keeps sessions in a map. Sessions are deep-copied on the way in
// and out, so callers cannot mutate stored state behind the store's back.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string]*domain.Session)}
}

// Save stores a deep copy of the session.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Load returns a deep copy of the stored session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ListSummaries enumerates stored sessions, most recently updated first.
func (s *Store) ListSummaries(ctx context.Context) ([]domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.Summary, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, session.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
