package ports

import (
	"context"

	"github.com/derivekit/derivekit/pkg/domain"
)

// SessionStore defines the interface for persisting derivation sessions.
// Every committed mutation is written through before it is acknowledged,
// so a loaded session always reflects the last acknowledged operation.
type SessionStore interface {
	// Save persists the session keyed by its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// ListSummaries enumerates stored sessions, newest first.
	ListSummaries(ctx context.Context) ([]domain.Summary, error)
}
