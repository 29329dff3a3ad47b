package session

import (
	"context"
	"sync"

	"github.com/derivekit/derivekit/pkg/domain"
)

// Scope is one caller's handle onto the manager. A scope drives at most one
// session at a time, and a session can be bound to at most one scope across
// the whole process (and, with a distributed locker, across replicas).
//
// Adapters create one scope per calling context: the MCP adapter keeps one
// per connection, the HTTP adapter one per request.
type Scope struct {
	mgr *Manager

	mu        sync.Mutex
	sessionID string
}

// NewScope creates an unbound scope.
func (m *Manager) NewScope() *Scope {
	return &Scope{mgr: m}
}

// Active returns the bound session ID, or "" when the scope is idle.
func (s *Scope) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Start creates a new session and binds it to this scope. A scope that is
// already driving a session must complete, abort, or detach first.
func (s *Scope) Start(ctx context.Context, name, description string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return nil, domain.NewStateError(domain.KindAlreadyActive,
			"a session (%s) is already active in this scope", s.sessionID)
	}
	sess, err := s.mgr.Start(ctx, name, description)
	if err != nil {
		return nil, err
	}
	if serr := s.mgr.bind(sess.ID); serr != nil {
		return nil, serr
	}
	s.sessionID = sess.ID
	return sess, nil
}

// Resume binds an existing session to this scope. Exactly one of two
// concurrent resumes of the same ID wins; the other gets AlreadyBound.
func (s *Scope) Resume(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return nil, domain.NewStateError(domain.KindAlreadyActive,
			"a session (%s) is already active in this scope", s.sessionID)
	}
	if serr := s.mgr.bind(sessionID); serr != nil {
		return nil, serr
	}
	sess, err := s.mgr.Get(ctx, sessionID)
	if err != nil {
		s.mgr.unbind(sessionID)
		return nil, err
	}
	s.sessionID = sessionID
	return sess, nil
}

// Detach releases the binding without touching the session. The session
// stays resumable by any scope.
func (s *Scope) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		s.mgr.unbind(s.sessionID)
		s.sessionID = ""
	}
}

// active returns the bound ID or a NotActive error.
func (s *Scope) active() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		return "", domain.NewStateError(domain.KindNotActive, "no session is active in this scope")
	}
	return s.sessionID, nil
}

// detachTerminal releases the binding after a terminal transition.
func (s *Scope) detachTerminal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == id {
		s.mgr.unbind(id)
		s.sessionID = ""
	}
}

// Session returns a snapshot of the bound session.
func (s *Scope) Session(ctx context.Context) (*domain.Session, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.mgr.Get(ctx, id)
}

// LoadFormula stocks one formula into the bound session.
func (s *Scope) LoadFormula(ctx context.Context, in FormulaInput) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.LoadFormula(ctx, id, in)
}

// Apply runs one computed derivation step on the bound session.
func (s *Scope) Apply(ctx context.Context, req ApplyRequest) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.Apply(ctx, id, req)
}

// RecordManual appends an externally derived expression.
func (s *Scope) RecordManual(ctx context.Context, rec ManualRecord) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.RecordManual(ctx, id, rec)
}

// AddNote appends an annotation step.
func (s *Scope) AddNote(ctx context.Context, note NoteInput) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.AddNote(ctx, id, note)
}

// InsertNote inserts an annotation after position pos.
func (s *Scope) InsertNote(ctx context.Context, pos int, note NoteInput) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.InsertNote(ctx, id, pos, note)
}

// Step fetches one step of the bound session.
func (s *Scope) Step(ctx context.Context, n int) (*domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.mgr.Step(ctx, id, n)
}

// Steps fetches the bound session's ledger.
func (s *Scope) Steps(ctx context.Context) (domain.Ledger, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.mgr.Steps(ctx, id)
}

// UpdateStep patches the free-text metadata of step n.
func (s *Scope) UpdateStep(ctx context.Context, n int, fields map[string]any) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.UpdateStep(ctx, id, n, fields)
}

// DeleteStep removes the last step.
func (s *Scope) DeleteStep(ctx context.Context, n int) (*domain.Session, *domain.Step, error) {
	id, err := s.active()
	if err != nil {
		return nil, nil, err
	}
	return s.mgr.DeleteStep(ctx, id, n)
}

// Rollback discards every step above n.
func (s *Scope) Rollback(ctx context.Context, n int) (*domain.RollbackReport, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.mgr.Rollback(ctx, id, n)
}

// Complete freezes the bound session, archives its result, and detaches.
func (s *Scope) Complete(ctx context.Context, opts domain.CompleteOptions) (*domain.Result, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	result, err := s.mgr.Complete(ctx, id, opts)
	if err != nil && result == nil {
		return nil, err
	}
	s.detachTerminal(id)
	return result, err
}

// Abort terminates the bound session and detaches.
func (s *Scope) Abort(ctx context.Context) (*domain.Session, error) {
	id, err := s.active()
	if err != nil {
		return nil, err
	}
	sess, err := s.mgr.Abort(ctx, id)
	if err != nil {
		return nil, err
	}
	s.detachTerminal(id)
	return sess, nil
}
