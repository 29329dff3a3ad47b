package domain

import (
	"time"

	"github.com/derivekit/derivekit/pkg/expr"
)

// SessionStatus is the lifecycle state of a derivation session.
// Completed and aborted are terminal; there are no transitions out.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAborted   SessionStatus = "aborted"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Formula is a base formula stocked into the session by load_formula.
type Formula struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Raw         string    `json:"raw"`
	Expression  string    `json:"expression"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Session is one derivation in progress: a step ledger plus the current
// expression it converges on. All expression fields hold canonical text.
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      SessionStatus `json:"status"`

	// Current is the canonical text of the current expression, or "" if no
	// step has produced output yet. Invariant: equals the output of the
	// last output-producing step.
	Current string `json:"current_expression,omitempty"`

	Formulas []Formula                `json:"formulas,omitempty"`
	Symbols  map[string]expr.Variable `json:"symbols,omitempty"`
	Steps    Ledger                   `json:"steps"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary is the listing shape for resumable sessions.
type Summary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	StepCount int           `json:"step_count"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSession creates an active session with an empty ledger.
func NewSession(id, name, description string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      StatusActive,
		Symbols:     make(map[string]expr.Variable),
		Steps:       Ledger{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Summary returns the listing shape of the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		StepCount: len(s.Steps),
		UpdatedAt: s.UpdatedAt,
	}
}

// Touch advances the updated-at timestamp.
func (s *Session) Touch() { s.UpdatedAt = time.Now().UTC() }

// EnsureActive rejects mutations on completed or aborted sessions.
func (s *Session) EnsureActive() *StateError {
	if s.Status != StatusActive {
		return NewStateError(KindNotActive, "session %s is %s", s.ID, s.Status)
	}
	return nil
}

// Append adds a step to the end of the ledger, assigning the next dense
// number. When advance is true the session's current expression moves to
// the step's output.
func (s *Session) Append(step *Step, advance bool) *StateError {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	step.Number = len(s.Steps) + 1
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	s.Steps = append(s.Steps, step)
	if advance && step.Output != "" {
		s.Current = step.Output
	}
	return nil
}

// UpdateStep mutates only the free-text metadata of step n.
func (s *Session) UpdateStep(n int, patch StepPatch) (*Step, *StateError) {
	if err := s.EnsureActive(); err != nil {
		return nil, err
	}
	step := s.Steps.Get(n)
	if step == nil {
		return nil, NewStateError(KindNotFound, "step %d does not exist (ledger has %d)", n, len(s.Steps))
	}
	if patch.Description != nil {
		step.Description = *patch.Description
	}
	if patch.Notes != nil {
		step.Notes = *patch.Notes
	}
	if patch.Assumptions != nil {
		step.Assumptions = append([]string(nil), (*patch.Assumptions)...)
	}
	if patch.Limitations != nil {
		step.Limitations = append([]string(nil), (*patch.Limitations)...)
	}
	return step, nil
}

// DeleteStep removes step n, allowed only for the last step. Deleting an
// interior step would invalidate every later step's input; rollback is the
// sanctioned way to discard a suffix.
func (s *Session) DeleteStep(n int) (*Step, *StateError) {
	if err := s.EnsureActive(); err != nil {
		return nil, err
	}
	if s.Steps.Get(n) == nil {
		return nil, NewStateError(KindNotFound, "step %d does not exist (ledger has %d)", n, len(s.Steps))
	}
	if n != len(s.Steps) {
		return nil, NewStateError(KindNotLastStep,
			"only the last step (%d) can be deleted; use rollback to discard a suffix", len(s.Steps))
	}
	deleted := s.Steps[n-1]
	s.Steps = s.Steps[:n-1]
	s.recomputeCurrent()
	return deleted, nil
}

// RollbackReport describes what a rollback discarded.
type RollbackReport struct {
	DeletedCount       int    `json:"deleted_count"`
	DeletedStepNumbers []int  `json:"deleted_step_numbers"`
	Current            string `json:"current_expression,omitempty"`
}

// RollbackTo deletes every step numbered above n (0 discards everything)
// and restores the current expression accordingly.
func (s *Session) RollbackTo(n int) (*RollbackReport, *StateError) {
	if err := s.EnsureActive(); err != nil {
		return nil, err
	}
	if n < 0 || n > len(s.Steps) {
		return nil, NewStateError(KindInvalidTarget,
			"rollback target %d out of range [0, %d]", n, len(s.Steps))
	}
	report := &RollbackReport{}
	for _, step := range s.Steps[n:] {
		report.DeletedStepNumbers = append(report.DeletedStepNumbers, step.Number)
	}
	report.DeletedCount = len(report.DeletedStepNumbers)
	s.Steps = s.Steps[:n]
	s.recomputeCurrent()
	report.Current = s.Current
	return report, nil
}

// InsertNoteAfter inserts a pure-annotation step immediately after
// position pos (0 = before everything), renumbering all later steps.
func (s *Session) InsertNoteAfter(pos int, step *Step) (*Step, *StateError) {
	if err := s.EnsureActive(); err != nil {
		return nil, err
	}
	if pos < 0 || pos > len(s.Steps) {
		return nil, NewStateError(KindInvalidPosition,
			"insert position %d out of range [0, %d]", pos, len(s.Steps))
	}
	if !step.IsNote() {
		return nil, NewStateError(KindInvalidPosition, "only note steps can be inserted")
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	s.Steps = append(s.Steps, nil)
	copy(s.Steps[pos+1:], s.Steps[pos:])
	s.Steps[pos] = step
	s.Steps.renumber()
	return step, nil
}

// Complete transitions active -> completed and freezes the session.
func (s *Session) Complete() *StateError {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	if len(s.Steps) == 0 || s.Current == "" {
		return NewStateError(KindNothingToComplete,
			"session %s has no derived expression to complete", s.ID)
	}
	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	return nil
}

// Abort transitions active -> aborted. The session is retained for audit
// but excluded from resumable listings and archival.
func (s *Session) Abort() *StateError {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	s.Status = StatusAborted
	return nil
}

// recomputeCurrent restores the current-expression invariant after a
// structural ledger mutation.
func (s *Session) recomputeCurrent() {
	s.Current = s.Steps.LastOutput()
}

// Clone returns a deep copy. The engine mutates a clone, persists it, and
// only then swaps it in, so a failed write never leaves partial state.
func (s *Session) Clone() *Session {
	c := *s
	c.Formulas = append([]Formula(nil), s.Formulas...)
	c.Steps = s.Steps.Clone()
	c.Symbols = make(map[string]expr.Variable, len(s.Symbols))
	for k, v := range s.Symbols {
		c.Symbols[k] = v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
