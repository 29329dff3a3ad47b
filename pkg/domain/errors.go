package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by stores when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrResultNotFound is returned by result repositories for unknown IDs.
var ErrResultNotFound = errors.New("derivation result not found")

// ErrorKind discriminates session state errors so callers can decide to
// retry, clarify, or abandon without string matching.
type ErrorKind string

const (
	KindAlreadyActive     ErrorKind = "already_active"
	KindAlreadyBound      ErrorKind = "already_bound"
	KindNotActive         ErrorKind = "not_active"
	KindNotFound          ErrorKind = "not_found"
	KindNotLastStep       ErrorKind = "not_last_step"
	KindInvalidTarget     ErrorKind = "invalid_target"
	KindInvalidPosition   ErrorKind = "invalid_position"
	KindImmutableField    ErrorKind = "immutable_field"
	KindNothingToComplete ErrorKind = "nothing_to_complete"
)

// StateError is a typed session state machine violation.
type StateError struct {
	Kind    ErrorKind
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewStateError builds a StateError with a formatted message.
func NewStateError(kind ErrorKind, format string, args ...any) *StateError {
	return &StateError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) a StateError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StateError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// ComputationError wraps a failure surfaced verbatim from the external
// computation capability, including context deadline errors. The engine's
// contract is that the ledger is unchanged when one is returned.
type ComputationError struct {
	Op  Operation
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation %s failed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// PersistenceError reports a durable-write failure. In-memory state has
// been reverted to its pre-call snapshot by the time one is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
