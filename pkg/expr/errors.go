package expr

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates parse failures.
type ErrorKind string

const (
	KindMalformedSyntax    ErrorKind = "malformed_syntax"
	KindMalformedMarkup    ErrorKind = "malformed_markup"
	KindUnknownVariableRef ErrorKind = "unknown_variable_reference"
	KindAmbiguousDimension ErrorKind = "ambiguous_dimension"
)

// ParseError is the value returned for any codec failure. Position is a
// zero-based offset into the (normalized) input, or -1 when the failure
// is not tied to a location.
type ParseError struct {
	Kind     ErrorKind
	Message  string
	Position int
	Input    string
}

func (e *ParseError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newParseError(kind ErrorKind, pos int, input, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Position: pos,
		Input:    input,
	}
}

// AsParseError unwraps err into a *ParseError if it is one.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
