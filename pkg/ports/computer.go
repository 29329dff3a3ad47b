package ports

import (
	"context"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
)

// Simplify strategies accepted by ComputeRequest.Method.
const (
	SimplifyAuto             = "auto"
	SimplifyTrig             = "trig"
	SimplifyRadical          = "radical"
	SimplifyExpandThenReduce = "expand_then_simplify"
)

// ComputeRequest describes one symbolic operation on an expression. Which
// fields apply depends on Operation; unused fields stay zero.
type ComputeRequest struct {
	Operation  domain.Operation
	Expression *expr.Expression

	// Substitute: Target is replaced by Replacement.
	Target      string
	Replacement *expr.Expression

	// SolveFor, Differentiate, Integrate.
	Variable string

	// Simplify strategy; empty means SimplifyAuto.
	Method string

	// Differentiate order; zero means first derivative.
	Order int

	// Integrate bounds; both empty means an indefinite integral.
	LowerBound string
	UpperBound string
}

// Computer performs symbolic computation. Implementations must treat the
// input expression as immutable and return a new one; a failure must be
// reported as an error with the input left untouched.
type Computer interface {
	Compute(ctx context.Context, req ComputeRequest) (*expr.Expression, error)
}
