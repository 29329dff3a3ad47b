package session

import (
	"context"
	"fmt"

	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/ports"
)

// NopComputer is the default computation capability: it rejects every
// request. Deployments wire a real Computer (typically a bridge to an
// external symbolic engine); sessions remain fully usable for loading,
// manual recording, annotation, and ledger editing without one.
type NopComputer struct{}

// Compute always fails.
func (NopComputer) Compute(ctx context.Context, req ports.ComputeRequest) (*expr.Expression, error) {
	return nil, fmt.Errorf("no computation capability configured for %s", req.Operation)
}
