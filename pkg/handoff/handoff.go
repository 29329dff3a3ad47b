// Package handoff implements the protocol for delegating heavy symbolic
// work to an external engine and folding the outcome back into a session
// with full provenance.
package handoff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/session"
)

// Payload is everything an external symbolic engine needs to continue the
// derivation: symbol declarations, the current expression in both engine
// and typeset syntax, and hints about what to do next.
type Payload struct {
	SessionID   string   `json:"session_id"`
	SessionName string   `json:"session_name,omitempty"`
	Expression  string   `json:"expression"`
	LaTeX       string   `json:"latex"`
	Symbols     []string `json:"symbol_declarations"`
	Suggested   []string `json:"suggested_actions,omitempty"`
	StepCount   int      `json:"step_count"`
}

// Export builds a handoff payload from the session's current expression.
func Export(sess *domain.Session) (*Payload, error) {
	if sess.Current == "" {
		return nil, domain.NewStateError(domain.KindNotFound,
			"session %s has no current expression to hand off", sess.ID)
	}
	current, err := expr.ParseText(sess.Current)
	if err != nil {
		return nil, fmt.Errorf("stored expression is unreadable: %w", err)
	}

	p := &Payload{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Expression:  current.String(),
		LaTeX:       current.LaTeX(),
		StepCount:   len(sess.Steps),
	}

	for _, name := range current.FreeSymbols() {
		v, ok := sess.Symbols[name]
		if !ok {
			v, _ = current.Var(name)
		}
		p.Symbols = append(p.Symbols, declaration(v))
	}
	p.Suggested = suggest(current)
	return p, nil
}

// declaration renders one symbol in the engine's declaration syntax.
func declaration(v expr.Variable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = Symbol('%s'", v.Name, v.Name)
	if v.Constraint != "" && v.Constraint != expr.ConstraintComplex {
		fmt.Fprintf(&b, ", %s=True", v.Constraint)
	}
	b.WriteString(")")
	if v.Unit != "" {
		fmt.Fprintf(&b, "  # %s", v.Unit)
	}
	return b.String()
}

// suggest derives next-action hints from the expression's shape.
func suggest(e *expr.Expression) []string {
	var out []string
	if _, ok := e.Root().(expr.Equation); ok {
		out = append(out, "solve_for: isolate one variable of the equation")
	}
	if len(e.FreeSymbols()) > 1 {
		out = append(out, "substitute: bind known values before simplifying")
	}
	if hasCall(e.Root()) {
		out = append(out, "simplify: reduce the transcendental terms")
	}
	sort.Strings(out)
	return out
}

func hasCall(n expr.Node) bool {
	switch t := n.(type) {
	case expr.Call:
		return true
	case expr.Unary:
		return hasCall(t.X)
	case expr.Binary:
		return hasCall(t.L) || hasCall(t.R)
	case expr.Equation:
		return hasCall(t.L) || hasCall(t.R)
	}
	return false
}

// Import is the outcome reported back by the external engine.
type Import struct {
	Expression         string   `json:"expression"`
	OperationPerformed string   `json:"operation_performed"`
	ExternalTool       string   `json:"external_tool"`
	Notes              string   `json:"notes,omitempty"`
	AssumptionsUsed    []string `json:"assumptions_used,omitempty"`
	Limitations        []string `json:"limitations,omitempty"`
}

// Record converts the import into the manual-record input that lands it in
// the ledger with external-handoff provenance.
func (i Import) Record() session.ManualRecord {
	desc := i.OperationPerformed
	if desc == "" {
		desc = "Imported externally derived expression"
	}
	tool := i.ExternalTool
	if tool == "" {
		tool = "external"
	}
	return session.ManualRecord{
		Expression:   i.Expression,
		Description:  desc,
		ExternalTool: tool,
		Notes:        i.Notes,
		Assumptions:  append([]string(nil), i.AssumptionsUsed...),
		Limitations:  append([]string(nil), i.Limitations...),
		Source:       domain.SourceExternalHandoff,
	}
}
