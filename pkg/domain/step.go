package domain

import "time"

// Operation tags what a derivation step did.
type Operation string

const (
	OpLoad          Operation = "load"
	OpSubstitute    Operation = "substitute"
	OpSimplify      Operation = "simplify"
	OpSolveFor      Operation = "solve_for"
	OpDifferentiate Operation = "differentiate"
	OpIntegrate     Operation = "integrate"
	OpManualRecord  Operation = "manual_record"
	OpNote          Operation = "note"
)

// ComputeOperations are the operations delegated to the external computer.
var ComputeOperations = map[Operation]bool{
	OpSubstitute:    true,
	OpSimplify:      true,
	OpSolveFor:      true,
	OpDifferentiate: true,
	OpIntegrate:     true,
}

// StepSource records where a step's result came from.
type StepSource string

const (
	SourceInternal        StepSource = "internal"
	SourceExternalHandoff StepSource = "external_handoff"
	SourceManual          StepSource = "manual"
)

// NoteType classifies pure-annotation steps.
type NoteType string

const (
	NoteAssumption      NoteType = "assumption"
	NoteLimitation      NoteType = "limitation"
	NoteObservation     NoteType = "observation"
	NoteCorrection      NoteType = "correction"
	NoteDomainContext   NoteType = "domain_context"
	NotePhysicalMeaning NoteType = "physical_meaning"
)

// ValidNoteType reports whether t is one of the closed set of note types.
func ValidNoteType(t NoteType) bool {
	switch t {
	case NoteAssumption, NoteLimitation, NoteObservation, NoteCorrection,
		NoteDomainContext, NotePhysicalMeaning:
		return true
	}
	return false
}

// Step is one entry of a session's ledger. Expression fields are stored in
// stable canonical text and are never updated after creation; only the
// free-text metadata (description, notes, assumptions, limitations) may
// change via UpdateStep.
type Step struct {
	Number      int       `json:"step_number"`
	Operation   Operation `json:"operation"`
	Description string    `json:"description"`

	// Input is the expression the operation consumed, Output the expression
	// it produced. Output is empty for pure-note steps.
	Input  string `json:"input_expression,omitempty"`
	Output string `json:"output_expression,omitempty"`

	Notes       string   `json:"notes,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Limitations []string `json:"limitations,omitempty"`

	// NoteType and RelatedSymbols are set on pure-note steps only.
	NoteType       NoteType `json:"note_type,omitempty"`
	RelatedSymbols []string `json:"related_symbols,omitempty"`

	Source StepSource `json:"source"`

	// ExternalTool preserves provenance for steps imported through the
	// handoff protocol; imported assumptions land in Assumptions.
	ExternalTool string `json:"external_tool,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsNote reports whether the step is a pure annotation that never carries
// an output expression.
func (s *Step) IsNote() bool { return s.Operation == OpNote }

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	c := *s
	c.Assumptions = append([]string(nil), s.Assumptions...)
	c.Limitations = append([]string(nil), s.Limitations...)
	c.RelatedSymbols = append([]string(nil), s.RelatedSymbols...)
	return &c
}

// StepPatch carries the only step fields update_step may change.
type StepPatch struct {
	Description *string   `json:"description,omitempty" mapstructure:"description"`
	Notes       *string   `json:"notes,omitempty" mapstructure:"notes"`
	Assumptions *[]string `json:"assumptions,omitempty" mapstructure:"assumptions"`
	Limitations *[]string `json:"limitations,omitempty" mapstructure:"limitations"`
}

// Fields lists the patch fields that are set.
func (p StepPatch) Fields() []string {
	var out []string
	if p.Description != nil {
		out = append(out, "description")
	}
	if p.Notes != nil {
		out = append(out, "notes")
	}
	if p.Assumptions != nil {
		out = append(out, "assumptions")
	}
	if p.Limitations != nil {
		out = append(out, "limitations")
	}
	return out
}

// mutableStepFields is the closed set update_step may target. Anything
// else is rejected with KindImmutableField before decoding.
var mutableStepFields = map[string]bool{
	"description": true,
	"notes":       true,
	"assumptions": true,
	"limitations": true,
}

// CheckMutableStepFields rejects any field name outside the mutable set.
func CheckMutableStepFields(fields map[string]any) *StateError {
	for name := range fields {
		if !mutableStepFields[name] {
			return NewStateError(KindImmutableField,
				"step field %q cannot be updated; roll back and redo the step instead", name)
		}
	}
	return nil
}

// Ledger is the ordered, dense (1..len, no gaps) log of derivation steps.
type Ledger []*Step

// Last returns the final step, or nil for an empty ledger.
func (l Ledger) Last() *Step {
	if len(l) == 0 {
		return nil
	}
	return l[len(l)-1]
}

// Get returns the step numbered n, or nil if n is out of [1, len].
func (l Ledger) Get(n int) *Step {
	if n < 1 || n > len(l) {
		return nil
	}
	return l[n-1]
}

// LastOutput returns the output expression of the last output-producing
// step, or "" if no step has produced one.
func (l Ledger) LastOutput() string {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Output != "" {
			return l[i].Output
		}
	}
	return ""
}

// renumber restores dense 1-based numbering after a structural mutation.
func (l Ledger) renumber() {
	for i, s := range l {
		s.Number = i + 1
	}
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for i, s := range l {
		out[i] = s.Clone()
	}
	return out
}
