package domain

import (
	"time"

	"github.com/derivekit/derivekit/pkg/expr"
)

// Result is the archival snapshot emitted by complete(). Its steps and
// final expression are frozen; only the bounded metadata subset (see
// ResultPatch) may change afterward.
type Result struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	Expression string                   `json:"final_expression" yaml:"final_expression"`
	Variables  map[string]expr.Variable `json:"variables,omitempty" yaml:"variables,omitempty"`

	SourceFormulas []string `json:"source_formulas,omitempty" yaml:"source_formulas,omitempty"`
	Steps          Ledger   `json:"steps" yaml:"steps"`

	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Assumptions []string `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
	Limitations []string `json:"limitations,omitempty" yaml:"limitations,omitempty"`
	References  []string `json:"references,omitempty" yaml:"references,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`

	Verified           bool       `json:"verified" yaml:"verified"`
	VerificationMethod string     `json:"verification_method,omitempty" yaml:"verification_method,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty" yaml:"verified_at,omitempty"`

	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// CompleteOptions carries the descriptive knowledge attached at complete().
type CompleteOptions struct {
	Description string   `json:"description,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Limitations []string `json:"limitations,omitempty"`
	References  []string `json:"references,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// BuildResult deep-copies a completed session into its archival snapshot.
func BuildResult(s *Session, opts CompleteOptions) *Result {
	vars := make(map[string]expr.Variable, len(s.Symbols))
	for k, v := range s.Symbols {
		vars[k] = v
	}
	var sources []string
	for _, f := range s.Formulas {
		sources = append(sources, f.ID)
	}
	completedAt := s.UpdatedAt
	if s.CompletedAt != nil {
		completedAt = *s.CompletedAt
	}
	return &Result{
		ID:             s.ID,
		Name:           s.Name,
		Expression:     s.Current,
		Variables:      vars,
		SourceFormulas: sources,
		Steps:          s.Steps.Clone(),
		Description:    opts.Description,
		Assumptions:    append([]string(nil), opts.Assumptions...),
		Limitations:    append([]string(nil), opts.Limitations...),
		References:     append([]string(nil), opts.References...),
		Tags:           append([]string(nil), opts.Tags...),
		Category:       opts.Category,
		CreatedAt:      s.CreatedAt,
		CompletedAt:    completedAt,
	}
}

// ResultPatch is the bounded metadata subset that may change after
// archival. Steps and the final expression are immutable.
type ResultPatch struct {
	Name               *string   `json:"name,omitempty" mapstructure:"name"`
	Description        *string   `json:"description,omitempty" mapstructure:"description"`
	Assumptions        *[]string `json:"assumptions,omitempty" mapstructure:"assumptions"`
	Limitations        *[]string `json:"limitations,omitempty" mapstructure:"limitations"`
	References         *[]string `json:"references,omitempty" mapstructure:"references"`
	Tags               *[]string `json:"tags,omitempty" mapstructure:"tags"`
	Category           *string   `json:"category,omitempty" mapstructure:"category"`
	Verified           *bool     `json:"verified,omitempty" mapstructure:"verified"`
	VerificationMethod *string   `json:"verification_method,omitempty" mapstructure:"verification_method"`
}

// Apply mutates the allowed metadata fields in place.
func (p ResultPatch) Apply(r *Result) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Assumptions != nil {
		r.Assumptions = append([]string(nil), (*p.Assumptions)...)
	}
	if p.Limitations != nil {
		r.Limitations = append([]string(nil), (*p.Limitations)...)
	}
	if p.References != nil {
		r.References = append([]string(nil), (*p.References)...)
	}
	if p.Tags != nil {
		r.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Verified != nil {
		r.Verified = *p.Verified
		if *p.Verified {
			now := time.Now().UTC()
			r.VerifiedAt = &now
		}
	}
	if p.VerificationMethod != nil {
		r.VerificationMethod = *p.VerificationMethod
	}
}
