package expr

import "strings"

// Constraint is a domain constraint on a variable.
type Constraint string

const (
	ConstraintReal     Constraint = "real"
	ConstraintPositive Constraint = "positive"
	ConstraintNegative Constraint = "negative"
	ConstraintInteger  Constraint = "integer"
	ConstraintNonzero  Constraint = "nonzero"
	ConstraintComplex  Constraint = "complex"
)

var validConstraints = map[Constraint]bool{
	ConstraintReal:     true,
	ConstraintPositive: true,
	ConstraintNegative: true,
	ConstraintInteger:  true,
	ConstraintNonzero:  true,
	ConstraintComplex:  true,
}

// ValidConstraint reports whether c belongs to the closed constraint set.
func ValidConstraint(c Constraint) bool { return validConstraints[c] }

// Variable is the metadata attached to one free variable of an expression.
type Variable struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Constraint  Constraint `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Value       *float64   `json:"value,omitempty" yaml:"value,omitempty"`
}

// Naming conventions used to seed a default constraint when the caller
// supplies none. Mirrors the usual physics/engineering reading: masses,
// rate constants, temperatures, volumes and times are positive; angles
// are plain reals.
var (
	positivePrefixes = []string{"m", "M", "k", "K", "T", "V", "C", "R", "t", "tau", "omega"}
	angleNames       = map[string]bool{
		"theta": true, "phi": true, "psi": true,
		"alpha": true, "beta": true, "gamma": true,
	}
)

func inferConstraint(name string) Constraint {
	if angleNames[name] {
		return ConstraintReal
	}
	for _, p := range positivePrefixes {
		if name == p || strings.HasPrefix(name, p) {
			return ConstraintPositive
		}
	}
	return ConstraintReal
}
