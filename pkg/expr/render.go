package expr

import (
	"fmt"
	"strings"
)

// Rendering precedence. A child is parenthesized when its precedence is
// lower than what its slot requires, which keeps renderings re-parseable
// into structurally equal trees.
func nodePrec(n Node) int {
	switch t := n.(type) {
	case Equation:
		return 0
	case Unary:
		return 2
	case Binary:
		switch t.Op {
		case "+", "-":
			return 2
		case "*", "/":
			return 3
		case "**":
			return 4
		}
	}
	return 5 // Number, Symbol, Call
}

// renderCanonical emits the canonical linear form.
func renderCanonical(n Node) string { return renderLin(n, 0) }

func renderLin(n Node, min int) string {
	var s string
	switch t := n.(type) {
	case Number:
		s = t.Literal
	case Symbol:
		s = t.Name
	case Call:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = renderLin(a, 0)
		}
		s = t.Fn + "(" + strings.Join(args, ", ") + ")"
	case Unary:
		s = "-" + renderLin(t.X, 3)
	case Binary:
		switch t.Op {
		case "+", "-":
			s = renderLin(t.L, 2) + " " + t.Op + " " + renderLin(t.R, 3)
		case "*", "/":
			s = renderLin(t.L, 3) + t.Op + renderLin(t.R, 4)
		case "**":
			s = renderLin(t.L, 5) + "**" + renderLin(t.R, 4)
		}
	case Equation:
		s = renderLin(t.L, 1) + " = " + renderLin(t.R, 1)
	}
	if nodePrec(n) < min {
		return "(" + s + ")"
	}
	return s
}

// Names rendered as LaTeX commands rather than plain letters.
var latexGreek = map[string]bool{
	"alpha": true, "beta": true, "gamma": true, "delta": true,
	"epsilon": true, "zeta": true, "eta": true, "theta": true,
	"kappa": true, "lambda": true, "mu": true, "nu": true,
	"xi": true, "rho": true, "sigma": true, "tau": true,
	"phi": true, "chi": true, "psi": true, "omega": true,
	"Gamma": true, "Delta": true, "Theta": true, "Lambda": true,
	"Sigma": true, "Phi": true, "Psi": true, "Omega": true,
	"pi": true,
}

func latexSymbol(name string) string {
	base, sub, hasSub := strings.Cut(name, "_")
	if latexGreek[base] {
		base = `\` + base
	} else if base == "oo" {
		base = `\infty`
	}
	if hasSub {
		return fmt.Sprintf("%s_{%s}", base, sub)
	}
	return base
}

// renderLaTeX emits typeset markup for handoff payloads and display.
func renderLaTeX(n Node, min bool) string {
	switch t := n.(type) {
	case Number:
		return t.Literal
	case Symbol:
		return latexSymbol(t.Name)
	case Call:
		switch t.Fn {
		case "exp":
			return "e^{" + renderLaTeX(t.Args[0], false) + "}"
		case "sqrt":
			return `\sqrt{` + renderLaTeX(t.Args[0], false) + "}"
		}
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = renderLaTeX(a, false)
		}
		fn := t.Fn
		if funcCommands[fn] {
			fn = `\` + fn
		}
		return fn + `\left(` + strings.Join(args, ", ") + `\right)`
	case Unary:
		s := "-" + renderLaTeX(t.X, true)
		if min {
			return `\left(` + s + `\right)`
		}
		return s
	case Binary:
		switch t.Op {
		case "+", "-":
			s := renderLaTeX(t.L, false) + " " + t.Op + " " + renderLaTeX(t.R, true)
			if min {
				return `\left(` + s + `\right)`
			}
			return s
		case "*":
			return renderLaTeX(t.L, true) + ` \cdot ` + renderLaTeX(t.R, true)
		case "/":
			return `\frac{` + renderLaTeX(t.L, false) + "}{" + renderLaTeX(t.R, false) + "}"
		case "**":
			base := renderLaTeX(t.L, true)
			if nodePrec(t.L) < 5 {
				base = `\left(` + renderLaTeX(t.L, false) + `\right)`
			}
			return base + "^{" + renderLaTeX(t.R, false) + "}"
		}
	case Equation:
		return renderLaTeX(t.L, false) + " = " + renderLaTeX(t.R, false)
	}
	return ""
}
