package expr

import (
	"strings"
	"unicode"
)

// Unicode spellings commonly pasted from papers, normalized before
// tokenizing so both parsers see plain ASCII.
var symbolReplacements = []struct{ old, new string }{
	{"θ", "theta"}, {"Θ", "Theta"},
	{"α", "alpha"}, {"β", "beta"}, {"γ", "gamma"},
	{"δ", "delta"}, {"Δ", "Delta"}, {"ε", "epsilon"},
	{"λ", "lambda"}, {"μ", "mu"}, {"π", "pi"},
	{"σ", "sigma"}, {"τ", "tau"}, {"ω", "omega"}, {"Ω", "Omega"},
	{"∞", "oo"}, {"√", "sqrt"},
	{"²", "**2"}, {"³", "**3"},
	{"₀", "_0"}, {"₁", "_1"}, {"₂", "_2"}, {"₃", "_3"},
	{"ₐ", "_a"}, {"ₑ", "_e"}, {"ᵣ", "_r"},
	{"·", "*"}, {"×", "*"}, {"−", "-"},
}

func normalizeInput(s string) string {
	for _, r := range symbolReplacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return strings.TrimSpace(s)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp     // + - * / **
	tokLParen // (
	tokRParen // )
	tokComma
	tokEquals
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// tokenize splits normalized linear notation into tokens. The only error
// case is an unexpected rune.
func tokenize(input string) ([]token, *ParseError) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || (runes[i] == '.' && !seenDot)) {
				if runes[i] == '.' {
					seenDot = true
				}
				i++
			}
			// scientific notation: 1.5e-3
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					i = j
					for i < len(runes) && unicode.IsDigit(runes[i]) {
						i++
					}
				}
			}
			toks = append(toks, token{tokNumber, string(runes[start:i]), start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i]), start})
		case r == '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				toks = append(toks, token{tokOp, "**", i})
				i += 2
			} else {
				toks = append(toks, token{tokOp, "*", i})
				i++
			}
		case r == '^':
			toks = append(toks, token{tokOp, "**", i})
			i++
		case r == '+' || r == '-' || r == '/':
			toks = append(toks, token{tokOp, string(r), i})
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '=':
			toks = append(toks, token{tokEquals, "=", i})
			i++
		default:
			return nil, newParseError(KindMalformedSyntax, i, input,
				"unexpected character %q", string(r))
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes)})
	return toks, nil
}
