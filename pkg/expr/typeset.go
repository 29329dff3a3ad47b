package expr

import (
	"strings"
	"unicode"
)

// typeset tokens
type tsKind int

const (
	tsEOF tsKind = iota
	tsNumber
	tsLetter  // single letter, multiplied by adjacency
	tsIdent   // multi-letter name (from \mathrm{..} or greek commands)
	tsCommand // \frac, \cdot, ...
	tsCaret
	tsUnderscore
	tsLBrace
	tsRBrace
	tsLParen
	tsRParen
	tsOp // + - * /
	tsEquals
)

type tsToken struct {
	kind tsKind
	text string
	pos  int
}

var greekCommands = map[string]bool{
	"alpha": true, "beta": true, "gamma": true, "delta": true,
	"epsilon": true, "zeta": true, "eta": true, "theta": true,
	"iota": true, "kappa": true, "lambda": true, "mu": true,
	"nu": true, "xi": true, "rho": true, "sigma": true,
	"tau": true, "phi": true, "chi": true, "psi": true, "omega": true,
	"Gamma": true, "Delta": true, "Theta": true, "Lambda": true,
	"Sigma": true, "Phi": true, "Psi": true, "Omega": true,
	"pi": true, "infty": true,
}

var funcCommands = map[string]bool{
	"exp": true, "log": true, "ln": true, "sin": true, "cos": true,
	"tan": true, "arcsin": true, "arccos": true, "arctan": true,
	"sinh": true, "cosh": true, "tanh": true,
}

// spacing commands carry no meaning and are dropped.
var spacingCommands = map[string]bool{
	",": true, ";": true, "!": true, "quad": true, "qquad": true,
}

func normalizeTypeset(s string) string {
	repl := []struct{ old, new string }{
		{"²", "^2"}, {"³", "^3"},
		{"·", `\cdot `}, {"×", `\times `}, {"−", "-"},
		{"θ", `\theta `}, {"α", `\alpha `}, {"β", `\beta `},
		{"γ", `\gamma `}, {"δ", `\delta `}, {"λ", `\lambda `},
		{"μ", `\mu `}, {"π", `\pi `}, {"σ", `\sigma `},
		{"τ", `\tau `}, {"ω", `\omega `}, {"∞", `\infty `},
	}
	for _, r := range repl {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return strings.TrimSpace(s)
}

func tokenizeTypeset(input string) ([]tsToken, *ParseError) {
	var toks []tsToken
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\\':
			start := i
			i++
			if i < len(runes) && !unicode.IsLetter(runes[i]) {
				// single-character command like \, or \;
				cmd := string(runes[i])
				i++
				if spacingCommands[cmd] {
					continue
				}
				return nil, newParseError(KindMalformedMarkup, start, input,
					"unsupported markup command \\%s", cmd)
			}
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}
			cmd := string(runes[start+1 : i])
			if spacingCommands[cmd] {
				continue
			}
			toks = append(toks, tsToken{tsCommand, cmd, start})
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || (runes[i] == '.' && !seenDot)) {
				if runes[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, tsToken{tsNumber, string(runes[start:i]), start})
		case unicode.IsLetter(r):
			toks = append(toks, tsToken{tsLetter, string(r), i})
			i++
		case r == '^':
			toks = append(toks, tsToken{tsCaret, "^", i})
			i++
		case r == '_':
			toks = append(toks, tsToken{tsUnderscore, "_", i})
			i++
		case r == '{':
			toks = append(toks, tsToken{tsLBrace, "{", i})
			i++
		case r == '}':
			toks = append(toks, tsToken{tsRBrace, "}", i})
			i++
		case r == '(':
			toks = append(toks, tsToken{tsLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, tsToken{tsRParen, ")", i})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, tsToken{tsOp, string(r), i})
			i++
		case r == '=':
			toks = append(toks, tsToken{tsEquals, "=", i})
			i++
		default:
			return nil, newParseError(KindMalformedMarkup, i, input,
				"unexpected character %q in markup", string(r))
		}
	}
	toks = append(toks, tsToken{tsEOF, "", len(runes)})
	return toks, nil
}

// typesetParser parses LaTeX-style markup into the same AST the linear
// parser produces, so the two notations compare structurally equal.
type typesetParser struct {
	input string
	toks  []tsToken
	i     int
}

func parseTypeset(raw string) (Node, *ParseError) {
	input := normalizeTypeset(raw)
	if input == "" {
		return nil, newParseError(KindMalformedMarkup, 0, raw, "empty expression")
	}
	if strings.Count(input, "{") != strings.Count(input, "}") {
		return nil, newParseError(KindMalformedMarkup, -1, input, "unmatched braces")
	}
	toks, perr := tokenizeTypeset(input)
	if perr != nil {
		return nil, perr
	}
	p := &typesetParser{input: input, toks: toks}
	node, perr := p.parseTop()
	if perr != nil {
		return nil, perr
	}
	if p.peek().kind != tsEOF {
		return nil, p.errorf(p.peek().pos, "unexpected %q after expression", p.peek().text)
	}
	return node, nil
}

func (p *typesetParser) peek() tsToken { return p.toks[p.i] }

func (p *typesetParser) next() tsToken {
	t := p.toks[p.i]
	if t.kind != tsEOF {
		p.i++
	}
	return t
}

func (p *typesetParser) errorf(pos int, format string, args ...any) *ParseError {
	return newParseError(KindMalformedMarkup, pos, p.input, format, args...)
}

func (p *typesetParser) parseTop() (Node, *ParseError) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tsEquals {
		return lhs, nil
	}
	p.next()
	rhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tsEquals {
		return nil, p.errorf(p.peek().pos, "an equation has exactly one %q", "=")
	}
	return Equation{L: lhs, R: rhs}, nil
}

func (p *typesetParser) parseAdd() (Node, *ParseError) {
	var left Node
	if t := p.peek(); t.kind == tsOp && t.text == "-" {
		p.next()
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Unary{Op: "-", X: term}
	} else {
		var err *ParseError
		left, err = p.parseTerm()
		if err != nil {
			return nil, err
		}
	}
	for {
		t := p.peek()
		if t.kind != tsOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text, L: left, R: right}
	}
}

// parseTerm multiplies factors joined by \cdot, \times, explicit "*" or
// "/", or plain adjacency ("kt", "C_0 e^{-kt}").
func (p *typesetParser) parseTerm() (Node, *ParseError) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tsOp && (t.text == "*" || t.text == "/"):
			p.next()
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = Binary{Op: t.text, L: left, R: right}
		case t.kind == tsCommand && (t.text == "cdot" || t.text == "times"):
			p.next()
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = Binary{Op: "*", L: left, R: right}
		case p.startsFactor(t):
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = Binary{Op: "*", L: left, R: right}
		default:
			return left, nil
		}
	}
}

// startsFactor reports whether a token can begin a multiplicand, which is
// what makes adjacency multiplication unambiguous.
func (p *typesetParser) startsFactor(t tsToken) bool {
	switch t.kind {
	case tsNumber, tsLetter, tsIdent, tsLBrace, tsLParen:
		return true
	case tsCommand:
		return t.text == "frac" || t.text == "sqrt" || t.text == "left" ||
			greekCommands[t.text] || funcCommands[t.text]
	}
	return false
}

// parseFactor: base with optional ^exponent (right-associative).
func (p *typesetParser) parseFactor() (Node, *ParseError) {
	if t := p.peek(); t.kind == tsOp && t.text == "-" {
		p.next()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", X: x}, nil
	}
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tsCaret {
		p.next()
		exp, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		// Euler's number with an exponent reads as the exp function.
		if sym, ok := base.(Symbol); ok && sym.Name == "e" {
			return Call{Fn: "exp", Args: []Node{exp}}, nil
		}
		return Binary{Op: "**", L: base, R: exp}, nil
	}
	return base, nil
}

func (p *typesetParser) parseExponent() (Node, *ParseError) {
	if p.peek().kind == tsLBrace {
		return p.parseGroup()
	}
	return p.parseFactor()
}

func (p *typesetParser) parseBase() (Node, *ParseError) {
	t := p.peek()
	switch t.kind {
	case tsNumber:
		p.next()
		return Number{Literal: t.text}, nil
	case tsLetter, tsIdent:
		p.next()
		name := t.text
		if p.peek().kind == tsUnderscore {
			sub, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			name += "_" + sub
		}
		return Symbol{Name: name}, nil
	case tsLBrace:
		return p.parseGroup()
	case tsLParen:
		p.next()
		inner, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tsRParen {
			return nil, p.errorf(p.peek().pos, "missing closing parenthesis")
		}
		p.next()
		return inner, nil
	case tsCommand:
		return p.parseCommand()
	case tsEOF:
		return nil, p.errorf(t.pos, "unexpected end of expression")
	default:
		return nil, p.errorf(t.pos, "unexpected %q", t.text)
	}
}

func (p *typesetParser) parseCommand() (Node, *ParseError) {
	t := p.next()
	switch {
	case t.text == "frac":
		num, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		den, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return Binary{Op: "/", L: num, R: den}, nil
	case t.text == "sqrt":
		arg, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return Call{Fn: "sqrt", Args: []Node{arg}}, nil
	case t.text == "left":
		if p.peek().kind != tsLParen {
			return nil, p.errorf(p.peek().pos, `\left must be followed by "("`)
		}
		p.next()
		inner, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tsCommand || p.peek().text != "right" {
			return nil, p.errorf(p.peek().pos, `missing \right`)
		}
		p.next()
		if p.peek().kind != tsRParen {
			return nil, p.errorf(p.peek().pos, `\right must be followed by ")"`)
		}
		p.next()
		return inner, nil
	case t.text == "mathrm" || t.text == "text":
		name, err := p.flattenGroup()
		if err != nil {
			return nil, err
		}
		return Symbol{Name: name}, nil
	case greekCommands[t.text]:
		name := t.text
		if name == "infty" {
			name = "oo"
		}
		if p.peek().kind == tsUnderscore {
			sub, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			name += "_" + sub
		}
		return Symbol{Name: name}, nil
	case funcCommands[t.text]:
		arg, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Call{Fn: canonicalFn(t.text), Args: []Node{arg}}, nil
	default:
		return nil, p.errorf(t.pos, "unsupported markup command \\%s", t.text)
	}
}

// parseGroup parses a {...} group as a full expression.
func (p *typesetParser) parseGroup() (Node, *ParseError) {
	if p.peek().kind != tsLBrace {
		return nil, p.errorf(p.peek().pos, "expected {")
	}
	p.next()
	inner, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tsRBrace {
		return nil, p.errorf(p.peek().pos, "missing closing brace")
	}
	p.next()
	return inner, nil
}

// parseSubscript reads the token(s) after "_" as literal text, folding
// them into the symbol name: C_{0} -> C_0, T_{ref} -> T_ref.
func (p *typesetParser) parseSubscript() (string, *ParseError) {
	p.next() // consume "_"
	if p.peek().kind == tsLBrace {
		return p.flattenGroup()
	}
	t := p.next()
	if t.kind != tsLetter && t.kind != tsNumber && t.kind != tsIdent {
		return "", p.errorf(t.pos, "invalid subscript %q", t.text)
	}
	return t.text, nil
}

// flattenGroup concatenates the literal text of a {...} group.
func (p *typesetParser) flattenGroup() (string, *ParseError) {
	if p.peek().kind != tsLBrace {
		return "", p.errorf(p.peek().pos, "expected {")
	}
	p.next()
	var sb strings.Builder
	for {
		t := p.peek()
		switch t.kind {
		case tsRBrace:
			p.next()
			if sb.Len() == 0 {
				return "", p.errorf(t.pos, "empty group")
			}
			return sb.String(), nil
		case tsLetter, tsNumber, tsIdent, tsCommand:
			sb.WriteString(t.text)
			p.next()
		case tsEOF:
			return "", p.errorf(t.pos, "missing closing brace")
		default:
			return "", p.errorf(t.pos, "invalid token %q in subscript", t.text)
		}
	}
}
