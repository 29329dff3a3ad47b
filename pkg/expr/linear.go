package expr

// linearParser is a recursive-descent parser for algebraic/function
// notation: infix operators, function calls, named constants, and an
// optional single top-level "=".
type linearParser struct {
	input string
	toks  []token
	i     int
}

func parseLinear(raw string) (Node, *ParseError) {
	input := normalizeInput(raw)
	if input == "" {
		return nil, newParseError(KindMalformedSyntax, 0, raw, "empty expression")
	}
	toks, perr := tokenize(input)
	if perr != nil {
		return nil, perr
	}
	p := &linearParser{input: input, toks: toks}
	node, perr := p.parseTop()
	if perr != nil {
		return nil, perr
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf(p.peek().pos, "unexpected %q after expression", p.peek().text)
	}
	return node, nil
}

func (p *linearParser) peek() token { return p.toks[p.i] }

func (p *linearParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *linearParser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.i++
		return true
	}
	return false
}

func (p *linearParser) errorf(pos int, format string, args ...any) *ParseError {
	return newParseError(KindMalformedSyntax, pos, p.input, format, args...)
}

// parseTop handles an optional single equation.
func (p *linearParser) parseTop() (Node, *ParseError) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEquals {
		return lhs, nil
	}
	eq := p.next()
	rhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokEquals {
		return nil, p.errorf(p.peek().pos, "an equation has exactly one %q", "=")
	}
	_ = eq
	return Equation{L: lhs, R: rhs}, nil
}

// parseAdd: ["-"] mul { ("+"|"-") mul }. A leading minus negates the whole
// first multiplicative term so "-k*t" and typeset "-kt" agree structurally.
func (p *linearParser) parseAdd() (Node, *ParseError) {
	var left Node
	if p.acceptOp("-") {
		term, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = Unary{Op: "-", X: term}
	} else {
		var err *ParseError
		left, err = p.parseMul()
		if err != nil {
			return nil, err
		}
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text, L: left, R: right}
	}
}

// parseMul: pow { ("*"|"/") pow }.
func (p *linearParser) parseMul() (Node, *ParseError) {
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text, L: left, R: right}
	}
}

// parsePow: ["-"] atom ["**" pow]. Exponentiation is right-associative.
func (p *linearParser) parsePow() (Node, *ParseError) {
	if p.acceptOp("-") {
		x, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", X: x}, nil
	}
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.acceptOp("**") {
		exp, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		// e raised to a power is the exp function, matching the typeset
		// reading of e^{x}.
		if sym, ok := base.(Symbol); ok && sym.Name == "e" {
			return Call{Fn: "exp", Args: []Node{exp}}, nil
		}
		return Binary{Op: "**", L: base, R: exp}, nil
	}
	return base, nil
}

func (p *linearParser) parseAtom() (Node, *ParseError) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return Number{Literal: t.text}, nil
	case tokIdent:
		p.next()
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return Symbol{Name: t.text}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf(p.peek().pos, "missing closing parenthesis")
		}
		p.next()
		return inner, nil
	case tokOp:
		return nil, p.errorf(t.pos, "unexpected operator %q", t.text)
	case tokEOF:
		return nil, p.errorf(t.pos, "unexpected end of expression")
	default:
		return nil, p.errorf(t.pos, "unexpected %q", t.text)
	}
}

func (p *linearParser) parseCall(fn token) (Node, *ParseError) {
	p.next() // consume "("
	var args []Node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if p.peek().kind != tokRParen {
		return nil, p.errorf(p.peek().pos, "missing closing parenthesis in call to %s", fn.text)
	}
	p.next()
	if len(args) == 0 {
		return nil, p.errorf(fn.pos, "function %s called with no arguments", fn.text)
	}
	return Call{Fn: canonicalFn(fn.text), Args: args}, nil
}

// canonicalFn folds function-name aliases onto one spelling.
func canonicalFn(name string) string {
	switch name {
	case "ln":
		return "log"
	}
	return name
}
