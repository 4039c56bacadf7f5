package revset

import (
	"fmt"
	"strconv"
)

// Expr is a parsed revset expression.
type Expr interface {
	exprSpan() Span
}

type symbolExpr struct {
	name string
	sp   Span
}

type intExpr struct {
	value uint64
	text  string
	sp    Span
}

type funcExpr struct {
	name string
	args []Expr
	sp   Span
}

type binaryExpr struct {
	op   tokenKind // tokPipe, tokAmp, tokMinus (difference)
	l, r Expr
	sp   Span
}

type notExpr struct {
	x  Expr
	sp Span
}

type rangeExpr struct {
	lo, hi Expr
	sp     Span
}

func (e *symbolExpr) exprSpan() Span { return e.sp }
func (e *intExpr) exprSpan() Span    { return e.sp }
func (e *funcExpr) exprSpan() Span   { return e.sp }
func (e *binaryExpr) exprSpan() Span { return e.sp }
func (e *notExpr) exprSpan() Span    { return e.sp }
func (e *rangeExpr) exprSpan() Span  { return e.sp }

// arity of the fixed function library; -1 marks the optional second
// argument of ancestors.
var functions = map[string][2]int{
	"ancestors":   {1, 2},
	"descendants": {1, 1},
	"roots":       {1, 1},
	"heads":       {1, 1},
	"parents":     {1, 1},
	"children":    {1, 1},
	"range":       {2, 2},
	"all":         {0, 0},
	"none":        {0, 0},
}

// Parse expands aliases and parses a query.
//
// Operator precedence, loosest first: union '|'; then intersection '&' and
// difference ('-' or infix '~'); then the range operator 'a..b'; then
// prefix '~' (complement). A '-' with symbol characters on both sides binds
// into the symbol ("bug-fix"), so the difference operator needs spacing.
func Parse(src string, aliases map[string]string) (Expr, error) {
	expanded, err := expandAliases(src, aliases)
	if err != nil {
		return nil, err
	}
	toks, err := lex(expanded)
	if err != nil {
		return nil, err
	}
	p := &parser{src: expanded, toks: toks}
	expr, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf(p.peek().span, "unexpected %s", p.peek().kind)
	}
	return expr, nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(sp Span, format string, args ...any) error {
	// The EOF token carries the empty span {len, len}; anchor such errors
	// on the last input byte so the span always has width.
	if sp.Start >= sp.End {
		sp.Start = len(p.src) - 1
		if sp.Start < 0 {
			sp.Start = 0
		}
		sp.End = sp.Start + 1
	}
	return &SyntaxError{Source: p.src, Span: sp, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseUnion() (Expr, error) {
	l, err := p.parseIntersect()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPipe {
		op := p.next()
		r, err := p.parseIntersect()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: tokPipe, l: l, r: r, sp: op.span}
	}
	return l, nil
}

func (p *parser) parseIntersect() (Expr, error) {
	l, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAmp:
			op := p.next()
			r, err := p.parseRange()
			if err != nil {
				return nil, err
			}
			l = &binaryExpr{op: tokAmp, l: l, r: r, sp: op.span}
		case tokMinus, tokTilde:
			op := p.next()
			r, err := p.parseRange()
			if err != nil {
				return nil, err
			}
			l = &binaryExpr{op: tokMinus, l: l, r: r, sp: op.span}
		default:
			return l, nil
		}
	}
}

func (p *parser) parseRange() (Expr, error) {
	lo, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokDotDot {
		return lo, nil
	}
	op := p.next()
	hi, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	return &rangeExpr{lo: lo, hi: hi, sp: op.span}, nil
}

func (p *parser) parsePrefix() (Expr, error) {
	if p.peek().kind == tokTilde {
		op := p.next()
		x, err := p.parsePrefix()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x, sp: op.span}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokSymbol:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if v, err := strconv.ParseUint(t.text, 10, 64); err == nil {
			return &intExpr{value: v, text: t.text, sp: t.span}, nil
		}
		return &symbolExpr{name: t.text, sp: t.span}, nil
	case tokAt:
		return &symbolExpr{name: "@", sp: t.span}, nil
	case tokLParen:
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing.span, "expected ')', found %s", closing.kind)
		}
		return inner, nil
	default:
		return nil, p.errorf(t.span, "expected expression, found %s", t.kind)
	}
}

func (p *parser) parseCall(name token) (Expr, error) {
	arity, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name.span, "unknown function %q", name.text)
	}
	p.next() // consume '('

	var args []Expr
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, p.errorf(closing.span, "expected ')', found %s", closing.kind)
	}
	if len(args) < arity[0] || len(args) > arity[1] {
		if arity[0] == arity[1] {
			return nil, p.errorf(name.span, "%s() takes %d argument(s), got %d",
				name.text, arity[0], len(args))
		}
		return nil, p.errorf(name.span, "%s() takes %d to %d arguments, got %d",
			name.text, arity[0], arity[1], len(args))
	}
	if name.text == "ancestors" && len(args) == 2 {
		if _, ok := args[1].(*intExpr); !ok {
			return nil, p.errorf(args[1].exprSpan(), "ancestors() depth must be an integer literal")
		}
	}
	return &funcExpr{name: name.text, args: args, sp: name.span}, nil
}
