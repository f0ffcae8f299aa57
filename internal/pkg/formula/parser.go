package formula

import (
	"sort"

	"github.com/shopspring/decimal"
)

// expr is an immutable AST node.
type expr interface {
	eval(vocab *Vocabulary, vars Variables) (decimal.Decimal, error)
}

type literalExpr struct {
	value decimal.Decimal
}

type variableExpr struct {
	name string
	pos  int
}

type unaryExpr struct {
	op    byte // '-'
	inner expr
}

type binaryExpr struct {
	op    byte // '+', '-', '*', '/'
	pos   int
	left  expr
	right expr
}

type callExpr struct {
	name string
	pos  int
	args []expr
}

// Program is a compiled formula: parsed once at concept registration,
// evaluated many times, safe for concurrent use.
type Program struct {
	src   string
	root  expr
	vocab *Vocabulary
	vars  map[string]struct{}
}

// Compile lexes and parses src, statically validating every identifier and
// function reference against vocab. The returned Program is immutable.
func Compile(src string, vocab *Vocabulary) (*Program, error) {
	p := &parser{lex: lexer{src: src}, vocab: vocab, vars: make(map[string]struct{})}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokenEOF {
		return nil, errf(ErrKindSyntax, p.cur.pos, "unexpected %q after expression", p.cur.text)
	}
	return &Program{src: src, root: root, vocab: vocab, vars: p.vars}, nil
}

// Source returns the original formula text.
func (p *Program) Source() string { return p.src }

// Variables returns the identifiers referenced by the formula, sorted.
func (p *Program) Variables() []string {
	names := make([]string, 0, len(p.vars))
	for name := range p.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// References reports whether the formula reads the named variable.
func (p *Program) References(name string) bool {
	_, ok := p.vars[name]
	return ok
}

// Evaluate resolves the formula against vars. It is stateless and
// side-effect free: identical inputs always produce identical output.
func (p *Program) Evaluate(vars Variables) (decimal.Decimal, error) {
	return p.root.eval(p.vocab, vars)
}

// PercentageParts recognizes the "<base-variable> * <rate>" shape used by
// percentage-type concepts and returns its pieces. ok is false for any
// other shape.
func (p *Program) PercentageParts() (variable string, rate decimal.Decimal, ok bool) {
	bin, isBin := p.root.(*binaryExpr)
	if !isBin || bin.op != '*' {
		return "", decimal.Decimal{}, false
	}
	v, isVar := bin.left.(*variableExpr)
	lit, isLit := bin.right.(*literalExpr)
	if !isVar || !isLit {
		return "", decimal.Decimal{}, false
	}
	return v.name, lit.value, true
}

type parser struct {
	lex   lexer
	cur   token
	vocab *Vocabulary
	vars  map[string]struct{}
}

func (p *parser) advance() *Error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseExpr() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenPlus || p.cur.kind == tokenMinus {
		op := byte('+')
		if p.cur.kind == tokenMinus {
			op = '-'
		}
		pos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, pos: pos, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenStar || p.cur.kind == tokenSlash {
		op := byte('*')
		if p.cur.kind == tokenSlash {
			op = '/'
		}
		pos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, pos: pos, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (expr, error) {
	switch p.cur.kind {
	case tokenMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: '-', inner: inner}, nil

	case tokenNumber:
		value, err := decimal.NewFromString(p.cur.text)
		if err != nil {
			return nil, errf(ErrKindSyntax, p.cur.pos, "malformed number %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &literalExpr{value: value}, nil

	case tokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokenRParen {
			return nil, errf(ErrKindSyntax, p.cur.pos, "expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokenIdent:
		name := p.cur.text
		pos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tokenLParen {
			return p.parseCall(name, pos)
		}
		if !p.vocab.HasVariable(name) {
			return nil, errf(ErrKindUnknownVariable, pos, "unknown variable %q", name)
		}
		p.vars[name] = struct{}{}
		return &variableExpr{name: name, pos: pos}, nil
	}

	return nil, errf(ErrKindSyntax, p.cur.pos, "unexpected %q", p.cur.text)
}

func (p *parser) parseCall(name string, pos int) (expr, error) {
	fn, ok := p.vocab.Function(name)
	if !ok {
		return nil, errf(ErrKindUnknownFunction, pos, "unknown function %q", name)
	}

	// consume '('
	if err := p.advance(); err != nil {
		return nil, err
	}

	var args []expr
	if p.cur.kind != tokenRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.cur.kind != tokenRParen {
		return nil, errf(ErrKindSyntax, p.cur.pos, "expected ')' closing call to %q", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if len(args) != fn.Arity {
		return nil, errf(ErrKindArity, pos, "%s expects %d argument(s), got %d", name, fn.Arity, len(args))
	}
	return &callExpr{name: name, pos: pos, args: args}, nil
}
