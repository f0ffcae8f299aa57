package formula

import "strings"

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, *Error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch c {
	case '+':
		l.pos++
		return token{kind: tokenPlus, text: "+", pos: start}, nil
	case '-':
		l.pos++
		return token{kind: tokenMinus, text: "-", pos: start}, nil
	case '*':
		l.pos++
		return token{kind: tokenStar, text: "*", pos: start}, nil
	case '/':
		l.pos++
		return token{kind: tokenSlash, text: "/", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokenComma, text: ",", pos: start}, nil
	}

	if isDigit(c) || c == '.' {
		sawDot := false
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if c == '.' {
				if sawDot {
					return token{}, errf(ErrKindSyntax, l.pos, "unexpected '.' in number")
				}
				sawDot = true
			} else if c == '_' {
				// digit separator, 2_400_000 reads better in seed formulas
			} else if !isDigit(c) {
				break
			}
			l.pos++
		}
		text := strings.ReplaceAll(l.src[start:l.pos], "_", "")
		if text == "." {
			return token{}, errf(ErrKindSyntax, start, "malformed number")
		}
		return token{kind: tokenNumber, text: text, pos: start}, nil
	}

	if isIdentStart(c) {
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.src[start:l.pos], pos: start}, nil
	}

	return token{}, errf(ErrKindSyntax, start, "unexpected character %q", string(c))
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
