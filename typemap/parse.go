package typemap

import (
	"fmt"
	"strings"
)

// Error reports a WIT type expression that could not be mapped.
type Error struct {
	Expr string // Full expression being mapped.
	Pos  int    // Byte offset of the offending token.
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("type %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// node is one parsed WIT type expression: a name and its angle-bracket arguments.
type node struct {
	name    string
	pos     int
	args    []*node
	generic bool // true when written with <...>, even if empty
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLAngle
	tokRAngle
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type exprParser struct {
	expr string
	toks []token
	i    int
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c == '%' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '<':
			toks = append(toks, token{kind: tokLAngle, text: "<", pos: i})
			i++
		case c == '>':
			toks = append(toks, token{kind: tokRAngle, text: ">", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case isIdentByte(c):
			start := i
			for i < len(expr) && isIdentByte(expr[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: expr[start:i], pos: start})
		default:
			return nil, &Error{Expr: expr, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(expr)})
	return toks, nil
}

func parse(expr string) (*node, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{expr: expr, toks: toks}
	n, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q after type", t.text)
	}
	return n, nil
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) errorf(t token, format string, args ...any) error {
	return &Error{Expr: p.expr, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) parseType() (*node, error) {
	t := p.next()
	if t.kind != tokIdent {
		if t.kind == tokEOF {
			return nil, p.errorf(t, "missing type")
		}
		return nil, p.errorf(t, "expected type name, got %q", t.text)
	}
	n := &node{name: strings.TrimPrefix(t.text, "%"), pos: t.pos}
	if p.peek().kind != tokLAngle {
		return n, nil
	}
	p.next()
	n.generic = true
	if p.peek().kind == tokRAngle {
		p.next()
		return n, nil
	}
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		n.args = append(n.args, arg)
		switch t := p.next(); t.kind {
		case tokComma:
			continue
		case tokRAngle:
			return n, nil
		case tokEOF:
			return nil, p.errorf(t, "unterminated type arguments for %s", n.name)
		default:
			return nil, p.errorf(t, "expected ',' or '>', got %q", t.text)
		}
	}
}
