package expr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

type boolNode interface {
	eval(s scope) (bool, error)
}

type operand interface {
	value(s scope) any
}

type orNode struct{ left, right boolNode }

func (n orNode) eval(s scope) (bool, error) {
	ok, err := n.left.eval(s)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(s)
}

type andNode struct{ left, right boolNode }

func (n andNode) eval(s scope) (bool, error) {
	ok, err := n.left.eval(s)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(s)
}

type notNode struct{ inner boolNode }

func (n notNode) eval(s scope) (bool, error) {
	ok, err := n.inner.eval(s)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type truthyNode struct{ inner operand }

func (n truthyNode) eval(s scope) (bool, error) {
	return truthy(n.inner.value(s)), nil
}

type matchNode struct {
	inner operand
	re    *regexp.Regexp
}

func (n matchNode) eval(s scope) (bool, error) {
	v := n.inner.value(s)
	if v == nil {
		return false, nil
	}
	return n.re.MatchString(coerceString(v)), nil
}

type compareNode struct {
	left, right operand
	op          tokenKind
}

func (n compareNode) eval(s scope) (bool, error) {
	return compare(n.left.value(s), n.right.value(s), n.op)
}

type literalOperand struct{ v any }

func (o literalOperand) value(scope) any { return o.v }

type identOperand struct {
	name   string
	length bool
}

func (o identOperand) value(s scope) any {
	v, ok := s.lookup(o.name)
	if o.length {
		if !ok {
			return float64(0)
		}
		return float64(utf8.RuneCountInString(coerceString(v)))
	}
	if !ok {
		return nil
	}
	return v
}

type lenOperand struct{ inner operand }

func (o lenOperand) value(s scope) any {
	v := o.inner.value(s)
	if v == nil {
		return float64(0)
	}
	return float64(utf8.RuneCountInString(coerceString(v)))
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) peek() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	return s.tokens[s.pos], true
}

func (s *tokenStream) match(kind tokenKind) bool {
	tok, ok := s.peek()
	if !ok || tok.kind != kind {
		return false
	}
	s.pos++
	return true
}

func parseOr(stream *tokenStream) (boolNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (boolNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (boolNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (boolNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("expr: missing closing ')'")
		}
		return inner, nil
	}

	left, err := parseOperand(stream)
	if err != nil {
		return nil, err
	}

	tok, ok := stream.peek()
	if !ok {
		return truthyNode{inner: left}, nil
	}
	switch tok.kind {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		stream.pos++
		right, err := parseOperand(stream)
		if err != nil {
			return nil, err
		}
		return compareNode{left: left, right: right, op: tok.kind}, nil
	case tokenMatches:
		stream.pos++
		pattern, ok := stream.peek()
		if !ok || pattern.kind != tokenString {
			return nil, errors.New("expr: matches expects a string pattern")
		}
		stream.pos++
		re, err := regexp.Compile(pattern.raw)
		if err != nil {
			return nil, fmt.Errorf("expr: invalid pattern %q: %w", pattern.raw, err)
		}
		return matchNode{inner: left, re: re}, nil
	}
	return truthyNode{inner: left}, nil
}

func parseOperand(stream *tokenStream) (operand, error) {
	tok, ok := stream.peek()
	if !ok {
		return nil, errors.New("expr: unexpected end of expression")
	}
	stream.pos++

	switch tok.kind {
	case tokenString:
		return literalOperand{v: tok.raw}, nil
	case tokenNumber:
		f, _ := strconv.ParseFloat(tok.raw, 64)
		return literalOperand{v: f}, nil
	case tokenBool:
		return literalOperand{v: tok.raw == "true"}, nil
	case tokenNull:
		return literalOperand{v: nil}, nil
	case tokenIdentifier:
		if tok.raw == "len" && stream.match(tokenLParen) {
			inner, err := parseOperand(stream)
			if err != nil {
				return nil, err
			}
			if !stream.match(tokenRParen) {
				return nil, errors.New("expr: missing closing ')' after len")
			}
			return lenOperand{inner: inner}, nil
		}
		if name, ok := strings.CutSuffix(tok.raw, ".length"); ok && name != "" {
			return identOperand{name: name, length: true}, nil
		}
		return identOperand{name: tok.raw}, nil
	default:
		return nil, fmt.Errorf("expr: expected value, got %q", tok.raw)
	}
}
