package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenMatches
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '!', '=', '&', '|', '<', '>', '"', '\'':
		return true
	}
	return isSpace(c)
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	for i < len(input) {
		ch := input[i]
		if isSpace(ch) {
			i++
			continue
		}

		switch ch {
		case '(':
			i++
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			continue
		case ')':
			i++
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			continue
		case '!':
			i++
			if peek(0) == '=' {
				i++
				if peek(0) == '=' {
					i++
				}
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			continue
		case '=':
			if peek(1) != '=' {
				return nil, errors.New("expr: unexpected '='; use '=='")
			}
			i += 2
			if peek(0) == '=' {
				i++
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			continue
		case '<':
			i++
			if peek(0) == '=' {
				i++
				tokens = append(tokens, token{kind: tokenLte, raw: "<="})
				continue
			}
			tokens = append(tokens, token{kind: tokenLt, raw: "<"})
			continue
		case '>':
			i++
			if peek(0) == '=' {
				i++
				tokens = append(tokens, token{kind: tokenGte, raw: ">="})
				continue
			}
			tokens = append(tokens, token{kind: tokenGt, raw: ">"})
			continue
		case '&':
			if peek(1) != '&' {
				return nil, errors.New("expr: unexpected '&'; use '&&'")
			}
			i += 2
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			continue
		case '|':
			if peek(1) != '|' {
				return nil, errors.New("expr: unexpected '|'; use '||'")
			}
			i += 2
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			continue
		case '"', '\'':
			value, next, err := readString(input, i)
			if err != nil {
				return nil, err
			}
			i = next
			tokens = append(tokens, token{kind: tokenString, raw: value})
			continue
		}

		start := i
		for i < len(input) && !isDelimiter(input[i]) {
			i++
		}
		raw := input[start:i]
		switch raw {
		case "true", "false":
			tokens = append(tokens, token{kind: tokenBool, raw: raw})
		case "null", "undefined":
			tokens = append(tokens, token{kind: tokenNull, raw: "null"})
		case "matches":
			tokens = append(tokens, token{kind: tokenMatches, raw: raw})
		default:
			if looksLikeNumber(raw) {
				if _, err := strconv.ParseFloat(raw, 64); err != nil {
					return nil, fmt.Errorf("expr: invalid number %q", raw)
				}
				tokens = append(tokens, token{kind: tokenNumber, raw: raw})
			} else {
				tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
			}
		}
	}
	return tokens, nil
}

// readString reads a quoted literal starting at input[start] and returns the
// unescaped value plus the index after the closing quote. Only \\ and an
// escaped quote are interpreted, so "\d" and "\\d" both reach regexp as \d.
func readString(input string, start int) (string, int, error) {
	quote := input[start]
	var b strings.Builder
	for i := start + 1; i < len(input); i++ {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			next := input[i+1]
			if next == quote || next == '\\' {
				b.WriteByte(next)
				i++
				continue
			}
			b.WriteByte(c)
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("expr: unterminated string literal")
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	if ch == '-' || ch == '+' {
		return len(raw) > 1 && raw[1] >= '0' && raw[1] <= '9'
	}
	return ch >= '0' && ch <= '9'
}
