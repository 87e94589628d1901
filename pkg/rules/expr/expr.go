// Package expr implements the closed predicate language used by custom field
// validation. Programs are parsed once and interpreted; they cannot perform
// I/O or reach anything outside the supplied Env.
//
// Supported syntax:
//   - literals: "text", 'text', 12, 1.5, true, false, null
//   - identifiers: value, values.<field>, <field>
//   - len(x) and the x.length alias
//   - comparisons: == != < <= > >= (=== and !== are accepted)
//   - x matches "regexp"
//   - boolean composition: ! && || and parentheses
//
// A leading arrow (`(v) => ...`, `v => { return ...; }`) is stripped and its
// parameter becomes an alias of value.
package expr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Env carries the data a program can read.
type Env struct {
	// Value is the value of the field being validated.
	Value string
	// Values holds every field value of the form, keyed by name.
	Values map[string]string
}

// Program is a compiled predicate.
type Program struct {
	source string
	param  string
	root   boolNode
}

// ErrEmpty is returned when the source contains no expression.
var ErrEmpty = errors.New("expr: empty expression")

var arrowPrefix = regexp.MustCompile(`^(?:\(\s*([A-Za-z_$][\w$]*)?\s*\)|([A-Za-z_$][\w$]*))\s*=>\s*`)

// Compile parses src into a Program.
func Compile(src string) (*Program, error) {
	body, param := stripFunctionSyntax(src)
	if body == "" {
		return nil, ErrEmpty
	}

	tokens, err := tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}

	stream := &tokenStream{tokens: tokens}
	root, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return &Program{source: src, param: param, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string {
	return p.source
}

// Eval runs the predicate against env.
func (p *Program) Eval(env Env) (bool, error) {
	if p == nil || p.root == nil {
		return false, ErrEmpty
	}
	return p.root.eval(scope{env: env, param: p.param})
}

func stripFunctionSyntax(src string) (string, string) {
	body := strings.TrimSpace(src)
	param := ""
	if m := arrowPrefix.FindStringSubmatch(body); m != nil {
		param = m[1]
		if param == "" {
			param = m[2]
		}
		body = strings.TrimSpace(body[len(m[0]):])
	}
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		body = strings.TrimSpace(body[1 : len(body)-1])
	}
	if strings.HasPrefix(body, "return ") || strings.HasPrefix(body, "return(") {
		body = strings.TrimSpace(strings.TrimPrefix(body, "return"))
	}
	body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	return body, param
}

type scope struct {
	env   Env
	param string
}

func (s scope) lookup(name string) (any, bool) {
	if name == "value" || (s.param != "" && name == s.param) {
		return s.env.Value, true
	}
	if rest, ok := strings.CutPrefix(name, "values."); ok {
		name = rest
	}
	v, ok := s.env.Values[name]
	if !ok {
		return nil, false
	}
	return v, true
}
