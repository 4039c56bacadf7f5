package revset

import (
	"fmt"
	"strings"
)

type aliasState int

const (
	aliasExpanding aliasState = iota + 1
	aliasResolved
)

// expandAliases textually substitutes user-defined aliases before parsing
// proper. Each alias body is expanded recursively and spliced in
// parenthesized, so alias bodies never capture surrounding operators.
// Revisiting an alias that is still being expanded means the definitions
// are cyclic; that is rejected rather than recursed into.
func expandAliases(src string, aliases map[string]string) (string, error) {
	if len(aliases) == 0 {
		return src, nil
	}
	exp := &aliasExpander{
		aliases: aliases,
		states:  make(map[string]aliasState),
		cache:   make(map[string]string),
	}
	return exp.expand(src)
}

type aliasExpander struct {
	aliases map[string]string
	states  map[string]aliasState
	cache   map[string]string
}

func (x *aliasExpander) expand(src string) (string, error) {
	toks, err := lex(src)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	last := 0
	for i, t := range toks {
		if t.kind != tokSymbol {
			continue
		}
		// A symbol followed by '(' is a function call, not an alias use.
		if toks[i+1].kind == tokLParen {
			continue
		}
		body, ok := x.aliases[t.text]
		if !ok {
			continue
		}
		expanded, err := x.expandAlias(t.text, body)
		if err != nil {
			return "", err
		}
		out.WriteString(src[last:t.span.Start])
		out.WriteString("(")
		out.WriteString(expanded)
		out.WriteString(")")
		last = t.span.End
	}
	out.WriteString(src[last:])
	return out.String(), nil
}

func (x *aliasExpander) expandAlias(name, body string) (string, error) {
	switch x.states[name] {
	case aliasExpanding:
		return "", &EvalError{Msg: fmt.Sprintf("alias %q expands to itself (directly or transitively)", name)}
	case aliasResolved:
		return x.cache[name], nil
	}
	x.states[name] = aliasExpanding
	expanded, err := x.expand(body)
	if err != nil {
		return "", err
	}
	x.states[name] = aliasResolved
	x.cache[name] = expanded
	return expanded, nil
}
