package revset

import (
	"fmt"

	"github.com/strata-vcs/strata/pkg/object"
)

// Span marks a half-open byte range in the query source.
type Span struct {
	Start int
	End   int
}

// SyntaxError reports a malformed query, pointing at the offending span.
type SyntaxError struct {
	Source string
	Span   Span
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("revset syntax error at %d-%d (%q): %s",
		e.Span.Start, e.Span.End, excerpt(e.Source, e.Span), e.Msg)
}

func excerpt(src string, sp Span) string {
	start, end := sp.Start, sp.End
	if start < 0 {
		start = 0
	}
	if end > len(src) {
		end = len(src)
	}
	if start >= end {
		return ""
	}
	return src[start:end]
}

// EvalError reports a query that parsed but cannot be evaluated, such as a
// cyclic alias expansion. No partial result accompanies it.
type EvalError struct {
	Msg string
	Err error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("revset evaluation: %s: %v", e.Msg, e.Err)
	}
	return "revset evaluation: " + e.Msg
}

func (e *EvalError) Unwrap() error { return e.Err }

// UnresolvedError reports a symbol that matched nothing.
type UnresolvedError struct {
	Symbol string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("revset symbol %q does not resolve to any commit", e.Symbol)
}

// AmbiguousError reports a symbol that matched several commits, typically a
// short hash prefix. Ambiguity is surfaced, never silently resolved.
type AmbiguousError struct {
	Symbol     string
	Candidates []object.ID
}

func (e *AmbiguousError) Error() string {
	shorts := make([]string, 0, len(e.Candidates))
	for _, id := range e.Candidates {
		shorts = append(shorts, id.Short(12))
	}
	return fmt.Sprintf("revset symbol %q is ambiguous: matches %v", e.Symbol, shorts)
}
