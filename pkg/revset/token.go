package revset

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokSymbol
	tokAt     // @
	tokPipe   // |
	tokAmp    // &
	tokTilde  // ~
	tokMinus  // -
	tokDotDot // ..
	tokLParen // (
	tokRParen // )
	tokComma  // ,
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokSymbol:
		return "symbol"
	case tokAt:
		return "'@'"
	case tokPipe:
		return "'|'"
	case tokAmp:
		return "'&'"
	case tokTilde:
		return "'~'"
	case tokMinus:
		return "'-'"
	case tokDotDot:
		return "'..'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	span Span
}

// isSymbolChar reports whether c may appear in a symbol: ref names like
// "heads/main" or "v1-rc2" and hex prefixes. Dots are excluded so that the
// range operator ".." never merges into a name.
func isSymbolChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '/':
		return true
	}
	return false
}

// lex splits a query into tokens. A '-' between two symbol characters binds
// into the symbol (branch names like "bug-fix"); elsewhere it is the
// difference operator.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '|':
			toks = append(toks, token{tokPipe, "|", Span{i, i + 1}})
			i++
		case c == '&':
			toks = append(toks, token{tokAmp, "&", Span{i, i + 1}})
			i++
		case c == '~':
			toks = append(toks, token{tokTilde, "~", Span{i, i + 1}})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", Span{i, i + 1}})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", Span{i, i + 1}})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", Span{i, i + 1}})
			i++
		case c == '@':
			toks = append(toks, token{tokAt, "@", Span{i, i + 1}})
			i++
		case c == '.':
			if i+1 < len(src) && src[i+1] == '.' {
				toks = append(toks, token{tokDotDot, "..", Span{i, i + 2}})
				i += 2
				continue
			}
			return nil, &SyntaxError{Source: src, Span: Span{i, i + 1}, Msg: "unexpected '.'"}
		case c == '-':
			toks = append(toks, token{tokMinus, "-", Span{i, i + 1}})
			i++
		case isSymbolChar(c):
			start := i
			for i < len(src) && (isSymbolChar(src[i]) || symbolHyphen(src, i)) {
				i++
			}
			toks = append(toks, token{tokSymbol, src[start:i], Span{start, i}})
		default:
			return nil, &SyntaxError{Source: src, Span: Span{i, i + 1}, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", Span{len(src), len(src)}})
	return toks, nil
}

func symbolHyphen(src string, i int) bool {
	return src[i] == '-' && i+1 < len(src) && isSymbolChar(src[i+1])
}
