package manifest

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokReal
	tokString
	tokChar
	tokOp
)

type token struct {
	kind tokKind
	text string
	off  int
}

// operators, longest first
var operators = []string{
	"<==>", "==>", "<==", ":=", "==", "!=", "<=", ">=", "&&", "||", "..", "!!",
	"<", ">", "+", "-", "*", "/", "%", "!", "(", ")", "[", "]", "{", "}",
	",", ".", ":", "|",
}

func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case unicode.IsDigit(r):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			kind := tokInt
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
				kind = tokReal
			}
			out = append(out, token{kind: kind, text: src[start:i], off: start})
		case r == '"':
			end := strings.IndexByte(src[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			out = append(out, token{kind: tokString, text: src[i+1 : i+1+end], off: i})
			i += end + 2
		case r == '\'':
			c, n := utf8.DecodeRuneInString(src[i+1:])
			if i+1+n >= len(src) || src[i+1+n] != '\'' || c == utf8.RuneError {
				return nil, fmt.Errorf("bad character literal at offset %d", i)
			}
			out = append(out, token{kind: tokChar, text: src[i+1 : i+1+n], off: i})
			i += n + 2
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], off: start})
		default:
			op := ""
			for _, cand := range operators {
				if strings.HasPrefix(src[i:], cand) {
					op = cand
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("unexpected %q at offset %d", r, i)
			}
			out = append(out, token{kind: tokOp, text: op, off: i})
			i += len(op)
		}
	}
	return append(out, token{kind: tokEOF, off: len(src)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
