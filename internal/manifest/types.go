package manifest

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vera/internal/source"
	"vera/internal/types"
)

// ParseType parses a type string into the table. User-defined names are
// left unresolved; builtin and collection names are interned directly.
func ParseType(tab *types.Table, text string, span source.Span) (types.TypeID, error) {
	p := &typeParser{tab: tab, src: text, span: span}
	t, err := p.parse()
	if err != nil {
		return types.NoTypeID, fmt.Errorf("type %q: %w", text, err)
	}
	p.skip()
	if p.pos < len(p.src) {
		return types.NoTypeID, fmt.Errorf("type %q: unexpected %q", text, p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	tab  *types.Table
	src  string
	pos  int
	span source.Span
}

var collectionArity = map[string]int{
	"set": 1, "iset": 1, "multiset": 1, "seq": 1, "map": 2, "imap": 2,
}

func (p *typeParser) parse() (types.TypeID, error) {
	path, err := p.path()
	if err != nil {
		return types.NoTypeID, err
	}
	var args []types.TypeID
	if p.eat('<') {
		for {
			a, err := p.parse()
			if err != nil {
				return types.NoTypeID, err
			}
			args = append(args, a)
			if p.eat(',') {
				continue
			}
			if !p.eat('>') {
				return types.NoTypeID, fmt.Errorf("expected , or > at offset %d", p.pos)
			}
			break
		}
	}

	name := path[len(path)-1]
	if len(path) == 1 {
		if t, ok, err := p.builtin(name, args); ok || err != nil {
			return t, err
		}
	}
	strs := p.tab.Strings()
	qualifier := source.NoStringID
	if len(path) > 1 {
		qualifier = strs.Intern(strings.Join(path[:len(path)-1], "."))
	}
	return p.tab.NewUser(strs.Intern(name), qualifier, args, p.span), nil
}

func (p *typeParser) builtin(name string, args []types.TypeID) (types.TypeID, bool, error) {
	b := p.tab.Builtins()
	simple := map[string]types.TypeID{
		"bool": b.Bool, "char": b.Char, "int": b.Int, "real": b.Real,
		"nat": b.Nat, "object": b.Object,
	}
	if t, ok := simple[name]; ok {
		if len(args) > 0 {
			return types.NoTypeID, true, fmt.Errorf("%s takes no type arguments", name)
		}
		return t, true, nil
	}
	if name == "string" {
		return p.tab.Seq(b.Char), true, nil
	}
	arity, ok := collectionArity[name]
	if !ok {
		return types.NoTypeID, false, nil
	}
	if len(args) != arity {
		return types.NoTypeID, true, fmt.Errorf("%s takes %d type arguments, got %d", name, arity, len(args))
	}
	switch name {
	case "set", "iset":
		return p.tab.Set(args[0], name == "set"), true, nil
	case "multiset":
		return p.tab.Multiset(args[0]), true, nil
	case "seq":
		return p.tab.Seq(args[0]), true, nil
	default:
		return p.tab.Map(args[0], args[1], name == "map"), true, nil
	}
}

// path reads Name('.'Name)*.
func (p *typeParser) path() ([]string, error) {
	var out []string
	for {
		id := p.ident()
		if id == "" {
			return nil, fmt.Errorf("expected a type name at offset %d", p.pos)
		}
		out = append(out, id)
		if !p.eat('.') {
			return out, nil
		}
	}
}

func (p *typeParser) ident() string {
	p.skip()
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isIdentRune(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func (p *typeParser) eat(c byte) bool {
	p.skip()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) skip() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '\'' || r == '?' || r == '#' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
