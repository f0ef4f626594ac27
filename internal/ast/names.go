package ast

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"vera/internal/cell"
	"vera/internal/source"
	"vera/internal/types"
)

// moduleSep joins escaped module path segments. Inside an escaped name every
// `_` opens a two-rune token (`__`, `_k`, `_q`, `_h`, `_x`, `_u`, `_U`) and
// none of them is `_0`, so the joined path decodes uniquely.
const moduleSep = "_0"

var targetKeywords = map[string]struct{}{
	"abstract": {}, "as": {}, "base": {}, "bool": {}, "break": {}, "case": {}, "catch": {},
	"char": {}, "class": {}, "const": {}, "continue": {}, "default": {}, "delegate": {},
	"do": {}, "else": {}, "enum": {}, "event": {}, "false": {}, "finally": {}, "for": {},
	"func": {}, "go": {}, "goto": {}, "if": {}, "import": {}, "in": {}, "int": {},
	"interface": {}, "is": {}, "map": {}, "namespace": {}, "new": {}, "null": {},
	"object": {}, "package": {}, "private": {}, "public": {}, "range": {}, "return": {},
	"select": {}, "static": {}, "string": {}, "struct": {}, "switch": {}, "this": {},
	"throw": {}, "true": {}, "try": {}, "type": {}, "var": {}, "void": {}, "while": {},
}

// EscapeName turns a source identifier into a target-legal one.
// The mapping is injective: `_` is doubled, `'` `?` `#` get letter escapes,
// other non-identifier runes become _uXXXX (or _UXXXXXXXX), and target keywords get a
// trailing `_x`, which no rune escapes to.
func EscapeName(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteString("__")
		case r == '\'':
			b.WriteString("_k")
		case r == '?':
			b.WriteString("_q")
		case r == '#':
			b.WriteString("_h")
		case r < 0x80 && (unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))):
			b.WriteRune(r)
		case r > 0xFFFF:
			fmt.Fprintf(&b, "_U%08X", r)
		default:
			fmt.Fprintf(&b, "_u%04X", r)
		}
	}
	out := b.String()
	if _, ok := targetKeywords[out]; ok {
		out += "_x"
	}
	return out
}

func (p *Program) memoName(c *cell.Once[string], name source.StringID) string {
	if s, ok := c.Lookup(); ok {
		return s
	}
	s := EscapeName(p.Name(name))
	c.MustSet(s)
	return s
}

// FullName is the declaration name qualified by its module path, unless ctx
// is the owning module.
func (p *Program) FullName(decl DeclID, ctx ModuleID) string {
	d := p.Decls.Get(decl)
	if d == nil {
		return ""
	}
	if d.Module == ctx || d.Module == p.defaultModule || d.Module == p.system {
		return p.Name(d.Name)
	}
	return p.ModuleName(d.Module) + "." + p.Name(d.Name)
}

// CompiledName returns the memoized escaped name of a declaration.
func (p *Program) CompiledName(decl DeclID) string {
	d := p.Decls.Get(decl)
	return p.memoName(&d.compiled, d.Name)
}

// FullCompiledName is the module's compiled name joined with the declaration's.
func (p *Program) FullCompiledName(decl DeclID) string {
	d := p.Decls.Get(decl)
	return p.ModuleCompiledName(d.Module) + "." + p.CompiledName(decl)
}

// ModuleCompiledName escapes each path segment and joins them.
func (p *Program) ModuleCompiledName(id ModuleID) string {
	m := p.Modules.Get(id)
	if s, ok := m.compiled.Lookup(); ok {
		return s
	}
	path := p.ModulePath(id)
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = EscapeName(p.Name(seg))
	}
	s := strings.Join(parts, moduleSep)
	m.compiled.MustSet(s)
	return s
}

func (p *Program) MemberCompiledName(id MemberID) string {
	m := p.Members.Get(id)
	return p.memoName(&m.compiled, m.Name)
}

func (p *Program) CtorCompiledName(id CtorID) string {
	c := p.Ctors.Get(uint32(id))
	return p.memoName(&c.compiled, c.Name)
}

func (p *Program) VarCompiledName(id VarID) string {
	v := p.Var(id)
	return p.memoName(&v.compiled, v.Name)
}

func (p *Program) TypeParamCompiledName(id TypeParamID) string {
	tp := p.TypeParam(id)
	return p.memoName(&tp.compiled, tp.Name)
}

// TypeCompiledName renders a type with every name component escaped.
func (p *Program) TypeCompiledName(t types.TypeID) string {
	t = p.Types.Normalize(t)
	ty, ok := p.Types.Lookup(t)
	if !ok {
		return "_invalid"
	}
	switch ty.Kind {
	case types.KindSet, types.KindMultiset, types.KindSeq:
		return ty.Kind.String() + "_l" + p.TypeCompiledName(ty.Elem) + "_r"
	case types.KindMap:
		return "map_l" + p.TypeCompiledName(ty.Elem) + "_c" + p.TypeCompiledName(ty.Value) + "_r"
	case types.KindUser:
		u, _ := p.Types.User(t)
		var name string
		if decl, _, ok := u.Decl(); ok {
			name = p.FullCompiledName(DeclID(decl))
		} else if param, ok := u.Param(); ok {
			name = p.TypeParamCompiledName(TypeParamID(param))
		} else {
			name = EscapeName(p.Name(u.Name))
		}
		if len(u.Args) == 0 {
			return name
		}
		args := make([]string, len(u.Args))
		for i, a := range u.Args {
			args[i] = p.TypeCompiledName(a)
		}
		return name + "_l" + strings.Join(args, "_c") + "_r"
	case types.KindSubrange:
		return EscapeName(p.Types.Format(t))
	case types.KindProxy:
		return "_unresolved"
	}
	return ty.Kind.String()
}
