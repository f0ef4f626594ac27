// Package summary exports the resolved signatures of a program in a
// stable form: one record per literal module, ordered for compilation.
package summary

import (
	"slices"
	"strings"

	"vera/internal/ast"
	"vera/internal/link"
	"vera/internal/source"
	"vera/internal/types"
)

// SchemaVersion is bumped whenever the encoded layout changes.
const SchemaVersion uint16 = 1

// File is the on-disk payload.
type File struct {
	Schema  uint16          `msgpack:"schema" json:"schema"`
	Modules []ModuleSummary `msgpack:"modules" json:"modules"`
}

// ModuleSummary describes one literal module after resolution.
type ModuleSummary struct {
	Name     string `msgpack:"name" json:"name"`
	Height   int    `msgpack:"height" json:"height"`
	Phase    string `msgpack:"phase" json:"phase"`
	Abstract bool   `msgpack:"abstract,omitempty" json:"abstract,omitempty"`
	SpecOnly bool   `msgpack:"spec_only,omitempty" json:"spec_only,omitempty"`
	Refines  string `msgpack:"refines,omitempty" json:"refines,omitempty"`

	Imports []string      `msgpack:"imports,omitempty" json:"imports,omitempty"`
	Decls   []DeclSummary `msgpack:"decls" json:"decls"`
	// Ambiguous lists constructor names the signature cannot resolve.
	Ambiguous []string `msgpack:"ambiguous,omitempty" json:"ambiguous,omitempty"`
}

type DeclSummary struct {
	Name       string   `msgpack:"name" json:"name"`
	Kind       string   `msgpack:"kind" json:"kind"`
	Compiled   string   `msgpack:"compiled" json:"compiled"`
	TypeParams []string `msgpack:"type_params,omitempty" json:"type_params,omitempty"`
	// Equality is the equality-support class of a datatype.
	Equality string          `msgpack:"equality,omitempty" json:"equality,omitempty"`
	Ctors    []CtorSummary   `msgpack:"ctors,omitempty" json:"ctors,omitempty"`
	Members  []MemberSummary `msgpack:"members,omitempty" json:"members,omitempty"`
}

type CtorSummary struct {
	Name   string   `msgpack:"name" json:"name"`
	Fields []string `msgpack:"fields,omitempty" json:"fields,omitempty"`
}

type MemberSummary struct {
	Name   string `msgpack:"name" json:"name"`
	Kind   string `msgpack:"kind" json:"kind"`
	Ghost  bool   `msgpack:"ghost,omitempty" json:"ghost,omitempty"`
	Static bool   `msgpack:"static,omitempty" json:"static,omitempty"`
	// Signature is the member's type as written: `int` for a field,
	// `(x: int): bool` for a function, `(x: int) returns (r: int)` for a method.
	Signature string `msgpack:"signature" json:"signature"`
	Recursive bool   `msgpack:"recursive,omitempty" json:"recursive,omitempty"`
}

// Options tunes Build.
type Options struct {
	// Synthesized includes members filled in by desugaring and datatype
	// accessors.
	Synthesized bool
	// Recursive marks members on a call cycle; nil skips the check.
	Recursive func(ast.MemberID) bool
}

// Build summarizes every linked literal module in compile order. The
// system module is left out.
func Build(prog *ast.Program, opts Options) []ModuleSummary {
	var out []ModuleSummary
	for _, id := range link.CompileOrder(prog) {
		if id == prog.SystemModule() {
			continue
		}
		out = append(out, module(prog, id, opts))
	}
	return out
}

func module(prog *ast.Program, id ast.ModuleID, opts Options) ModuleSummary {
	m := prog.Modules.Get(id)
	ms := ModuleSummary{
		Name:     prog.ModuleName(id),
		Height:   m.Height.GetOr(0),
		Phase:    m.Phase().String(),
		Abstract: m.IsAbstract,
		SpecOnly: m.SpecOnly,
		Refines:  joinPath(prog, m.RefinesPath),
	}
	for _, child := range m.Children {
		c := prog.Modules.Get(child)
		if c.Kind == ast.ModuleLiteral {
			continue
		}
		ms.Imports = append(ms.Imports, prog.Name(c.Name)+" = "+joinPath(prog, c.Path))
	}
	for _, d := range m.Decls {
		ms.Decls = append(ms.Decls, decl(prog, d, opts))
	}
	if sig, ok := m.Signature.Lookup(); ok {
		for _, name := range sig.SortedCtors(prog.Strings) {
			if sig.Ctors[name].Ambiguous {
				ms.Ambiguous = append(ms.Ambiguous, prog.Name(name))
			}
		}
	}
	return ms
}

func decl(prog *ast.Program, id ast.DeclID, opts Options) DeclSummary {
	d := prog.Decls.Get(id)
	ds := DeclSummary{
		Name:     prog.Name(d.Name),
		Kind:     d.Kind.String(),
		Compiled: prog.FullCompiledName(id),
	}
	if prog.IsDefaultClass(id) {
		ds.Kind = "module members"
	}
	for _, tp := range d.TypeParams {
		ds.TypeParams = append(ds.TypeParams, typeParam(prog, tp))
	}
	if dt, ok := prog.Decls.Datatype(id); ok {
		if eq, ok := dt.Equality.Lookup(); ok {
			ds.Equality = eq.Class.String()
		}
		for _, c := range dt.Ctors {
			ctor := prog.Ctors.Get(uint32(c))
			cs := CtorSummary{Name: prog.Name(ctor.Name)}
			for _, f := range ctor.Formals {
				cs.Fields = append(cs.Fields, varText(prog, f))
			}
			ds.Ctors = append(ds.Ctors, cs)
		}
	}
	for _, mem := range prog.Decls.Get(id).Members {
		if !opts.Synthesized && synthesized(prog, mem) {
			continue
		}
		ds.Members = append(ds.Members, member(prog, mem, opts))
	}
	return ds
}

func synthesized(prog *ast.Program, id ast.MemberID) bool {
	if f, ok := prog.Members.Field(id); ok {
		return f.Special != ast.SpecialNone
	}
	// члены итератора создаются desugar после объявления
	if d := prog.Decls.Get(prog.Members.Get(id).Decl); d.Kind == types.DeclIterator {
		return true
	}
	return false
}

func member(prog *ast.Program, id ast.MemberID, opts Options) MemberSummary {
	mem := prog.Members.Get(id)
	ms := MemberSummary{
		Name:   prog.Name(mem.Name),
		Kind:   mem.Kind.String(),
		Ghost:  mem.IsGhost,
		Static: mem.IsStatic,
	}
	tab := prog.Types
	switch mem.Kind {
	case ast.MemberField:
		f, _ := prog.Members.Field(id)
		ms.Signature = tab.Format(f.Type)
		if f.IsUserMutable {
			ms.Kind = "var"
		}
	case ast.MemberFunction:
		fn, _ := prog.Members.Function(id)
		if fn.Flavor == ast.FuncPredicate {
			ms.Kind = "predicate"
		}
		ms.Signature = generics(prog, mem.TypeParams) + params(prog, fn.Formals) + ": " + tab.Format(fn.Result)
	case ast.MemberMethod:
		md, _ := prog.Members.Method(id)
		switch md.Flavor {
		case ast.MethodConstructor:
			ms.Kind = "constructor"
		case ast.MethodLemma:
			ms.Kind = "lemma"
		}
		ms.Signature = generics(prog, mem.TypeParams) + params(prog, md.Ins)
		if len(md.Outs) > 0 {
			ms.Signature += " returns " + params(prog, md.Outs)
		}
	}
	if opts.Recursive != nil && mem.Kind != ast.MemberField {
		ms.Recursive = opts.Recursive(id)
	}
	return ms
}

func generics(prog *ast.Program, tps []ast.TypeParamID) string {
	if len(tps) == 0 {
		return ""
	}
	names := make([]string, len(tps))
	for i, tp := range tps {
		names[i] = typeParam(prog, tp)
	}
	return "<" + strings.Join(names, ", ") + ">"
}

func typeParam(prog *ast.Program, id ast.TypeParamID) string {
	tp := prog.TypeParam(id)
	name := prog.Name(tp.Name)
	if tp.EqualitySupport {
		name += "(==)"
	}
	return name
}

func params(prog *ast.Program, vars []ast.VarID) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = varText(prog, v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func varText(prog *ast.Program, id ast.VarID) string {
	v := prog.Var(id)
	text := prog.Name(v.Name) + ": " + prog.Types.Format(v.Type)
	if v.IsGhost {
		text = "ghost " + text
	}
	return text
}

func joinPath(prog *ast.Program, path []source.StringID) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = prog.Name(n)
	}
	return strings.Join(parts, ".")
}

// Find returns the summary of the named module.
func Find(mods []ModuleSummary, name string) (ModuleSummary, bool) {
	i := slices.IndexFunc(mods, func(m ModuleSummary) bool { return m.Name == name })
	if i < 0 {
		return ModuleSummary{}, false
	}
	return mods[i], true
}
