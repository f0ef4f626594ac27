// Package desugar fills in the class-shaped members an iterator stands for.
package desugar

import (
	"fmt"
	"strconv"

	"vera/internal/ast"
	"vera/internal/source"
	"vera/internal/types"
)

// Iterator synthesizes the members of one iterator declaration:
//
//	x           one immutable field per in-parameter
//	y           one field per out-parameter, updated by MoveNext
//	ys          ghost history seq<Y> per out-parameter
//	_reads      ghost set<object> frames, likewise _modifies and _new
//	_decreasesN ghost field per decreases expression
//	_ctor       constructor taking the in-parameters
//	Valid       ghost predicate
//	MoveNext    method returning `more: bool`
//
// Contracts and the body stay on the iterator declaration.
// Running it twice is a no-op.
func Iterator(prog *ast.Program, id ast.DeclID) (ast.IteratorMembers, error) {
	it, ok := prog.Decls.Iterator(id)
	if !ok {
		return ast.IteratorMembers{}, fmt.Errorf("desugar: declaration %d is not an iterator", id)
	}
	if synth, done := it.Synth.Lookup(); done {
		return synth, nil
	}

	b := builder{prog: prog, decl: id, span: prog.Decls.Get(id).Span}
	var out ast.IteratorMembers
	for _, v := range it.Ins {
		in := prog.Var(v)
		out.InFields = append(out.InFields, b.field(in.Name, in.Type, in.IsGhost, false, ast.SpecialIteratorIn))
	}
	for _, v := range it.Outs {
		o := prog.Var(v)
		out.OutFields = append(out.OutFields, b.field(o.Name, o.Type, o.IsGhost, true, ast.SpecialIteratorOut))
	}
	for _, v := range it.Outs {
		o := prog.Var(v)
		name := prog.Intern(prog.Name(o.Name) + "s")
		out.HistoryFields = append(out.HistoryFields, b.field(name, prog.Types.Seq(o.Type), true, true, ast.SpecialIteratorHistory))
	}

	objSet := prog.Types.Set(prog.Types.Builtins().Object, true)
	out.Reads = b.field(prog.Intern("_reads"), objSet, true, false, ast.SpecialIteratorFrame)
	out.Modifies = b.field(prog.Intern("_modifies"), objSet, true, false, ast.SpecialIteratorFrame)
	out.New = b.field(prog.Intern("_new"), objSet, true, true, ast.SpecialIteratorFrame)
	for i := range it.Decreases {
		// тип уточняется при разрешении тела по выражению decreases
		t := prog.Types.NewProxy(types.ProxyFree, b.span)
		out.DecreasesFields = append(out.DecreasesFields,
			b.field(prog.Intern("_decreases"+strconv.Itoa(i)), t, true, false, ast.SpecialIteratorDecreases))
	}

	formals := make([]ast.VarID, len(it.Ins))
	for i, v := range it.Ins {
		in := prog.Var(v)
		formals[i] = prog.NewVar(ast.VarFormal, in.Name, in.Type, in.IsGhost, in.Span)
	}
	out.Ctor = prog.NewMethod(id, ast.MethodInit{
		Name:   prog.Intern("_ctor"),
		Flavor: ast.MethodConstructor,
		Ins:    formals,
		Span:   b.span,
	})
	out.Valid = prog.NewFunction(id, ast.FunctionInit{
		Name:   prog.Intern("Valid"),
		Flavor: ast.FuncPredicate,
		Span:   b.span,
	})
	more := prog.NewVar(ast.VarOut, prog.Intern("more"), prog.Types.Builtins().Bool, false, b.span)
	// контракты и тело остаются на итераторе, MoveNext их не копирует
	out.MoveNext = prog.NewMethod(id, ast.MethodInit{
		Name: prog.Intern("MoveNext"),
		Outs: []ast.VarID{more},
		Span: b.span,
	})

	if err := it.Synth.Set(out); err != nil {
		return ast.IteratorMembers{}, fmt.Errorf("desugar %s: %w", prog.Name(prog.Decls.Get(id).Name), err)
	}
	return out, nil
}

// Iterators desugars every iterator of the given modules, in order.
func Iterators(prog *ast.Program, modules []ast.ModuleID) (int, error) {
	n := 0
	for _, m := range modules {
		for _, d := range prog.Modules.Get(m).Decls {
			if prog.Decls.Get(d).Kind != types.DeclIterator {
				continue
			}
			if _, err := Iterator(prog, d); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

type builder struct {
	prog *ast.Program
	decl ast.DeclID
	span source.Span
}

func (b *builder) field(name source.StringID, t types.TypeID, ghost, mutable bool, special ast.SpecialField) ast.MemberID {
	return b.prog.NewField(b.decl, ast.FieldInit{
		Name:      name,
		Type:      t,
		IsGhost:   ghost,
		IsMutable: mutable,
		Special:   special,
		Span:      b.span,
	})
}
