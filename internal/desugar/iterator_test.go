package desugar

import (
	"testing"

	"vera/internal/ast"
	"vera/internal/source"
	"vera/internal/types"
)

func newIter(t *testing.T) (*ast.Program, ast.DeclID) {
	t.Helper()
	p := ast.NewProgram()
	b := p.Types.Builtins()
	x := p.NewVar(ast.VarFormal, p.Intern("x"), b.Int, false, source.NoSpan)
	g := p.NewVar(ast.VarFormal, p.Intern("g"), b.Int, true, source.NoSpan)
	y := p.NewVar(ast.VarOut, p.Intern("y"), b.Bool, false, source.NoSpan)
	dec := p.Exprs.NewLiteral(source.NoSpan, ast.LitInt, p.Intern("10"))
	id := p.NewIterator(p.DefaultModule(), p.Intern("Gen"), nil, ast.IteratorData{
		Ins:       []ast.VarID{x, g},
		Outs:      []ast.VarID{y},
		Decreases: []ast.ExprID{dec},
	}, source.NoSpan)
	return p, id
}

func fieldOf(t *testing.T, p *ast.Program, id ast.MemberID) (*ast.Member, *ast.FieldData) {
	t.Helper()
	f, ok := p.Members.Field(id)
	if !ok {
		t.Fatalf("member %d is not a field", id)
	}
	return p.Members.Get(id), f
}

func TestIteratorFields(t *testing.T) {
	p, id := newIter(t)
	m, err := Iterator(p, id)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	if len(m.InFields) != 2 || len(m.OutFields) != 1 || len(m.HistoryFields) != 1 || len(m.DecreasesFields) != 1 {
		t.Fatalf("field counts: %+v", m)
	}

	mem, f := fieldOf(t, p, m.InFields[0])
	if p.Name(mem.Name) != "x" || f.IsMutable || mem.IsGhost || f.Special != ast.SpecialIteratorIn {
		t.Fatalf("in field x: %+v %+v", mem, f)
	}
	if mem, _ := fieldOf(t, p, m.InFields[1]); !mem.IsGhost {
		t.Fatalf("ghost in-parameter must give a ghost field")
	}
	mem, f = fieldOf(t, p, m.OutFields[0])
	if p.Name(mem.Name) != "y" || !f.IsMutable || f.IsUserMutable || f.Special != ast.SpecialIteratorOut {
		t.Fatalf("out field y: %+v %+v", mem, f)
	}
	mem, f = fieldOf(t, p, m.HistoryFields[0])
	if p.Name(mem.Name) != "ys" || !mem.IsGhost || f.Type != p.Types.Seq(p.Types.Builtins().Bool) {
		t.Fatalf("history field: %s %+v type %s", p.Name(mem.Name), mem, p.Types.Format(f.Type))
	}

	objSet := p.Types.Set(p.Types.Builtins().Object, true)
	for name, fid := range map[string]ast.MemberID{"_reads": m.Reads, "_modifies": m.Modifies, "_new": m.New} {
		mem, f := fieldOf(t, p, fid)
		if p.Name(mem.Name) != name || !mem.IsGhost || f.Type != objSet {
			t.Fatalf("frame field %s: %s %+v", name, p.Name(mem.Name), f)
		}
	}
	if _, f := fieldOf(t, p, m.New); !f.IsMutable {
		t.Fatalf("_new must be mutable")
	}

	_, f = fieldOf(t, p, m.DecreasesFields[0])
	if _, ok := p.Types.Proxy(f.Type); !ok {
		t.Fatalf("decreases field type should start as a proxy, got %s", p.Types.Format(f.Type))
	}
}

func TestIteratorMethods(t *testing.T) {
	p, id := newIter(t)
	m, err := Iterator(p, id)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}

	ctor, ok := p.Members.Method(m.Ctor)
	if !ok || ctor.Flavor != ast.MethodConstructor || len(ctor.Ins) != 2 {
		t.Fatalf("ctor: %+v", ctor)
	}
	it, _ := p.Decls.Iterator(id)
	if ctor.Ins[0] == it.Ins[0] {
		t.Fatalf("ctor formals must be fresh variables")
	}
	if p.Name(p.Var(ctor.Ins[0]).Name) != "x" || !p.Var(ctor.Ins[1]).IsGhost {
		t.Fatalf("ctor formals copy names and ghostness")
	}

	valid, ok := p.Members.Function(m.Valid)
	if !ok || valid.Flavor != ast.FuncPredicate || !p.Members.Get(m.Valid).IsGhost {
		t.Fatalf("Valid: %+v", valid)
	}

	mn, ok := p.Members.Method(m.MoveNext)
	if !ok || len(mn.Outs) != 1 {
		t.Fatalf("MoveNext: %+v", mn)
	}
	more := p.Var(mn.Outs[0])
	if p.Name(more.Name) != "more" || more.Type != p.Types.Builtins().Bool {
		t.Fatalf("MoveNext out: %+v", more)
	}
	if got, ok := p.MemberNamed(id, p.Intern("MoveNext")); !ok || got != m.MoveNext {
		t.Fatalf("MoveNext not registered on the iterator")
	}
}

func TestIteratorIdempotent(t *testing.T) {
	p, id := newIter(t)
	first, err := Iterator(p, id)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	n := len(p.Decls.Get(id).Members)
	second, err := Iterator(p, id)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.MoveNext != first.MoveNext || len(p.Decls.Get(id).Members) != n {
		t.Fatalf("second run added members: %d -> %d", n, len(p.Decls.Get(id).Members))
	}
}

func TestIteratorsWalksModules(t *testing.T) {
	p, _ := newIter(t)
	p.NewClass(p.DefaultModule(), p.Intern("C"), nil, source.NoSpan)
	n, err := Iterators(p, []ast.ModuleID{p.DefaultModule()})
	if err != nil || n != 1 {
		t.Fatalf("Iterators = %d, %v", n, err)
	}
}

func TestIteratorRejectsOtherDecls(t *testing.T) {
	p := ast.NewProgram()
	c := p.NewClass(p.DefaultModule(), p.Intern("C"), nil, source.NoSpan)
	if _, err := Iterator(p, c); err == nil {
		t.Fatalf("class accepted as iterator")
	}
	if p.Decls.Get(c).Kind != types.DeclClass {
		t.Fatalf("class kind changed")
	}
}
