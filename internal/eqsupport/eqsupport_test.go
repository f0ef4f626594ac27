package eqsupport

import (
	"context"
	"slices"
	"testing"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

type fixture struct {
	p   *ast.Program
	mod ast.ModuleID
	// pending user types resolved once their declarations exist
	pending map[types.TypeID]string
	decls   map[string]ast.DeclID
}

func newFixture() *fixture {
	p := ast.NewProgram()
	return &fixture{
		p:       p,
		mod:     p.NewModule(ast.NoModuleID, p.Intern("M"), source.NoSpan),
		pending: make(map[types.TypeID]string),
		decls:   make(map[string]ast.DeclID),
	}
}

// ref returns an unresolved reference to a datatype declared later.
func (f *fixture) ref(name string, args ...types.TypeID) types.TypeID {
	id := f.p.Types.NewUser(f.p.Intern(name), source.NoStringID, args, source.NoSpan)
	f.pending[id] = name
	return id
}

func (f *fixture) field(t types.TypeID) ast.VarID {
	return f.p.NewVar(ast.VarFormal, f.p.Intern("f"), t, false, source.NoSpan)
}

func (f *fixture) datatype(name string, co bool, params []ast.TypeParamID, ctors ...[]types.TypeID) ast.DeclID {
	inits := make([]ast.CtorInit, len(ctors))
	for i, fields := range ctors {
		inits[i].Name = f.p.Intern(name + "_" + string(rune('A'+i)))
		for _, ft := range fields {
			inits[i].Formals = append(inits[i].Formals, f.field(ft))
		}
	}
	id := f.p.NewDatatype(f.mod, f.p.Intern(name), params, co, inits, source.NoSpan)
	f.decls[name] = id
	return id
}

func (f *fixture) resolve(t *testing.T) {
	t.Helper()
	for id, name := range f.pending {
		d := f.decls[name]
		if err := f.p.Types.ResolveUserDecl(id, ast.DeclRef(d), f.p.Decls.Get(d).Kind); err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
	}
}

func (f *fixture) param(name string, eq bool) ast.TypeParamID {
	return f.p.NewTypeParam(f.p.Intern(name), eq, source.NoSpan)
}

func equality(t *testing.T, p *ast.Program, d ast.DeclID) ast.EqualityInfo {
	t.Helper()
	dt, _ := p.Decls.Datatype(d)
	info, ok := dt.Equality.Lookup()
	if !ok {
		t.Fatalf("%s has no equality classification", p.Name(p.Decls.Get(d).Name))
	}
	return info
}

func TestClassification(t *testing.T) {
	f := newFixture()
	p := f.p
	intT := p.Types.Builtins().Int

	lt := f.param("T", false)
	list := f.datatype("List", false, []ast.TypeParamID{lt}, nil, []types.TypeID{p.ParamType(lt), f.ref("List", p.ParamType(lt))})

	pt := f.param("T", false)
	phantom := f.datatype("Phantom", false, []ast.TypeParamID{pt}, []types.TypeID{intT})

	st := f.param("T", false)
	stream := f.datatype("Stream", true, []ast.TypeParamID{st}, []types.TypeID{p.ParamType(st), f.ref("Stream", p.ParamType(st))})
	holder := f.datatype("Holder", false, nil, []types.TypeID{f.ref("Stream", intT)})

	handle := p.NewOpaqueType(f.mod, p.Intern("Handle"), nil, false, source.NoSpan)
	wrap := f.datatype("Wrap", false, nil, []types.TypeID{p.Types.Seq(p.DeclType(handle))})

	a, b := f.param("A", false), f.param("B", false)
	swap := f.datatype("Swap", false, []ast.TypeParamID{a, b}, nil, []types.TypeID{p.ParamType(a), f.ref("Swap", p.ParamType(b), p.ParamType(a))})

	f.resolve(t)
	stats, err := Resolve(context.Background(), p, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stats.Datatypes != 6 {
		t.Fatalf("stats = %+v", stats)
	}

	tests := []struct {
		decl  ast.DeclID
		class types.EqualityClass
		contr []bool
	}{
		{list, types.EqualityConditional, []bool{true}},
		{phantom, types.EqualityAlways, nil},
		{stream, types.EqualityNever, nil},
		{holder, types.EqualityNever, nil},
		{wrap, types.EqualityNever, nil},
		{swap, types.EqualityConditional, []bool{true, true}},
	}
	for _, tt := range tests {
		info := equality(t, p, tt.decl)
		if info.Class != tt.class || !slices.Equal(info.Contributes, tt.contr) {
			t.Fatalf("%s: got %s %v, want %s %v", p.Name(p.Decls.Get(tt.decl).Name), info.Class, info.Contributes, tt.class, tt.contr)
		}
	}

	listOf := func(elem types.TypeID) types.TypeID {
		return p.Types.NewResolvedUser(p.Intern("List"), []types.TypeID{elem}, ast.DeclRef(list), types.DeclDatatype)
	}
	if !p.SupportsEquality(listOf(intT)) {
		t.Fatalf("List<int> supports equality")
	}
	streamInt := p.Types.NewResolvedUser(p.Intern("Stream"), []types.TypeID{intT}, ast.DeclRef(stream), types.DeclCodatatype)
	if p.SupportsEquality(listOf(streamInt)) {
		t.Fatalf("List<Stream<int>> must not support equality")
	}
	phantomStream := p.Types.NewResolvedUser(p.Intern("Phantom"), []types.TypeID{streamInt}, ast.DeclRef(phantom), types.DeclDatatype)
	if !p.SupportsEquality(phantomStream) {
		t.Fatalf("Phantom ignores its parameter")
	}
}

func TestMutualRecursionAndIdempotence(t *testing.T) {
	f := newFixture()
	p := f.p
	tt, ft := f.param("T", false), f.param("T", false)
	tree := f.datatype("Tree", false, []ast.TypeParamID{tt}, []types.TypeID{p.ParamType(tt), f.ref("Forest", p.ParamType(tt))})
	forest := f.datatype("Forest", false, []ast.TypeParamID{ft}, nil, []types.TypeID{f.ref("Tree", p.ParamType(ft)), f.ref("Forest", p.ParamType(ft))})
	f.resolve(t)

	stats, err := Resolve(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stats.Components != 1 {
		t.Fatalf("Tree and Forest form one component, got %+v", stats)
	}
	first := []ast.EqualityInfo{equality(t, p, tree), equality(t, p, forest)}
	if _, err := Resolve(context.Background(), p, Options{Jobs: 1}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := []ast.EqualityInfo{equality(t, p, tree), equality(t, p, forest)}
	for i := range first {
		if first[i].Class != types.EqualityConditional || first[i].Class != second[i].Class ||
			!slices.Equal(first[i].Contributes, second[i].Contributes) {
			t.Fatalf("run results differ: %+v vs %+v", first[i], second[i])
		}
	}
}

func TestResolveHonoursCancellation(t *testing.T) {
	f := newFixture()
	f.datatype("Unit", false, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Resolve(ctx, f.p, Options{}); err == nil {
		t.Fatalf("cancelled context must stop the run")
	}
}

func TestCheckEqualityRequirement(t *testing.T) {
	f := newFixture()
	p := f.p
	intT := p.Types.Builtins().Int
	eqT := f.param("T", true)
	box := f.datatype("Box", false, []ast.TypeParamID{eqT}, []types.TypeID{p.ParamType(eqT)})
	st := f.param("T", false)
	stream := f.datatype("Stream", true, []ast.TypeParamID{st}, []types.TypeID{f.ref("Stream", p.ParamType(st))})
	f.resolve(t)
	if _, err := Resolve(context.Background(), p, Options{}); err != nil {
		t.Fatal(err)
	}

	bag := diag.NewBag(10)
	rep := diag.BagReporter{Bag: bag}
	boxOf := func(elem types.TypeID) types.TypeID {
		return p.Types.NewResolvedUser(p.Intern("Box"), []types.TypeID{elem}, ast.DeclRef(box), types.DeclDatatype)
	}
	if !Check(p, rep, p.Types.Seq(boxOf(intT)), source.NoSpan) {
		t.Fatalf("seq<Box<int>> is fine: %v", bag.Items())
	}
	streamInt := p.Types.NewResolvedUser(p.Intern("Stream"), []types.TypeID{intT}, ast.DeclRef(stream), types.DeclCodatatype)
	if Check(p, rep, boxOf(streamInt), source.NoSpan) {
		t.Fatalf("Box<Stream<int>> violates (==)")
	}
	if bag.Count(diag.ResEqualityRequired) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	if RequireEquality(p, rep, streamInt, source.NoSpan) {
		t.Fatalf("streams cannot be compared")
	}
}
