package link

import (
	"slices"
	"testing"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
)

func path(p *ast.Program, segs ...string) []source.StringID {
	out := make([]source.StringID, len(segs))
	for i, s := range segs {
		out[i] = p.Intern(s)
	}
	return out
}

func newBag() (*diag.Bag, diag.Reporter) {
	bag := diag.NewBag(100)
	return bag, diag.BagReporter{Bag: bag}
}

func TestResolveAliases(t *testing.T) {
	p := ast.NewProgram()
	lib := p.NewModule(ast.NoModuleID, p.Intern("Lib"), source.NoSpan)
	inner := p.NewModule(lib, p.Intern("Inner"), source.NoSpan)
	app := p.NewModule(ast.NoModuleID, p.Intern("App"), source.NoSpan)
	direct := p.NewAliasModule(app, p.Intern("I"), path(p, "Lib", "Inner"), false, source.NoSpan)
	// J goes through another alias
	viaAlias := p.NewAliasModule(app, p.Intern("J"), path(p, "I"), false, source.NoSpan)
	abstract := p.NewAliasModule(app, p.Intern("A"), path(p, "Lib"), true, source.NoSpan)

	bag, rep := newBag()
	ResolveAliases(p, rep)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	for _, tc := range []struct {
		alias, want ast.ModuleID
	}{{direct, inner}, {viaAlias, inner}, {abstract, lib}} {
		if got, ok := p.Modules.Get(tc.alias).AliasTarget.Lookup(); !ok || got != tc.want {
			t.Fatalf("alias %s -> %d, want %d", p.ModuleName(tc.alias), got, tc.want)
		}
	}
	if got, ok := LookupModule(p, app, path(p, "J")); !ok || got != inner {
		t.Fatalf("LookupModule(App, J) = %d, %v", got, ok)
	}
	if _, ok := LookupModule(p, app, path(p, "Lib", "Missing")); ok {
		t.Fatalf("missing nested module resolved")
	}
}

func TestCyclicAndUnresolvedAliases(t *testing.T) {
	p := ast.NewProgram()
	app := p.NewModule(ast.NoModuleID, p.Intern("App"), source.NoSpan)
	x := p.NewAliasModule(app, p.Intern("X"), path(p, "Y"), false, source.NoSpan)
	y := p.NewAliasModule(app, p.Intern("Y"), path(p, "X"), false, source.NoSpan)
	missing := p.NewAliasModule(app, p.Intern("M"), path(p, "Nowhere", "Deep"), false, source.NoSpan)

	bag, rep := newBag()
	ResolveAliases(p, rep)
	if bag.Count(diag.LnkCyclicAlias) != 1 {
		t.Fatalf("expected one cyclic alias report, got %v", bag.Items())
	}
	if bag.Count(diag.LnkUnresolvedModule) != 1 {
		t.Fatalf("expected one unresolved module report, got %v", bag.Items())
	}
	for _, id := range []ast.ModuleID{x, y, missing} {
		if p.Modules.Get(id).AliasTarget.IsSet() {
			t.Fatalf("alias %s must stay unbound", p.ModuleName(id))
		}
	}
}

func TestHeightsAndCompileOrder(t *testing.T) {
	p := ast.NewProgram()
	base := p.NewModule(ast.NoModuleID, p.Intern("Base"), source.NoSpan)
	lib := p.NewModule(ast.NoModuleID, p.Intern("Lib"), source.NoSpan)
	p.NewAliasModule(lib, p.Intern("B"), path(p, "Base"), false, source.NoSpan)
	app := p.NewModule(ast.NoModuleID, p.Intern("App"), source.NoSpan)
	p.NewAliasModule(app, p.Intern("L"), path(p, "Lib"), false, source.NoSpan)
	nested := p.NewModule(app, p.Intern("Nested"), source.NoSpan)

	bag, rep := newBag()
	order := Link(p, rep)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	height := func(id ast.ModuleID) int { return p.Modules.Get(id).Height.Get() }
	if height(base) != 0 || height(lib) != 1 || height(nested) != 0 || height(app) != 2 {
		t.Fatalf("heights: base=%d lib=%d nested=%d app=%d", height(base), height(lib), height(nested), height(app))
	}
	if slices.Index(order, lib) > slices.Index(order, app) || slices.Index(order, base) > slices.Index(order, lib) {
		t.Fatalf("compile order %v does not respect dependencies", order)
	}
	for _, id := range order {
		if !p.Modules.Get(id).AtLeast(ast.PhaseSignatureResolved) {
			t.Fatalf("module %s not advanced", p.ModuleName(id))
		}
	}
}

func TestModuleCycleReported(t *testing.T) {
	p := ast.NewProgram()
	a := p.NewModule(ast.NoModuleID, p.Intern("A"), source.NoSpan)
	b := p.NewModule(ast.NoModuleID, p.Intern("B"), source.NoSpan)
	p.NewAliasModule(a, p.Intern("BB"), path(p, "B"), false, source.NoSpan)
	p.NewAliasModule(b, p.Intern("AA"), path(p, "A"), false, source.NoSpan)

	bag, rep := newBag()
	order := Link(p, rep)
	if bag.Count(diag.LnkModuleCycle) != 2 {
		t.Fatalf("expected both modules reported, got %v", bag.Items())
	}
	if slices.Contains(order, a) || slices.Contains(order, b) {
		t.Fatalf("cyclic modules must not be scheduled: %v", order)
	}
}

func TestRefinesSelfAndAbstractTarget(t *testing.T) {
	p := ast.NewProgram()
	self := p.NewModule(ast.NoModuleID, p.Intern("S"), source.NoSpan)
	p.Modules.Get(self).RefinesPath = path(p, "S")
	p.NewModule(ast.NoModuleID, p.Intern("Lib"), source.NoSpan)
	outer := p.NewModule(ast.NoModuleID, p.Intern("Outer"), source.NoSpan)
	p.NewAliasModule(outer, p.Intern("X"), path(p, "Lib"), true, source.NoSpan)
	inner := p.NewModule(outer, p.Intern("Inner"), source.NoSpan)
	p.Modules.Get(inner).RefinesPath = path(p, "X")

	bag, rep := newBag()
	ResolveAliases(p, rep)
	ResolveRefinements(p, rep)
	if bag.Count(diag.LnkRefinesSelf) != 1 || bag.Count(diag.LnkRefinementNotAllowed) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	if p.Modules.Get(self).RefinesTarget.IsSet() || p.Modules.Get(inner).RefinesTarget.IsSet() {
		t.Fatalf("rejected refinements must stay unbound")
	}
}

func TestRefinementExposesConcreteMember(t *testing.T) {
	p := ast.NewProgram()
	a := p.NewModule(ast.NoModuleID, p.Intern("A"), source.NoSpan)
	b := p.NewModule(ast.NoModuleID, p.Intern("B"), source.NoSpan)
	p.Modules.Get(b).RefinesPath = path(p, "A")

	intT := p.Types.Builtins().Int
	x := p.NewVar(ast.VarFormal, p.Intern("x"), intT, false, source.NoSpan)
	ghostP := p.NewFunction(p.DefaultClass(a), ast.FunctionInit{
		Name: p.Intern("P"), Flavor: ast.FuncPredicate, Formals: []ast.VarID{x},
	})
	keep := p.NewFunction(p.DefaultClass(a), ast.FunctionInit{
		Name: p.Intern("Keep"), Compiled: true, Result: intT,
		Body: p.Exprs.NewLiteral(source.NoSpan, ast.LitInt, p.Intern("1")),
	})

	y := p.NewVar(ast.VarFormal, p.Intern("x"), intT, false, source.NoSpan)
	concreteP := p.NewFunction(p.DefaultClass(b), ast.FunctionInit{
		Name: p.Intern("P"), Flavor: ast.FuncPredicate, Compiled: true, Formals: []ast.VarID{y},
		Body: p.Exprs.NewBoolLiteral(source.NoSpan, true),
	})

	bag, rep := newBag()
	Link(p, rep)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}

	name := p.Intern("P")
	bSig, _ := SignatureOf(p, b, true)
	if got, ok := bSig.LookupStatic(name); !ok || got != concreteP || p.Members.Get(got).IsGhost {
		t.Fatalf("B's compile signature must expose the concrete P, got %d", got)
	}
	aSpec, _ := SignatureOf(p, a, false)
	if got, ok := aSpec.LookupStatic(name); !ok || got != ghostP || !p.Members.Get(got).IsGhost {
		t.Fatalf("A's specification signature must keep the ghost P, got %d", got)
	}
	aCompiled, _ := SignatureOf(p, a, true)
	if _, ok := aCompiled.LookupStatic(name); ok {
		t.Fatalf("ghost P leaked into A's compile signature")
	}
	if got, ok := p.Members.Get(concreteP).Refines.Lookup(); !ok || got != ghostP {
		t.Fatalf("concrete P must refine the ghost one")
	}
	if got, ok := bSig.LookupStatic(p.Intern("Keep")); !ok || got != keep {
		t.Fatalf("inherited compiled member not visible through B: %d", got)
	}
}

func TestRefinementBodyConflictAndKindMismatch(t *testing.T) {
	p := ast.NewProgram()
	a := p.NewModule(ast.NoModuleID, p.Intern("A"), source.NoSpan)
	b := p.NewModule(ast.NoModuleID, p.Intern("B"), source.NoSpan)
	p.Modules.Get(b).RefinesPath = path(p, "A")
	intT := p.Types.Builtins().Int
	one := func() ast.ExprID { return p.Exprs.NewLiteral(source.NoSpan, ast.LitInt, p.Intern("1")) }

	p.NewFunction(p.DefaultClass(a), ast.FunctionInit{Name: p.Intern("F"), Result: intT, Body: one()})
	p.NewFunction(p.DefaultClass(b), ast.FunctionInit{Name: p.Intern("F"), Result: intT, Body: one()})
	p.NewClass(a, p.Intern("T"), nil, source.NoSpan)
	p.NewDatatype(b, p.Intern("T"), nil, false, []ast.CtorInit{{Name: p.Intern("T0")}}, source.NoSpan)

	bag, rep := newBag()
	Link(p, rep)
	if bag.Count(diag.LnkRefineBodyConflict) != 1 {
		t.Fatalf("expected a body conflict, got %v", bag.Items())
	}
	if bag.Count(diag.LnkRefineKindMismatch) != 1 {
		t.Fatalf("expected a kind mismatch, got %v", bag.Items())
	}
}

func TestSignatureDuplicatesAndOpenedImports(t *testing.T) {
	p := ast.NewProgram()
	lib := p.NewModule(ast.NoModuleID, p.Intern("Lib"), source.NoSpan)
	p.NewDatatype(lib, p.Intern("List"), nil, false, []ast.CtorInit{{Name: p.Intern("Nil")}}, source.NoSpan)
	app := p.NewModule(ast.NoModuleID, p.Intern("App"), source.NoSpan)
	opened := p.NewAliasModule(app, p.Intern("L"), path(p, "Lib"), false, source.NoSpan)
	p.Modules.Get(app).Opened = []ast.ModuleID{opened}
	p.NewDatatype(app, p.Intern("Tree"), nil, false, []ast.CtorInit{{Name: p.Intern("Nil")}}, source.NoSpan)
	p.NewClass(app, p.Intern("C"), nil, source.NoSpan)
	p.NewClass(app, p.Intern("C"), nil, source.NoSpan)

	bag, rep := newBag()
	Link(p, rep)
	if bag.Count(diag.ResDuplicateDecl) != 1 {
		t.Fatalf("expected a duplicate declaration, got %v", bag.Items())
	}
	sig, _ := SignatureOf(p, app, false)
	if _, ok := sig.LookupTopLevel(p.Intern("List")); !ok {
		t.Fatalf("opened import must expose List")
	}
	if e, ok := sig.LookupCtor(p.Intern("Nil")); ok || !e.Ambiguous {
		t.Fatalf("Nil from Tree and opened List must be ambiguous: %+v", e)
	}
	if got, ok := sig.LookupModule(p.Intern("L")); !ok || got != lib {
		t.Fatalf("L must map to Lib, got %d", got)
	}
}

func TestSpecOnlyModuleHidesCtorsFromCompiledSignature(t *testing.T) {
	p := ast.NewProgram()
	ghost := p.NewModule(ast.NoModuleID, p.Intern("Ghost"), source.NoSpan)
	p.Modules.Get(ghost).SpecOnly = true
	p.NewDatatype(ghost, p.Intern("Token"), nil, false, []ast.CtorInit{{Name: p.Intern("Mint")}}, source.NoSpan)

	bag, rep := newBag()
	Link(p, rep)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	spec, _ := SignatureOf(p, ghost, false)
	if _, ok := spec.LookupCtor(p.Intern("Mint")); !ok {
		t.Fatalf("spec signature must expose Mint")
	}
	compiled, _ := SignatureOf(p, ghost, true)
	if _, ok := compiled.LookupTopLevel(p.Intern("Token")); ok {
		t.Fatalf("compiled signature of a spec-only module must not expose Token")
	}
	if e, ok := compiled.LookupCtor(p.Intern("Mint")); ok || e.Ambiguous {
		t.Fatalf("compiled signature of a spec-only module must not expose Mint: %+v", e)
	}
}
