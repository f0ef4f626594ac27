package callgraph

import (
	"context"
	"errors"
	"slices"
	"testing"

	"vera/internal/ast"
	"vera/internal/source"
)

type fixture struct {
	p          *ast.Program
	f, g, h, m ast.MemberID
	other      ast.MemberID
	lib        ast.ModuleID
}

// F calls G, G calls F, M calls H by statement and Lib.X in its ensures.
func newFixture(t *testing.T) fixture {
	t.Helper()
	p := ast.NewProgram()
	intT := p.Types.Builtins().Int
	mod := p.DefaultModule()
	cls := p.DefaultClass(mod)

	lib := p.NewModule(ast.NoModuleID, p.Intern("Lib"), source.NoSpan)
	libCls := p.DefaultClass(lib)
	other := p.NewFunction(libCls, ast.FunctionInit{Name: p.Intern("X"), Result: intT, Span: source.NoSpan})

	callG := p.Exprs.NewFunctionCall(source.NoSpan, ast.NoExprID, p.Intern("G"), nil)
	callF := p.Exprs.NewFunctionCall(source.NoSpan, ast.NoExprID, p.Intern("F"), nil)
	callX := p.Exprs.NewFunctionCall(source.NoSpan, ast.NoExprID, p.Intern("X"), nil)
	zero := p.Exprs.NewLiteral(source.NoSpan, ast.LitInt, p.Intern("0"))

	f := p.NewFunction(cls, ast.FunctionInit{Name: p.Intern("F"), Result: intT, Body: callG})
	g := p.NewFunction(cls, ast.FunctionInit{Name: p.Intern("G"), Result: intT, Body: callF})
	h := p.NewFunction(cls, ast.FunctionInit{Name: p.Intern("H"), Result: intT, Body: zero})

	call := p.Stmts.NewCall(source.NoSpan, nil, ast.NoExprID, p.Intern("H"), nil)
	body := p.Stmts.NewBlock(source.NoSpan, []ast.StmtID{call})
	m := p.NewMethod(cls, ast.MethodInit{Name: p.Intern("M"), Ensures: []ast.ExprID{callX}, Body: body})

	set := func(e ast.ExprID, target ast.MemberID) {
		d, _ := p.Exprs.FunctionCall(e)
		d.Function.MustSet(target)
	}
	set(callG, g)
	set(callF, f)
	set(callX, other)
	cd, _ := p.Stmts.Call(call)
	cd.Method.MustSet(h)

	for _, id := range []ast.ModuleID{mod, lib} {
		if err := p.Modules.Get(id).Advance(ast.PhaseBodiesResolved); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	return fixture{p: p, f: f, g: g, h: h, m: m, other: other, lib: lib}
}

func TestBuildEdges(t *testing.T) {
	fx := newFixture(t)
	g, err := Build(fx.p, fx.p.DefaultModule())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %v", g.Nodes)
	}
	if got := g.Callees(fx.f); !slices.Equal(got, []ast.MemberID{fx.g}) {
		t.Fatalf("F calls %v", got)
	}
	if got := g.Callees(fx.m); !slices.Equal(got, []ast.MemberID{fx.h}) {
		t.Fatalf("M calls %v", got)
	}
	local, external := g.Edges()
	if local != 3 || external != 1 {
		t.Fatalf("edges = %d local, %d external", local, external)
	}
}

func TestSCCs(t *testing.T) {
	fx := newFixture(t)
	g, err := Build(fx.p, fx.p.DefaultModule())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	comps := g.SCCs()
	if len(comps) != 3 {
		t.Fatalf("components = %v", comps)
	}
	pos := func(id ast.MemberID) int {
		for i, c := range comps {
			if slices.Contains(c, id) {
				return i
			}
		}
		return -1
	}
	if pos(fx.f) != pos(fx.g) {
		t.Fatalf("F and G should share a cluster: %v", comps)
	}
	if pos(fx.h) > pos(fx.m) {
		t.Fatalf("callee H must come before caller M: %v", comps)
	}
	if !g.IsRecursive(fx.f) || g.IsRecursive(fx.h) || g.IsRecursive(fx.m) {
		t.Fatalf("recursion flags wrong")
	}
}

func TestBuildRequiresResolvedBodies(t *testing.T) {
	p := ast.NewProgram()
	mod := p.NewModule(ast.NoModuleID, p.Intern("A"), source.NoSpan)
	if _, err := Build(p, mod); !errors.Is(err, ErrNotResolved) {
		t.Fatalf("expected ErrNotResolved, got %v", err)
	}
}

func TestBuildAll(t *testing.T) {
	fx := newFixture(t)
	mods := []ast.ModuleID{fx.p.DefaultModule(), fx.lib}
	graphs, err := BuildAll(context.Background(), fx.p, mods, 2)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(graphs) != 2 || graphs[0].Module != mods[0] || graphs[1].Module != mods[1] {
		t.Fatalf("graphs out of order")
	}
	if len(graphs[1].Nodes) != 1 || graphs[1].Nodes[0] != fx.other {
		t.Fatalf("Lib graph nodes = %v", graphs[1].Nodes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := BuildAll(ctx, fx.p, mods, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled build: %v", err)
	}
}
