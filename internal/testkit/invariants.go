// Package testkit checks structural invariants of resolved programs. Tests
// across the module call it after a resolution run.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"vera/internal/ast"
	"vera/internal/source"
	"vera/internal/types"
)

// Bodies collects the root expressions and statements of every contract
// and body in the program: functions, methods and iterators.
func Bodies(p *ast.Program) (exprs []ast.ExprID, stmts []ast.StmtID) {
	for _, mid := range p.LiteralModules() {
		for _, d := range p.Modules.Get(mid).Decls {
			for _, mem := range p.Decls.Get(d).Members {
				if fn, ok := p.Members.Function(mem); ok {
					exprs = append(exprs, fn.Requires...)
					exprs = append(exprs, fn.Reads...)
					exprs = append(exprs, fn.Decreases...)
					exprs = append(exprs, fn.Ensures...)
					if fn.Body.IsValid() {
						exprs = append(exprs, fn.Body)
					}
				}
				if m, ok := p.Members.Method(mem); ok {
					exprs = append(exprs, m.Requires...)
					exprs = append(exprs, m.Modifies...)
					exprs = append(exprs, m.Decreases...)
					exprs = append(exprs, m.Ensures...)
					if m.Body.IsValid() {
						stmts = append(stmts, m.Body)
					}
				}
			}
			if it, ok := p.Decls.Iterator(d); ok {
				for _, group := range [][]ast.ExprID{it.Requires, it.Ensures, it.YieldRequires, it.YieldEnsures, it.Reads, it.Modifies, it.Decreases} {
					exprs = append(exprs, group...)
				}
				if it.Body.IsValid() {
					stmts = append(stmts, it.Body)
				}
			}
		}
	}
	return exprs, stmts
}

// CheckResolved verifies what a finished resolution run guarantees, with
// or without diagnostics:
//  1. every literal module reached the bodies phase and has a height
//  2. every reachable expression is typed and no concrete syntax is left unresolved
//  3. every reachable statement has its ghost flag
//  4. datatypes carry equality info and iterators their synthesized members
//  5. no proxy is left unbound
func CheckResolved(p *ast.Program) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for _, mid := range p.LiteralModules() {
		m := p.Modules.Get(mid)
		name := p.ModuleName(mid)
		if mid != p.SystemModule() && !m.AtLeast(ast.PhaseBodiesResolved) {
			fail("module %s stopped at phase %s", name, m.Phase())
		}
		if mid != p.SystemModule() && !m.Height.IsSet() {
			fail("module %s has no height", name)
		}
		for _, d := range m.Decls {
			decl := p.Decls.Get(d)
			if dt, ok := p.Decls.Datatype(d); ok && !dt.Equality.IsSet() {
				fail("datatype %s has no equality info", p.Name(decl.Name))
			}
			if it, ok := p.Decls.Iterator(d); ok && !it.Synth.IsSet() {
				fail("iterator %s was not desugared", p.Name(decl.Name))
			}
		}
	}

	checkExpr := func(id ast.ExprID) bool {
		e := p.Exprs.Get(id)
		if e.Kind.IsConcrete() {
			fail("%s expression %d at %v was never resolved", e.Kind, id, e.Span)
		}
		if !e.Type.IsSet() {
			fail("%s expression %d at %v has no type", e.Kind, id, e.Span)
		}
		return true
	}
	exprs, stmts := Bodies(p)
	for _, e := range exprs {
		p.WalkExpr(e, checkExpr)
	}
	for _, s := range stmts {
		p.WalkStmt(s, func(id ast.StmtID) bool {
			st := p.Stmts.Get(id)
			if !st.IsGhost.IsSet() {
				fail("%s statement %d at %v has no ghost flag", st.Kind, id, st.Span)
			}
			return true
		}, checkExpr)
	}

	tab := p.Types
	for _, t := range Unbound(tab) {
		info, _ := tab.Proxy(t)
		fail("proxy %s from %v is unbound", tab.Format(t), info.Span)
	}
	return errors.Join(errs...)
}

// CheckSpans verifies that every declaration, member and reachable
// expression span is either absent or a non-inverted range inside its file.
func CheckSpans(p *ast.Program, fs *source.FileSet) error {
	var errs []error
	check := func(what string, sp source.Span) {
		if sp == source.NoSpan {
			return
		}
		if sp.End < sp.Start {
			errs = append(errs, fmt.Errorf("%s: inverted span %v", what, sp))
			return
		}
		f := fs.Get(sp.File)
		if f == nil {
			errs = append(errs, fmt.Errorf("%s: span %v points to unknown file", what, sp))
			return
		}
		size, err := safecast.Conv[uint32](len(f.Content))
		if err != nil {
			errs = append(errs, fmt.Errorf("len content overflow: %w", err))
			return
		}
		if sp.End > size {
			errs = append(errs, fmt.Errorf("%s: span %v ends beyond %s (%d bytes)", what, sp, f.Path, size))
		}
	}
	for _, mid := range p.LiteralModules() {
		for _, d := range p.Modules.Get(mid).Decls {
			decl := p.Decls.Get(d)
			check("decl "+p.Name(decl.Name), decl.Span)
			for _, mem := range decl.Members {
				check("member "+p.Name(p.Members.Get(mem).Name), p.Members.Get(mem).Span)
			}
		}
	}
	exprs, stmts := Bodies(p)
	visit := func(id ast.ExprID) bool {
		check(fmt.Sprintf("expr %d", id), p.Exprs.Get(id).Span)
		return true
	}
	for _, e := range exprs {
		p.WalkExpr(e, visit)
	}
	for _, s := range stmts {
		p.WalkStmt(s, func(id ast.StmtID) bool {
			check(fmt.Sprintf("stmt %d", id), p.Stmts.Get(id).Span)
			return true
		}, visit)
	}
	return errors.Join(errs...)
}

// Unbound lists the proxies that still stand for themselves.
func Unbound(tab *types.Table) []types.TypeID {
	var out []types.TypeID
	for _, t := range tab.UnboundProxies() {
		if tab.Normalize(t) == t {
			out = append(out, t)
		}
	}
	return out
}
