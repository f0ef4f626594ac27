package link

import (
	"fmt"

	"vera/internal/ast"
	"vera/internal/diag"
)

// ResolveAliases binds every import alias and abstract import to the
// literal module it names. Unresolvable and cyclic aliases are reported
// and left unbound.
func ResolveAliases(prog *ast.Program, rep diag.Reporter) {
	l := newLinker(prog, rep)
	l.resolveAliases()
}

func (l *linker) resolveAliases() {
	for _, id := range l.prog.Modules.All() {
		if l.prog.Modules.Get(id).Kind == ast.ModuleLiteral {
			continue
		}
		l.follow(id)
	}
}

// ResolveRefinements binds each `refines` clause to its target module.
func ResolveRefinements(prog *ast.Program, rep diag.Reporter) {
	l := newLinker(prog, rep)
	l.resolveRefinements()
}

func (l *linker) resolveRefinements() {
	for _, id := range l.prog.LiteralModules() {
		m := l.prog.Modules.Get(id)
		if len(m.RefinesPath) == 0 || m.RefinesTarget.IsSet() {
			continue
		}
		found, failed := l.lookup(m.Parent, m.RefinesPath, ast.NoModuleID)
		if failed >= 0 {
			diag.ReportError(l.rep, diag.LnkUnresolvedModule, m.Span,
				fmt.Sprintf("module %s refines unknown module %s",
					l.prog.Name(m.Name), l.pathString(m.RefinesPath[:failed+1]))).Emit()
			continue
		}
		if l.prog.Modules.Get(found).Kind == ast.ModuleAbstract {
			diag.ReportError(l.rep, diag.LnkRefinementNotAllowed, m.Span,
				fmt.Sprintf("module %s cannot refine the abstract import %s",
					l.prog.Name(m.Name), l.pathString(m.RefinesPath))).Emit()
			continue
		}
		target, ok := l.follow(found)
		if !ok {
			continue
		}
		if target == id {
			diag.ReportError(l.rep, diag.LnkRefinesSelf, m.Span,
				fmt.Sprintf("module %s refines itself", l.prog.Name(m.Name))).Emit()
			continue
		}
		m.RefinesTarget.MustSet(target)
	}
}

// Link runs alias resolution, refinement binding, height computation and
// signature construction in order. It returns the compile order.
func Link(prog *ast.Program, rep diag.Reporter) []ast.ModuleID {
	l := newLinker(prog, rep)
	l.resolveAliases()
	l.resolveRefinements()
	ComputeHeights(prog, l.rep)
	BuildSignatures(prog, l.rep)
	return CompileOrder(prog)
}
