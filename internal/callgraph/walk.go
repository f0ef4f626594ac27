package callgraph

import (
	"iter"

	"vera/internal/ast"
)

// callees yields every resolved call target in a member's body and contracts.
// Unresolved calls are skipped.
func callees(prog *ast.Program, mem ast.MemberID) iter.Seq[ast.MemberID] {
	return func(yield func(ast.MemberID) bool) {
		stop := false
		expr := func(id ast.ExprID) bool {
			if stop {
				return false
			}
			if call, ok := prog.Exprs.FunctionCall(id); ok {
				if fn, ok := call.Function.Lookup(); ok && fn.IsValid() {
					stop = !yield(fn)
				}
			}
			return !stop
		}
		stmt := func(id ast.StmtID) bool {
			if stop {
				return false
			}
			if call, ok := prog.Stmts.Call(id); ok {
				if m, ok := call.Method.Lookup(); ok && m.IsValid() {
					stop = !yield(m)
				}
			}
			return !stop
		}
		exprs := func(ids ...[]ast.ExprID) {
			for _, list := range ids {
				for _, e := range list {
					prog.WalkExpr(e, expr)
				}
			}
		}

		if fn, ok := prog.Members.Function(mem); ok {
			exprs(fn.Requires, fn.Ensures, fn.Reads, fn.Decreases, []ast.ExprID{fn.Body})
			return
		}
		if m, ok := prog.Members.Method(mem); ok {
			exprs(m.Requires, m.Ensures, m.Modifies, m.Decreases)
			prog.WalkStmt(m.Body, stmt, expr)
		}
	}
}
