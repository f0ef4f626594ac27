package eqsupport

import (
	"fmt"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// Check walks t and reports every type argument passed for a (==)
// parameter that does not support equality. It returns false if anything
// was reported.
func Check(prog *ast.Program, rep diag.Reporter, t types.TypeID, span source.Span) bool {
	ok := true
	tab := prog.Types
	var walk func(types.TypeID)
	walk = func(id types.TypeID) {
		id = tab.Normalize(id)
		ty, found := tab.Lookup(id)
		if !found {
			return
		}
		switch ty.Kind {
		case types.KindSet, types.KindMultiset, types.KindSeq:
			walk(ty.Elem)
		case types.KindMap:
			walk(ty.Elem)
			walk(ty.Value)
		case types.KindUser:
			u, _ := tab.User(id)
			for _, a := range u.Args {
				walk(a)
			}
			decl, _, resolved := u.Decl()
			if !resolved {
				return
			}
			d := prog.Decls.Get(ast.DeclID(decl))
			for i, tp := range d.TypeParams {
				if i >= len(u.Args) || !prog.TypeParam(tp).EqualitySupport {
					continue
				}
				if prog.SupportsEquality(u.Args[i]) {
					continue
				}
				ok = false
				diag.ReportError(rep, diag.ResEqualityRequired, span,
					fmt.Sprintf("type parameter %s of %s requires equality, but %s does not support it",
						prog.Name(prog.TypeParam(tp).Name), prog.FullName(ast.DeclID(decl), ast.NoModuleID), tab.Format(u.Args[i]))).Emit()
			}
		}
	}
	walk(t)
	return ok
}

// RequireEquality reports a use of == or != on a type without equality.
func RequireEquality(prog *ast.Program, rep diag.Reporter, t types.TypeID, span source.Span) bool {
	if prog.SupportsEquality(t) {
		return true
	}
	diag.ReportError(rep, diag.ResEqualityRequired, span,
		fmt.Sprintf("values of type %s cannot be compared for equality", prog.Types.Format(t))).Emit()
	return false
}
