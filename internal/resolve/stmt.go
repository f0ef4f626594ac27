package resolve

import (
	"errors"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

func (c *checker) stmt(id ast.StmtID) {
	if !id.IsValid() {
		return
	}
	p := c.p
	s := p.Stmts.Get(id)
	kind, span := s.Kind, s.Span
	ghost := c.ghost || kind == ast.StmtAssert || kind == ast.StmtAssume || kind == ast.StmtCalc
	if d, ok := p.Stmts.VarDecl(id); ok && !ghost {
		ghost = true
		for _, v := range d.Vars {
			ghost = ghost && p.Var(v).IsGhost
		}
	}
	if s.IsGhost.Set(ghost) != nil {
		// уже разрешён
		return
	}
	saved := c.ghost
	c.ghost = ghost
	defer func() { c.ghost = saved }()

	switch kind {
	case ast.StmtBlock:
		d, _ := p.Stmts.Block(id)
		c.push()
		for _, st := range d.Stmts {
			c.stmt(st)
		}
		c.pop()
	case ast.StmtVarDecl:
		d, _ := p.Stmts.VarDecl(id)
		vars, init := d.Vars, d.Init
		for _, v := range vars {
			c.declare(v)
		}
		c.stmt(init)
	case ast.StmtAssign:
		d, _ := p.Stmts.Assign(id)
		c.assign(d.Lhs, d.Rhs, span)
	case ast.StmtUpdate:
		c.update(id, span)
	case ast.StmtAssignSuchThat:
		d, _ := p.Stmts.AssignSuchThatOf(id)
		lhss, constraint := d.Lhss, d.Constraint
		for _, l := range lhss {
			c.lvalue(l)
		}
		c.predicate(constraint, "such-that constraint")
	case ast.StmtCall:
		c.callStmt(id, span)
	case ast.StmtReturn:
		d, _ := p.Stmts.Return(id)
		if c.iter && len(d.Rhss) > 0 {
			c.r.report(diag.ResArityMismatch, span, "return in an iterator takes no values; use yield")
			c.exprs(d.Rhss)
			return
		}
		c.results(d.Rhss, span, "return")
	case ast.StmtYield:
		d, _ := p.Stmts.Return(id)
		if !c.iter {
			c.r.report(diag.ResYieldOutsideIterator, span, "yield is only allowed in an iterator body")
			c.exprs(d.Rhss)
			return
		}
		c.results(d.Rhss, span, "yield")
	case ast.StmtIf:
		d, _ := p.Stmts.If(id)
		cond, then, els := d.Cond, d.Then, d.Else
		c.predicate(cond, "if condition")
		c.stmt(then)
		c.stmt(els)
	case ast.StmtWhile:
		pd, _ := p.Stmts.While(id)
		d := *pd
		c.predicate(d.Guard, "loop guard")
		c.specs(func() {
			c.predicates(d.Invariants, "loop invariant")
			c.exprs(d.Decreases)
			c.exprs(d.Modifies)
		})
		c.loops++
		c.stmt(d.Body)
		c.loops--
	case ast.StmtForall:
		pd, _ := p.Stmts.Forall(id)
		d := *pd
		c.push()
		for _, v := range d.Bound {
			c.declare(v)
		}
		c.predicate(d.Range, "forall range")
		c.specs(func() { c.predicates(d.Ensures, "forall postcondition") })
		c.stmt(d.Body)
		c.pop()
	case ast.StmtAssert, ast.StmtAssume:
		d, _ := p.Stmts.Predicate(id)
		c.predicate(d.Expr, kind.String())
	case ast.StmtPrint:
		d, _ := p.Stmts.Print(id)
		c.exprs(d.Args)
	case ast.StmtBreak:
		d, _ := p.Stmts.Break(id)
		if int(d.Count) > c.loops {
			if c.loops == 0 {
				c.r.report(diag.ResBreakOutsideLoop, span, "break outside of a loop")
			} else {
				c.r.report(diag.ResBreakOutsideLoop, span, "break %d exits more loops than the %d enclosing it", d.Count, c.loops)
			}
		}
	case ast.StmtCalc:
		c.calc(id, span)
	}
}

func (c *checker) assign(lhs, rhs ast.ExprID, span source.Span) {
	lt := c.lvalue(lhs)
	if v, ok := c.p.Exprs.Ident(c.p.Exprs.Unwrap(lhs)); ok && c.p.Var(v.Var).IsGhost {
		saved := c.ghost
		c.ghost = true
		defer func() { c.ghost = saved }()
	}
	c.unify(lt, c.expr(rhs), span, "assignment")
}

// lvalue resolves an assignment target and checks that it denotes a
// variable, a mutable field or an element.
func (c *checker) lvalue(e ast.ExprID) types.TypeID {
	p := c.p
	saved := c.ghost
	c.ghost = true
	t := c.expr(e)
	c.ghost = saved
	target := p.Exprs.Unwrap(e)
	span := p.Exprs.Get(e).Span
	switch p.Exprs.Get(target).Kind {
	case ast.ExprIdent:
		d, _ := p.Exprs.Ident(target)
		if v := p.Var(d.Var); v.Kind == ast.VarFormal || v.Kind == ast.VarBound {
			c.r.report(diag.ResTypeMismatch, span, "cannot assign to %s", p.Name(v.Name))
		}
	case ast.ExprMemberSelect:
		d, _ := p.Exprs.MemberSelect(target)
		if mem, ok := d.Member.Lookup(); ok {
			if f, isField := p.Members.Field(mem); isField && !f.IsMutable && !f.IsUserMutable {
				c.r.report(diag.ResTypeMismatch, span, "field %s is not mutable", p.Name(d.Name))
			}
		}
	case ast.ExprSeqSelect, ast.ExprMultiSelect, ast.ExprError:
	default:
		c.r.report(diag.ResTypeMismatch, span, "left-hand side of an assignment must be a variable, field or element")
	}
	return t
}

// update resolves `lhss := rhss` into a call statement or into one
// assignment per pair.
func (c *checker) update(id ast.StmtID, span source.Span) {
	p := c.p
	d, _ := p.Stmts.Update(id)
	lhss, rhss := d.Lhss, d.Rhss

	if len(rhss) == 1 {
		if recv, name, args, mem, ok := c.methodCallee(rhss[0]); ok {
			call := p.Stmts.NewCall(span, lhss, recv, name, args)
			cd, _ := p.Stmts.Call(call)
			cd.Method.MustSet(mem)
			c.resolveUpdate(id, []ast.StmtID{call})
			return
		}
	}
	if len(lhss) != len(rhss) {
		c.r.report(diag.ResArityMismatch, span, "%d targets assigned %d values", len(lhss), len(rhss))
		for _, l := range lhss {
			c.lvalue(l)
		}
		c.exprs(rhss)
		return
	}
	out := make([]ast.StmtID, len(lhss))
	for i := range lhss {
		out[i] = p.Stmts.NewAssign(span, lhss[i], rhss[i])
	}
	c.resolveUpdate(id, out)
}

func (c *checker) resolveUpdate(id ast.StmtID, resolved []ast.StmtID) {
	if err := c.p.Stmts.SetResolvedUpdate(id, resolved); err != nil {
		c.fail(err)
		return
	}
	for _, s := range resolved {
		c.stmt(s)
	}
}

// methodCallee recognizes a right-hand side that applies a method.
func (c *checker) methodCallee(rhs ast.ExprID) (ast.ExprID, source.StringID, []ast.ExprID, ast.MemberID, bool) {
	p := c.p
	app, ok := p.Exprs.ApplySuffix(rhs)
	if !ok {
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	lhs, args := app.Lhs, app.Args
	isMethod := func(mem ast.MemberID) bool {
		_, ok := p.Members.Method(mem)
		return ok
	}
	if name, ok := c.localName(lhs); ok {
		if mem, found := c.implicitMember(name); found && isMethod(mem) {
			return ast.NoExprID, name, args, mem, true
		}
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	dn, ok := p.Exprs.DotName(lhs)
	if !ok {
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	inner, name := dn.Lhs, dn.Name
	if sig, ok := c.moduleSig(inner); ok {
		if mem, found := sig.LookupStatic(name); found && isMethod(mem) {
			return ast.NoExprID, name, args, mem, true
		}
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	if _, ok := c.datatypeNamed(inner); ok {
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	rt := c.expr(inner)
	decl, _, ok := c.tab.UserDecl(rt)
	if !ok {
		return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
	}
	if mem, found := c.memberNamed(ast.DeclID(decl), name); found && isMethod(mem) {
		return inner, name, args, mem, true
	}
	return ast.NoExprID, source.NoStringID, nil, ast.NoMemberID, false
}

func (c *checker) callStmt(id ast.StmtID, span source.Span) {
	p, tab := c.p, c.tab
	d, _ := p.Stmts.Call(id)
	lhss, recv, name, args := d.Lhss, d.Receiver, d.Name, d.Args
	mem, found := d.Method.Lookup()

	var rt types.TypeID
	if recv.IsValid() {
		rt = c.expr(recv)
	}
	argTypes := make([]types.TypeID, len(args))
	for i, a := range args {
		argTypes[i] = c.expr(a)
	}
	lhsTypes := make([]types.TypeID, len(lhss))
	for i, l := range lhss {
		lhsTypes[i] = c.lvalue(l)
	}
	if !found {
		if mem, found = c.findMember(rt, recv.IsValid(), name, span); !found {
			return
		}
		cd, _ := p.Stmts.Call(id)
		cd.Method.MustSet(mem)
	}
	m, ok := p.Members.Method(mem)
	if !ok {
		c.r.report(diag.ResUnresolvedMember, span, "%s is a %s, not a method", p.Name(name), p.Members.Get(mem).Kind)
		return
	}
	ins, outs := m.Ins, m.Outs
	subst, _ := c.instantiate(mem, rt, span)
	if len(args) != len(ins) {
		c.r.report(diag.ResArityMismatch, span, "%s expects %d arguments, got %d", p.Name(name), len(ins), len(args))
	} else {
		for i, v := range ins {
			c.unify(tab.Instantiate(p.Var(v).Type, subst), argTypes[i], p.Exprs.Get(args[i]).Span, "argument of "+p.Name(name))
		}
	}
	if len(lhss) != len(outs) {
		c.r.report(diag.ResArityMismatch, span, "%s returns %d values, %d targets given", p.Name(name), len(outs), len(lhss))
		return
	}
	for i, v := range outs {
		c.unify(lhsTypes[i], tab.Instantiate(p.Var(v).Type, subst), span, "result of "+p.Name(name))
	}
}

// results checks return and yield values against the out-parameters.
func (c *checker) results(rhss []ast.ExprID, span source.Span, what string) {
	if len(rhss) == 0 {
		return
	}
	if len(rhss) != len(c.outs) {
		c.r.report(diag.ResArityMismatch, span, "%s gives %d values for %d out-parameters", what, len(rhss), len(c.outs))
		c.exprs(rhss)
		return
	}
	for i, e := range rhss {
		c.unify(c.p.Var(c.outs[i]).Type, c.expr(e), c.p.Exprs.Get(e).Span, what+" value")
	}
}

func (c *checker) calc(id ast.StmtID, span source.Span) {
	p := c.p
	pd, _ := p.Stmts.Calc(id)
	d := *pd
	var lineT types.TypeID
	for i, l := range d.Lines {
		t := c.expr(l)
		if i == 0 {
			lineT = t
			continue
		}
		c.unify(lineT, t, p.Exprs.Get(l).Span, "calc line")
	}
	for _, h := range d.Hints {
		c.stmt(h)
	}
	op, err := ast.ChainResult(d.Op, d.StepOps)
	if err != nil {
		var ce *ast.CalcError
		if errors.As(err, &ce) && ce.Step < len(d.Lines)-1 {
			span = p.Exprs.Get(d.Lines[ce.Step+1]).Span
		}
		c.r.report(diag.ResCalcIncomparable, span, "%v", err)
		return
	}
	cd, _ := p.Stmts.Calc(id)
	if err := cd.Result.Set(op); err != nil {
		c.fail(err)
	}
	logic := op.IsLogic()
	for _, s := range d.StepOps {
		logic = logic || s.IsLogic()
	}
	if logic && lineT != types.NoTypeID {
		if err := c.tab.Unify(c.tab.Builtins().Bool, lineT); err != nil {
			c.r.report(diag.ResNotAPredicate, span, "calc lines joined by %s must be boolean, got %s", op, c.tab.Format(lineT))
		}
	}
}
