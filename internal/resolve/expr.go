package resolve

import (
	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// expr resolves e and returns its type. Expressions are resolved once;
// a second visit returns the recorded type.
func (c *checker) expr(id ast.ExprID) types.TypeID {
	if !id.IsValid() {
		return types.NoTypeID
	}
	if t, ok := c.p.Exprs.TypeOf(id); ok {
		return t
	}
	e := c.p.Exprs.Get(id)
	t := c.exprKind(id, e.Kind, e.Span)
	if t == types.NoTypeID {
		t = c.tab.Builtins().Error
	}
	if err := c.p.Exprs.SetType(id, t); err != nil {
		c.fail(err)
	}
	return t
}

func (c *checker) exprKind(id ast.ExprID, kind ast.ExprKind, span source.Span) types.TypeID {
	p, tab := c.p, c.tab
	b := tab.Builtins()
	switch kind {
	case ast.ExprLiteral:
		d, _ := p.Exprs.Literal(id)
		switch d.Kind {
		case ast.LitBool:
			return b.Bool
		case ast.LitInt:
			return b.Int
		case ast.LitReal:
			return b.Real
		case ast.LitChar:
			return b.Char
		case ast.LitString:
			return tab.Seq(b.Char)
		case ast.LitNull:
			return tab.NewProxy(types.ProxyObject, span)
		}
	case ast.ExprIdent:
		d, _ := p.Exprs.Ident(id)
		v := p.Var(d.Var)
		if v.IsGhost && !c.ghost {
			c.r.report(diag.ResGhostInCompiled, span, "ghost variable %s used in compiled code", p.Name(v.Name))
		}
		return v.Type
	case ast.ExprThis:
		if c.static {
			c.r.report(diag.ResUnresolvedName, span, "this is not available in a static context")
			return b.Error
		}
		return c.thisType()
	case ast.ExprMemberSelect:
		return c.memberSelect(id, span)
	case ast.ExprSeqSelect:
		return c.seqSelect(id, span)
	case ast.ExprMultiSelect:
		pd, _ := p.Exprs.MultiSelect(id)
		d := *pd
		at := c.expr(d.Array)
		for _, ix := range d.Indices {
			c.unify(b.Int, c.expr(ix), p.Exprs.Get(ix).Span, "array index")
		}
		n := tab.Normalize(at)
		if dims := p.ArrayDims(n); dims != len(d.Indices) {
			c.r.report(diag.ResTypeMismatch, span, "%d indices used on %s", len(d.Indices), tab.Format(n))
			return b.Error
		}
		u, _ := tab.User(n)
		return u.Args[0]
	case ast.ExprSeqUpdate:
		pd, _ := p.Exprs.SeqUpdate(id)
		d := *pd
		st := c.expr(d.Seq)
		it, vt := c.expr(d.Index), c.expr(d.Value)
		c.unify(st, tab.NewIndexableProxy(it, vt, span), span, "sequence update")
		return st
	case ast.ExprFunctionCall:
		return c.call(id, span)
	case ast.ExprDatatypeValue:
		return c.datatypeValue(id, span)
	case ast.ExprUnary:
		return c.unary(id, span)
	case ast.ExprBinary:
		return c.binary(id, span)
	case ast.ExprITE:
		pd, _ := p.Exprs.ITE(id)
		d := *pd
		c.predicate(d.Cond, "if condition")
		tt, et := c.expr(d.Then), c.expr(d.Else)
		c.unify(tt, et, span, "if-then-else branches")
		return tt
	case ast.ExprOld:
		d, _ := p.Exprs.Old(id)
		return c.expr(d.Expr)
	case ast.ExprDisplay:
		pd, _ := p.Exprs.Display(id)
		d := *pd
		elem := tab.NewProxy(types.ProxyFree, span)
		for _, e := range d.Elems {
			c.unify(elem, c.expr(e), p.Exprs.Get(e).Span, "display element")
		}
		switch d.Kind {
		case ast.DisplaySet:
			return tab.Set(elem, true)
		case ast.DisplayMultiset:
			return tab.Multiset(elem)
		default:
			return tab.Seq(elem)
		}
	case ast.ExprMapDisplay:
		pd, _ := p.Exprs.MapDisplay(id)
		d := *pd
		kt, vt := tab.NewProxy(types.ProxyFree, span), tab.NewProxy(types.ProxyFree, span)
		for i := range d.Keys {
			c.unify(kt, c.expr(d.Keys[i]), span, "map key")
			c.unify(vt, c.expr(d.Values[i]), span, "map value")
		}
		return tab.Map(kt, vt, d.Finite)
	case ast.ExprQuantifier:
		pd, _ := p.Exprs.Quantifier(id)
		d := *pd
		c.push()
		for _, v := range d.Bound {
			c.declare(v)
		}
		c.predicate(d.Range, "quantifier range")
		c.predicate(d.Term, "quantifier body")
		c.pop()
		return b.Bool
	case ast.ExprComprehension:
		return c.comprehension(id, span)
	case ast.ExprLet:
		pd, _ := p.Exprs.Let(id)
		d := *pd
		rts := make([]types.TypeID, len(d.Rhss))
		for i, e := range d.Rhss {
			rts[i] = c.expr(e)
		}
		c.push()
		defer c.pop()
		for _, v := range d.Vars {
			c.declare(v)
		}
		if len(d.Vars) != len(d.Rhss) {
			c.r.report(diag.ResArityMismatch, span, "let binds %d variables to %d values", len(d.Vars), len(d.Rhss))
		} else {
			for i, v := range d.Vars {
				c.unify(p.Var(v).Type, rts[i], span, "let binding")
			}
		}
		return c.expr(d.Body)
	case ast.ExprError:
		return b.Error
	case ast.ExprNameSegment:
		return c.nameSegment(id, span)
	case ast.ExprDotName:
		return c.dotName(id, span)
	case ast.ExprApplySuffix:
		return c.applySuffix(id, span)
	case ast.ExprParens:
		d, _ := p.Exprs.ParensOf(id)
		return c.resolveTo(id, d.Inner)
	case ast.ExprChaining:
		pd, _ := p.Exprs.Chaining(id)
		d := *pd
		for _, e := range d.Operands {
			c.expr(e)
		}
		var conj ast.ExprID
		for i, op := range d.Ops {
			link := p.Exprs.NewBinary(span, op, d.Operands[i], d.Operands[i+1])
			if conj.IsValid() {
				conj = p.Exprs.NewBinary(span, ast.BinAnd, conj, link)
			} else {
				conj = link
			}
		}
		return c.resolveTo(id, conj)
	case ast.ExprNegation:
		d, _ := p.Exprs.Negation(id)
		operand := d.Operand
		return c.resolveTo(id, p.Exprs.NewUnary(span, ast.UnaryNeg, operand))
	}
	c.r.report(diag.UnknownCode, span, "unexpected %s expression", kind)
	return b.Error
}

// resolveTo installs target as the resolved form of a concrete expression
// and returns the target's type.
func (c *checker) resolveTo(id, target ast.ExprID) types.TypeID {
	if err := c.p.Exprs.SetResolved(id, target); err != nil {
		c.fail(err)
	}
	return c.expr(target)
}

// placeholder replaces a concrete expression that failed to resolve.
func (c *checker) placeholder(id ast.ExprID, span source.Span) types.TypeID {
	return c.resolveTo(id, c.p.Exprs.NewError(span, id))
}

func (c *checker) memberSelect(id ast.ExprID, span source.Span) types.TypeID {
	p := c.p
	d, _ := p.Exprs.MemberSelect(id)
	recv, name := d.Receiver, d.Name
	mem, found := d.Member.Lookup()
	rt := c.expr(recv)
	if !found {
		if mem, found = c.memberOfType(rt, name, span); !found {
			return types.NoTypeID
		}
		sel, _ := p.Exprs.MemberSelect(id)
		sel.Member.MustSet(mem)
	}
	f, ok := p.Members.Field(mem)
	if !ok {
		c.r.report(diag.ResUnresolvedMember, span, "%s is a %s, not a field", p.Name(name), p.Members.Get(mem).Kind)
		return types.NoTypeID
	}
	if p.Members.Get(mem).IsGhost && !c.ghost {
		c.r.report(diag.ResGhostInCompiled, span, "ghost field %s used in compiled code", p.Name(name))
	}
	subst, _ := c.instantiate(mem, rt, span)
	return c.tab.Instantiate(f.Type, subst)
}

func (c *checker) seqSelect(id ast.ExprID, span source.Span) types.TypeID {
	p, tab := c.p, c.tab
	pd, _ := p.Exprs.SeqSelect(id)
	d := *pd
	st := c.expr(d.Seq)
	if d.SelectOne {
		it := c.expr(d.Lo)
		res := tab.NewProxy(types.ProxyFree, span)
		c.unify(st, tab.NewIndexableProxy(it, res, span), span, "indexing")
		return res
	}
	for _, bound := range []ast.ExprID{d.Lo, d.Hi} {
		if bound.IsValid() {
			c.unify(tab.Builtins().Int, c.expr(bound), p.Exprs.Get(bound).Span, "slice bound")
		}
	}
	n := tab.Normalize(st)
	if p.ArrayDims(n) == 1 {
		u, _ := tab.User(n)
		return tab.Seq(u.Args[0])
	}
	elem := tab.NewProxy(types.ProxyFree, span)
	c.unify(tab.Seq(elem), st, span, "slice")
	return tab.Seq(elem)
}

func (c *checker) unary(id ast.ExprID, span source.Span) types.TypeID {
	tab := c.tab
	pd, _ := c.p.Exprs.Unary(id)
	d := *pd
	switch d.Op {
	case ast.UnaryNot:
		c.predicate(d.Operand, "operand of !")
		return tab.Builtins().Bool
	case ast.UnaryNeg:
		t := c.expr(d.Operand)
		c.unify(tab.NewProxy(types.ProxyOperation, span), t, span, "operand of -")
		return t
	case ast.UnaryCardinality:
		t := c.expr(d.Operand)
		c.unify(tab.NewProxy(types.ProxyCollection, span), t, span, "operand of |.|")
		return tab.Builtins().Int
	default:
		c.expr(d.Operand)
		return tab.Builtins().Bool
	}
}

func (c *checker) binary(id ast.ExprID, span source.Span) types.TypeID {
	tab := c.tab
	boolT := tab.Builtins().Bool
	pd, _ := c.p.Exprs.Binary(id)
	d := *pd
	if d.Op.IsLogic() {
		c.predicate(d.Left, "operand of "+d.Op.String())
		c.predicate(d.Right, "operand of "+d.Op.String())
		return boolT
	}
	lt, rt := c.expr(d.Left), c.expr(d.Right)
	what := "operands of " + d.Op.String()
	switch d.Op {
	case ast.BinEq, ast.BinNeq:
		if c.unify(lt, rt, span, what) {
			c.r.requireEquality(lt, span)
		}
		return boolT
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		c.unify(lt, rt, span, what)
		return boolT
	case ast.BinIn, ast.BinNotIn:
		if c.unify(tab.NewCollectionProxy(lt, span), rt, span, what) {
			c.r.requireEquality(lt, span)
		}
		return boolT
	case ast.BinDisjoint:
		c.unify(lt, rt, span, what)
		c.unify(tab.NewProxy(types.ProxyCollection, span), lt, span, what)
		return boolT
	default:
		if c.unify(lt, rt, span, what) {
			c.unify(tab.NewProxy(types.ProxyOperation, span), lt, span, what)
		}
		return lt
	}
}

func (c *checker) comprehension(id ast.ExprID, span source.Span) types.TypeID {
	p, tab := c.p, c.tab
	pd, _ := p.Exprs.Comprehension(id)
	d := *pd
	c.push()
	defer c.pop()
	for _, v := range d.Bound {
		c.declare(v)
	}
	c.predicate(d.Range, "comprehension range")
	first := p.Var(d.Bound[0]).Type
	if d.IsMap {
		return tab.Map(first, c.expr(d.Term), d.Finite)
	}
	if d.Term.IsValid() {
		return tab.Set(c.expr(d.Term), d.Finite)
	}
	return tab.Set(first, d.Finite)
}

// call resolves a function call and instantiates its signature.
func (c *checker) call(id ast.ExprID, span source.Span) types.TypeID {
	p, tab := c.p, c.tab
	d, _ := p.Exprs.FunctionCall(id)
	recv, name, args := d.Receiver, d.Name, d.Args
	mem, found := d.Function.Lookup()

	var rt types.TypeID
	if recv.IsValid() {
		rt = c.expr(recv)
	}
	argTypes := make([]types.TypeID, len(args))
	for i, a := range args {
		argTypes[i] = c.expr(a)
	}
	if !found {
		if mem, found = c.findMember(rt, recv.IsValid(), name, span); !found {
			return types.NoTypeID
		}
		fc, _ := p.Exprs.FunctionCall(id)
		fc.Function.MustSet(mem)
	}
	fn, ok := p.Members.Function(mem)
	if !ok {
		c.r.report(diag.ResUnresolvedMember, span, "%s is a %s and cannot be called in an expression", p.Name(name), p.Members.Get(mem).Kind)
		return types.NoTypeID
	}
	formals, result := fn.Formals, fn.Result
	if p.Members.Get(mem).IsGhost && !c.ghost {
		c.r.report(diag.ResGhostInCompiled, span, "ghost function %s called from compiled code", p.Name(name))
	}
	subst, targs := c.instantiate(mem, rt, span)
	if len(args) != len(formals) {
		c.r.report(diag.ResArityMismatch, span, "%s expects %d arguments, got %d", p.Name(name), len(formals), len(args))
	} else {
		for i, v := range formals {
			c.unify(tab.Instantiate(p.Var(v).Type, subst), argTypes[i], p.Exprs.Get(args[i]).Span, "argument of "+p.Name(name))
		}
	}
	fc, _ := p.Exprs.FunctionCall(id)
	if err := fc.TypeArgs.Set(targs); err != nil {
		c.fail(err)
	}
	return tab.Instantiate(result, subst)
}

// datatypeValue resolves a constructor application to a fresh instance of
// its datatype.
func (c *checker) datatypeValue(id ast.ExprID, span source.Span) types.TypeID {
	p, tab := c.p, c.tab
	d, _ := p.Exprs.DatatypeValue(id)
	dtName, ctorName, args := d.DatatypeName, d.CtorName, d.Args
	cid, found := d.Ctor.Lookup()

	argTypes := make([]types.TypeID, len(args))
	for i, a := range args {
		argTypes[i] = c.expr(a)
	}
	if !found {
		if dtName != source.NoStringID {
			if decl, ok := c.sig.LookupTopLevel(dtName); ok {
				cid, found = c.ctorOf(decl, ctorName)
			}
			if !found {
				c.r.report(diag.ResUnresolvedName, span, "datatype %s has no constructor %s", p.Name(dtName), p.Name(ctorName))
				return types.NoTypeID
			}
		} else {
			var exists bool
			if cid, exists, found = c.lookupCtor(c.sig, ctorName, span); !found {
				if !exists {
					c.r.report(diag.ResUnresolvedName, span, "unknown constructor %s", p.Name(ctorName))
				}
				return types.NoTypeID
			}
		}
		dv, _ := p.Exprs.DatatypeValue(id)
		dv.Ctor.MustSet(cid)
	}
	ctor := p.Ctors.Get(uint32(cid))
	formals, owner := ctor.Formals, ctor.Decl
	decl := p.Decls.Get(owner)
	name, kind, params := decl.Name, decl.Kind, decl.TypeParams

	subst := types.Subst{}
	targs := make([]types.TypeID, len(params))
	for i, tp := range params {
		targs[i] = tab.NewProxy(types.ProxyFree, span)
		subst[ast.ParamRef(tp)] = targs[i]
	}
	if len(args) != len(formals) {
		c.r.report(diag.ResArityMismatch, span, "constructor %s expects %d arguments, got %d", p.Name(ctorName), len(formals), len(args))
	} else {
		for i, v := range formals {
			c.unify(tab.Instantiate(p.Var(v).Type, subst), argTypes[i], p.Exprs.Get(args[i]).Span, "argument of "+p.Name(ctorName))
		}
	}
	return tab.NewResolvedUser(name, targs, ast.DeclRef(owner), kind)
}
