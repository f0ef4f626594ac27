package resolve

import (
	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// nameSegment resolves a bare name: a variable in scope, a member of the
// enclosing declaration, a module-level member or a nullary constructor.
func (c *checker) nameSegment(id ast.ExprID, span source.Span) types.TypeID {
	p := c.p
	d, _ := p.Exprs.NameSegment(id)
	name, targs := d.Name, d.TypeArgs
	for _, t := range targs {
		c.r.resolveType(t, c.tscope, span)
	}

	if v, ok := c.lookupVar(name); ok && len(targs) == 0 {
		return c.resolveTo(id, p.Exprs.NewIdent(span, name, v))
	}
	if mem, ok := c.implicitMember(name); ok {
		if _, isField := p.Members.Field(mem); !isField {
			c.r.report(diag.ResUnresolvedName, span, "%s %s must be applied to arguments", p.Members.Get(mem).Kind, p.Name(name))
			return c.placeholder(id, span)
		}
		sel := p.Exprs.NewMemberSelect(span, p.Exprs.NewThis(span), name)
		ms, _ := p.Exprs.MemberSelect(sel)
		ms.Member.MustSet(mem)
		return c.resolveTo(id, sel)
	}
	if cid, exists, ok := c.lookupCtor(c.sig, name, span); ok {
		return c.resolveTo(id, c.ctorValue(span, source.NoStringID, name, cid, nil))
	} else if exists {
		return c.placeholder(id, span)
	}
	c.r.report(diag.ResUnresolvedName, span, "unresolved identifier %s", p.Name(name))
	return c.placeholder(id, span)
}

// dotName resolves `lhs.name` when it is not applied: a constructor named
// through its datatype or module, or a field of the value lhs denotes.
func (c *checker) dotName(id ast.ExprID, span source.Span) types.TypeID {
	p := c.p
	d, _ := p.Exprs.DotName(id)
	lhs, name := d.Lhs, d.Name

	if sig, ok := c.moduleSig(lhs); ok {
		if cid, exists, found := c.lookupCtor(sig, name, span); found {
			return c.resolveTo(id, c.ctorValue(span, source.NoStringID, name, cid, nil))
		} else if !exists {
			c.r.report(diag.ResUnresolvedName, span, "module %s has no value named %s", p.Name(p.Modules.Get(sig.Module).Name), p.Name(name))
		}
		return c.placeholder(id, span)
	}
	if dt, ok := c.datatypeNamed(lhs); ok {
		cid, found := c.ctorOf(dt, name)
		if !found {
			c.r.report(diag.ResUnresolvedName, span, "datatype %s has no constructor %s", p.Name(p.Decls.Get(dt).Name), p.Name(name))
			return c.placeholder(id, span)
		}
		return c.resolveTo(id, c.ctorValue(span, p.Decls.Get(dt).Name, name, cid, nil))
	}
	return c.resolveTo(id, p.Exprs.NewMemberSelect(span, lhs, name))
}

// applySuffix resolves `callee(args)` into a function call or a
// constructor application.
func (c *checker) applySuffix(id ast.ExprID, span source.Span) types.TypeID {
	p := c.p
	d, _ := p.Exprs.ApplySuffix(id)
	lhs, args := d.Lhs, d.Args

	if name, ok := c.localName(lhs); ok {
		if mem, found := c.implicitMember(name); found {
			return c.callTo(id, span, ast.NoExprID, name, mem, args)
		}
		if cid, exists, found := c.lookupCtor(c.sig, name, span); found {
			return c.resolveTo(id, c.ctorValue(span, source.NoStringID, name, cid, args))
		} else if exists {
			c.exprs(args)
			return c.placeholder(id, span)
		}
		c.r.report(diag.ResUnresolvedName, span, "unresolved identifier %s", p.Name(name))
		c.exprs(args)
		return c.placeholder(id, span)
	}

	dn, ok := p.Exprs.DotName(lhs)
	if !ok {
		c.r.report(diag.ResUnresolvedName, span, "expression cannot be applied to arguments")
		c.exprs(args)
		return c.placeholder(id, span)
	}
	inner, name := dn.Lhs, dn.Name
	if sig, ok := c.moduleSig(inner); ok {
		if mem, found := sig.LookupStatic(name); found {
			return c.callTo(id, span, ast.NoExprID, name, mem, args)
		}
		if cid, exists, found := c.lookupCtor(sig, name, span); found {
			return c.resolveTo(id, c.ctorValue(span, source.NoStringID, name, cid, args))
		} else if !exists {
			c.r.report(diag.ResUnresolvedName, span, "module %s has no member %s", p.Name(p.Modules.Get(sig.Module).Name), p.Name(name))
		}
		c.exprs(args)
		return c.placeholder(id, span)
	}
	if dt, ok := c.datatypeNamed(inner); ok {
		cid, found := c.ctorOf(dt, name)
		if !found {
			c.r.report(diag.ResUnresolvedName, span, "datatype %s has no constructor %s", p.Name(p.Decls.Get(dt).Name), p.Name(name))
			c.exprs(args)
			return c.placeholder(id, span)
		}
		return c.resolveTo(id, c.ctorValue(span, p.Decls.Get(dt).Name, name, cid, args))
	}
	return c.resolveTo(id, p.Exprs.NewFunctionCall(span, inner, name, args))
}

// callTo resolves id to a call of a known member. Methods cannot be
// called inside expressions.
func (c *checker) callTo(id ast.ExprID, span source.Span, recv ast.ExprID, name source.StringID, mem ast.MemberID, args []ast.ExprID) types.TypeID {
	p := c.p
	if _, ok := p.Members.Function(mem); !ok {
		c.r.report(diag.ResUnresolvedMember, span, "%s %s cannot be called in an expression", p.Members.Get(mem).Kind, p.Name(name))
		c.exprs(args)
		return c.placeholder(id, span)
	}
	call := p.Exprs.NewFunctionCall(span, recv, name, args)
	fc, _ := p.Exprs.FunctionCall(call)
	fc.Function.MustSet(mem)
	return c.resolveTo(id, call)
}

func (c *checker) ctorValue(span source.Span, dt, name source.StringID, cid ast.CtorID, args []ast.ExprID) ast.ExprID {
	v := c.p.Exprs.NewDatatypeValue(span, dt, name, args)
	dv, _ := c.p.Exprs.DatatypeValue(v)
	dv.Ctor.MustSet(cid)
	return v
}
