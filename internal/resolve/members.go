package resolve

import (
	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/link"
	"vera/internal/source"
	"vera/internal/types"
)

// memberNamed looks name up in decl and then in the declarations it refines.
func (c *checker) memberNamed(decl ast.DeclID, name source.StringID) (ast.MemberID, bool) {
	for d := decl; d.IsValid(); {
		if id, ok := c.p.MemberNamed(d, name); ok {
			return id, true
		}
		next, ok := c.p.Decls.Get(d).Refines.Lookup()
		if !ok {
			break
		}
		d = next
	}
	return ast.NoMemberID, false
}

// implicitMember finds name as a member of the enclosing declaration or as
// a module-level member.
func (c *checker) implicitMember(name source.StringID) (ast.MemberID, bool) {
	if !c.p.IsDefaultClass(c.decl) {
		if id, ok := c.memberNamed(c.decl, name); ok {
			return id, true
		}
	}
	return c.sig.LookupStatic(name)
}

// findMember resolves name on a receiver of type recv, or implicitly when
// explicit is false. Failures are reported.
func (c *checker) findMember(recv types.TypeID, explicit bool, name source.StringID, span source.Span) (ast.MemberID, bool) {
	if !explicit {
		if id, ok := c.implicitMember(name); ok {
			return id, true
		}
		c.r.report(diag.ResUnresolvedName, span, "unresolved identifier %s", c.p.Name(name))
		return ast.NoMemberID, false
	}
	return c.memberOfType(recv, name, span)
}

func (c *checker) memberOfType(recv types.TypeID, name source.StringID, span source.Span) (ast.MemberID, bool) {
	n := c.tab.Normalize(recv)
	switch c.tab.Kind(n) {
	case types.KindError:
		return ast.NoMemberID, false
	case types.KindProxy:
		c.r.report(diag.ResUnderspecifiedType, span, "cannot look up %s: receiver type is not known yet", c.p.Name(name))
		return ast.NoMemberID, false
	}
	decl, _, ok := c.tab.UserDecl(n)
	if ok {
		if id, found := c.memberNamed(ast.DeclID(decl), name); found {
			return id, true
		}
	}
	c.r.report(diag.ResUnresolvedMember, span, "type %s has no member %s", c.tab.Format(n), c.p.Name(name))
	return ast.NoMemberID, false
}

// instantiate builds the substitution for using mem through a receiver of
// type recv: the owner's parameters take the receiver's arguments and the
// member's own parameters get fresh proxies, returned in order.
func (c *checker) instantiate(mem ast.MemberID, recv types.TypeID, span source.Span) (types.Subst, []types.TypeID) {
	p := c.p
	member := p.Members.Get(mem)
	subst := types.Subst{}
	if recv != types.NoTypeID {
		if u, ok := c.tab.User(c.tab.Normalize(recv)); ok {
			params := p.Decls.Get(member.Decl).TypeParams
			if len(params) == len(u.Args) {
				for i, tp := range params {
					subst[ast.ParamRef(tp)] = u.Args[i]
				}
			}
		}
	}
	targs := make([]types.TypeID, len(member.TypeParams))
	for i, tp := range member.TypeParams {
		targs[i] = c.tab.NewProxy(types.ProxyFree, span)
		subst[ast.ParamRef(tp)] = targs[i]
	}
	return subst, targs
}

// localName returns the name of a bare segment that does not denote a
// variable in scope.
func (c *checker) localName(e ast.ExprID) (source.StringID, bool) {
	seg, ok := c.p.Exprs.NameSegment(e)
	if !ok || len(seg.TypeArgs) > 0 {
		return source.NoStringID, false
	}
	if _, isVar := c.lookupVar(seg.Name); isVar {
		return source.NoStringID, false
	}
	return seg.Name, true
}

// moduleSig returns the signature of a module named by a bare segment.
func (c *checker) moduleSig(e ast.ExprID) (*ast.Signature, bool) {
	name, ok := c.localName(e)
	if !ok {
		return nil, false
	}
	mod, ok := c.sig.LookupModule(name)
	if !ok {
		return nil, false
	}
	return link.SignatureOf(c.p, mod, false)
}

// datatypeNamed returns the datatype named by a bare segment.
func (c *checker) datatypeNamed(e ast.ExprID) (ast.DeclID, bool) {
	name, ok := c.localName(e)
	if !ok {
		return ast.NoDeclID, false
	}
	d, ok := c.sig.LookupTopLevel(name)
	if !ok {
		return ast.NoDeclID, false
	}
	if _, isDT := c.p.Decls.Datatype(d); !isDT {
		return ast.NoDeclID, false
	}
	return d, true
}

func (c *checker) ctorOf(decl ast.DeclID, name source.StringID) (ast.CtorID, bool) {
	for _, id := range c.p.CtorsOf(decl) {
		if c.p.Ctors.Get(uint32(id)).Name == name {
			return id, true
		}
	}
	return ast.NoCtorID, false
}

// lookupCtor finds a constructor in sig, reporting ambiguity.
func (c *checker) lookupCtor(sig *ast.Signature, name source.StringID, span source.Span) (ast.CtorID, bool, bool) {
	entry, ok := sig.LookupCtor(name)
	if ok {
		return entry.Ctor, true, true
	}
	if !entry.Ambiguous {
		return ast.NoCtorID, false, false
	}
	b := diag.ReportError(c.r.rep, diag.ResAmbiguousCtor, span, "constructor "+c.p.Name(name)+" is ambiguous; qualify it with its datatype")
	for _, cand := range entry.Candidates {
		ctor := c.p.Ctors.Get(uint32(cand))
		b.WithNote(ctor.Span, "candidate from "+c.p.FullName(ctor.Decl, ast.NoModuleID))
	}
	b.Emit()
	return ast.NoCtorID, true, false
}
