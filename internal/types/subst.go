package types

// Subst maps type parameters to the arguments replacing them.
type Subst map[ParamRef]TypeID

// Instantiate replaces type parameters in id according to subst. Cells that
// mention no substituted parameter are returned unchanged; rebuilt user types
// keep the declaration they were resolved to.
func (t *Table) Instantiate(id TypeID, subst Subst) TypeID {
	if len(subst) == 0 {
		return id
	}
	id = t.Normalize(id)
	ty, ok := t.Lookup(id)
	if !ok {
		return id
	}
	switch ty.Kind {
	case KindSet, KindMultiset, KindSeq:
		elem := t.Instantiate(ty.Elem, subst)
		if elem == ty.Elem {
			return id
		}
		ty.Elem = elem
		return t.Intern(ty)
	case KindMap:
		dom := t.Instantiate(ty.Elem, subst)
		rng := t.Instantiate(ty.Value, subst)
		if dom == ty.Elem && rng == ty.Value {
			return id
		}
		return t.Map(dom, rng, ty.Finite)
	case KindUser:
		u := t.users[ty.Payload]
		if p, ok := u.Param(); ok {
			if repl, ok := subst[p]; ok {
				return repl
			}
			return id
		}
		changed := false
		args := make([]TypeID, len(u.Args))
		for i, a := range u.Args {
			args[i] = t.Instantiate(a, subst)
			changed = changed || args[i] != a
		}
		if !changed {
			return id
		}
		out := t.NewUser(u.Name, u.Qualifier, args, u.Span)
		if decl, kind, ok := u.Decl(); ok {
			if err := t.ResolveUserDecl(out, decl, kind); err != nil {
				panic(err)
			}
		}
		return out
	}
	return id
}
