package resolve

import (
	"strconv"
	"strings"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/eqsupport"
	"vera/internal/link"
	"vera/internal/source"
	"vera/internal/types"
)

// typeScope is what a type name may refer to: type parameters, innermost
// first, then the declarations visible in module.
type typeScope struct {
	module ast.ModuleID
	params []ast.TypeParamID
}

func (s typeScope) with(params []ast.TypeParamID) typeScope {
	if len(params) == 0 {
		return s
	}
	out := typeScope{module: s.module, params: make([]ast.TypeParamID, 0, len(params)+len(s.params))}
	out.params = append(out.params, params...)
	out.params = append(out.params, s.params...)
	return out
}

// resolveTypeNames resolves every type written in the module's declarations
// and synthesizes datatype destructors and discriminators.
func (r *Resolver) resolveTypeNames(module ast.ModuleID) {
	p := r.prog
	m := p.Modules.Get(module)
	for _, d := range m.Decls {
		decl := p.Decls.Get(d)
		sc := typeScope{module: module, params: decl.TypeParams}
		for _, c := range p.CtorsOf(d) {
			for _, f := range p.Ctors.Get(uint32(c)).Formals {
				r.resolveVarType(f, sc)
			}
		}
		if it, ok := p.Decls.Iterator(d); ok {
			for _, v := range it.Ins {
				r.resolveVarType(v, sc)
			}
			for _, v := range it.Outs {
				r.resolveVarType(v, sc)
			}
		}
		for _, mem := range decl.Members {
			r.resolveMemberTypes(mem, sc)
		}
		if _, ok := p.Decls.Datatype(d); ok {
			r.synthesizeAccessors(d)
		}
	}
	_ = m.Advance(ast.PhaseTypesResolved)
}

func (r *Resolver) resolveMemberTypes(id ast.MemberID, sc typeScope) {
	p := r.prog
	mem := p.Members.Get(id)
	sc = sc.with(mem.TypeParams)
	switch mem.Kind {
	case ast.MemberField:
		f, _ := p.Members.Field(id)
		r.resolveType(f.Type, sc, mem.Span)
	case ast.MemberFunction:
		fn, _ := p.Members.Function(id)
		for _, v := range fn.Formals {
			r.resolveVarType(v, sc)
		}
		r.resolveType(fn.Result, sc, mem.Span)
	case ast.MemberMethod:
		m, _ := p.Members.Method(id)
		for _, v := range m.Ins {
			r.resolveVarType(v, sc)
		}
		for _, v := range m.Outs {
			r.resolveVarType(v, sc)
		}
	}
}

func (r *Resolver) resolveVarType(id ast.VarID, sc typeScope) {
	v := r.prog.Var(id)
	r.resolveType(v.Type, sc, v.Span)
}

// resolveType resolves the user-type names inside t. Cells that are
// already resolved are left alone, so shared cells are visited safely.
func (r *Resolver) resolveType(t types.TypeID, sc typeScope, span source.Span) {
	tab := r.prog.Types
	t = tab.Normalize(t)
	ty, ok := tab.Lookup(t)
	if !ok {
		return
	}
	switch ty.Kind {
	case types.KindSet, types.KindMultiset, types.KindSeq:
		r.resolveType(ty.Elem, sc, span)
	case types.KindMap:
		r.resolveType(ty.Elem, sc, span)
		r.resolveType(ty.Value, sc, span)
	case types.KindUser:
		u, _ := tab.User(t)
		if !u.Resolved() {
			r.resolveUserName(t, u, sc, span)
		}
		for _, a := range u.Args {
			r.resolveType(a, sc, span)
		}
	}
}

func (r *Resolver) resolveUserName(t types.TypeID, u *types.UserInfo, sc typeScope, span source.Span) {
	p := r.prog
	if u.Span != source.NoSpan {
		span = u.Span
	}
	name := p.Name(u.Name)

	if u.Qualifier == source.NoStringID {
		for _, tp := range sc.params {
			if p.TypeParam(tp).Name != u.Name {
				continue
			}
			if len(u.Args) != 0 {
				r.report(diag.ResWrongTypeArgCount, span, "type parameter %s takes no type arguments", name)
			}
			if err := p.Types.ResolveUserParam(t, ast.ParamRef(tp)); err != nil {
				r.report(diag.ResUnresolvedType, span, "type %s: %v", name, err)
			}
			return
		}
		if dims, ok := arrayDims(name); ok {
			r.bindDecl(t, u, p.ArrayClass(dims), span)
			return
		}
	}

	decl, ok := r.lookupTypeDecl(sc.module, u.Qualifier, u.Name)
	if !ok {
		full := name
		if u.Qualifier != source.NoStringID {
			full = p.Name(u.Qualifier) + "." + name
		}
		r.report(diag.ResUnresolvedType, span, "unknown type %s", full)
		return
	}
	r.bindDecl(t, u, decl, span)
}

func (r *Resolver) bindDecl(t types.TypeID, u *types.UserInfo, decl ast.DeclID, span source.Span) {
	p := r.prog
	d := p.Decls.Get(decl)
	switch {
	case len(u.Args) == 0 && len(d.TypeParams) > 0:
		// опущенные аргументы выводятся из использования
		u.Args = make([]types.TypeID, len(d.TypeParams))
		for i := range u.Args {
			u.Args[i] = p.Types.NewProxy(types.ProxyFree, span)
		}
	case len(u.Args) != len(d.TypeParams):
		r.report(diag.ResWrongTypeArgCount, span, "%s expects %d type arguments, got %d",
			p.Name(d.Name), len(d.TypeParams), len(u.Args))
	}
	if err := p.Types.ResolveUserDecl(t, ast.DeclRef(decl), d.Kind); err != nil {
		r.report(diag.ResUnresolvedType, span, "type %s: %v", p.Name(d.Name), err)
	}
}

// lookupTypeDecl finds a top-level declaration by name, in module or in
// the module reached through the dotted qualifier.
func (r *Resolver) lookupTypeDecl(module ast.ModuleID, qualifier, name source.StringID) (ast.DeclID, bool) {
	p := r.prog
	target := module
	if qualifier != source.NoStringID {
		parts := strings.Split(p.Name(qualifier), ".")
		path := make([]source.StringID, len(parts))
		for i, s := range parts {
			path[i] = p.Intern(s)
		}
		var ok bool
		if target, ok = link.LookupModule(p, module, path); !ok {
			return ast.NoDeclID, false
		}
	}
	sig, ok := link.SignatureOf(p, target, false)
	if !ok {
		return ast.NoDeclID, false
	}
	return sig.LookupTopLevel(name)
}

// arrayDims recognizes array and arrayN.
func arrayDims(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "array")
	if !ok {
		return 0, false
	}
	if rest == "" {
		return 1, true
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 || rest[0] == '0' {
		return 0, false
	}
	return n, true
}

// synthesizeAccessors adds a destructor field per named constructor formal
// and a `C?` discriminator per constructor. Constructors that share a
// destructor name share the field.
func (r *Resolver) synthesizeAccessors(d ast.DeclID) {
	p := r.prog
	boolT := p.Types.Builtins().Bool
	for _, cid := range p.CtorsOf(d) {
		c := p.Ctors.Get(uint32(cid))
		if c.Discriminator.IsValid() {
			continue
		}
		for _, f := range c.Formals {
			v := p.Var(f)
			if v.Name == source.NoStringID {
				c.Destructors = append(c.Destructors, ast.NoMemberID)
				continue
			}
			if prev, ok := p.MemberNamed(d, v.Name); ok {
				if fd, isField := p.Members.Field(prev); isField && fd.Special == ast.SpecialDestructor {
					if err := p.Types.Unify(fd.Type, v.Type); err != nil {
						r.report(diag.ResDuplicateMember, v.Span, "destructor %s is shared with a different type: %v", p.Name(v.Name), err)
					}
					c.Destructors = append(c.Destructors, prev)
					continue
				}
				r.report(diag.ResDuplicateMember, v.Span, "destructor %s clashes with member of %s", p.Name(v.Name), p.Name(p.Decls.Get(d).Name))
				c.Destructors = append(c.Destructors, ast.NoMemberID)
				continue
			}
			c.Destructors = append(c.Destructors, p.NewField(d, ast.FieldInit{
				Name:    v.Name,
				Type:    v.Type,
				IsGhost: v.IsGhost,
				Special: ast.SpecialDestructor,
				Ctor:    cid,
				Span:    v.Span,
			}))
		}
		c.Discriminator = p.NewField(d, ast.FieldInit{
			Name:    p.Intern(p.Name(c.Name) + "?"),
			Type:    boolT,
			Special: ast.SpecialDiscriminator,
			Ctor:    cid,
			Span:    c.Span,
		})
	}
}

// checkEqualityParams reports (==) requirements broken by the types written
// in the module's declarations.
func (r *Resolver) checkEqualityParams(module ast.ModuleID) {
	p := r.prog
	check := func(t types.TypeID, span source.Span) {
		eqsupport.Check(p, r.rep, t, span)
	}
	for _, d := range p.Modules.Get(module).Decls {
		for _, c := range p.CtorsOf(d) {
			for _, f := range p.Ctors.Get(uint32(c)).Formals {
				check(p.Var(f).Type, p.Var(f).Span)
			}
		}
		for _, mem := range p.Decls.Get(d).Members {
			span := p.Members.Get(mem).Span
			if f, ok := p.Members.Field(mem); ok && f.Special == ast.SpecialNone {
				check(f.Type, span)
			}
			if fn, ok := p.Members.Function(mem); ok {
				for _, v := range fn.Formals {
					check(p.Var(v).Type, p.Var(v).Span)
				}
				check(fn.Result, span)
			}
			if m, ok := p.Members.Method(mem); ok {
				for _, v := range append(append([]ast.VarID(nil), m.Ins...), m.Outs...) {
					check(p.Var(v).Type, p.Var(v).Span)
				}
			}
		}
	}
}
