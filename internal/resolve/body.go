package resolve

import (
	"slices"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// checker resolves the bodies of one module. Bodies are resolved one after
// another: the type table is not safe for concurrent interning.
type checker struct {
	r   *Resolver
	p   *ast.Program
	tab *types.Table
	sig *ast.Signature

	// текущая подпрограмма
	decl   ast.DeclID
	member ast.MemberID
	static bool
	ghost  bool
	iter   bool
	outs   []ast.VarID
	loops  int
	tscope typeScope
	scopes []map[source.StringID]ast.VarID
	this   types.TypeID

	err error
}

func (r *Resolver) resolveBodies(module ast.ModuleID) error {
	p := r.prog
	m := p.Modules.Get(module)
	sig, ok := m.Signature.Lookup()
	if !ok {
		return nil
	}
	c := &checker{r: r, p: p, tab: p.Types, sig: sig}
	for _, d := range slices.Clone(m.Decls) {
		for _, mem := range slices.Clone(p.Decls.Get(d).Members) {
			c.routine(module, d, mem)
		}
		if _, ok := p.Decls.Iterator(d); ok {
			c.iterator(module, d)
		}
		if c.err != nil {
			return c.err
		}
	}
	return nil
}

func (c *checker) enter(module ast.ModuleID, d ast.DeclID, mem ast.MemberID) {
	decl := c.p.Decls.Get(d)
	c.decl, c.member = d, mem
	c.static = c.p.IsDefaultClass(d)
	c.ghost, c.iter = false, false
	c.outs, c.loops = nil, 0
	c.scopes = c.scopes[:0]
	c.this = types.NoTypeID
	c.tscope = typeScope{module: module, params: decl.TypeParams}
	if mem.IsValid() {
		member := c.p.Members.Get(mem)
		c.static = c.static || member.IsStatic
		c.ghost = member.IsGhost
		c.tscope = c.tscope.with(member.TypeParams)
	}
}

func (c *checker) routine(module ast.ModuleID, d ast.DeclID, mem ast.MemberID) {
	p := c.p
	switch p.Members.Get(mem).Kind {
	case ast.MemberFunction:
		fn := *mustFunction(p, mem)
		c.enter(module, d, mem)
		c.push()
		for _, v := range fn.Formals {
			c.declare(v)
		}
		c.specs(func() {
			c.predicates(fn.Requires, "precondition")
			c.exprs(fn.Reads)
			c.exprs(fn.Decreases)
			c.predicates(fn.Ensures, "postcondition")
		})
		if fn.Body.IsValid() {
			t := c.expr(fn.Body)
			c.unify(fn.Result, t, p.Exprs.Get(fn.Body).Span, "function body")
		}
		c.pop()
	case ast.MemberMethod:
		m := *mustMethod(p, mem)
		c.enter(module, d, mem)
		c.outs = m.Outs
		c.push()
		for _, v := range m.Ins {
			c.declare(v)
		}
		c.specs(func() {
			c.predicates(m.Requires, "precondition")
			c.exprs(m.Modifies)
			c.exprs(m.Decreases)
		})
		for _, v := range m.Outs {
			c.declare(v)
		}
		c.specs(func() { c.predicates(m.Ensures, "postcondition") })
		c.stmt(m.Body)
		c.pop()
	}
}

func (c *checker) iterator(module ast.ModuleID, d ast.DeclID) {
	p := c.p
	ip, _ := p.Decls.Iterator(d)
	it := *ip
	synth := it.Synth.GetOr(ast.IteratorMembers{})

	c.enter(module, d, ast.NoMemberID)
	c.iter = true
	c.outs = it.Outs
	c.push()
	for _, v := range it.Ins {
		c.declare(v)
	}
	c.specs(func() {
		c.predicates(it.Requires, "precondition")
		c.exprs(it.Reads)
		c.exprs(it.Modifies)
		for i, e := range it.Decreases {
			t := c.expr(e)
			if i < len(synth.DecreasesFields) {
				f, _ := p.Members.Field(synth.DecreasesFields[i])
				c.unify(f.Type, t, p.Exprs.Get(e).Span, "decreases clause")
			}
		}
	})
	for _, v := range it.Outs {
		c.declare(v)
	}
	c.specs(func() {
		c.predicates(it.YieldRequires, "yield precondition")
		c.predicates(it.YieldEnsures, "yield postcondition")
		c.predicates(it.Ensures, "postcondition")
	})
	c.stmt(it.Body)
	c.pop()
}

func mustFunction(p *ast.Program, id ast.MemberID) *ast.FunctionData {
	fn, _ := p.Members.Function(id)
	return fn
}

func mustMethod(p *ast.Program, id ast.MemberID) *ast.MethodData {
	m, _ := p.Members.Method(id)
	return m
}

// specs resolves fn in a ghost context.
func (c *checker) specs(fn func()) {
	saved := c.ghost
	c.ghost = true
	fn()
	c.ghost = saved
}

func (c *checker) push() {
	c.scopes = append(c.scopes, make(map[source.StringID]ast.VarID))
}

func (c *checker) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// declare resolves the variable's type and binds it in the innermost scope.
func (c *checker) declare(id ast.VarID) {
	v := c.p.Var(id)
	name, span, t := v.Name, v.Span, v.Type
	c.r.resolveType(t, c.tscope, span)
	top := c.scopes[len(c.scopes)-1]
	if prev, dup := top[name]; dup && prev != id {
		diag.ReportError(c.r.rep, diag.ResDuplicateDecl, span, "duplicate variable "+c.p.Name(name)).
			WithNote(c.p.Var(prev).Span, "previous declaration").Emit()
	}
	top[name] = id
}

func (c *checker) lookupVar(name source.StringID) (ast.VarID, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}
	return ast.NoVarID, false
}

func (c *checker) thisType() types.TypeID {
	if c.this == types.NoTypeID {
		c.this = c.p.DeclType(c.decl)
	}
	return c.this
}

func (c *checker) unify(want, got types.TypeID, span source.Span, what string) bool {
	if err := c.tab.Unify(want, got); err != nil {
		c.r.report(diag.ResTypeMismatch, span, "%s: %v", what, err)
		return false
	}
	return true
}

func (c *checker) exprs(ids []ast.ExprID) {
	for _, e := range ids {
		c.expr(e)
	}
}

func (c *checker) predicates(ids []ast.ExprID, what string) {
	for _, e := range ids {
		c.predicate(e, what)
	}
}

// predicate resolves e and requires it to be boolean.
func (c *checker) predicate(e ast.ExprID, what string) {
	if !e.IsValid() {
		return
	}
	t := c.expr(e)
	if err := c.tab.Unify(c.tab.Builtins().Bool, t); err != nil {
		c.r.report(diag.ResNotAPredicate, c.p.Exprs.Get(e).Span, "%s must be boolean, got %s", what, c.tab.Format(t))
	}
}

func (c *checker) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
