package manifest

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"vera/internal/ast"
	"vera/internal/source"
	"vera/internal/types"
)

// Build adds the manifest's modules and declarations to p. Spans point
// into file, which must hold m.Source. The result maps dotted module
// paths to the literal modules created; "" is the default module.
func (m *Manifest) Build(p *ast.Program, file source.FileID) (map[string]ast.ModuleID, error) {
	b := &builder{
		m:       m,
		p:       p,
		file:    file,
		src:     string(m.Source),
		modules: map[string]ast.ModuleID{"": p.DefaultModule()},
	}
	order := make([]int, len(m.Modules))
	for i := range order {
		order[i] = i
	}
	// родители раньше детей
	slices.SortStableFunc(order, func(a, c int) int {
		return cmp.Compare(depth(m.Modules[a]), depth(m.Modules[c]))
	})
	for _, i := range order {
		if err := b.module(&m.Modules[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", m.Path, err)
		}
	}
	return b.modules, nil
}

func depth(mod Module) int {
	if mod.Parent == "" {
		return 0
	}
	return strings.Count(mod.Parent, ".") + 1
}

func modulePath(mod *Module) string {
	if mod.Parent == "" {
		return mod.Name
	}
	return mod.Parent + "." + mod.Name
}

type builder struct {
	m    *Manifest
	p    *ast.Program
	file source.FileID
	src  string

	modules map[string]ast.ModuleID
}

// locate finds text in the manifest source; base is -1 when it is not
// there verbatim (escaped strings, for one).
func (b *builder) locate(text string) (source.Span, int) {
	off := strings.Index(b.src, text)
	if text == "" || off < 0 {
		return source.NoSpan, -1
	}
	sp := source.Span{File: b.file}
	start, err1 := safeOffset(off)
	end, err2 := safeOffset(off + len(text))
	if err1 != nil || err2 != nil {
		return source.NoSpan, -1
	}
	sp.Start, sp.End = start, end
	return sp, off
}

// nameSpan locates a declaration by its quoted name first.
func (b *builder) nameSpan(name string) source.Span {
	if sp, off := b.locate(`"` + name + `"`); off >= 0 {
		sp.Start++
		sp.End--
		return sp
	}
	sp, _ := b.locate(name)
	return sp
}

func (b *builder) parser(text string, at source.Span) (*bodyParser, error) {
	sp, base := b.locate(text)
	if base < 0 {
		sp = at
	}
	return newBodyParser(b.p, text, b.file, base, sp)
}

func (b *builder) expr(text string, at source.Span) (ast.ExprID, error) {
	bp, err := b.parser(text, at)
	if err != nil {
		return ast.NoExprID, err
	}
	return bp.Expr()
}

func (b *builder) exprs(texts []string, at source.Span) ([]ast.ExprID, error) {
	out := make([]ast.ExprID, 0, len(texts))
	for _, text := range texts {
		e, err := b.expr(text, at)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// block parses statements into a block; an empty list means no body.
func (b *builder) block(texts []string, at source.Span) (ast.StmtID, error) {
	if len(texts) == 0 {
		return ast.NoStmtID, nil
	}
	stmts := make([]ast.StmtID, 0, len(texts))
	for _, text := range texts {
		bp, err := b.parser(text, at)
		if err != nil {
			return ast.NoStmtID, err
		}
		s, err := bp.Stmt()
		if err != nil {
			return ast.NoStmtID, err
		}
		stmts = append(stmts, s)
	}
	return b.p.Stmts.NewBlock(at, stmts), nil
}

func (b *builder) typ(text string, at source.Span) (types.TypeID, error) {
	sp, base := b.locate(text)
	if base < 0 {
		sp = at
	}
	return ParseType(b.p.Types, text, sp)
}

// attrs parses entries like `compile false` or `extern "Foo"`.
func (b *builder) attrs(texts []string, at source.Span) (ast.AttrSetID, error) {
	if len(texts) == 0 {
		return ast.NoAttrSetID, nil
	}
	out := make([]ast.Attribute, 0, len(texts))
	for _, text := range texts {
		bp, err := b.parser(text, at)
		if err != nil {
			return ast.NoAttrSetID, err
		}
		name := bp.next()
		if name.kind != tokIdent {
			return ast.NoAttrSetID, fmt.Errorf("attribute %q: expected a name", text)
		}
		var args []ast.ExprID
		if bp.peek().kind != tokEOF {
			if args, err = bp.exprList(); err != nil {
				return ast.NoAttrSetID, err
			}
			if err := bp.done(); err != nil {
				return ast.NoAttrSetID, err
			}
		}
		out = append(out, ast.Attribute{Name: b.p.Intern(name.text), Args: args, Span: bp.span(0, len(text))})
	}
	return b.p.NewAttrSet(out), nil
}

// typeParams turns `T` and `T(==)` into type parameters.
func (b *builder) typeParams(names []string) []ast.TypeParamID {
	if len(names) == 0 {
		return nil
	}
	out := make([]ast.TypeParamID, 0, len(names))
	for _, raw := range names {
		name, eq := strings.CutSuffix(strings.TrimSpace(raw), "(==)")
		name = strings.TrimSpace(name)
		out = append(out, b.p.NewTypeParam(b.p.Intern(name), eq, b.nameSpan(name)))
	}
	return out
}

func (b *builder) vars(kind ast.VarKind, params []Param, at source.Span) ([]ast.VarID, error) {
	out := make([]ast.VarID, 0, len(params))
	for _, prm := range params {
		sp := b.nameSpan(prm.Name)
		if sp == source.NoSpan {
			sp = at
		}
		t, err := b.typ(prm.Type, sp)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", prm.Name, err)
		}
		out = append(out, b.p.NewVar(kind, b.p.Intern(prm.Name), t, prm.Ghost, sp))
	}
	return out, nil
}

func (b *builder) path(path string) []source.StringID {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := make([]source.StringID, len(parts))
	for i, part := range parts {
		out[i] = b.p.Intern(strings.TrimSpace(part))
	}
	return out
}

func (b *builder) module(mod *Module) error {
	key := modulePath(mod)
	id, ok := b.modules[key]
	if !ok {
		parent := ast.NoModuleID
		if mod.Parent != "" {
			if parent, ok = b.modules[mod.Parent]; !ok {
				return fmt.Errorf("module %s: unknown parent %s", mod.Name, mod.Parent)
			}
		}
		id = b.p.NewModule(parent, b.p.Intern(mod.Name), b.nameSpan(mod.Name))
		b.modules[key] = id
	}
	msp := b.p.Modules.Get(id).Span
	attrs, err := b.attrs(mod.Attrs, msp)
	if err != nil {
		return fmt.Errorf("module %s: %w", key, err)
	}
	md := b.p.Modules.Get(id)
	md.IsAbstract = mod.Abstract
	md.SpecOnly = mod.Ghost
	md.RefinesPath = b.path(mod.Refines)
	md.Attrs = attrs

	for _, imp := range mod.Imports {
		alias := b.p.NewAliasModule(id, b.p.Intern(imp.Name), b.path(imp.Path), imp.Abstract, b.nameSpan(imp.Name))
		if imp.Opened {
			md = b.p.Modules.Get(id)
			md.Opened = append(md.Opened, alias)
		}
	}

	classes := make(map[string]ast.DeclID, len(mod.Classes))
	for i := range mod.Datatypes {
		if err := b.datatype(id, &mod.Datatypes[i]); err != nil {
			return fmt.Errorf("module %s: datatype %s: %w", key, mod.Datatypes[i].Name, err)
		}
	}
	for i := range mod.Classes {
		cl := &mod.Classes[i]
		decl, err := b.class(id, cl)
		if err != nil {
			return fmt.Errorf("module %s: class %s: %w", key, cl.Name, err)
		}
		classes[cl.Name] = decl
	}
	for _, op := range mod.Opaques {
		b.p.NewOpaqueType(id, b.p.Intern(op.Name), b.typeParams(op.Params), op.Equality, b.nameSpan(op.Name))
	}
	for i := range mod.Iterators {
		if err := b.iterator(id, &mod.Iterators[i]); err != nil {
			return fmt.Errorf("module %s: iterator %s: %w", key, mod.Iterators[i].Name, err)
		}
	}

	owner := func(class string) (ast.DeclID, error) {
		if class == "" {
			return b.p.DefaultClass(id), nil
		}
		decl, ok := classes[class]
		if !ok {
			return ast.NoDeclID, fmt.Errorf("unknown class %s", class)
		}
		return decl, nil
	}
	for i := range mod.Functions {
		fn := &mod.Functions[i]
		decl, err := owner(fn.Class)
		if err == nil {
			err = b.function(decl, fn)
		}
		if err != nil {
			return fmt.Errorf("module %s: function %s: %w", key, fn.Name, err)
		}
	}
	for i := range mod.Methods {
		mt := &mod.Methods[i]
		decl, err := owner(mt.Class)
		if err == nil {
			err = b.method(decl, mt)
		}
		if err != nil {
			return fmt.Errorf("module %s: method %s: %w", key, mt.Name, err)
		}
	}
	return nil
}

func (b *builder) datatype(module ast.ModuleID, dt *Datatype) error {
	sp := b.nameSpan(dt.Name)
	params := b.typeParams(dt.Params)
	ctors := make([]ast.CtorInit, 0, len(dt.Ctors))
	for _, c := range dt.Ctors {
		formals, err := b.vars(ast.VarFormal, c.Fields, sp)
		if err != nil {
			return fmt.Errorf("ctor %s: %w", c.Name, err)
		}
		ctors = append(ctors, ast.CtorInit{Name: b.p.Intern(c.Name), Span: b.nameSpan(c.Name), Formals: formals})
	}
	b.p.NewDatatype(module, b.p.Intern(dt.Name), params, dt.Co, ctors, sp)
	return nil
}

func (b *builder) class(module ast.ModuleID, cl *Class) (ast.DeclID, error) {
	id := b.p.NewClass(module, b.p.Intern(cl.Name), b.typeParams(cl.Params), b.nameSpan(cl.Name))
	for _, f := range cl.Fields {
		sp := b.nameSpan(f.Name)
		t, err := b.typ(f.Type, sp)
		if err != nil {
			return ast.NoDeclID, fmt.Errorf("field %s: %w", f.Name, err)
		}
		b.p.NewField(id, ast.FieldInit{
			Name:          b.p.Intern(f.Name),
			Type:          t,
			IsGhost:       f.Ghost,
			IsMutable:     f.Mutable,
			IsUserMutable: f.Mutable,
			Span:          sp,
		})
	}
	return id, nil
}

func (b *builder) iterator(module ast.ModuleID, it *Iterator) error {
	sp := b.nameSpan(it.Name)
	params := b.typeParams(it.Params)
	ins, err := b.vars(ast.VarFormal, it.Ins, sp)
	if err != nil {
		return err
	}
	outs, err := b.vars(ast.VarOut, it.Outs, sp)
	if err != nil {
		return err
	}
	body, err := b.block(it.Body, sp)
	if err != nil {
		return err
	}
	b.p.NewIterator(module, b.p.Intern(it.Name), params, ast.IteratorData{Ins: ins, Outs: outs, Body: body}, sp)
	return nil
}

func (b *builder) function(decl ast.DeclID, fn *Function) error {
	sp := b.nameSpan(fn.Name)
	init := ast.FunctionInit{
		Name:       b.p.Intern(fn.Name),
		Compiled:   fn.Compiled,
		IsStatic:   fn.Static,
		TypeParams: b.typeParams(fn.Params),
		Span:       sp,
	}
	if fn.Predicate {
		init.Flavor = ast.FuncPredicate
	}
	var err error
	if init.Formals, err = b.vars(ast.VarFormal, fn.Formals, sp); err != nil {
		return err
	}
	if fn.Result != "" {
		if init.Result, err = b.typ(fn.Result, sp); err != nil {
			return fmt.Errorf("result: %w", err)
		}
	}
	if init.Requires, err = b.exprs(fn.Requires, sp); err != nil {
		return err
	}
	if init.Ensures, err = b.exprs(fn.Ensures, sp); err != nil {
		return err
	}
	if fn.Body != "" {
		if init.Body, err = b.expr(fn.Body, sp); err != nil {
			return err
		}
	}
	if init.Attrs, err = b.attrs(fn.Attrs, sp); err != nil {
		return err
	}
	b.p.NewFunction(decl, init)
	return nil
}

func (b *builder) method(decl ast.DeclID, mt *Method) error {
	sp := b.nameSpan(mt.Name)
	init := ast.MethodInit{
		Name:       b.p.Intern(mt.Name),
		IsGhost:    mt.Ghost,
		IsStatic:   mt.Static,
		TypeParams: b.typeParams(mt.Params),
		Span:       sp,
	}
	switch {
	case mt.Constructor:
		if b.p.IsDefaultClass(decl) {
			return fmt.Errorf("constructors need a class")
		}
		init.Flavor = ast.MethodConstructor
	case mt.Lemma:
		init.Flavor = ast.MethodLemma
	}
	var err error
	if init.Ins, err = b.vars(ast.VarFormal, mt.Ins, sp); err != nil {
		return err
	}
	if init.Outs, err = b.vars(ast.VarOut, mt.Outs, sp); err != nil {
		return err
	}
	if init.Requires, err = b.exprs(mt.Requires, sp); err != nil {
		return err
	}
	if init.Ensures, err = b.exprs(mt.Ensures, sp); err != nil {
		return err
	}
	if init.Body, err = b.block(mt.Body, sp); err != nil {
		return err
	}
	if init.Attrs, err = b.attrs(mt.Attrs, sp); err != nil {
		return err
	}
	b.p.NewMethod(decl, init)
	return nil
}

func safeOffset(n int) (uint32, error) {
	return safecast.Conv[uint32](n)
}
