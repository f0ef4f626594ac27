package ast

import (
	"fmt"
	"sync"

	"vera/internal/source"
	"vera/internal/types"
)

// Program owns every node of one build: the declaration graph, the
// statement/expression tree and the type table they reference.
type Program struct {
	Strings    *source.Interner
	Types      *types.Table
	Modules    *Modules
	Decls      *Decls
	Members    *Members
	Ctors      *Arena[Ctor]
	Vars       *Arena[Var]
	TypeParams *Arena[TypeParam]
	Attrs      *Arena[AttrSet]
	Exprs      *Exprs
	Stmts      *Stmts

	// Roots are top-level modules in declaration order.
	Roots []ModuleID

	system        ModuleID
	defaultModule ModuleID

	arrayMu sync.Mutex
	arrays  map[int]DeclID
}

// NewProgram creates an empty program with its system and default modules.
func NewProgram() *Program {
	strs := source.NewInterner()
	p := &Program{
		Strings:    strs,
		Types:      types.NewTable(strs),
		Modules:    NewModules(16),
		Decls:      NewDecls(64),
		Members:    NewMembers(128),
		Ctors:      NewArena[Ctor](32),
		Vars:       NewArena[Var](256),
		TypeParams: NewArena[TypeParam](16),
		Attrs:      NewArena[AttrSet](16),
		Exprs:      NewExprs(0),
		Stmts:      NewStmts(0),
		arrays:     make(map[int]DeclID),
	}
	p.system = p.newModule(Module{Kind: ModuleLiteral, Name: strs.Intern("_System"), SpecOnly: false})
	p.defaultModule = p.NewModule(NoModuleID, strs.Intern("_module"), source.NoSpan)
	return p
}

// SystemModule holds synthesized declarations such as array classes.
func (p *Program) SystemModule() ModuleID { return p.system }

// DefaultModule is the implicit root for declarations outside any module.
func (p *Program) DefaultModule() ModuleID { return p.defaultModule }

// Intern is a shortcut for p.Strings.Intern.
func (p *Program) Intern(s string) source.StringID { return p.Strings.Intern(s) }

// Name returns the text of an interned identifier.
func (p *Program) Name(id source.StringID) string { return p.Strings.MustLookup(id) }

func (p *Program) newModule(m Module) ModuleID {
	return ModuleID(p.Modules.Arena.Allocate(m))
}

// NewModule creates a literal module; parent NoModuleID makes it a root.
func (p *Program) NewModule(parent ModuleID, name source.StringID, span source.Span) ModuleID {
	id := p.newModule(Module{Kind: ModuleLiteral, Name: name, Parent: parent, Span: span})
	p.attachModule(parent, id)
	return id
}

// NewAliasModule creates `import name = path` (or `import name : path` when abstract) inside parent.
func (p *Program) NewAliasModule(parent ModuleID, name source.StringID, path []source.StringID, abstract bool, span source.Span) ModuleID {
	if !parent.IsValid() {
		panic("ast: alias module requires a parent")
	}
	if len(path) == 0 {
		panic("ast: alias module requires a target path")
	}
	kind := ModuleAlias
	if abstract {
		kind = ModuleAbstract
	}
	id := p.newModule(Module{Kind: kind, Name: name, Parent: parent, Span: span, Path: path})
	p.attachModule(parent, id)
	return id
}

func (p *Program) attachModule(parent, id ModuleID) {
	if !parent.IsValid() {
		p.Roots = append(p.Roots, id)
		return
	}
	pm := p.Modules.Get(parent)
	if pm == nil {
		panic(fmt.Sprintf("ast: unknown parent module %d", parent))
	}
	pm.Children = append(pm.Children, id)
}

// ModulePath returns the names from the root down to id.
func (p *Program) ModulePath(id ModuleID) []source.StringID {
	var rev []source.StringID
	for cur := id; cur.IsValid(); cur = p.Modules.Get(cur).Parent {
		rev = append(rev, p.Modules.Get(cur).Name)
	}
	out := make([]source.StringID, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

// ModuleName renders the dotted path of a module.
func (p *Program) ModuleName(id ModuleID) string {
	path := p.ModulePath(id)
	out := ""
	for i, n := range path {
		if i > 0 {
			out += "."
		}
		out += p.Name(n)
	}
	return out
}

// LiteralModules returns every literal module (roots first, then children).
func (p *Program) LiteralModules() []ModuleID {
	var out []ModuleID
	for _, id := range p.Modules.All() {
		if p.Modules.Get(id).Kind == ModuleLiteral {
			out = append(out, id)
		}
	}
	return out
}
