package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
	"vera/internal/types"
)

// Decl is a top-level declaration. Kind selects the payload arena.
type Decl struct {
	Kind       types.DeclKind
	Name       source.StringID
	Module     ModuleID
	Span       source.Span
	Attrs      AttrSetID
	TypeParams []TypeParamID
	Members    []MemberID
	Payload    PayloadID

	// Refines links a declaration to the one it refines in the parent module.
	Refines cell.Once[DeclID]

	compiled cell.Once[string]
}

type ClassData struct {
	// IsDefault marks the per-module class holding module-level members.
	IsDefault bool
	// Dims is the dimension count of a synthesized array class, 0 otherwise.
	Dims int
}

// CtorInit describes a constructor passed to NewDatatype.
type CtorInit struct {
	Name    source.StringID
	Span    source.Span
	Formals []VarID
}

// EqualityInfo is the result of the equality-support fixpoint for a datatype.
// Contributes is indexed by type parameter position.
type EqualityInfo struct {
	Class       types.EqualityClass
	Contributes []bool
}

type DatatypeData struct {
	Ctors    []CtorID
	Equality cell.Once[EqualityInfo]
}

type IteratorData struct {
	Ins           []VarID
	Outs          []VarID
	Requires      []ExprID
	Ensures       []ExprID
	YieldRequires []ExprID
	YieldEnsures  []ExprID
	Reads         []ExprID
	Modifies      []ExprID
	Decreases     []ExprID
	Body          StmtID

	// Synth is filled by iterator desugaring.
	Synth cell.Once[IteratorMembers]
}

// IteratorMembers are the class-shaped members synthesized for an iterator.
type IteratorMembers struct {
	InFields        []MemberID
	OutFields       []MemberID
	HistoryFields   []MemberID
	Reads           MemberID
	Modifies        MemberID
	New             MemberID
	DecreasesFields []MemberID
	Ctor            MemberID
	Valid           MemberID
	MoveNext        MemberID
}

type OpaqueData struct {
	// SupportsEquality is the `(==)` annotation.
	SupportsEquality bool
}

// Ctor is a datatype constructor. Formals double as destructor fields.
type Ctor struct {
	Name    source.StringID
	Decl    DeclID
	Span    source.Span
	Formals []VarID
	// Destructors and Discriminator are synthesized special fields.
	Destructors   []MemberID
	Discriminator MemberID

	compiled cell.Once[string]
}

// Decls manages allocation of top-level declarations.
type Decls struct {
	Arena     *Arena[Decl]
	Classes   *Arena[ClassData]
	Datatypes *Arena[DatatypeData]
	Iterators *Arena[IteratorData]
	Opaques   *Arena[OpaqueData]
}

func NewDecls(capHint uint) *Decls {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Decls{
		Arena:     NewArena[Decl](capHint),
		Classes:   NewArena[ClassData](capHint),
		Datatypes: NewArena[DatatypeData](capHint),
		Iterators: NewArena[IteratorData](capHint / 4),
		Opaques:   NewArena[OpaqueData](capHint / 4),
	}
}

func (d *Decls) Get(id DeclID) *Decl {
	return d.Arena.Get(uint32(id))
}

func (d *Decls) Class(id DeclID) (*ClassData, bool) {
	decl := d.Get(id)
	if decl == nil || (decl.Kind != types.DeclClass && decl.Kind != types.DeclArray) {
		return nil, false
	}
	return d.Classes.Get(uint32(decl.Payload)), true
}

// Datatype returns payload for inductive and co-inductive datatypes.
func (d *Decls) Datatype(id DeclID) (*DatatypeData, bool) {
	decl := d.Get(id)
	if decl == nil || (decl.Kind != types.DeclDatatype && decl.Kind != types.DeclCodatatype) {
		return nil, false
	}
	return d.Datatypes.Get(uint32(decl.Payload)), true
}

func (d *Decls) Iterator(id DeclID) (*IteratorData, bool) {
	decl := d.Get(id)
	if decl == nil || decl.Kind != types.DeclIterator {
		return nil, false
	}
	return d.Iterators.Get(uint32(decl.Payload)), true
}

func (d *Decls) Opaque(id DeclID) (*OpaqueData, bool) {
	decl := d.Get(id)
	if decl == nil || decl.Kind != types.DeclOpaque {
		return nil, false
	}
	return d.Opaques.Get(uint32(decl.Payload)), true
}

func (p *Program) addDecl(module ModuleID, decl Decl) DeclID {
	m := p.Modules.Get(module)
	if m == nil {
		panic(fmt.Sprintf("ast: unknown module %d", module))
	}
	if m.Kind != ModuleLiteral {
		panic(fmt.Sprintf("ast: declarations cannot live in %s %s", m.Kind, p.Name(m.Name)))
	}
	decl.Module = module
	id := DeclID(p.Decls.Arena.Allocate(decl))
	m.Decls = append(m.Decls, id)
	p.ownParams(decl.TypeParams, id, NoMemberID)
	return id
}

// NewClass declares a class.
func (p *Program) NewClass(module ModuleID, name source.StringID, params []TypeParamID, span source.Span) DeclID {
	payload := p.Decls.Classes.Allocate(ClassData{})
	return p.addDecl(module, Decl{Kind: types.DeclClass, Name: name, Span: span, TypeParams: params, Payload: PayloadID(payload)})
}

// NewDatatype declares an inductive (co == false) or co-inductive datatype.
// A datatype without constructors is a contract violation.
func (p *Program) NewDatatype(module ModuleID, name source.StringID, params []TypeParamID, co bool, ctors []CtorInit, span source.Span) DeclID {
	if len(ctors) == 0 {
		panic(fmt.Sprintf("ast: datatype %s requires at least one constructor", p.Name(name)))
	}
	kind := types.DeclDatatype
	if co {
		kind = types.DeclCodatatype
	}
	payload := p.Decls.Datatypes.Allocate(DatatypeData{})
	id := p.addDecl(module, Decl{Kind: kind, Name: name, Span: span, TypeParams: params, Payload: PayloadID(payload)})
	dt := p.Decls.Datatypes.Get(payload)
	for _, c := range ctors {
		cid := CtorID(p.Ctors.Allocate(Ctor{Name: c.Name, Decl: id, Span: c.Span, Formals: c.Formals}))
		for _, f := range c.Formals {
			p.ownVar(f, NoMemberID, id)
		}
		dt.Ctors = append(dt.Ctors, cid)
	}
	return id
}

// NewIterator declares an iterator; its members are synthesized later.
func (p *Program) NewIterator(module ModuleID, name source.StringID, params []TypeParamID, data IteratorData, span source.Span) DeclID {
	if data.Synth.IsSet() {
		panic("ast: iterator members are synthesized by desugaring")
	}
	payload := p.Decls.Iterators.Allocate(IteratorData{})
	id := p.addDecl(module, Decl{Kind: types.DeclIterator, Name: name, Span: span, TypeParams: params, Payload: PayloadID(payload)})
	it := p.Decls.Iterators.Get(payload)
	it.Ins, it.Outs = data.Ins, data.Outs
	it.Requires, it.Ensures = data.Requires, data.Ensures
	it.YieldRequires, it.YieldEnsures = data.YieldRequires, data.YieldEnsures
	it.Reads, it.Modifies, it.Decreases = data.Reads, data.Modifies, data.Decreases
	it.Body = data.Body
	for _, v := range append(append([]VarID(nil), data.Ins...), data.Outs...) {
		p.ownVar(v, NoMemberID, id)
	}
	return id
}

// NewOpaqueType declares an abstract type.
func (p *Program) NewOpaqueType(module ModuleID, name source.StringID, params []TypeParamID, equality bool, span source.Span) DeclID {
	payload := p.Decls.Opaques.Allocate(OpaqueData{SupportsEquality: equality})
	return p.addDecl(module, Decl{Kind: types.DeclOpaque, Name: name, Span: span, TypeParams: params, Payload: PayloadID(payload)})
}

// DefaultClass returns the module's class of module-level members, creating it on first use.
func (p *Program) DefaultClass(module ModuleID) DeclID {
	m := p.Modules.Get(module)
	if id, ok := m.DefaultClass.Lookup(); ok {
		return id
	}
	payload := p.Decls.Classes.Allocate(ClassData{IsDefault: true})
	id := p.addDecl(module, Decl{Kind: types.DeclClass, Name: p.Intern("_default"), Span: m.Span, Payload: PayloadID(payload)})
	m.DefaultClass.MustSet(id)
	return id
}

// IsDefaultClass reports whether id is a module's default class.
func (p *Program) IsDefaultClass(id DeclID) bool {
	c, ok := p.Decls.Class(id)
	return ok && c.IsDefault
}

// DeclType returns a fresh user type naming decl applied to its own type parameters.
func (p *Program) DeclType(id DeclID) types.TypeID {
	d := p.Decls.Get(id)
	args := make([]types.TypeID, len(d.TypeParams))
	for i, tp := range d.TypeParams {
		args[i] = p.ParamType(tp)
	}
	return p.Types.NewResolvedUser(d.Name, args, DeclRef(id), d.Kind)
}

// DeclRef converts a declaration handle to the type table's opaque reference.
func DeclRef(id DeclID) types.DeclRef { return types.DeclRef(id) }

// ParamRef converts a type parameter handle to the type table's opaque reference.
func ParamRef(id TypeParamID) types.ParamRef { return types.ParamRef(id) }

// CtorsOf returns the constructors of a datatype.
func (p *Program) CtorsOf(id DeclID) []CtorID {
	dt, ok := p.Decls.Datatype(id)
	if !ok {
		return nil
	}
	return dt.Ctors
}
