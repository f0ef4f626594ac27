package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
	"vera/internal/types"
)

type MemberKind uint8

const (
	MemberField MemberKind = iota
	MemberFunction
	MemberMethod
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberFunction:
		return "function"
	case MemberMethod:
		return "method"
	}
	return fmt.Sprintf("MemberKind(%d)", k)
}

// SpecialField marks fields synthesized as accessors rather than declared.
type SpecialField uint8

const (
	SpecialNone SpecialField = iota
	SpecialArrayLength
	SpecialDestructor
	SpecialDiscriminator
	SpecialIteratorIn
	SpecialIteratorOut
	SpecialIteratorHistory
	SpecialIteratorFrame
	SpecialIteratorDecreases
)

// Member is a field, function or method of a top-level declaration.
type Member struct {
	Kind       MemberKind
	Name       source.StringID
	Decl       DeclID
	Span       source.Span
	Attrs      AttrSetID
	IsStatic   bool
	IsGhost    bool
	TypeParams []TypeParamID
	Payload    PayloadID

	// Refines links a member to the member it refines in the parent module.
	Refines cell.Once[MemberID]

	compiled cell.Once[string]
}

type FieldData struct {
	Type          types.TypeID
	IsMutable     bool
	IsUserMutable bool
	Special       SpecialField
	// Ctor is the owning constructor of destructor and discriminator fields.
	Ctor CtorID
}

type FunctionFlavor uint8

const (
	FuncFunction FunctionFlavor = iota
	FuncPredicate
	FuncCoPredicate
)

type FunctionData struct {
	Flavor    FunctionFlavor
	Formals   []VarID
	Result    types.TypeID
	Requires  []ExprID
	Ensures   []ExprID
	Reads     []ExprID
	Decreases []ExprID
	Body      ExprID
}

type MethodFlavor uint8

const (
	MethodPlain MethodFlavor = iota
	MethodConstructor
	MethodLemma
)

type MethodData struct {
	Flavor    MethodFlavor
	Ins       []VarID
	Outs      []VarID
	Requires  []ExprID
	Ensures   []ExprID
	Modifies  []ExprID
	Decreases []ExprID
	Body      StmtID
}

// Members manages allocation of members.
type Members struct {
	Arena     *Arena[Member]
	Fields    *Arena[FieldData]
	Functions *Arena[FunctionData]
	Methods   *Arena[MethodData]
}

func NewMembers(capHint uint) *Members {
	if capHint == 0 {
		capHint = 1 << 7
	}
	return &Members{
		Arena:     NewArena[Member](capHint),
		Fields:    NewArena[FieldData](capHint),
		Functions: NewArena[FunctionData](capHint),
		Methods:   NewArena[MethodData](capHint),
	}
}

func (m *Members) Get(id MemberID) *Member {
	return m.Arena.Get(uint32(id))
}

func (m *Members) Field(id MemberID) (*FieldData, bool) {
	mem := m.Get(id)
	if mem == nil || mem.Kind != MemberField {
		return nil, false
	}
	return m.Fields.Get(uint32(mem.Payload)), true
}

func (m *Members) Function(id MemberID) (*FunctionData, bool) {
	mem := m.Get(id)
	if mem == nil || mem.Kind != MemberFunction {
		return nil, false
	}
	return m.Functions.Get(uint32(mem.Payload)), true
}

func (m *Members) Method(id MemberID) (*MethodData, bool) {
	mem := m.Get(id)
	if mem == nil || mem.Kind != MemberMethod {
		return nil, false
	}
	return m.Methods.Get(uint32(mem.Payload)), true
}

func (p *Program) addMember(decl DeclID, mem Member) MemberID {
	d := p.Decls.Get(decl)
	if d == nil {
		panic(fmt.Sprintf("ast: unknown declaration %d", decl))
	}
	mem.Decl = decl
	if p.IsDefaultClass(decl) {
		mem.IsStatic = true
	}
	id := MemberID(p.Members.Arena.Allocate(mem))
	d.Members = append(d.Members, id)
	p.ownParams(mem.TypeParams, NoDeclID, id)
	return id
}

// FieldInit describes a declared or synthesized field.
type FieldInit struct {
	Name          source.StringID
	Type          types.TypeID
	IsGhost       bool
	IsMutable     bool
	IsUserMutable bool
	Special       SpecialField
	Ctor          CtorID
	Span          source.Span
}

// NewField adds a field to a class-like declaration.
func (p *Program) NewField(decl DeclID, f FieldInit) MemberID {
	if f.Type == types.NoTypeID {
		panic(fmt.Sprintf("ast: field %s needs a type", p.Name(f.Name)))
	}
	if f.Special == SpecialNone && p.IsDefaultClass(decl) {
		panic("ast: module-level fields are not allowed")
	}
	payload := p.Members.Fields.Allocate(FieldData{
		Type:          f.Type,
		IsMutable:     f.IsMutable,
		IsUserMutable: f.IsUserMutable,
		Special:       f.Special,
		Ctor:          f.Ctor,
	})
	return p.addMember(decl, Member{Kind: MemberField, Name: f.Name, Span: f.Span, IsGhost: f.IsGhost, Payload: PayloadID(payload)})
}

// FunctionInit describes a function, predicate or co-predicate.
// Functions are ghost unless Compiled is set; co-predicates are always ghost.
type FunctionInit struct {
	Name       source.StringID
	Flavor     FunctionFlavor
	Compiled   bool
	IsStatic   bool
	TypeParams []TypeParamID
	Formals    []VarID
	Result     types.TypeID
	Requires   []ExprID
	Ensures    []ExprID
	Reads      []ExprID
	Decreases  []ExprID
	Body       ExprID
	Attrs      AttrSetID
	Span       source.Span
}

func (p *Program) NewFunction(decl DeclID, f FunctionInit) MemberID {
	switch f.Flavor {
	case FuncPredicate, FuncCoPredicate:
		if f.Result != types.NoTypeID && p.Types.Kind(f.Result) != types.KindBool {
			panic(fmt.Sprintf("ast: predicate %s must return bool", p.Name(f.Name)))
		}
		f.Result = p.Types.Builtins().Bool
	default:
		if f.Result == types.NoTypeID {
			panic(fmt.Sprintf("ast: function %s needs a result type", p.Name(f.Name)))
		}
	}
	ghost := !f.Compiled || f.Flavor == FuncCoPredicate
	payload := p.Members.Functions.Allocate(FunctionData{
		Flavor:    f.Flavor,
		Formals:   f.Formals,
		Result:    f.Result,
		Requires:  f.Requires,
		Ensures:   f.Ensures,
		Reads:     f.Reads,
		Decreases: f.Decreases,
		Body:      f.Body,
	})
	id := p.addMember(decl, Member{
		Kind: MemberFunction, Name: f.Name, Span: f.Span, Attrs: f.Attrs,
		IsStatic: f.IsStatic, IsGhost: ghost, TypeParams: f.TypeParams, Payload: PayloadID(payload),
	})
	for _, v := range f.Formals {
		p.ownVar(v, id, NoDeclID)
	}
	return id
}

// MethodInit describes a method, constructor or lemma. Lemmas are always ghost.
type MethodInit struct {
	Name       source.StringID
	Flavor     MethodFlavor
	IsGhost    bool
	IsStatic   bool
	TypeParams []TypeParamID
	Ins        []VarID
	Outs       []VarID
	Requires   []ExprID
	Ensures    []ExprID
	Modifies   []ExprID
	Decreases  []ExprID
	Body       StmtID
	Attrs      AttrSetID
	Span       source.Span
}

func (p *Program) NewMethod(decl DeclID, m MethodInit) MemberID {
	if m.Flavor == MethodConstructor {
		d := p.Decls.Get(decl)
		if d == nil || (d.Kind != types.DeclClass && d.Kind != types.DeclIterator) || p.IsDefaultClass(decl) {
			panic(fmt.Sprintf("ast: constructor %s must belong to a class", p.Name(m.Name)))
		}
		if len(m.Outs) > 0 {
			panic("ast: constructors have no out-parameters")
		}
	}
	payload := p.Members.Methods.Allocate(MethodData{
		Flavor:    m.Flavor,
		Ins:       m.Ins,
		Outs:      m.Outs,
		Requires:  m.Requires,
		Ensures:   m.Ensures,
		Modifies:  m.Modifies,
		Decreases: m.Decreases,
		Body:      m.Body,
	})
	id := p.addMember(decl, Member{
		Kind: MemberMethod, Name: m.Name, Span: m.Span, Attrs: m.Attrs,
		IsStatic: m.IsStatic, IsGhost: m.IsGhost || m.Flavor == MethodLemma,
		TypeParams: m.TypeParams, Payload: PayloadID(payload),
	})
	for _, v := range m.Ins {
		p.ownVar(v, id, NoDeclID)
	}
	for _, v := range m.Outs {
		p.ownVar(v, id, NoDeclID)
	}
	return id
}

// HasBody reports whether a function or method carries a body.
func (p *Program) HasBody(id MemberID) bool {
	if fn, ok := p.Members.Function(id); ok {
		return fn.Body.IsValid()
	}
	if m, ok := p.Members.Method(id); ok {
		return m.Body.IsValid()
	}
	return false
}

// MemberNamed finds a member of decl by name.
func (p *Program) MemberNamed(decl DeclID, name source.StringID) (MemberID, bool) {
	d := p.Decls.Get(decl)
	if d == nil {
		return NoMemberID, false
	}
	for _, id := range d.Members {
		if p.Members.Get(id).Name == name {
			return id, true
		}
	}
	return NoMemberID, false
}
