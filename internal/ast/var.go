package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
	"vera/internal/types"
)

// VarKind says where a variable is bound.
type VarKind uint8

const (
	VarFormal VarKind = iota
	VarOut
	VarLocal
	// VarBound is bound by a quantifier, comprehension or let.
	VarBound
)

// Var is a formal, out-parameter, local or bound variable.
// Owner links point back at the routine or declaration binding it.
type Var struct {
	Kind    VarKind
	Name    source.StringID
	Type    types.TypeID
	IsGhost bool
	Span    source.Span

	OwnerMember MemberID
	OwnerDecl   DeclID

	compiled cell.Once[string]
}

// NewVar allocates a variable. Type may be a proxy for inferred locals.
func (p *Program) NewVar(kind VarKind, name source.StringID, typ types.TypeID, ghost bool, span source.Span) VarID {
	if typ == types.NoTypeID {
		panic(fmt.Sprintf("ast: variable %s needs a type (use a proxy when unknown)", p.Name(name)))
	}
	return VarID(p.Vars.Allocate(Var{Kind: kind, Name: name, Type: typ, IsGhost: ghost, Span: span}))
}

// Var returns the variable for id or nil.
func (p *Program) Var(id VarID) *Var {
	return p.Vars.Get(uint32(id))
}

func (p *Program) ownVar(id VarID, member MemberID, decl DeclID) {
	v := p.Var(id)
	if v == nil {
		panic(fmt.Sprintf("ast: unknown variable %d", id))
	}
	if v.OwnerMember.IsValid() || v.OwnerDecl.IsValid() {
		panic(fmt.Sprintf("ast: variable %s already has an owner", p.Name(v.Name)))
	}
	v.OwnerMember, v.OwnerDecl = member, decl
}

// TypeParam is a generic parameter of a declaration or a member.
type TypeParam struct {
	Name source.StringID
	Span source.Span
	// EqualitySupport is the `(==)` requirement.
	EqualitySupport bool

	OwnerDecl   DeclID
	OwnerMember MemberID

	compiled cell.Once[string]
}

func (p *Program) NewTypeParam(name source.StringID, equality bool, span source.Span) TypeParamID {
	return TypeParamID(p.TypeParams.Allocate(TypeParam{Name: name, EqualitySupport: equality, Span: span}))
}

func (p *Program) TypeParam(id TypeParamID) *TypeParam {
	return p.TypeParams.Get(uint32(id))
}

// ParamType returns a fresh user type resolved to the type parameter.
func (p *Program) ParamType(id TypeParamID) types.TypeID {
	tp := p.TypeParam(id)
	t := p.Types.NewUser(tp.Name, source.NoStringID, nil, tp.Span)
	if err := p.Types.ResolveUserParam(t, ParamRef(id)); err != nil {
		panic(err)
	}
	return t
}

func (p *Program) ownParams(params []TypeParamID, decl DeclID, member MemberID) {
	for _, id := range params {
		tp := p.TypeParam(id)
		if tp == nil {
			panic(fmt.Sprintf("ast: unknown type parameter %d", id))
		}
		if tp.OwnerDecl.IsValid() || tp.OwnerMember.IsValid() {
			panic(fmt.Sprintf("ast: type parameter %s already has an owner", p.Name(tp.Name)))
		}
		tp.OwnerDecl, tp.OwnerMember = decl, member
	}
}

// DatatypeEquality implements types.EqualityOracle.
func (p *Program) DatatypeEquality(ref types.DeclRef) (types.EqualityClass, []bool) {
	dt, ok := p.Decls.Datatype(DeclID(ref))
	if !ok {
		return types.EqualityUnknown, nil
	}
	info, ok := dt.Equality.Lookup()
	if !ok {
		return types.EqualityUnknown, nil
	}
	return info.Class, info.Contributes
}

// OpaqueEquality implements types.EqualityOracle.
func (p *Program) OpaqueEquality(ref types.DeclRef) bool {
	o, ok := p.Decls.Opaque(DeclID(ref))
	return ok && o.SupportsEquality
}

// ParamEquality implements types.EqualityOracle.
func (p *Program) ParamEquality(ref types.ParamRef) bool {
	tp := p.TypeParam(TypeParamID(ref))
	return tp != nil && tp.EqualitySupport
}

// SupportsEquality is Types.SupportsEquality with the program as oracle.
func (p *Program) SupportsEquality(t types.TypeID) bool {
	return p.Types.SupportsEquality(t, p)
}
