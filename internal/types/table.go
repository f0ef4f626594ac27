package types

import (
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"vera/internal/cell"
	"vera/internal/source"
)

var (
	// ErrAlreadyResolved is returned when a user type is resolved a second time.
	ErrAlreadyResolved = errors.New("user type already resolved")
	ErrNotUser         = errors.New("not a user-defined type")
)

// Builtins stores TypeIDs for primitive types.
type Builtins struct {
	Invalid TypeID
	Error   TypeID
	Bool    TypeID
	Char    TypeID
	Int     TypeID
	Real    TypeID
	Nat     TypeID
	Object  TypeID
}

// UserInfo is the side record of a user-defined type cell.
// Name and Args come from the source; exactly one of decl or param is set by resolution.
type UserInfo struct {
	Name      source.StringID
	Qualifier source.StringID // module prefix as written, NoStringID if none
	Args      []TypeID
	Span      source.Span

	decl  cell.Once[DeclRef]
	kind  DeclKind
	param cell.Once[ParamRef]
}

// Decl returns the resolved declaration, if any.
func (u *UserInfo) Decl() (DeclRef, DeclKind, bool) {
	d, ok := u.decl.Lookup()
	return d, u.kind, ok
}

// Param returns the resolved type parameter, if any.
func (u *UserInfo) Param() (ParamRef, bool) {
	return u.param.Lookup()
}

// Resolved reports whether the user type points at a declaration or a parameter.
func (u *UserInfo) Resolved() bool {
	return u.decl.IsSet() || u.param.IsSet()
}

type subrangeInfo struct {
	Name source.StringID
}

// Table owns every type cell. Structural types are hash-consed; user types
// and proxies are always fresh cells since they carry mutable resolution state.
type Table struct {
	strings   *source.Interner
	types     []Type
	index     map[Type]TypeID
	users     []*UserInfo
	proxies   []*ProxyInfo
	subranges []subrangeInfo
	builtins  Builtins

	// Policy decides equality support for types that are not yet known.
	Policy EqualityPolicy
}

// NewTable constructs a table seeded with built-in primitives.
func NewTable(strs *source.Interner) *Table {
	if strs == nil {
		strs = source.NewInterner()
	}
	t := &Table{
		strings:   strs,
		index:     make(map[Type]TypeID, 64),
		users:     []*UserInfo{nil}, // 0 зарезервирован
		proxies:   []*ProxyInfo{nil},
		subranges: []subrangeInfo{{}},
	}
	t.builtins.Invalid = t.internRaw(Type{Kind: KindInvalid})
	t.builtins.Error = t.Intern(Type{Kind: KindError})
	t.builtins.Bool = t.Intern(Type{Kind: KindBool})
	t.builtins.Char = t.Intern(Type{Kind: KindChar})
	t.builtins.Int = t.Intern(Type{Kind: KindInt})
	t.builtins.Real = t.Intern(Type{Kind: KindReal})
	t.builtins.Object = t.Intern(Type{Kind: KindObject})
	t.builtins.Nat = t.Subrange(strs.Intern("nat"))
	return t
}

func (t *Table) Builtins() Builtins { return t.builtins }

// Strings returns the interner used for type names.
func (t *Table) Strings() *source.Interner { return t.strings }

// Len counts cells including the invalid sentinel.
func (t *Table) Len() int { return len(t.types) }

// Intern returns the stable id of a structural descriptor.
// Element handles must be valid; a zero element is a construction error.
func (t *Table) Intern(ty Type) TypeID {
	if ty.Kind == KindInvalid {
		return NoTypeID
	}
	if ty.Kind == KindUser || ty.Kind == KindProxy {
		panic(fmt.Errorf("types: %s cells must be created with their constructors", ty.Kind))
	}
	t.checkElems(ty)
	if id, ok := t.index[ty]; ok {
		return id
	}
	return t.internRaw(ty)
}

func (t *Table) checkElems(ty Type) {
	switch ty.Kind {
	case KindSet, KindMultiset, KindSeq:
		t.mustValid(ty.Elem)
	case KindMap:
		t.mustValid(ty.Elem)
		t.mustValid(ty.Value)
	}
}

func (t *Table) mustValid(id TypeID) {
	if id == NoTypeID || int(id) >= len(t.types) {
		panic(fmt.Errorf("types: invalid element type %d", id))
	}
}

func (t *Table) internRaw(ty Type) TypeID {
	n, err := safecast.Conv[uint32](len(t.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	t.types = append(t.types, ty)
	if ty.Kind != KindUser && ty.Kind != KindProxy {
		t.index[ty] = id
	}
	return id
}

// Lookup returns the descriptor for id without normalizing it.
func (t *Table) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(t.types) {
		return Type{}, false
	}
	return t.types[id], true
}

// MustLookup panics on an unknown id.
func (t *Table) MustLookup(id TypeID) Type {
	ty, ok := t.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return ty
}

// Kind returns the kind of the normal form of id.
func (t *Table) Kind(id TypeID) Kind {
	ty, ok := t.Lookup(t.Normalize(id))
	if !ok {
		return KindInvalid
	}
	return ty.Kind
}

func (t *Table) Set(elem TypeID, finite bool) TypeID { return t.Intern(MakeSet(elem, finite)) }
func (t *Table) Multiset(elem TypeID) TypeID         { return t.Intern(MakeMultiset(elem)) }
func (t *Table) Seq(elem TypeID) TypeID              { return t.Intern(MakeSeq(elem)) }
func (t *Table) Map(dom, rng TypeID, finite bool) TypeID {
	return t.Intern(MakeMap(dom, rng, finite))
}

// Subrange returns the named integer subrange type, one cell per name.
func (t *Table) Subrange(name source.StringID) TypeID {
	for i := 1; i < len(t.subranges); i++ {
		if t.subranges[i].Name == name {
			return t.Intern(Type{Kind: KindSubrange, Payload: uint32(i)}) //nolint:gosec // bounded by len
		}
	}
	n, err := safecast.Conv[uint32](len(t.subranges))
	if err != nil {
		panic(fmt.Errorf("len(subranges) overflow: %w", err))
	}
	t.subranges = append(t.subranges, subrangeInfo{Name: name})
	return t.Intern(Type{Kind: KindSubrange, Payload: n})
}

// NewUser allocates a fresh, unresolved user-defined type.
func (t *Table) NewUser(name, qualifier source.StringID, args []TypeID, span source.Span) TypeID {
	for _, a := range args {
		t.mustValid(a)
	}
	n, err := safecast.Conv[uint32](len(t.users))
	if err != nil {
		panic(fmt.Errorf("len(users) overflow: %w", err))
	}
	t.users = append(t.users, &UserInfo{
		Name:      name,
		Qualifier: qualifier,
		Args:      slices.Clone(args),
		Span:      span,
	})
	return t.internRaw(Type{Kind: KindUser, Payload: n})
}

// NewResolvedUser allocates a user type already bound to decl.
func (t *Table) NewResolvedUser(name source.StringID, args []TypeID, decl DeclRef, kind DeclKind) TypeID {
	id := t.NewUser(name, source.NoStringID, args, source.NoSpan)
	if err := t.ResolveUserDecl(id, decl, kind); err != nil {
		panic(err)
	}
	return id
}

// User returns the side record of a user type (not normalized).
func (t *Table) User(id TypeID) (*UserInfo, bool) {
	ty, ok := t.Lookup(id)
	if !ok || ty.Kind != KindUser {
		return nil, false
	}
	return t.users[ty.Payload], true
}

// ResolveUserDecl records the declaration a user type names.
func (t *Table) ResolveUserDecl(id TypeID, decl DeclRef, kind DeclKind) error {
	u, ok := t.User(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotUser, id)
	}
	if u.param.IsSet() {
		return fmt.Errorf("%w: already names a type parameter", ErrAlreadyResolved)
	}
	if err := u.decl.Set(decl); err != nil {
		return fmt.Errorf("%w: %w", ErrAlreadyResolved, err)
	}
	u.kind = kind
	return nil
}

// ResolveUserParam records the enclosing type parameter a user type names.
func (t *Table) ResolveUserParam(id TypeID, param ParamRef) error {
	u, ok := t.User(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotUser, id)
	}
	if u.decl.IsSet() {
		return fmt.Errorf("%w: already names a declaration", ErrAlreadyResolved)
	}
	if err := u.param.Set(param); err != nil {
		return fmt.Errorf("%w: %w", ErrAlreadyResolved, err)
	}
	return nil
}

// UserDecl returns the declaration behind the normal form of id.
func (t *Table) UserDecl(id TypeID) (DeclRef, DeclKind, bool) {
	u, ok := t.User(t.Normalize(id))
	if !ok {
		return 0, DeclUnknown, false
	}
	return u.Decl()
}

// IsReference reports object, class, array and iterator types.
func (t *Table) IsReference(id TypeID) bool {
	id = t.Normalize(id)
	ty, ok := t.Lookup(id)
	if !ok {
		return false
	}
	switch ty.Kind {
	case KindObject:
		return true
	case KindUser:
		_, kind, ok := t.users[ty.Payload].Decl()
		return ok && kind.IsReference()
	}
	return false
}

// Users calls fn for every user type cell.
func (t *Table) Users(fn func(id TypeID, u *UserInfo)) {
	for i, ty := range t.types {
		if ty.Kind == KindUser {
			fn(TypeID(i), t.users[ty.Payload]) //nolint:gosec // i < len(types) fits TypeID
		}
	}
}
