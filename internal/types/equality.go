package types

import "fmt"

// EqualityClass is the precomputed equality-support classification of a datatype.
type EqualityClass uint8

const (
	// EqualityUnknown: the fixpoint has not run for this datatype yet.
	EqualityUnknown EqualityClass = iota
	EqualityNever
	EqualityAlways
	// EqualityConditional: supported iff every contributing type argument supports equality.
	EqualityConditional
)

func (c EqualityClass) String() string {
	switch c {
	case EqualityUnknown:
		return "unknown"
	case EqualityNever:
		return "never"
	case EqualityAlways:
		return "always"
	case EqualityConditional:
		return "conditional"
	}
	return fmt.Sprintf("EqualityClass(%d)", c)
}

// EqualityPolicy decides the answer for types whose support is not yet known:
// unresolved names, unbound proxies and datatypes whose fixpoint has not run.
type EqualityPolicy uint8

const (
	EqualityOptimistic EqualityPolicy = iota
	EqualityConservative
)

func (p EqualityPolicy) String() string {
	if p == EqualityConservative {
		return "conservative"
	}
	return "optimistic"
}

// ParseEqualityPolicy converts a flag value to a policy.
func ParseEqualityPolicy(s string) (EqualityPolicy, error) {
	switch s {
	case "", "optimistic":
		return EqualityOptimistic, nil
	case "conservative":
		return EqualityConservative, nil
	}
	return EqualityOptimistic, fmt.Errorf("invalid equality policy: %q (expected: optimistic|conservative)", s)
}

func (p EqualityPolicy) unknown() bool {
	return p == EqualityOptimistic
}

// EqualityOracle answers declaration-level equality questions the table cannot.
type EqualityOracle interface {
	// DatatypeEquality returns the classification of an inductive datatype and,
	// for EqualityConditional, which type parameter positions contribute.
	DatatypeEquality(decl DeclRef) (EqualityClass, []bool)
	// OpaqueEquality reports the equality annotation of an opaque type.
	OpaqueEquality(decl DeclRef) bool
	// ParamEquality reports whether a type parameter carries a (==) requirement.
	ParamEquality(param ParamRef) bool
}

// SupportsEquality reports whether values of id can be compared structurally.
func (t *Table) SupportsEquality(id TypeID, oracle EqualityOracle) bool {
	id = t.Normalize(id)
	ty, ok := t.Lookup(id)
	if !ok {
		return false
	}
	switch ty.Kind {
	case KindError, KindBool, KindChar, KindInt, KindReal, KindSubrange, KindObject:
		return true
	case KindSet, KindMultiset, KindSeq:
		return t.SupportsEquality(ty.Elem, oracle)
	case KindMap:
		return t.SupportsEquality(ty.Elem, oracle) && t.SupportsEquality(ty.Value, oracle)
	case KindProxy:
		return t.Policy.unknown()
	case KindUser:
		return t.userSupportsEquality(t.users[ty.Payload], oracle)
	}
	return false
}

func (t *Table) userSupportsEquality(u *UserInfo, oracle EqualityOracle) bool {
	if param, ok := u.Param(); ok {
		if oracle == nil {
			return t.Policy.unknown()
		}
		return oracle.ParamEquality(param)
	}
	decl, kind, ok := u.Decl()
	if !ok {
		return t.Policy.unknown()
	}
	switch kind {
	case DeclClass, DeclArray, DeclIterator:
		return true
	case DeclCodatatype:
		return false
	case DeclOpaque:
		if oracle == nil {
			return t.Policy.unknown()
		}
		return oracle.OpaqueEquality(decl)
	case DeclDatatype:
		if oracle == nil {
			return t.Policy.unknown()
		}
		class, contributes := oracle.DatatypeEquality(decl)
		switch class {
		case EqualityAlways:
			return true
		case EqualityNever:
			return false
		case EqualityConditional:
			for i, c := range contributes {
				if !c || i >= len(u.Args) {
					continue
				}
				if !t.SupportsEquality(u.Args[i], oracle) {
					return false
				}
			}
			return true
		}
		return t.Policy.unknown()
	}
	return t.Policy.unknown()
}
