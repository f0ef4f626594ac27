package types

import "fmt"

// TypeID uniquely identifies a type cell inside a Table.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindError is the inert placeholder installed after a reported error.
	KindError
	KindBool
	KindChar
	KindInt
	KindReal
	// KindSubrange is a named integer subrange such as nat.
	KindSubrange
	// KindObject is the top reference type.
	KindObject
	KindSet
	KindMultiset
	KindSeq
	KindMap
	KindUser
	KindProxy
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindError:
		return "error"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindSubrange:
		return "subrange"
	case KindObject:
		return "object"
	case KindSet:
		return "set"
	case KindMultiset:
		return "multiset"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindUser:
		return "user"
	case KindProxy:
		return "proxy"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor stored in a Table cell.
type Type struct {
	Kind    Kind
	Elem    TypeID // set/multiset/seq element, map domain
	Value   TypeID // map range
	Finite  bool   // set and map: false for iset/imap
	Payload uint32 // index into user, proxy or subrange side tables
}

// IsCollection reports set, multiset, seq and map kinds.
func (k Kind) IsCollection() bool {
	return k == KindSet || k == KindMultiset || k == KindSeq || k == KindMap
}

// IsIntLike reports int and integer subranges.
func (k Kind) IsIntLike() bool {
	return k == KindInt || k == KindSubrange
}

func MakeSet(elem TypeID, finite bool) Type {
	return Type{Kind: KindSet, Elem: elem, Finite: finite}
}

func MakeMultiset(elem TypeID) Type {
	return Type{Kind: KindMultiset, Elem: elem, Finite: true}
}

func MakeSeq(elem TypeID) Type {
	return Type{Kind: KindSeq, Elem: elem, Finite: true}
}

func MakeMap(dom, rng TypeID, finite bool) Type {
	return Type{Kind: KindMap, Elem: dom, Value: rng, Finite: finite}
}

// DeclRef is an opaque handle to a top-level declaration owned by the
// declaration graph. The zero value means "none".
type DeclRef uint32

// ParamRef is an opaque handle to a type parameter owned by the declaration graph.
type ParamRef uint32

// DeclKind classifies the declaration a user type resolves to.
type DeclKind uint8

const (
	DeclUnknown DeclKind = iota
	DeclClass
	DeclArray
	DeclDatatype
	DeclCodatatype
	DeclIterator
	DeclOpaque
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclArray:
		return "array"
	case DeclDatatype:
		return "datatype"
	case DeclCodatatype:
		return "codatatype"
	case DeclIterator:
		return "iterator"
	case DeclOpaque:
		return "opaque type"
	default:
		return "unknown"
	}
}

// IsReference reports declarations whose values are heap references.
func (k DeclKind) IsReference() bool {
	return k == DeclClass || k == DeclArray || k == DeclIterator
}
