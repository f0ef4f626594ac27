package types

import (
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"

	"fortio.org/safecast"

	"vera/internal/cell"
	"vera/internal/source"
)

var (
	ErrAlreadyBound = errors.New("type proxy already bound")
	ErrNotProxy     = errors.New("not a type proxy")
)

// ProxyKind restricts the family of types a proxy may become.
type ProxyKind uint8

const (
	ProxyFree ProxyKind = iota
	ProxyDatatype
	ProxyObject
	ProxyCollection
	ProxyOperation
	ProxyIndexable
)

func (k ProxyKind) String() string {
	switch k {
	case ProxyFree:
		return "free"
	case ProxyDatatype:
		return "datatype"
	case ProxyObject:
		return "object"
	case ProxyCollection:
		return "collection"
	case ProxyOperation:
		return "operation"
	case ProxyIndexable:
		return "indexable"
	}
	return fmt.Sprintf("ProxyKind(%d)", k)
}

// Order breaks ties when two proxies meet: the lower order survives.
// Free proxies rank after every restricted kind.
func (k ProxyKind) Order() uint8 {
	switch k {
	case ProxyDatatype:
		return 0
	case ProxyObject:
		return 1
	case ProxyCollection:
		return 2
	case ProxyOperation:
		return 3
	case ProxyIndexable:
		return 4
	}
	return 255
}

// Shape is one family of normal forms a proxy may be bound to.
type Shape uint16

const (
	ShapeBool Shape = 1 << iota
	ShapeChar
	ShapeInt
	ShapeReal
	ShapeObject // object, classes, iterators
	ShapeArray
	ShapeDatatype
	ShapeSet
	ShapeMultiset
	ShapeSeq
	ShapeMap
	ShapeOpaque
	ShapeParam

	ShapeAll Shape = 1<<iota - 1
)

// Has reports whether every shape of other is admitted by s.
func (s Shape) Has(other Shape) bool { return s&other == other && other != 0 }

// Count returns the number of shapes in the set.
func (s Shape) Count() int { return bits.OnesCount16(uint16(s)) }

// KindShapes returns the shapes a freshly created proxy of kind k admits.
func KindShapes(k ProxyKind) Shape {
	switch k {
	case ProxyDatatype:
		return ShapeDatatype
	case ProxyObject:
		return ShapeObject | ShapeArray
	case ProxyCollection:
		return ShapeSet | ShapeMultiset | ShapeSeq | ShapeMap
	case ProxyOperation:
		return ShapeInt | ShapeReal | ShapeSet | ShapeMultiset | ShapeSeq | ShapeMap
	case ProxyIndexable:
		return ShapeSeq | ShapeMap | ShapeMultiset | ShapeArray
	}
	return ShapeAll
}

// ProxyInfo is the side record of a proxy cell. The bound slot is write-once;
// jump is a path-compression cache that Normalize may overwrite at any time.
type ProxyInfo struct {
	Kind   ProxyKind
	Shapes Shape
	Span   source.Span

	// Element roles constrained by uses of the proxy before it is bound.
	// Member: `x in p`; Index and Result: `p[i]`.
	Member TypeID
	Index  TypeID
	Result TypeID

	bound cell.Once[TypeID]
	jump  atomic.Uint32
}

// Bound returns the type the proxy was bound to.
func (p *ProxyInfo) Bound() (TypeID, bool) { return p.bound.Lookup() }

// NewProxy allocates an unbound proxy of the given kind.
func (t *Table) NewProxy(kind ProxyKind, span source.Span) TypeID {
	return t.newProxy(&ProxyInfo{Kind: kind, Shapes: KindShapes(kind), Span: span})
}

// NewCollectionProxy allocates a collection proxy whose membership element is elem.
func (t *Table) NewCollectionProxy(elem TypeID, span source.Span) TypeID {
	return t.newProxy(&ProxyInfo{Kind: ProxyCollection, Shapes: KindShapes(ProxyCollection), Span: span, Member: elem})
}

// NewIndexableProxy allocates a proxy for `p[index]` yielding result.
func (t *Table) NewIndexableProxy(index, result TypeID, span source.Span) TypeID {
	return t.newProxy(&ProxyInfo{Kind: ProxyIndexable, Shapes: KindShapes(ProxyIndexable), Span: span, Index: index, Result: result})
}

func (t *Table) newProxy(p *ProxyInfo) TypeID {
	n, err := safecast.Conv[uint32](len(t.proxies))
	if err != nil {
		panic(fmt.Errorf("len(proxies) overflow: %w", err))
	}
	t.proxies = append(t.proxies, p)
	return t.internRaw(Type{Kind: KindProxy, Payload: n})
}

// Proxy returns the side record of a proxy cell (not normalized).
func (t *Table) Proxy(id TypeID) (*ProxyInfo, bool) {
	ty, ok := t.Lookup(id)
	if !ok || ty.Kind != KindProxy {
		return nil, false
	}
	return t.proxies[ty.Payload], true
}

// Bind writes the proxy's resolved slot. It fails when the slot is already set.
// Bind performs no shape or occurs check; Unify does.
func (t *Table) Bind(proxy, target TypeID) error {
	p, ok := t.Proxy(proxy)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotProxy, proxy)
	}
	t.mustValid(target)
	if t.Normalize(target) == proxy {
		return fmt.Errorf("types: binding proxy %d would create a cycle", proxy)
	}
	if err := p.bound.Set(target); err != nil {
		return fmt.Errorf("%w: %w", ErrAlreadyBound, err)
	}
	return nil
}

// Normalize follows bound proxies to the nearest non-proxy or innermost
// unbound proxy. It never returns a bound proxy. Only jump caches are
// written, so concurrent Normalize calls are safe.
func (t *Table) Normalize(id TypeID) TypeID {
	cur := id
	var path []*ProxyInfo
	for {
		p, ok := t.Proxy(cur)
		if !ok {
			break
		}
		next, bound := p.bound.Lookup()
		if !bound {
			break
		}
		if j := TypeID(p.jump.Load()); j != NoTypeID {
			next = j
		}
		path = append(path, p)
		cur = next
	}
	for _, p := range path {
		p.jump.Store(uint32(cur))
	}
	return cur
}

// UnboundProxies returns every proxy cell that is still unbound.
func (t *Table) UnboundProxies() []TypeID {
	var out []TypeID
	for i, ty := range t.types {
		if ty.Kind != KindProxy {
			continue
		}
		if !t.proxies[ty.Payload].bound.IsSet() {
			out = append(out, TypeID(i)) //nolint:gosec // i < len(types)
		}
	}
	return out
}

// shapeOf returns the shape of a normal form, 0 for proxies and invalid cells.
func (t *Table) shapeOf(id TypeID) Shape {
	ty, ok := t.Lookup(id)
	if !ok {
		return 0
	}
	switch ty.Kind {
	case KindBool:
		return ShapeBool
	case KindChar:
		return ShapeChar
	case KindInt, KindSubrange:
		return ShapeInt
	case KindReal:
		return ShapeReal
	case KindObject:
		return ShapeObject
	case KindSet:
		return ShapeSet
	case KindMultiset:
		return ShapeMultiset
	case KindSeq:
		return ShapeSeq
	case KindMap:
		return ShapeMap
	case KindUser:
		u := t.users[ty.Payload]
		if _, ok := u.Param(); ok {
			return ShapeParam
		}
		_, kind, ok := u.Decl()
		if !ok {
			return ShapeAll
		}
		switch kind {
		case DeclClass, DeclIterator:
			return ShapeObject
		case DeclArray:
			return ShapeArray
		case DeclDatatype, DeclCodatatype:
			return ShapeDatatype
		case DeclOpaque:
			return ShapeOpaque
		}
		return ShapeAll
	}
	return 0
}

// roles returns the element roles of a concrete type: membership element,
// index domain and index result. Missing roles are NoTypeID.
func (t *Table) roles(id TypeID) (member, index, result TypeID) {
	ty := t.MustLookup(id)
	switch ty.Kind {
	case KindSet:
		return ty.Elem, NoTypeID, NoTypeID
	case KindSeq:
		return ty.Elem, t.builtins.Int, ty.Elem
	case KindMultiset:
		return ty.Elem, ty.Elem, t.builtins.Int
	case KindMap:
		return ty.Elem, ty.Elem, ty.Value
	case KindUser:
		u := t.users[ty.Payload]
		if _, kind, ok := u.Decl(); ok && kind == DeclArray && len(u.Args) == 1 {
			return NoTypeID, t.builtins.Int, u.Args[0]
		}
	}
	return NoTypeID, NoTypeID, NoTypeID
}
