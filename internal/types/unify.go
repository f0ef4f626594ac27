package types

import (
	"fmt"
)

// UnifyError describes why two types could not be made equal.
type UnifyError struct {
	Left   TypeID
	Right  TypeID
	Reason string
	text   string
}

func (e *UnifyError) Error() string {
	return e.text
}

func (t *Table) mismatch(a, b TypeID, reason string) *UnifyError {
	return &UnifyError{
		Left:   a,
		Right:  b,
		Reason: reason,
		text:   fmt.Sprintf("cannot unify %s with %s: %s", t.Format(a), t.Format(b), reason),
	}
}

// Unify makes a and b the same type by binding proxies, or reports why not.
// A failed unification may leave some proxies bound; callers install error
// placeholders and keep going.
func (t *Table) Unify(a, b TypeID) error {
	if err := t.unify(a, b); err != nil {
		return err
	}
	return nil
}

func (t *Table) unify(a, b TypeID) *UnifyError {
	a, b = t.Normalize(a), t.Normalize(b)
	if a == b {
		return nil
	}
	ta, okA := t.Lookup(a)
	tb, okB := t.Lookup(b)
	if !okA || !okB {
		return t.mismatch(a, b, "invalid type")
	}
	if ta.Kind == KindError || tb.Kind == KindError {
		// ошибочный тип поглощает прокси, чтобы не плодить каскад
		if ta.Kind == KindProxy {
			return t.bindChecked(a, b)
		}
		if tb.Kind == KindProxy {
			return t.bindChecked(b, a)
		}
		return nil
	}
	switch {
	case ta.Kind == KindProxy && tb.Kind == KindProxy:
		return t.meet(a, b)
	case ta.Kind == KindProxy:
		return t.bindChecked(a, b)
	case tb.Kind == KindProxy:
		return t.bindChecked(b, a)
	}

	if ta.Kind.IsIntLike() && tb.Kind.IsIntLike() {
		return nil
	}
	if ta.Kind != tb.Kind {
		return t.mismatch(a, b, "different kinds")
	}
	switch ta.Kind {
	case KindSet, KindMap:
		if ta.Finite != tb.Finite {
			return t.mismatch(a, b, "finite and infinite collections differ")
		}
		if err := t.unify(ta.Elem, tb.Elem); err != nil {
			return err
		}
		if ta.Kind == KindMap {
			return t.unify(ta.Value, tb.Value)
		}
		return nil
	case KindMultiset, KindSeq:
		return t.unify(ta.Elem, tb.Elem)
	case KindUser:
		return t.unifyUser(a, b)
	}
	// примитивы одного вида
	return nil
}

func (t *Table) unifyUser(a, b TypeID) *UnifyError {
	ua, _ := t.User(a)
	ub, _ := t.User(b)
	da, _, okA := ua.Decl()
	db, _, okB := ub.Decl()
	pa, pokA := ua.Param()
	pb, pokB := ub.Param()
	switch {
	case okA && okB:
		if da != db {
			return t.mismatch(a, b, "different declarations")
		}
	case pokA && pokB:
		if pa != pb {
			return t.mismatch(a, b, "different type parameters")
		}
	case !ua.Resolved() && !ub.Resolved():
		if ua.Name != ub.Name || ua.Qualifier != ub.Qualifier {
			return t.mismatch(a, b, "different type names")
		}
	default:
		return t.mismatch(a, b, "different type names")
	}
	if len(ua.Args) != len(ub.Args) {
		return t.mismatch(a, b, "different number of type arguments")
	}
	for i := range ua.Args {
		if err := t.unify(ua.Args[i], ub.Args[i]); err != nil {
			return err
		}
	}
	return nil
}

// bindChecked binds proxy p to the normal form target after the shape,
// occurs and element-role checks.
func (t *Table) bindChecked(p, target TypeID) *UnifyError {
	info, _ := t.Proxy(p)
	if tt := t.MustLookup(target); tt.Kind != KindError {
		shape := t.shapeOf(target)
		if shape != ShapeAll && !info.Shapes.Has(shape) {
			return t.mismatch(p, target, fmt.Sprintf("a %s proxy cannot be %s", info.Kind, t.Format(target)))
		}
		if t.Occurs(p, target) {
			return t.mismatch(p, target, "recursive type")
		}
	}
	if err := t.Bind(p, target); err != nil {
		return t.mismatch(p, target, err.Error())
	}
	if t.MustLookup(target).Kind == KindError {
		return nil
	}
	member, index, result := t.roles(target)
	for _, pair := range [][2]TypeID{{info.Member, member}, {info.Index, index}, {info.Result, result}} {
		if pair[0] == NoTypeID || pair[1] == NoTypeID {
			continue
		}
		if err := t.unify(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// meet unifies two unbound proxies. The one with the higher order is bound to
// the lower; if the lower one would lose admissible shapes, both are bound to a
// fresh proxy carrying the intersection.
func (t *Table) meet(a, b TypeID) *UnifyError {
	pa, _ := t.Proxy(a)
	pb, _ := t.Proxy(b)
	if t.Occurs(a, b) || t.Occurs(b, a) {
		return t.mismatch(a, b, "recursive type")
	}
	survivor, other := a, b
	ps, po := pa, pb
	if pb.Kind.Order() < pa.Kind.Order() {
		survivor, other = b, a
		ps, po = pb, pa
	}
	shapes := ps.Shapes & po.Shapes
	if shapes == 0 {
		return t.mismatch(a, b, fmt.Sprintf("%s and %s proxies have no common shape", pa.Kind, pb.Kind))
	}
	if shapes != ps.Shapes {
		fresh := t.newProxy(&ProxyInfo{Kind: ps.Kind, Shapes: shapes, Span: ps.Span})
		if err := t.adoptRoles(fresh, survivor); err != nil {
			return err
		}
		if err := t.adoptRoles(fresh, other); err != nil {
			return err
		}
		if err := t.Bind(survivor, fresh); err != nil {
			return t.mismatch(a, b, err.Error())
		}
		if err := t.Bind(other, fresh); err != nil {
			return t.mismatch(a, b, err.Error())
		}
		return nil
	}
	if err := t.adoptRoles(survivor, other); err != nil {
		return err
	}
	if err := t.Bind(other, survivor); err != nil {
		return t.mismatch(a, b, err.Error())
	}
	return nil
}

// adoptRoles moves element roles of src onto the unbound proxy dst,
// unifying roles present on both.
func (t *Table) adoptRoles(dst, src TypeID) *UnifyError {
	d, _ := t.Proxy(dst)
	s, _ := t.Proxy(src)
	merge := func(dv *TypeID, sv TypeID) *UnifyError {
		if sv == NoTypeID {
			return nil
		}
		if *dv == NoTypeID {
			*dv = sv
			return nil
		}
		return t.unify(*dv, sv)
	}
	if err := merge(&d.Member, s.Member); err != nil {
		return err
	}
	if err := merge(&d.Index, s.Index); err != nil {
		return err
	}
	return merge(&d.Result, s.Result)
}

// Occurs reports whether the normal form of needle appears inside hay.
func (t *Table) Occurs(needle, hay TypeID) bool {
	needle = t.Normalize(needle)
	var walk func(TypeID) bool
	walk = func(id TypeID) bool {
		id = t.Normalize(id)
		if id == needle {
			return true
		}
		ty, ok := t.Lookup(id)
		if !ok {
			return false
		}
		switch ty.Kind {
		case KindSet, KindMultiset, KindSeq:
			return walk(ty.Elem)
		case KindMap:
			return walk(ty.Elem) || walk(ty.Value)
		case KindUser:
			for _, a := range t.users[ty.Payload].Args {
				if walk(a) {
					return true
				}
			}
		case KindProxy:
			p := t.proxies[ty.Payload]
			for _, r := range []TypeID{p.Member, p.Index, p.Result} {
				if r != NoTypeID && walk(r) {
					return true
				}
			}
		}
		return false
	}
	hay = t.Normalize(hay)
	if hay == needle {
		return false
	}
	return walk(hay)
}
