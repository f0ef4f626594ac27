package types

import (
	"errors"
	"testing"

	"vera/internal/source"
)

func TestNormalizeIdempotentAndNeverBound(t *testing.T) {
	tab, _ := newTestTable()
	b := tab.Builtins()
	p1 := tab.NewProxy(ProxyFree, source.NoSpan)
	p2 := tab.NewProxy(ProxyFree, source.NoSpan)
	p3 := tab.NewProxy(ProxyFree, source.NoSpan)
	if err := tab.Bind(p1, p2); err != nil {
		t.Fatal(err)
	}
	if err := tab.Bind(p2, p3); err != nil {
		t.Fatal(err)
	}
	if n := tab.Normalize(p1); n != p3 {
		t.Fatalf("normalize(p1) = %d, want unbound p3 = %d", n, p3)
	}
	if err := tab.Bind(p3, b.Int); err != nil {
		t.Fatal(err)
	}
	for _, id := range []TypeID{p1, p2, p3, b.Int} {
		n := tab.Normalize(id)
		if n != b.Int || tab.Normalize(n) != n {
			t.Fatalf("normalize(%d) = %d", id, n)
		}
		if p, ok := tab.Proxy(n); ok {
			if _, bound := p.Bound(); bound {
				t.Fatalf("normalize returned a bound proxy")
			}
		}
	}
	if err := tab.Bind(p1, b.Bool); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("rebinding must fail with ErrAlreadyBound, got %v", err)
	}
	if bound, _ := mustProxy(t, tab, p1).Bound(); bound != p2 {
		t.Fatalf("path compression must not touch the write-once slot")
	}
}

func mustProxy(t *testing.T, tab *Table, id TypeID) *ProxyInfo {
	t.Helper()
	p, ok := tab.Proxy(id)
	if !ok {
		t.Fatalf("%d is not a proxy", id)
	}
	return p
}

func TestUnifyStructural(t *testing.T) {
	tab, _ := newTestTable()
	b := tab.Builtins()
	p := tab.NewProxy(ProxyFree, source.NoSpan)
	if err := tab.Unify(tab.Seq(p), tab.Seq(b.Bool)); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if tab.Normalize(p) != b.Bool {
		t.Fatalf("element proxy not bound")
	}
	if err := tab.Unify(b.Nat, b.Int); err != nil {
		t.Fatalf("nat must be compatible with int: %v", err)
	}
	err := tab.Unify(tab.Set(b.Int, true), tab.Set(b.Int, false))
	var ue *UnifyError
	if !errors.As(err, &ue) {
		t.Fatalf("set vs iset must fail with *UnifyError, got %v", err)
	}
	if err := tab.Unify(b.Error, tab.Seq(b.Int)); err != nil {
		t.Fatalf("error type must unify with anything: %v", err)
	}
}

func TestOccursCheck(t *testing.T) {
	tab, _ := newTestTable()
	p := tab.NewProxy(ProxyFree, source.NoSpan)
	if err := tab.Unify(p, tab.Seq(p)); err == nil {
		t.Fatalf("p = seq<p> must fail the occurs check")
	}
	if _, bound := mustProxy(t, tab, p).Bound(); bound {
		t.Fatalf("failed occurs check must leave the proxy unbound")
	}
}

func TestRestrictedProxyShapes(t *testing.T) {
	tab, _ := newTestTable()
	b := tab.Builtins()
	op := tab.NewProxy(ProxyOperation, source.NoSpan)
	if err := tab.Unify(op, b.Bool); err == nil {
		t.Fatalf("operation proxy must reject bool")
	}
	op2 := tab.NewProxy(ProxyOperation, source.NoSpan)
	if err := tab.Unify(op2, b.Real); err != nil {
		t.Fatalf("operation proxy must accept real: %v", err)
	}
	dt := tab.NewProxy(ProxyDatatype, source.NoSpan)
	coll := tab.NewProxy(ProxyCollection, source.NoSpan)
	if err := tab.Unify(dt, coll); err == nil {
		t.Fatalf("datatype and collection proxies share no shape")
	}
}

func TestProxyMeetOrder(t *testing.T) {
	tab, _ := newTestTable()
	free := tab.NewProxy(ProxyFree, source.NoSpan)
	obj := tab.NewProxy(ProxyObject, source.NoSpan)
	if err := tab.Unify(free, obj); err != nil {
		t.Fatal(err)
	}
	if tab.Normalize(free) != obj {
		t.Fatalf("free proxy must be bound to the restricted one")
	}

	coll := tab.NewProxy(ProxyCollection, source.NoSpan)
	idx := tab.NewProxy(ProxyIndexable, source.NoSpan)
	if err := tab.Unify(idx, coll); err != nil {
		t.Fatal(err)
	}
	n := tab.Normalize(idx)
	if n != tab.Normalize(coll) {
		t.Fatalf("both proxies must share a normal form")
	}
	if n == coll || n == idx {
		t.Fatalf("narrowed meet must allocate a fresh proxy")
	}
	p := mustProxy(t, tab, n)
	if p.Kind != ProxyCollection {
		t.Fatalf("fresh proxy kind = %v, want collection", p.Kind)
	}
	if p.Shapes.Has(ShapeSet) || p.Shapes.Has(ShapeArray) || !p.Shapes.Has(ShapeSeq|ShapeMap|ShapeMultiset) {
		t.Fatalf("fresh proxy shapes = %b", p.Shapes)
	}
}

func TestIndexableRolesFlowOnBind(t *testing.T) {
	tab, _ := newTestTable()
	b := tab.Builtins()
	idxT := tab.NewProxy(ProxyFree, source.NoSpan)
	res := tab.NewProxy(ProxyFree, source.NoSpan)
	ix := tab.NewIndexableProxy(idxT, res, source.NoSpan)
	if err := tab.Unify(ix, tab.Map(b.Char, b.Real, true)); err != nil {
		t.Fatal(err)
	}
	if tab.Normalize(idxT) != b.Char || tab.Normalize(res) != b.Real {
		t.Fatalf("map roles not propagated: %s %s", tab.Format(idxT), tab.Format(res))
	}
}

func TestUnifyUserTypes(t *testing.T) {
	tab, strs := newTestTable()
	b := tab.Builtins()
	name := strs.Intern("List")
	l1 := tab.NewResolvedUser(name, []TypeID{b.Int}, 4, DeclDatatype)
	p := tab.NewProxy(ProxyFree, source.NoSpan)
	l2 := tab.NewResolvedUser(name, []TypeID{p}, 4, DeclDatatype)
	if err := tab.Unify(l1, l2); err != nil {
		t.Fatal(err)
	}
	if tab.Normalize(p) != b.Int {
		t.Fatalf("type argument not inferred")
	}
	other := tab.NewResolvedUser(strs.Intern("Tree"), []TypeID{b.Int}, 5, DeclDatatype)
	if err := tab.Unify(l1, other); err == nil {
		t.Fatalf("different declarations must not unify")
	}
}
